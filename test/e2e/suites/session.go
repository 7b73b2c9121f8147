package suites

import (
	"testing"

	"github.com/marmos91/sandfs/internal/protocol/command/handlers"
	"github.com/marmos91/sandfs/test/e2e/framework"
)

// TestSessionOperations covers registration, login and logout over the wire
func TestSessionOperations(t *testing.T, backend framework.BackendType) {
	ctx := framework.NewTestContext(t, backend)

	t.Run("CommandsWithoutLogin", func(t *testing.T) {
		c := ctx.Connect()
		c.Do("commands", handlers.OutcomeHelp)
	})

	t.Run("UnknownVerb", func(t *testing.T) {
		c := ctx.Connect()
		c.Do("frobnicate now", handlers.OutcomeInvalidCommand)
	})

	t.Run("WrongArity", func(t *testing.T) {
		c := ctx.Connect()
		c.Do("login alice", handlers.OutcomeBadInput)
		c.Do("list extra", handlers.OutcomeBadInput)
	})

	t.Run("LoginRequired", func(t *testing.T) {
		c := ctx.Connect()
		c.Do("list", handlers.OutcomeLoginRequired)
		c.Do("create_folder docs", handlers.OutcomeLoginRequired)
	})

	t.Run("RegisterAndLogin", func(t *testing.T) {
		c := ctx.Connect()
		c.Do("register alice pw1 user", handlers.OutcomeRegistered)
		ctx.AssertSandboxExists("alice")

		c.Do("login alice wrong", handlers.OutcomeWrongPassword)
		c.Do("login nobody pw", handlers.OutcomeUnknownUser)
		c.Login("alice", "pw1")
		c.Do("login alice pw1", handlers.OutcomeAlreadyLoggedIn)
	})

	t.Run("RegisterRejections", func(t *testing.T) {
		c := ctx.Connect()
		c.Do("register bob pw user", handlers.OutcomeRegistered)
		c.Do("register bob other user", handlers.OutcomeUsernameUnavailable)
		c.Do("register carol pw superuser", handlers.OutcomeRegisterInvalid)
		c.Do("register .. pw user", handlers.OutcomeRegisterInvalid)
	})

	t.Run("SameUserOnTwoConnections", func(t *testing.T) {
		first := ctx.Connect()
		second := ctx.Connect()
		first.Do("register dave pw user", handlers.OutcomeRegistered)

		first.Login("dave", "pw")
		second.Login("dave", "pw")

		first.Do("create_folder shared", handlers.OutcomeDirectoryCreated)
		second.Do("list", handlers.OutcomeListing, framework.Listing("shared"))
	})

	t.Run("QuitClosesConnection", func(t *testing.T) {
		c := ctx.Connect()
		c.Do("quit", handlers.OutcomeLoggedOut)
		c.ExpectClosed()
	})
}
