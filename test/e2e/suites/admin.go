package suites

import (
	"testing"

	"github.com/marmos91/sandfs/internal/protocol/command/handlers"
	"github.com/marmos91/sandfs/test/e2e/framework"
)

// TestAdminOperations covers user deletion
func TestAdminOperations(t *testing.T, backend framework.BackendType) {
	ctx := framework.NewTestContext(t, backend)
	_, adminPassword := ctx.Server.Admin()

	c := ctx.Connect()
	c.Do("register grace pw user", handlers.OutcomeRegistered)
	c.Do("register heidi pw admin", handlers.OutcomeRegistered)

	t.Run("RequiresAdmin", func(t *testing.T) {
		user := ctx.Connect()
		user.Login("grace", "pw")
		user.Do("delete heidi pw", handlers.OutcomeAdminRequired)
	})

	t.Run("Rejections", func(t *testing.T) {
		admin := ctx.ConnectAdmin()
		admin.Do("delete nobody "+adminPassword, handlers.OutcomeUserNotFound, "nobody")
		admin.Do("delete grace wrong", handlers.OutcomeWrongPassword)
		ctx.AssertSandboxExists("grace")
	})

	t.Run("DeleteLogsOutOtherSessions", func(t *testing.T) {
		victim := ctx.Connect()
		victim.Login("grace", "pw")
		victim.Do("write_file diary.txt secret", handlers.OutcomeWriteNewPath)

		admin := ctx.ConnectAdmin()
		admin.Do("delete grace "+adminPassword, handlers.OutcomeUserDeleted, "grace")
		ctx.AssertSandboxGone("grace")

		victim.Do("list", handlers.OutcomeLoginRequired)
		victim.Do("login grace pw", handlers.OutcomeUnknownUser)
	})

	t.Run("NameReusableAfterDelete", func(t *testing.T) {
		fresh := ctx.Connect()
		fresh.Do("register grace newpw user", handlers.OutcomeRegistered)
		fresh.Login("grace", "newpw")
		fresh.Do("list", handlers.OutcomeListing, framework.Listing())
	})

	t.Run("DeleteSelf", func(t *testing.T) {
		self := ctx.Connect()
		self.Login("heidi", "pw")
		self.Do("delete heidi pw", handlers.OutcomeUserDeleted, "heidi")
		self.Do("list", handlers.OutcomeLoginRequired)
	})
}
