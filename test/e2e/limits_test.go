package e2e

import (
	"strings"
	"testing"

	"github.com/marmos91/sandfs/internal/protocol/command/handlers"
	"github.com/marmos91/sandfs/test/e2e/framework"
)

// TestConnectionLimit verifies connections over the limit are closed on accept
func TestConnectionLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping e2e test in short mode")
	}

	ctx := framework.NewTestContextWithConfig(t, framework.TestServerConfig{MaxConnections: 1})

	first := ctx.Connect()
	first.Do("commands", handlers.OutcomeHelp)

	second := ctx.Connect()
	second.ExpectClosed()

	// The admitted connection is unaffected
	first.Do("commands", handlers.OutcomeHelp)
}

// TestOversizedLine verifies a line over the limit ends the connection
func TestOversizedLine(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping e2e test in short mode")
	}

	ctx := framework.NewTestContextWithConfig(t, framework.TestServerConfig{MaxLineLength: 32})

	c := ctx.Connect()
	c.Do("commands", handlers.OutcomeHelp)
	c.Send("write_file big.txt " + strings.Repeat("x", 64))
	c.ExpectClosed()

	// Other clients keep working
	other := ctx.Connect()
	other.Do("commands", handlers.OutcomeHelp)
}
