package suites

import (
	"testing"

	"github.com/marmos91/sandfs/internal/protocol/command/handlers"
	"github.com/marmos91/sandfs/test/e2e/framework"
)

// TestFileOperations covers folder navigation and file access inside a sandbox
func TestFileOperations(t *testing.T, backend framework.BackendType) {
	ctx := framework.NewTestContextWithConfig(t, framework.TestServerConfig{
		Backend:   backend,
		ChunkSize: 5,
	})

	c := ctx.Connect()
	c.Do("register erin pw user", handlers.OutcomeRegistered)
	c.Login("erin", "pw")

	t.Run("EmptySandbox", func(t *testing.T) {
		c.Do("list", handlers.OutcomeListing, framework.Listing())
	})

	t.Run("CreateFolders", func(t *testing.T) {
		c.Do("create_folder docs", handlers.OutcomeDirectoryCreated)
		c.Do("create_folder docs", handlers.OutcomeDirectoryPresent)
		c.Do("create_folder a/b", handlers.OutcomeInvalidName)
		c.Do("list", handlers.OutcomeListing, framework.Listing("docs"))
	})

	t.Run("WriteAndAppend", func(t *testing.T) {
		c.Do("change_folder docs", handlers.OutcomeDirectoryChanged, "docs")
		c.Do("write_file notes.txt hello world", handlers.OutcomeWriteNewPath)
		c.Do("write_file notes.txt again", handlers.OutcomeWriteExisting)
		ctx.AssertFileContent("erin", "docs/notes.txt", "hello world\nagain")

		c.Do("create_folder sub", handlers.OutcomeDirectoryCreated)
		c.Do("write_file sub data", handlers.OutcomePathIsDirectory)
		c.Do("create_folder notes.txt", handlers.OutcomePathIsFile)
	})

	t.Run("ReadInChunks", func(t *testing.T) {
		// "hello world\nagain" is 17 characters: four chunks of 5, then wrap
		c.Do("read_file notes.txt", handlers.OutcomeFileRead, 0, "hello")
		c.Do("read_file notes.txt", handlers.OutcomeFileRead, 5, " worl")
		c.Do("read_file notes.txt", handlers.OutcomeFileRead, 10, "d\naga")
		c.Do("read_file notes.txt", handlers.OutcomeFileRead, 15, "in")
		c.Do("read_file notes.txt", handlers.OutcomeFileRead, 0, "hello")
		c.Do("read_file missing.txt", handlers.OutcomeReadWrongPath)
	})

	t.Run("ConfinedToSandbox", func(t *testing.T) {
		c.Do("change_folder ..", handlers.OutcomeDirectoryChanged, "..")
		c.Do("change_folder ..", handlers.OutcomeIncorrectDirectory)
		c.Do("change_folder ../frank", handlers.OutcomeIncorrectDirectory)
		c.Do("change_folder /etc", handlers.OutcomeIncorrectDirectory)
		c.Do("change_folder nowhere", handlers.OutcomeIncorrectDirectory)
		c.Do("write_file ../escape.txt data", handlers.OutcomeInvalidName)
	})

	t.Run("SandboxesAreIsolated", func(t *testing.T) {
		other := ctx.Connect()
		other.Do("register frank pw user", handlers.OutcomeRegistered)
		other.Login("frank", "pw")
		other.Do("list", handlers.OutcomeListing, framework.Listing())
		other.Do("change_folder docs", handlers.OutcomeIncorrectDirectory)
	})

	t.Run("NewSessionHasOwnCursors", func(t *testing.T) {
		fresh := ctx.Connect()
		fresh.Login("erin", "pw")
		fresh.Do("change_folder docs", handlers.OutcomeDirectoryChanged, "docs")
		fresh.Do("read_file notes.txt", handlers.OutcomeFileRead, 0, "hello")
	})
}
