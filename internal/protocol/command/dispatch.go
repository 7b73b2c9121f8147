package command

import (
	"strings"

	"github.com/marmos91/sandfs/internal/protocol/command/handlers"
)

// ============================================================================
// Verb Dispatch Table
// ============================================================================

// verbHandler adapts a handlers.Handler method to a uniform signature. args
// has already been checked against the verb's arity.
type verbHandler func(h *handlers.Handler, ctx *handlers.Context, args []string) (*handlers.Response, error)

// verbInfo contains metadata about a verb for dispatch.
type verbInfo struct {
	// Name is the verb as typed by clients
	Name string

	// Handler processes the verb
	Handler verbHandler

	// Args is the exact number of arguments, or the minimum when Variadic
	Args int

	// Variadic accepts Args or more arguments
	Variadic bool

	// NeedsAuth requires a logged in session
	NeedsAuth bool

	// NeedsAdmin additionally requires the admin privilege
	NeedsAdmin bool
}

// acceptsArgs reports whether n arguments satisfy the verb's arity.
func (v *verbInfo) acceptsArgs(n int) bool {
	if v.Variadic {
		return n >= v.Args
	}
	return n == v.Args
}

// dispatchTable maps verbs to their handlers.
//
// The table is initialized once at package init time.
var dispatchTable map[string]*verbInfo

func init() {
	initDispatchTable()
}

func initDispatchTable() {
	dispatchTable = map[string]*verbInfo{
		"commands": {
			Name:    "commands",
			Handler: handleCommands,
			Args:    0,
		},
		"register": {
			Name:    "register",
			Handler: handleRegister,
			Args:    3,
		},
		"login": {
			Name:    "login",
			Handler: handleLogin,
			Args:    2,
		},
		"quit": {
			Name:    "quit",
			Handler: handleQuit,
			Args:    0,
		},
		"list": {
			Name:      "list",
			Handler:   handleList,
			Args:      0,
			NeedsAuth: true,
		},
		"change_folder": {
			Name:      "change_folder",
			Handler:   handleChangeFolder,
			Args:      1,
			NeedsAuth: true,
		},
		"read_file": {
			Name:      "read_file",
			Handler:   handleReadFile,
			Args:      1,
			NeedsAuth: true,
		},
		"write_file": {
			Name:      "write_file",
			Handler:   handleWriteFile,
			Args:      1,
			Variadic:  true,
			NeedsAuth: true,
		},
		"create_folder": {
			Name:      "create_folder",
			Handler:   handleCreateFolder,
			Args:      1,
			NeedsAuth: true,
		},
		"delete": {
			Name:       "delete",
			Handler:    handleDelete,
			Args:       2,
			NeedsAuth:  true,
			NeedsAdmin: true,
		},
	}
}

// ============================================================================
// Verb Adapters
// ============================================================================

func handleCommands(h *handlers.Handler, ctx *handlers.Context, args []string) (*handlers.Response, error) {
	return h.Commands(ctx)
}

func handleRegister(h *handlers.Handler, ctx *handlers.Context, args []string) (*handlers.Response, error) {
	return h.Register(ctx, args[0], args[1], args[2])
}

func handleLogin(h *handlers.Handler, ctx *handlers.Context, args []string) (*handlers.Response, error) {
	return h.Login(ctx, args[0], args[1])
}

func handleQuit(h *handlers.Handler, ctx *handlers.Context, args []string) (*handlers.Response, error) {
	return h.Quit(ctx)
}

func handleList(h *handlers.Handler, ctx *handlers.Context, args []string) (*handlers.Response, error) {
	return h.List(ctx)
}

func handleChangeFolder(h *handlers.Handler, ctx *handlers.Context, args []string) (*handlers.Response, error) {
	return h.ChangeFolder(ctx, args[0])
}

func handleReadFile(h *handlers.Handler, ctx *handlers.Context, args []string) (*handlers.Response, error) {
	return h.ReadFile(ctx, args[0])
}

// handleWriteFile re-joins everything after the file name, so the data is the
// only argument that may contain spaces.
func handleWriteFile(h *handlers.Handler, ctx *handlers.Context, args []string) (*handlers.Response, error) {
	return h.WriteFile(ctx, args[0], strings.Join(args[1:], " "))
}

func handleCreateFolder(h *handlers.Handler, ctx *handlers.Context, args []string) (*handlers.Response, error) {
	return h.CreateFolder(ctx, args[0])
}

func handleDelete(h *handlers.Handler, ctx *handlers.Context, args []string) (*handlers.Response, error) {
	return h.Delete(ctx, args[0], args[1])
}
