// Package command turns client command lines into responses.
//
// The Interpreter is shared by every connection. All per-connection state
// lives in the session.Session passed with each line, so a single
// Interpreter can serve any number of goroutines concurrently; the shared
// user store does its own locking.
//
// Processing of one line:
//  1. Parse the verb and arguments
//  2. Look the verb up in the dispatch table (INVALID_COMMAND if unknown)
//  3. Check the argument count (BAD_INPUT)
//  4. Check authentication (LOGIN_REQUIRED) and privilege (ADMIN_REQUIRED)
//  5. Run the verb handler
package command

import (
	"time"

	"github.com/marmos91/sandfs/internal/protocol/command/handlers"
	"github.com/marmos91/sandfs/pkg/metrics"
	"github.com/marmos91/sandfs/pkg/users"
)

// Interpreter executes command lines against the shared user store.
type Interpreter struct {
	store   *users.Store
	handler *handlers.Handler
	metrics metrics.LineMetrics
}

// New creates an Interpreter backed by store.
//
// A nil m disables metrics. Panics if store is nil (programmer error).
func New(store *users.Store, m metrics.LineMetrics) *Interpreter {
	if store == nil {
		panic("command: store cannot be nil")
	}
	if m == nil {
		m = metrics.NewNoopLineMetrics()
	}

	return &Interpreter{
		store:   store,
		handler: handlers.NewHandler(store),
		metrics: m,
	}
}

// Handle executes one command line in the session carried by ctx.
//
// Returns:
//   - the response to write back; Response.Close asks the caller to close
//     the connection after writing it
//   - an error only for I/O failures, which must end the connection
func (i *Interpreter) Handle(ctx *handlers.Context, line string) (*handlers.Response, error) {
	start := time.Now()
	req := Parse(line)

	info, ok := dispatchTable[req.Verb]
	if !ok {
		resp := handlers.NewResponse(handlers.OutcomeInvalidCommand)
		i.metrics.RecordCommand("unknown", resp.Outcome.String(), time.Since(start))
		ctx.Log.Debug("Unknown verb %q", req.Verb)
		return resp, nil
	}

	i.metrics.RecordCommandStart(info.Name)
	defer i.metrics.RecordCommandEnd(info.Name)

	resp, err := i.dispatch(ctx, info, req.Args)

	duration := time.Since(start)
	if err != nil {
		i.metrics.RecordCommand(info.Name, "error", duration)
		ctx.Log.Error("%s failed after %v: %v", info.Name, duration, err)
		return nil, err
	}

	i.metrics.RecordCommand(info.Name, resp.Outcome.String(), duration)
	ctx.Log.Debug("%s -> %s (%v)", info.Name, resp.Outcome, duration)
	return resp, nil
}

func (i *Interpreter) dispatch(ctx *handlers.Context, info *verbInfo, args []string) (*handlers.Response, error) {
	sess := ctx.Session

	// ========================================================================
	// Step 1: Arity
	// ========================================================================

	if !info.acceptsArgs(len(args)) {
		return handlers.NewResponse(handlers.OutcomeBadInput), nil
	}

	// ========================================================================
	// Step 2: Authentication
	// ========================================================================

	if info.NeedsAuth {
		if !sess.Authenticated() {
			return handlers.NewResponse(handlers.OutcomeLoginRequired), nil
		}

		// The account may have been deleted from another connection.
		if !i.store.Contains(sess.Identity()) {
			ctx.Log.Info("User %q no longer exists, logging session out", sess.Identity())
			sess.Reset()
			return handlers.NewResponse(handlers.OutcomeLoginRequired), nil
		}
	}

	// ========================================================================
	// Step 3: Privilege
	// ========================================================================

	if info.NeedsAdmin {
		if priv, _ := i.store.PrivilegeOf(sess.Identity()); priv != users.PrivilegeAdmin {
			return handlers.NewResponse(handlers.OutcomeAdminRequired), nil
		}
	}

	// ========================================================================
	// Step 4: Execute
	// ========================================================================

	if err := ctx.Context.Err(); err != nil {
		return nil, err
	}

	return info.Handler(i.handler, ctx, args)
}
