package e2e

import (
	"testing"

	"github.com/marmos91/sandfs/test/e2e/framework"
	"github.com/marmos91/sandfs/test/e2e/suites"
)

// runOnAllBackends runs fn once per embedded user store backend
func runOnAllBackends(t *testing.T, fn func(t *testing.T, backend framework.BackendType)) {
	for _, backend := range framework.AllBackends {
		t.Run(string(backend), func(t *testing.T) {
			fn(t, backend)
		})
	}
}

func TestSessions(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping e2e test in short mode")
	}
	runOnAllBackends(t, suites.TestSessionOperations)
}

func TestFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping e2e test in short mode")
	}
	runOnAllBackends(t, suites.TestFileOperations)
}

func TestAdmin(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping e2e test in short mode")
	}
	runOnAllBackends(t, suites.TestAdminOperations)
}
