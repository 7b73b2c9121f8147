package gc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/sandfs/pkg/users"
	"github.com/marmos91/sandfs/pkg/users/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *users.Store {
	t.Helper()
	store := users.NewStore(t.TempDir(), memory.NewInitialized())
	require.NoError(t, store.Load(context.Background()))
	require.NoError(t, store.Register(context.Background(), "alice", "pw", "admin"))
	return store
}

func addOrphans(t *testing.T, store *users.Store) {
	t.Helper()
	root := store.SessionRoot()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bob", "notes"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bob", "notes", "a.txt"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".carol.deleted-1234"), 0755))
}

func TestCollector_RemovesOrphans(t *testing.T) {
	store := newStore(t)
	addOrphans(t, store)

	c := NewCollector(store, Config{Enabled: true})
	stats, err := c.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(3), stats.ExistingCount)
	assert.Equal(t, uint64(1), stats.ReferencedCount)
	assert.Equal(t, uint64(2), stats.OrphanedCount)
	assert.Equal(t, uint64(2), stats.DeletedCount)
	assert.Zero(t, stats.FailedCount)
	assert.Contains(t, stats.Summary(), "deleted=2")

	entries, err := os.ReadDir(store.SessionRoot())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Name())
}

func TestCollector_KeepsForeignFiles(t *testing.T) {
	store := newStore(t)
	registry := filepath.Join(store.SessionRoot(), "users.json")
	require.NoError(t, os.WriteFile(registry, []byte("{}"), 0644))

	stats, err := NewCollector(store, Config{Enabled: true}).RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.OrphanedCount)
	assert.Zero(t, stats.DeletedCount)
	assert.Zero(t, stats.FailedCount)
	assert.FileExists(t, registry)
}

func TestCollector_DryRun(t *testing.T) {
	store := newStore(t)
	addOrphans(t, store)

	c := NewCollector(store, Config{Enabled: true, DryRun: true})
	stats, err := c.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(2), stats.OrphanedCount)
	assert.Zero(t, stats.DeletedCount)
	assert.DirExists(t, filepath.Join(store.SessionRoot(), "bob"))
}

func TestCollector_MissingSessionRoot(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.RemoveAll(store.SessionRoot()))

	_, err := NewCollector(store, Config{}).RunNow(context.Background())
	assert.Error(t, err)
}

func TestCollector_StartStop(t *testing.T) {
	store := newStore(t)
	addOrphans(t, store)

	c := NewCollector(store, Config{Enabled: true, Interval: 20 * time.Millisecond})
	c.Start()
	c.Start()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(store.SessionRoot(), "bob"))
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.Stop(ctx))
}

func TestCollector_DisabledStopIsNoop(t *testing.T) {
	c := NewCollector(newStore(t), Config{})
	c.Start()
	assert.NoError(t, c.Stop(context.Background()))
}
