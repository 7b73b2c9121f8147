package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/sandfs/pkg/users"
	userstesting "github.com/marmos91/sandfs/pkg/users/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Backend {
	backend, err := New(Config{Path: filepath.Join(t.TempDir(), "server_data")})
	require.NoError(t, err)
	return backend
}

func TestFileBackend(t *testing.T) {
	suite := &userstesting.BackendTestSuite{
		NewBackend: func(t *testing.T) users.Backend {
			return newTestBackend(t)
		},
	}
	suite.Run(t)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSave_WritesWrappedDocument(t *testing.T) {
	backend := newTestBackend(t)
	require.NoError(t, backend.Save(context.Background(), userstesting.SampleSnapshot()))

	data, err := os.ReadFile(backend.Path())
	require.NoError(t, err)

	var doc map[string][]map[string]string
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc["passwords"], 1)
	require.Len(t, doc["privileges"], 1)
	assert.Equal(t, "s3cret", doc["passwords"][0]["alice"])
	assert.Equal(t, "admin", doc["privileges"][0]["alice"])
	assert.Equal(t, "user", doc["privileges"][0]["bob"])
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	backend := newTestBackend(t)
	require.NoError(t, backend.Save(context.Background(), userstesting.SampleSnapshot()))
	require.NoError(t, backend.Save(context.Background(), users.NewSnapshot()))

	entries, err := os.ReadDir(filepath.Dir(backend.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "server_data", entries[0].Name())
}

func TestLoad_ExistingDocument(t *testing.T) {
	backend := newTestBackend(t)
	doc := `{"passwords": [{"admin": "admin"}], "privileges": [{"admin": "admin"}]}`
	require.NoError(t, os.WriteFile(backend.Path(), []byte(doc), 0644))

	snap, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", snap.Passwords["admin"])
	assert.Equal(t, users.PrivilegeAdmin, snap.Privileges["admin"])
}

func TestLoad_RejectsCorruptDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: "{"},
		{name: "unknown privilege", doc: `{"passwords":[{"a":"x"}],"privileges":[{"a":"root"}]}`},
		{name: "missing privilege", doc: `{"passwords":[{"a":"x"}],"privileges":[{}]}`},
		{name: "missing password", doc: `{"passwords":[{}],"privileges":[{"a":"user"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newTestBackend(t)
			require.NoError(t, os.WriteFile(backend.Path(), []byte(tt.doc), 0644))

			_, err := backend.Load(context.Background())
			assert.ErrorIs(t, err, users.ErrCorrupt)
		})
	}
}
