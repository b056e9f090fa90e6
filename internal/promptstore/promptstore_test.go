package promptstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SeedsDefaultsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	s, err := New(path, map[string]string{"logs": "default logs prompt"})
	require.NoError(t, err)
	assert.Equal(t, "default logs prompt", s.Get("logs"))

	require.NoError(t, s.Put("logs", "custom prompt"))
	assert.Equal(t, "custom prompt", s.Get("logs"))
	assert.True(t, s.List()["logs"].IsCustom)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "custom prompt")
}

func TestStore_PutDefaultUnsetsCustomFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	s, err := New(path, map[string]string{"logs": "default logs prompt"})
	require.NoError(t, err)
	require.NoError(t, s.Put("logs", "custom prompt"))

	require.NoError(t, s.Put("logs", "default logs prompt"))
	assert.False(t, s.List()["logs"].IsCustom)
}

func TestStore_ResetAllAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	s, err := New(path, map[string]string{"logs": "default logs prompt", "events": "default events prompt"})
	require.NoError(t, err)
	require.NoError(t, s.Put("logs", "custom"))
	require.NoError(t, s.Reset(""))

	assert.Equal(t, "default logs prompt", s.Get("logs"))
	assert.False(t, s.List()["logs"].IsCustom)

	reloaded, err := New(path, map[string]string{"logs": "default logs prompt", "events": "default events prompt"})
	require.NoError(t, err)
	assert.Equal(t, "default logs prompt", reloaded.Get("logs"))
}

func TestStore_ResetUnknownAgent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	s, err := New(path, map[string]string{"logs": "default"})
	require.NoError(t, err)
	assert.Error(t, s.Reset("unknown"))
}
