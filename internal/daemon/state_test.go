package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_Write_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*State)
		wantErr string
	}{
		{"valid", func(*State) {}, ""},
		{"bad pid", func(s *State) { s.PID = 0 }, "invalid PID"},
		{"no config", func(s *State) { s.ConfigFile = "" }, "config file cannot be empty"},
		{"bad port", func(s *State) { s.Port = 70000 }, "invalid port"},
		{"no host", func(s *State) { s.Host = "" }, "host cannot be empty"},
		{"api disabled ignores port", func(s *State) { s.API = false; s.Port = 0; s.Host = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := runningState(123)
			tt.mutate(s)

			err := s.Write(t.TempDir())
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestState_WriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := runningState(321)
	s.Auth = true
	s.StartedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Write(dir))

	info, err := os.Stat(StatePath(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadState(dir)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
	assert.Equal(t, "http://127.0.0.1:5566", loaded.Address())
}

func TestState_AddressWithoutAPI(t *testing.T) {
	s := &State{PID: 1}
	assert.Empty(t, s.Address())
}

func TestLoadState(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadState(dir)
	assert.ErrorIs(t, err, ErrStateNotFound)

	require.NoError(t, EnsureStateDir(dir))
	require.NoError(t, os.WriteFile(StatePath(dir), []byte("{"), 0600))
	_, err = LoadState(dir)
	assert.ErrorContains(t, err, "unmarshaling state")
}

func TestPaths(t *testing.T) {
	dir := "/srv/app"
	assert.Equal(t, "/srv/app/.horn", StateDir(dir))
	assert.Equal(t, "/srv/app/.horn/horn.state", StatePath(dir))
	assert.Equal(t, "/srv/app/.horn/horn.pid", PIDPath(dir))
	assert.Equal(t, "/srv/app/.horn/horn.log", LogPath(dir))
	assert.Equal(t, "/srv/app/.horn/token", TokenPath(dir))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, ".horn"), StateDir(""))
}

func TestEnsureStateDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureStateDir(dir))
	require.NoError(t, EnsureStateDir(dir), "idempotent")

	info, err := os.Stat(StateDir(dir))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)

	dir := t.TempDir()
	_, err = LoadToken(dir)
	assert.Error(t, err)

	require.NoError(t, SaveToken(dir, a))
	got, err := LoadToken(dir)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	info, err := os.Stat(TokenPath(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
