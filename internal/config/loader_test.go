package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	t.Run("empty path returns nil", func(t *testing.T) {
		env, err := LoadEnvFile("")
		assert.NoError(t, err)
		assert.Nil(t, env)
	})

	t.Run("loads env file", func(t *testing.T) {
		// Create temp env file
		dir := t.TempDir()
		envPath := filepath.Join(dir, ".env")
		err := os.WriteFile(envPath, []byte("FOO=bar\nBAZ=qux"), 0644)
		require.NoError(t, err)

		env, err := LoadEnvFile(envPath)
		require.NoError(t, err)
		assert.Equal(t, "bar", env["FOO"])
		assert.Equal(t, "qux", env["BAZ"])
	})

	t.Run("file not found", func(t *testing.T) {
		_, err := LoadEnvFile("nonexistent.env")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestMergeEnv(t *testing.T) {
	t.Run("merges multiple maps", func(t *testing.T) {
		env1 := map[string]string{"A": "1", "B": "2"}
		env2 := map[string]string{"B": "3", "C": "4"}
		env3 := map[string]string{"C": "5"}

		result := MergeEnv(env1, env2, env3)
		assert.Equal(t, "1", result["A"])
		assert.Equal(t, "3", result["B"]) // env2 overrides
		assert.Equal(t, "5", result["C"]) // env3 overrides
	})

	t.Run("handles nil maps", func(t *testing.T) {
		env1 := map[string]string{"A": "1"}
		result := MergeEnv(nil, env1, nil)
		assert.Equal(t, "1", result["A"])
	})
}

func TestLoadWorkerEnv(t *testing.T) {
	dir := t.TempDir()

	globalEnv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(globalEnv, []byte("GLOBAL=1\nSHARED=global"), 0644))

	workerEnv := filepath.Join(dir, ".env.mailer")
	require.NoError(t, os.WriteFile(workerEnv, []byte("WORKER=2\nSHARED=worker"), 0644))

	t.Run("merges all sources", func(t *testing.T) {
		env, err := LoadWorkerEnv(".env", ".env.mailer", map[string]string{
			"INLINE": "3",
			"SHARED": "inline",
		}, dir)
		require.NoError(t, err)

		assert.Equal(t, "1", env["GLOBAL"])
		assert.Equal(t, "2", env["WORKER"])
		assert.Equal(t, "3", env["INLINE"])
		assert.Equal(t, "inline", env["SHARED"]) // inline wins
	})

	t.Run("worker file beats global file", func(t *testing.T) {
		env, err := LoadWorkerEnv(globalEnv, workerEnv, nil, "")
		require.NoError(t, err)
		assert.Equal(t, "worker", env["SHARED"])
	})

	t.Run("handles missing global env file", func(t *testing.T) {
		_, err := LoadWorkerEnv("nonexistent.env", "", nil, dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "global env file")
	})

	t.Run("handles missing worker env file", func(t *testing.T) {
		_, err := LoadWorkerEnv("", "nonexistent.env", nil, dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "worker env file")
	})
}

func TestEnvList(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=x=y"}, EnvList(map[string]string{"B": "x=y", "A": "1"}))
	assert.Empty(t, EnvList(nil))
}

func TestFindConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("returns error when no config found", func(t *testing.T) {
		_, err := FindConfigFile()
		require.Error(t, err)
	})

	t.Run("finds horn.yaml", func(t *testing.T) {
		err := os.WriteFile("horn.yaml", []byte("workers:\n  mailer: echo hi"), 0644)
		require.NoError(t, err)

		path, err := FindConfigFile()
		require.NoError(t, err)
		assert.Equal(t, "horn.yaml", path)
	})
}

func TestCheckFilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "horn.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: {}"), 0644))

	assert.NoError(t, CheckFilePermissions(path))

	require.NoError(t, os.Chmod(path, 0666))
	err := CheckFilePermissions(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "world-writable")
}
