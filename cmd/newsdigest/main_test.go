package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		cfgFile = ""
		logLevel = ""
	})

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "store:\n  path: " + filepath.Join(dir, "runs.db") + "\n" +
		"log:\n  dir: " + filepath.Join(dir, "logs") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "config", "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestConfigValidate_ReportsProblems(t *testing.T) {
	_, err := execute(t, "config", "validate", "--config", writeConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "imap.username is required")
	assert.Contains(t, err.Error(), "digest.recipients")
}

func TestHistory_Empty(t *testing.T) {
	out, err := execute(t, "history", "--config", writeConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet.")
}

func TestHistoryShow_UnknownRun(t *testing.T) {
	_, err := execute(t, "history", "show", "abc123", "--config", writeConfig(t))
	assert.Error(t, err)
}

func TestRun_InvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", writeConfig(t))
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestCredentials_UnknownName(t *testing.T) {
	_, err := execute(t, "credentials", "delete", "jira")
	assert.ErrorContains(t, err, "unknown credential")
}
