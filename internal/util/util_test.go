package util

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	for day := 1; day <= 5; day++ {
		name := fmt.Sprintf("growbot_2026-01-%02d.log", day)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.log"), nil, 0644))

	assert.Equal(t, 3, CleanOldLogs(dir, 2))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"growbot_2026-01-04.log", "growbot_2026-01-05.log", "other.log"}, names)
}

func TestCleanOldLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "growbot_2026-01-01.log"), nil, 0644))
	assert.Zero(t, CleanOldLogs(dir, 0))
	assert.Zero(t, CleanOldLogs(filepath.Join(dir, "missing"), 3))
}

func TestInitLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	path, err := InitLogger(LogConfig{Level: "debug", Directory: dir, MaxBackups: 2})
	require.NoError(t, err)
	assert.FileExists(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "logger initialized")
}

func TestSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "api.crt")
	keyFile := filepath.Join(dir, "api.key")

	require.NoError(t, EnsureSelfSignedCert(certFile, keyFile, "127.0.0.1", "localhost"))
	_, err := tls.LoadX509KeyPair(certFile, keyFile)
	require.NoError(t, err)

	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// existing files are kept
	before, _ := os.ReadFile(certFile)
	require.NoError(t, EnsureSelfSignedCert(certFile, keyFile))
	after, _ := os.ReadFile(certFile)
	assert.Equal(t, before, after)
}

func TestGetSystemInfo(t *testing.T) {
	info := GetSystemInfo()
	assert.NotEmpty(t, info.Platform)
	assert.Positive(t, info.CPUCores)
	assert.Equal(t, Version, info.AppVersion)
}
