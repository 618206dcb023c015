package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/core-tools/hsu-pidguard/pkg/monitoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"--help"}, &stdout, &stderr)

	assert.Equal(t, monitoring.ExitSuccess, code)
	assert.Contains(t, stdout.String(), "--config")
	assert.NotContains(t, stdout.String(), "parsing failed")
}

func TestRun_UnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"--bogus"}, &stdout, &stderr)

	assert.Equal(t, monitoring.ExitUnhealthy, code)
	assert.Contains(t, stderr.String(), "parsing failed")
}

func TestRun_MissingConfigIsNotReportedAsNotRunning(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, &stdout, &stderr)

	assert.Equal(t, monitoring.ExitUnhealthy, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "ERROR: ")
}

func TestRun_ProcessNotRunning(t *testing.T) {
	base := t.TempDir()
	configPath := filepath.Join(base, "pidguard.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
app_name: worker
log_level: error
process:
  executable_path: /bin/sh
paths:
  base_directory: "`+filepath.ToSlash(base)+`"
`), 0644))
	var stdout, stderr bytes.Buffer

	code := run([]string{"-c", configPath}, &stdout, &stderr)

	assert.Equal(t, monitoring.ExitNotRunning, code)
	assert.Contains(t, stdout.String(), "[UNHEALTHY] process: PID file not found")
	assert.Contains(t, stdout.String(), "Overall: NOT_RUNNING (exit 1)")
}
