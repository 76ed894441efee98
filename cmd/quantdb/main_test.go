// Package main provides tests for the QuantDB CLI.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/quantdb/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "QuantDB")
}

func TestVersionFlag(t *testing.T) {
	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, cli.Version)
}

func TestHelpCommand(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	for _, expected := range []string{"--language", "--command", "--port", "--web-port", "--watch", "completion", "version"} {
		assert.Contains(t, out, expected)
	}
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "quantdb")

	_, _, err = execute(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestCommandFlag(t *testing.T) {
	out, _, err := execute(t, "-q", "-P", "0", "-w", "0", "-o", "csv", "-c", "dk>select 13 as c")
	require.NoError(t, err)
	assert.Equal(t, "c\n13\n", out)
}

func TestCommandFlagWithFiles(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "init.sql")
	require.NoError(t, os.WriteFile(script, []byte("CREATE TABLE trades AS SELECT 3 AS qty;"), 0o600))

	out, _, err := execute(t, "-q", "-P", "0", "-w", "0", "-o", "csv", "-c", "dk>SELECT qty FROM trades", script)
	require.NoError(t, err)
	assert.Equal(t, "qty\n3\n", out)
}

func TestInvalidConfiguration(t *testing.T) {
	_, _, err := execute(t, "-l", "cobol", "-c", "1")
	assert.ErrorContains(t, err, "invalid language")

	_, _, err = execute(t, "-c", "1", filepath.Join(t.TempDir(), "missing.sql"))
	assert.ErrorContains(t, err, "missing.sql")
}
