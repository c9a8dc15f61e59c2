package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersCommands(t *testing.T) {
	want := []string{"migrate", "seed", "scrape", "analyze", "match", "apply", "hunt", "status", "cv", "token", "serve"}
	got := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, got[name], name)
	}

	for _, flag := range []string{"config", "user", "debug", "json"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
	}
	assert.NotNil(t, applyCmd.Flags().Lookup("yes"))
	assert.NotNil(t, migrateCmd.Flags().Lookup("status"))
}

func TestJobCommandsNeedOneID(t *testing.T) {
	for _, c := range []*cobra.Command{analyzeCmd, matchCmd, applyCmd} {
		assert.Error(t, c.Args(c, nil), c.Name())
		assert.NoError(t, c.Args(c, []string{"x"}), c.Name())
	}
}

func TestParseID(t *testing.T) {
	_, err := parseID("not-a-uuid")
	assert.ErrorContains(t, err, "invalid id")

	id, err := parseID("6f1c2d7e-0a43-4c5e-9d0a-3b8f5e2c1a90")
	require.NoError(t, err)
	assert.Equal(t, "6f1c2d7e-0a43-4c5e-9d0a-3b8f5e2c1a90", id.String())
}

func TestReadInput(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("cv from stdin"))
	got, err := readInput(cmd, "-")
	require.NoError(t, err)
	assert.Equal(t, "cv from stdin", got)

	path := filepath.Join(t.TempDir(), "cv.md")
	require.NoError(t, os.WriteFile(path, []byte("# CV"), 0o600))
	got, err = readInput(cmd, path)
	require.NoError(t, err)
	assert.Equal(t, "# CV", got)

	_, err = readInput(cmd, filepath.Join(t.TempDir(), "missing.md"))
	assert.ErrorContains(t, err, "read cv")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	require.NoError(t, printJSON(cmd, map[string]int{"inserted": 2}))
	assert.Equal(t, "{\n  \"inserted\": 2\n}\n", buf.String())
}
