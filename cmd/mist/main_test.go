package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mist/internal/config"
)

func TestCheckCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
components:
  - name: Row
    entity_types: [M1, M2]
    template: "<div></div>"
`), 0o600))

	var out bytes.Buffer
	cmd := checkCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "ok (1 components, storage memory)")
}

func TestCheckCommandRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: mongo\n"), 0o600))

	cmd := checkCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path})
	assert.ErrorIs(t, cmd.Execute(), config.ErrInvalidConfig)
}

func TestVersionShort(t *testing.T) {
	var out bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--short"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "dev\n", out.String())
}
