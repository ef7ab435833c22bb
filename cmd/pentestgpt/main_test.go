// File path: cmd/pentestgpt/main_test.go
package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicodishanthj/pentestgpt/internal/prompt"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPromptCommand(t *testing.T) {
	t.Setenv("PENTESTGPT_CONFIG_FILE", "")
	out, err := run(t, "prompt", "--list")
	require.NoError(t, err)
	assert.Equal(t, prompt.Names(), strings.Fields(out))

	out, err = run(t, "prompt", "gpt4oWithTools")
	require.NoError(t, err)
	assert.Contains(t, out, "<tools_instructions>")

	_, err = run(t, "prompt", "nope")
	assert.Error(t, err)
}

func TestProfileAdd(t *testing.T) {
	t.Setenv("PENTESTGPT_CONFIG_FILE", "")
	path := filepath.Join(t.TempDir(), "cli.db")
	out, err := run(t, "profile", "add", "operator", "--plan", "pro", "--sqlite", path)
	require.NoError(t, err)

	var created map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "operator", created["username"])
	assert.Equal(t, "pro", created["plan"])
	assert.True(t, strings.HasPrefix(created["token"], "pgpt_"))

	_, err = run(t, "profile", "add")
	assert.Error(t, err)
}
