package cli

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ms05probe/internal/config"
)

// cliEnv isolates a test from the caller's environment and .env file.
type cliEnv struct {
	dir    string
	db     string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	for _, key := range []string{
		config.EnvURL, config.EnvSpecPaths, config.EnvSpecBranch, config.EnvDatabase,
		config.EnvTimeout, config.EnvPromptTimeout, config.EnvInteractive,
	} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	return &cliEnv{
		dir:    dir,
		db:     filepath.Join(dir, "test.db"),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
}

// execute runs the root command with args. Output buffers are reset first.
func (e *cliEnv) execute(stdin io.Reader, args ...string) error {
	e.stdout.Reset()
	e.stderr.Reset()

	cmd := NewRootCommand()
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(e.dir, "missing.env")}, args...))
	return cmd.Execute()
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"run", "schemas", "history", "trace"})
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"verbose", "format", "profile", "env-file"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag %s", name)
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	env := newCLIEnv(t)

	err := env.execute(nil, "history", "--db", env.db, "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestLoadConfig_BadProfile(t *testing.T) {
	env := newCLIEnv(t)

	err := env.execute(nil, "run", "--profile", filepath.Join(env.dir, "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer

	newLogger(&RootOptions{}, &buf).Debug("hidden")
	assert.Empty(t, buf.String())

	newLogger(&RootOptions{Verbose: true}, &buf).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
