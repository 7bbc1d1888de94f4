// -- cmd/root_test.go --
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/courier-cli/internal/config"
	"github.com/xkilldash9x/courier-cli/internal/observability"
)

// resetForTest clears the global viper, config and logger state a previous
// test run may have left behind, and prevents config.yaml auto-discovery.
func resetForTest(t *testing.T) {
	t.Helper()
	viper.Reset()
	viper.SetConfigName("a-config-file-that-does-not-exist")
	observability.ResetForTest()
	config.Set(config.NewDefaultConfig())
}

// executeCommand runs a fresh root command with args and captures its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	resetForTest(t)

	out, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestVersionCmd(t *testing.T) {
	resetForTest(t)

	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "courier "+Version)
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	resetForTest(t)

	_, err := executeCommand(t, "does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestRootCmd_MissingExplicitConfigFile(t *testing.T) {
	resetForTest(t)

	_, err := executeCommand(t, "--config", "/nonexistent/courier.yaml", "version")
	require.Error(t, err)
}

func TestRootCmd_EnvOverride(t *testing.T) {
	resetForTest(t)
	t.Setenv("COURIER_OUTREACH_MAX_REQUESTS", "not-a-number")

	// The bad value must surface during config resolution, not deep in a run.
	_, err := executeCommand(t, "run")
	require.Error(t, err)
}

func TestSingleCmd_RequiresURL(t *testing.T) {
	resetForTest(t)

	_, err := executeCommand(t, "single")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arg")
}

func TestRunCmd_RequiresProspectsFile(t *testing.T) {
	resetForTest(t)

	_, err := executeCommand(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--prospects")
}

func TestRunCmd_BadProspectsFileFailsBeforeBrowser(t *testing.T) {
	resetForTest(t)

	path := writeTempFile(t, "prospects.json",
		`[{"name": "Ada Lovelace"}]`)

	_, err := executeCommand(t, "run", "--prospects", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "linkedin_url")
}
