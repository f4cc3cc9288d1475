package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"run", "batch", "send", "serve", "import", "suppress", "attempts", "review", "override"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "outreach-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_RequiredFlags(t *testing.T) {
	flag := runCmd.Flags().Lookup("email")
	require.NotNil(t, flag, "run command should have --email flag")

	sigFlag := runCmd.Flags().Lookup("signals")
	require.NotNil(t, sigFlag, "run command should have --signals flag")
}

func TestBatchCommand_Flags(t *testing.T) {
	flag := batchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "batch command should have --limit flag")
	assert.Equal(t, "0", flag.DefValue)

	require.NotNil(t, batchCmd.Flags().Lookup("input"))
	require.NotNil(t, batchCmd.Flags().Lookup("date"))
}

func TestOverrideCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range overrideCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["edit"])
	assert.True(t, names["remove"])
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
