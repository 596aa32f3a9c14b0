package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{
		"markets", "coverage", "opportunities", "regions", "report",
		"import", "dedupe", "classify", "runs", "serve", "migrate",
	}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "leadmap", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAnalysisCommands_FilterFlags(t *testing.T) {
	for _, c := range []string{"markets", "coverage", "opportunities", "regions", "report", "dedupe", "classify"} {
		cmd, _, err := rootCmd.Find([]string{c})
		require.NoError(t, err)
		for _, flag := range []string{"city", "state", "category", "categorized", "order"} {
			assert.NotNil(t, cmd.Flags().Lookup(flag), "%s should have --%s", c, flag)
		}
	}
}

func TestOpportunitiesCommand_Flags(t *testing.T) {
	for _, name := range []string{"min-market-size", "max-coverage", "prioritize", "by", "format", "output"} {
		assert.NotNil(t, opportunitiesCmd.Flags().Lookup(name), "opportunities should have --%s", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestDedupeCommand_ApplyDefaultsOff(t *testing.T) {
	flag := dedupeCmd.Flags().Lookup("apply")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}
}

func TestOutputFlags_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		flags   outputFlags
		want    string
		wantErr bool
	}{
		{"default", outputFlags{}, "table", false},
		{"from extension", outputFlags{output: "out.xlsx"}, "xlsx", false},
		{"unknown extension", outputFlags{output: "out.dat"}, "table", false},
		{"explicit wins", outputFlags{format: "csv", output: "out.md"}, "csv", false},
		{"bad format", outputFlags{format: "pdf"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := tt.flags.resolve()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(f))
		})
	}
}

func TestFilterFlags_Filter(t *testing.T) {
	f := filterFlags{city: "Austin", state: "TX", categorized: true, order: "id"}
	got := f.filter()
	assert.Equal(t, "Austin", got.City)
	assert.Equal(t, "TX", got.State)
	assert.True(t, got.CategoryNotNull)
	assert.Equal(t, "id", got.OrderBy)
}
