package cli

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─────────────────────────────────────────────────────────────────────────────
// Root command structure
// ─────────────────────────────────────────────────────────────────────────────

func TestRootCommandStructure(t *testing.T) {
	t.Parallel()

	cmd := NewRootCommand()
	require.NotNil(t, cmd)

	assert.Equal(t, "heatquest", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCommand()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[strings.Fields(sub.Use)[0]] = true
	}

	for _, want := range []string{"serve", "scan", "analyze", "missions", "migrate"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestRootCommandGlobalFlags(t *testing.T) {
	t.Parallel()

	cmd := NewRootCommand()
	pf := cmd.PersistentFlags()

	for _, name := range []string{"config", "log-level", "output", "verbose", "timeout", "server", "user"} {
		assert.NotNil(t, pf.Lookup(name), "missing flag %q", name)
	}

	assert.Equal(t, "text", pf.Lookup("output").DefValue)
	assert.Equal(t, "info", pf.Lookup("log-level").DefValue)
}

func TestMissionsSubcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCommand()

	var missions *cobra.Command
	for _, sub := range cmd.Commands() {
		if sub.Use == "missions" {
			missions = sub
		}
	}
	require.NotNil(t, missions)

	names := make(map[string]bool)
	for _, sub := range missions.Commands() {
		names[strings.Fields(sub.Use)[0]] = true
	}
	for _, want := range []string{"generate", "list", "counts", "get", "activate", "complete", "cancel"} {
		assert.True(t, names[want], "missing missions subcommand %q", want)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Output helpers
// ─────────────────────────────────────────────────────────────────────────────

func TestFormatTableAlignsColumns(t *testing.T) {
	t.Parallel()

	out := FormatTable(
		[]string{"ID", "STATUS"},
		[][]string{
			{"abc", "pending"},
			{"a-much-longer-id", "active"},
		},
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "----")
	// All rows padded to the same width.
	assert.Equal(t, len(lines[2]), len(lines[3]))
}

func TestFormatTableEmptyHeaders(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FormatTable(nil, [][]string{{"x"}}))
}

func TestFormatTableShortRow(t *testing.T) {
	t.Parallel()

	out := FormatTable([]string{"A", "B"}, [][]string{{"only-a"}})
	assert.Contains(t, out, "only-a")
}
