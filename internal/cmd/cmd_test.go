package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/pairview/internal/config"
	"github.com/Iron-Ham/pairview/internal/logging"
	"github.com/Iron-Ham/pairview/internal/pairing"
	"github.com/Iron-Ham/pairview/internal/peer"
	"github.com/Iron-Ham/pairview/internal/testutil"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// isolate keeps tests away from the user's config and resets flag state
// that persists between Execute calls.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	pairOutput = "table"
	fieldsOutput = "table"
	fieldsHighlightable = false
	fieldsFilter = ""
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "pairview", rootCmd.Use)

	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "viewer", "pair", "fields", "backend", "config"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
	assert.True(t, viewerCmd.Hidden, "viewer is launched by the host, not by users")
}

func TestPairCommand(t *testing.T) {
	dir := t.TempDir()
	testutil.Touch(t, dir,
		"invoice_01.pdf", "invoice_01.json",
		"lease_02.pdf", "lease_2.json",
		"notes.md", ".hidden.json")

	t.Run("table", func(t *testing.T) {
		isolate(t)
		out, err := executeCommand(rootCmd, "pair", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "invoice_01")
		assert.Contains(t, out, "invoice")
		assert.Contains(t, out, "UNPAIRED")
		assert.Contains(t, out, "missing data (did you mean lease_2?)")
		assert.Contains(t, out, "Ignored: notes.md")
		assert.NotContains(t, out, ".hidden")
	})

	t.Run("json", func(t *testing.T) {
		isolate(t)
		out, err := executeCommand(rootCmd, "pair", dir, "-o", "json")
		require.NoError(t, err)

		var report pairing.Report
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		require.Len(t, report.Pairs, 1)
		assert.Equal(t, "invoice_01", report.Pairs[0].Base)
		assert.Equal(t, "invoice", report.Pairs[0].DocType)
		assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(dir, "invoice_01.pdf")), report.Pairs[0].SourceURL)
		require.Len(t, report.Orphans, 2)
		assert.Equal(t, "lease_02", report.Orphans[0].Base)
		assert.Equal(t, "source", report.Orphans[1].Missing)
	})

	t.Run("yaml", func(t *testing.T) {
		isolate(t)
		out, err := executeCommand(rootCmd, "pair", dir, "--output", "yaml")
		require.NoError(t, err)

		var report pairing.Report
		require.NoError(t, yaml.Unmarshal([]byte(out), &report))
		require.Len(t, report.Pairs, 1)
		assert.Equal(t, "invoice_01", report.Pairs[0].Base)
		assert.Equal(t, []string{"notes.md"}, report.Ignored)
	})

	t.Run("invalid format", func(t *testing.T) {
		isolate(t)
		_, err := executeCommand(rootCmd, "pair", dir, "-o", "xml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid output format")
	})

	t.Run("missing dir", func(t *testing.T) {
		isolate(t)
		_, err := executeCommand(rootCmd, "pair", filepath.Join(dir, "nope"))
		require.Error(t, err)
	})
}

func TestFieldsCommand(t *testing.T) {
	dir := testutil.SetupUploadDir(t, map[string]string{
		"invoice_01.json": testutil.ExtractedData(t,
			testutil.Field{Key: "vendor", Value: "ACME Corp"},
			testutil.Field{Key: "total", Value: "42.00", Box: testutil.Box(0.1, 0.2, 0.4, 0.3)},
		),
		"bad.json": "{not json",
	})
	path := filepath.Join(dir, "invoice_01.json")

	t.Run("table", func(t *testing.T) {
		isolate(t)
		out, err := executeCommand(rootCmd, "fields", path)
		require.NoError(t, err)
		assert.Contains(t, out, "  vendor")
		assert.Contains(t, out, "ACME Corp")
		assert.Contains(t, out, "* total")
		assert.Contains(t, out, "[0.1,0.2,0.4,0.3]")
	})

	t.Run("highlightable only", func(t *testing.T) {
		isolate(t)
		out, err := executeCommand(rootCmd, "fields", path, "--highlightable")
		require.NoError(t, err)
		assert.NotContains(t, out, "vendor")
		assert.Contains(t, out, "total")
	})

	t.Run("json keeps document order", func(t *testing.T) {
		isolate(t)
		out, err := executeCommand(rootCmd, "fields", path, "-o", "json")
		require.NoError(t, err)

		var nodes []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &nodes))
		require.Len(t, nodes, 2)
		assert.Equal(t, "vendor", nodes[0]["key"])
		assert.Equal(t, "total", nodes[1]["key"])
		assert.Equal(t, "metadata", nodes[1]["source"])
	})

	t.Run("filter with no match", func(t *testing.T) {
		isolate(t)
		out, err := executeCommand(rootCmd, "fields", path, "--filter", "zzz")
		require.NoError(t, err)
		assert.Contains(t, out, "(no fields)")
	})

	t.Run("invalid json", func(t *testing.T) {
		isolate(t)
		_, err := executeCommand(rootCmd, "fields", filepath.Join(dir, "bad.json"))
		require.Error(t, err)
	})
}

func TestConfigValidateCommand(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		isolate(t)
		out, err := executeCommand(rootCmd, "config", "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration is valid.")
	})

	t.Run("invalid spawner from env", func(t *testing.T) {
		isolate(t)
		t.Setenv("PAIRVIEW_PEER_SPAWNER", "screen")
		_, err := executeCommand(rootCmd, "config", "validate")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "spawner")
	})
}

func TestConfigShowCommand(t *testing.T) {
	isolate(t)
	out, err := executeCommand(rootCmd, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# Config file:")
	assert.Contains(t, out, "listen: 127.0.0.1:7420")
	assert.Contains(t, out, "spawner: exec")
}

func TestNewSpawner(t *testing.T) {
	cfg := config.Default()
	cfg.Peer.ViewerCommand = []string{"/bin/viewer", "--verbose"}

	s, err := newSpawner(cfg, cfg.Server.OriginURL(), nil, logging.NopLogger())
	require.NoError(t, err)
	execSpawner, ok := s.(*peer.ExecSpawner)
	require.True(t, ok, "default spawner should be exec, got %T", s)
	assert.Equal(t, "http://127.0.0.1:7420/peer", execSpawner.Command.HostURL)
	assert.Equal(t, "http://127.0.0.1:7420", execSpawner.Command.Origin)
	assert.Nil(t, execSpawner.Output)
	assert.NotNil(t, execSpawner.Logger)

	s, err = newSpawner(cfg, cfg.Server.OriginURL(), os.Stderr, logging.NopLogger())
	require.NoError(t, err)
	assert.NotNil(t, s.(*peer.ExecSpawner).Output)

	cfg.Peer.Spawner = config.SpawnerTmux
	s, err = newSpawner(cfg, cfg.Server.OriginURL(), nil, logging.NopLogger())
	require.NoError(t, err)
	tmuxSpawner, ok := s.(*peer.TmuxSpawner)
	require.True(t, ok, "got %T", s)
	assert.Equal(t, []string{"/bin/viewer", "--verbose"}, tmuxSpawner.Command.Argv)
}

func TestNewHostWatchRescansUploadDir(t *testing.T) {
	dir := t.TempDir()
	testutil.Touch(t, dir, "lease_7.pdf", "lease_7.json", "stray.json")

	cfg := config.Default()
	cfg.Server.UploadDir = dir
	cfg.Upload.Watch = true
	cfg.Peer.ViewerCommand = []string{"true"}

	h, err := newHost(cfg, logging.NopLogger(), nil)
	require.NoError(t, err)
	require.NotNil(t, h.watcher)
	h.watcher.Start()
	t.Cleanup(func() {
		h.watcher.Stop()
		h.registry.Close()
		_ = h.hub.Close()
	})

	pairs := h.ctrl.Pairs()
	require.Len(t, pairs, 1)
	assert.Equal(t, "lease_7", pairs[0].Base)
	assert.Equal(t, "lease", pairs[0].DocType)
	assert.Equal(t, "/files/lease_7.json", pairs[0].DataURL)

	testutil.Touch(t, dir, "stray.pdf")
	got, err := h.rescan()
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestNewHostWithoutWatch(t *testing.T) {
	dir := t.TempDir()
	testutil.Touch(t, dir, "invoice_01.pdf", "invoice_01.json")

	cfg := config.Default()
	cfg.Server.UploadDir = dir
	cfg.Peer.ViewerCommand = []string{"true"}

	h, err := newHost(cfg, logging.NopLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		h.registry.Close()
		_ = h.hub.Close()
	})

	assert.Nil(t, h.watcher)
	assert.Empty(t, h.ctrl.Pairs(), "without watch the working set starts empty")
}

func TestHostShutdownStopsViewers(t *testing.T) {
	testutil.SkipIfNoShell(t)

	for _, stopOnExit := range []bool{true, false} {
		cfg := config.Default()
		cfg.Server.UploadDir = t.TempDir()
		cfg.Peer.ViewerCommand = []string{"sh", "-c", "exec sleep 30", "viewer"}
		cfg.Peer.StopOnExit = stopOnExit

		h, err := newHost(cfg, logging.NopLogger(), nil)
		require.NoError(t, err)

		info, err := h.registry.OpenOrAttach(context.Background(), pairing.Pair{
			Base: "invoice_01", DocType: "invoice",
			SourceURL: "/files/invoice_01.pdf", DataURL: "/files/invoice_01.json",
		})
		require.NoError(t, err)
		_, alive := h.registry.LivePeer("invoice")
		require.True(t, alive, "viewer %s should be running", info.Name)

		h.shutdown()

		if stopOnExit {
			assert.Empty(t, h.registry.Handles(), "stopped viewers are forgotten")
			_, alive = h.registry.LivePeer("invoice")
			assert.False(t, alive)
			continue
		}
		_, alive = h.registry.LivePeer("invoice")
		assert.True(t, alive, "viewers outlive the host without stop_on_exit")
		require.NoError(t, h.registry.StopPeers())
	}
}
