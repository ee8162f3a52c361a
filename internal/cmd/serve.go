package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/pairview/internal/assemble"
	"github.com/Iron-Ham/pairview/internal/channel"
	"github.com/Iron-Ham/pairview/internal/config"
	"github.com/Iron-Ham/pairview/internal/controller"
	"github.com/Iron-Ham/pairview/internal/event"
	"github.com/Iron-Ham/pairview/internal/logging"
	"github.com/Iron-Ham/pairview/internal/pairing"
	"github.com/Iron-Ham/pairview/internal/peer"
	"github.com/Iron-Ham/pairview/internal/server"
	"github.com/Iron-Ham/pairview/internal/storage"
	"github.com/Iron-Ham/pairview/internal/tui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the host: HTTP server, peer registry and TUI",
	Long: `Run the pairview host.

The host accepts uploads over HTTP, pairs the uploaded files, and starts one
viewer peer per document type on demand. Unless --headless is given, a
terminal UI lists the pairs and their fields.

With --dir the given directory is served as the upload directory and
watched; its accepted files form the working set.`,
	RunE: runServe,
}

var (
	serveDir         string
	serveHeadless    bool
	serveListen      string
	serveStopViewers bool
)

func init() {
	serveCmd.Flags().StringVar(&serveDir, "dir", "", "serve and watch this directory as the working set")
	serveCmd.Flags().BoolVar(&serveHeadless, "headless", false, "run without the terminal UI")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "override server.listen")
	serveCmd.Flags().BoolVar(&serveStopViewers, "stop-viewers", false, "stop viewer peers when the host exits (peer.stop_on_exit)")
	rootCmd.AddCommand(serveCmd)
}

// host holds the wired components of a running host.
type host struct {
	cfg      *config.Config
	logger   *logging.Logger
	bus      *event.Bus
	store    *storage.Store
	hub      *channel.Hub
	registry *peer.Registry
	ctrl     *controller.Controller
	proxy    *assemble.Proxy
	server   *server.Server
	watcher  *storage.Watcher
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serveDir != "" {
		cfg.Server.UploadDir = serveDir
		cfg.Upload.Watch = true
	}
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}
	if serveStopViewers {
		cfg.Peer.StopOnExit = true
	}

	// The TUI owns the terminal, so logs go to a file next to the uploads.
	logDir := cfg.Logging.Dir
	if logDir == "" && !serveHeadless {
		logDir = filepath.Join(filepath.Dir(filepath.Clean(cfg.Server.UploadDir)), "logs")
	}
	logger, err := newLogger(logDir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	var peerOutput io.Writer
	if serveHeadless {
		peerOutput = os.Stderr
	}
	h, err := newHost(cfg, logger, peerOutput)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return h.run(ctx, !serveHeadless)
}

// newHost wires every host component from cfg. Viewer output goes to
// peerOutput; nil discards it.
func newHost(cfg *config.Config, logger *logging.Logger, peerOutput io.Writer) (*host, error) {
	origin := cfg.Server.OriginURL()
	bus := event.NewBus(logger)

	store, err := storage.NewStore(storage.Options{
		Dir:      cfg.Server.UploadDir,
		BaseURL:  "/files/",
		Accept:   cfg.Upload.Accept,
		MaxBytes: cfg.Server.MaxUploadBytes(),
		Bus:      bus,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	hub := channel.NewHub(origin, logger)

	spawner, err := newSpawner(cfg, origin, peerOutput, logger)
	if err != nil {
		return nil, err
	}
	registry := peer.NewRegistry(peer.Config{
		Origin:     origin,
		NamePrefix: cfg.Peer.NamePrefix,
		RetryDelay: cfg.Peer.RetryDelay(),
	}, spawner, hub, peer.WithBus(bus), peer.WithLogger(logger))
	hub.OnMessage(registry.Receive)

	engine := pairing.NewEngine(cfg.Pairing.DocTypes, cfg.Pairing.SourceExtensions, cfg.Pairing.DataExtensions)
	fetcher := controller.NewHTTPFetcher("http://" + cfg.Server.Listen)
	fetcher.MaxBytes = cfg.Server.MaxUploadBytes()
	ctrl := controller.New(engine, registry, fetcher, logger)

	proxy, err := assemble.NewProxy(assemble.Options{
		Upstream:         cfg.Assemble.Upstream,
		Timeout:          cfg.Assemble.Timeout(),
		FailureThreshold: uint32(cfg.Assemble.FailureThreshold),
		OpenTimeout:      cfg.Assemble.OpenTimeout(),
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Options{
		Addr:           cfg.Server.Listen,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		RatePerMinute:  cfg.Upload.RatePerMinute,
		Burst:          cfg.Upload.Burst,
		Logger:         logger,
	}, server.Deps{
		Controller: ctrl,
		Store:      store,
		Hub:        hub,
		Proxy:      proxy,
		Peers:      registry,
		Channels:   hub,
	})
	if err != nil {
		return nil, err
	}

	h := &host{
		cfg:      cfg,
		logger:   logger,
		bus:      bus,
		store:    store,
		hub:      hub,
		registry: registry,
		ctrl:     ctrl,
		proxy:    proxy,
		server:   srv,
	}

	if cfg.Upload.Watch {
		if _, err := h.rescan(); err != nil {
			return nil, err
		}
		h.watcher, err = storage.NewWatcher(store, func(files []pairing.File) {
			ctrl.Upload(files)
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", store.Dir(), err)
		}
	}
	return h, nil
}

func newSpawner(cfg *config.Config, origin string, output io.Writer, logger *logging.Logger) (peer.Spawner, error) {
	hostURL := "http://" + cfg.Server.Listen + "/peer"

	command := peer.ViewerCommand{Argv: cfg.Peer.ViewerCommand, HostURL: hostURL, Origin: origin}
	if len(command.Argv) == 0 {
		var err error
		command, err = peer.DefaultViewerCommand(hostURL, origin)
		if err != nil {
			return nil, err
		}
	}

	switch cfg.Peer.Spawner {
	case config.SpawnerTmux:
		return &peer.TmuxSpawner{Command: command}, nil
	default:
		s := &peer.ExecSpawner{Command: command, Logger: logger}
		if output != nil {
			s.Output = func(string) io.Writer { return output }
		}
		return s, nil
	}
}

// rescan makes the upload directory listing the working set.
func (h *host) rescan() ([]pairing.Pair, error) {
	files, err := h.store.List()
	if err != nil {
		return nil, err
	}
	return h.ctrl.Upload(files), nil
}

// shutdown releases the registry and the hub. With peer.stop_on_exit the
// viewers are stopped first; otherwise they stay up and exit on their own
// once the channel closes.
func (h *host) shutdown() {
	if h.cfg.Peer.StopOnExit {
		if err := h.registry.StopPeers(); err != nil {
			h.logger.Warn("failed to stop viewers", "error", err)
		}
	}
	h.registry.Close()
	_ = h.hub.Close()
}

// run serves until ctx is cancelled, the server fails, or the TUI exits.
func (h *host) run(ctx context.Context, withTUI bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if h.watcher != nil {
		h.watcher.Start()
		defer h.watcher.Stop()
	}
	defer h.shutdown()

	h.logger.Info("host starting",
		"listen", h.cfg.Server.Listen,
		"origin", h.cfg.Server.OriginURL(),
		"upload_dir", h.store.Dir(),
		"accept", h.store.Patterns(),
		"assemble_upstream", h.proxy.Target(),
		"watch", h.cfg.Upload.Watch,
		"spawner", h.cfg.Peer.Spawner,
		"stop_on_exit", h.cfg.Peer.StopOnExit)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		return h.server.ListenAndServe(ctx)
	})
	if withTUI {
		p.Go(func(ctx context.Context) error {
			// Quitting the TUI stops the host.
			defer cancel()
			model := tui.NewModel(h.ctrl,
				tui.WithRescan(h.rescan),
				tui.WithValueWidth(h.cfg.TUI.ValueWidth))
			return tui.New(model, h.bus).Run(ctx)
		})
	}
	return p.Wait()
}
