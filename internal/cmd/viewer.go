package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/pairview/internal/config"
	"github.com/Iron-Ham/pairview/internal/viewer"
)

var viewerCmd = &cobra.Command{
	Use:   "viewer",
	Short: "Run a viewer peer (started by the host)",
	Long: `Run a viewer peer. The host starts one per document type; running it by
hand is only useful for debugging.

The viewer connects to the host's peer endpoint, announces itself, and draws
the loaded document with the highlighted region.`,
	Hidden: true,
	RunE:   runViewer,
}

var (
	viewerHost    string
	viewerName    string
	viewerOrigin  string
	viewerDocType string
)

func init() {
	viewerCmd.Flags().StringVar(&viewerHost, "host", "", "host peer endpoint, e.g. http://127.0.0.1:7420/peer")
	viewerCmd.Flags().StringVar(&viewerName, "name", "", "peer name assigned by the host")
	viewerCmd.Flags().StringVar(&viewerOrigin, "origin", "", "trusted host origin")
	viewerCmd.Flags().StringVar(&viewerDocType, "doc-type", "", "document type this viewer renders")
	_ = viewerCmd.MarkFlagRequired("host")
	_ = viewerCmd.MarkFlagRequired("name")
	_ = viewerCmd.MarkFlagRequired("origin")
	rootCmd.AddCommand(viewerCmd)
}

func runViewer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Unmarshal()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer := viewer.NewTermRenderer(os.Stdout)
	v, err := viewer.Dial(ctx, viewerHost, viewer.Config{
		Name:    viewerName,
		DocType: viewerDocType,
		Origin:  viewerOrigin,
	}, renderer, logger)
	if err != nil {
		return fmt.Errorf("viewer %s: %w", viewerName, err)
	}
	return v.Run(ctx)
}
