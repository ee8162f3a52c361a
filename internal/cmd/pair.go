package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/pairview/internal/config"
	"github.com/Iron-Ham/pairview/internal/pairing"
	"github.com/Iron-Ham/pairview/internal/util"
)

var pairCmd = &cobra.Command{
	Use:   "pair <dir>",
	Short: "Report how the files in a directory pair up",
	Long: `Pair the files in a directory the way an upload would, without starting
the host. Files that do not pair are listed with what they are missing and,
when a similarly named file has it, a suggestion.`,
	Args: cobra.ExactArgs(1),
	RunE: runPair,
}

var pairOutput string

func init() {
	pairCmd.Flags().StringVarP(&pairOutput, "output", "o", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(pairCmd)
}

// ValidOutputFormats returns the formats accepted by --output.
func ValidOutputFormats() []string {
	return []string{"table", "json", "yaml"}
}

func runPair(cmd *cobra.Command, args []string) error {
	if !slices.Contains(ValidOutputFormats(), pairOutput) {
		return fmt.Errorf("invalid output format %q (valid: %s)", pairOutput, strings.Join(ValidOutputFormats(), ", "))
	}

	cfg, err := config.Unmarshal()
	if err != nil {
		return err
	}
	files, err := listDir(args[0])
	if err != nil {
		return err
	}

	engine := pairing.NewEngine(cfg.Pairing.DocTypes, cfg.Pairing.SourceExtensions, cfg.Pairing.DataExtensions)
	report := engine.Report(files)
	return writeReport(cmd.OutOrStdout(), report, pairOutput)
}

// listDir returns the regular files of dir as file:// handles.
func listDir(dir string) ([]pairing.File, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var files []pairing.File
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, pairing.File{
			Name: e.Name(),
			URL:  "file://" + filepath.ToSlash(filepath.Join(abs, e.Name())),
		})
	}
	return files, nil
}

func writeReport(w io.Writer, report pairing.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		printReportTable(w, report)
		return nil
	}
}

const baseColumnWidth = 32

func printReportTable(w io.Writer, report pairing.Report) {
	fmt.Fprintln(w, "PAIRS")
	fmt.Fprintln(w, strings.Repeat("─", 50))
	if len(report.Pairs) == 0 {
		fmt.Fprintln(w, "(none)")
	}
	for _, p := range report.Pairs {
		fmt.Fprintf(w, "%-*s %s\n", baseColumnWidth, util.TruncateString(p.Base, baseColumnWidth), p.DocType)
	}

	if len(report.Orphans) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "UNPAIRED")
		fmt.Fprintln(w, strings.Repeat("─", 50))
		for _, o := range report.Orphans {
			line := fmt.Sprintf("%-*s missing %s", baseColumnWidth, util.TruncateString(o.Base, baseColumnWidth), o.Missing)
			if o.Suggestion != "" {
				line += fmt.Sprintf(" (did you mean %s?)", o.Suggestion)
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(report.Ignored) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Ignored: %s\n", strings.Join(report.Ignored, ", "))
	}
}
