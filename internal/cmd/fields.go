package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/pairview/internal/extract"
	"github.com/Iron-Ham/pairview/internal/util"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields <file.json>",
	Short: "Print the normalized fields of an extracted data file",
	Long: `Print the field list the host would show for an extracted data file.
Fields marked with * carry geometry and can be highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: runFields,
}

var (
	fieldsOutput        string
	fieldsHighlightable bool
	fieldsFilter        string
)

func init() {
	fieldsCmd.Flags().StringVarP(&fieldsOutput, "output", "o", "table", "output format: table, json or yaml")
	fieldsCmd.Flags().BoolVar(&fieldsHighlightable, "highlightable", false, "only list fields with geometry")
	fieldsCmd.Flags().StringVar(&fieldsFilter, "filter", "", "only list fields whose key or value contains this text")
	rootCmd.AddCommand(fieldsCmd)
}

func runFields(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	nodes, err := extract.Normalize(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if fieldsHighlightable {
		nodes = extract.Highlightable(nodes)
	}
	nodes = extract.Filter(nodes, fieldsFilter)
	return writeFields(cmd.OutOrStdout(), nodes, fieldsOutput)
}

const (
	keyColumnWidth   = 28
	valueColumnWidth = 40
)

func writeFields(w io.Writer, nodes []extract.FieldNode, format string) error {
	if nodes == nil {
		nodes = []extract.FieldNode{}
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	case "yaml":
		// Round-trip through JSON so geometry keeps its array form and
		// the keys match the JSON output.
		data, err := json.Marshal(nodes)
		if err != nil {
			return err
		}
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	case "table":
	default:
		return fmt.Errorf("invalid output format %q", format)
	}

	if len(nodes) == 0 {
		fmt.Fprintln(w, "(no fields)")
		return nil
	}
	for _, n := range nodes {
		mark := " "
		if n.Highlightable() {
			mark = "*"
		}
		geom := ""
		if box, ok := n.BBox(); ok {
			geom = box.String()
		}
		fmt.Fprintf(w, "%s %-*s %-*s %s\n",
			mark,
			keyColumnWidth, util.TruncateString(n.Key, keyColumnWidth),
			valueColumnWidth, util.TruncateString(util.OneLine(n.Value), valueColumnWidth),
			geom)
	}
	return nil
}
