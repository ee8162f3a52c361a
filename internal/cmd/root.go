// Package cmd implements the pairview command line.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/pairview/internal/config"
	"github.com/Iron-Ham/pairview/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "pairview",
	Short: "Side-by-side review of documents and their extracted data",
	Long: `pairview pairs uploaded source documents with the data extracted from
them, lists each pair's fields, and highlights a field's region in a viewer
process dedicated to the pair's document type.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/pairview/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PAIRVIEW")
	// Replace dots with underscores for nested keys in env vars
	// e.g., PAIRVIEW_PEER_SPAWNER for peer.spawner
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// newLogger builds the process logger. An empty dir logs to stderr.
func newLogger(dir, level string) (*logging.Logger, error) {
	return logging.NewLogger(dir, logging.ParseLevel(level))
}
