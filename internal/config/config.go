// Package config loads pairview settings from defaults, a YAML file and
// PAIRVIEW_ environment variables through viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete pairview configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Upload   UploadConfig   `mapstructure:"upload" yaml:"upload"`
	Pairing  PairingConfig  `mapstructure:"pairing" yaml:"pairing"`
	Peer     PeerConfig     `mapstructure:"peer" yaml:"peer"`
	Assemble AssembleConfig `mapstructure:"assemble" yaml:"assemble"`
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	TUI      TUIConfig      `mapstructure:"tui" yaml:"tui"`
}

// ServerConfig controls the host HTTP server
type ServerConfig struct {
	// Listen is the host:port the host binds
	Listen string `mapstructure:"listen" yaml:"listen"`
	// Origin is the trusted origin stamped on every message. Empty derives
	// it from Listen.
	Origin string `mapstructure:"origin" yaml:"origin"`
	// UploadDir is where uploaded files are stored
	UploadDir string `mapstructure:"upload_dir" yaml:"upload_dir"`
	// MaxUploadMB caps a single uploaded file
	MaxUploadMB int `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// UploadConfig controls which files are accepted and how fast
type UploadConfig struct {
	// Accept lists glob patterns of stored file names
	Accept []string `mapstructure:"accept" yaml:"accept"`
	// RatePerMinute limits upload requests per client IP. Zero disables it.
	RatePerMinute int `mapstructure:"rate_per_minute" yaml:"rate_per_minute"`
	// Burst is the number of uploads allowed back to back
	Burst int `mapstructure:"burst" yaml:"burst"`
	// Watch makes the upload directory listing the working set
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// PairingConfig controls file pairing and doc type inference
type PairingConfig struct {
	// DocTypes is the ordered token list; the first match wins
	DocTypes         []string `mapstructure:"doc_types" yaml:"doc_types"`
	SourceExtensions []string `mapstructure:"source_extensions" yaml:"source_extensions"`
	DataExtensions   []string `mapstructure:"data_extensions" yaml:"data_extensions"`
}

// PeerConfig controls viewer peers
type PeerConfig struct {
	// Spawner selects how viewers are started: "exec" or "tmux"
	Spawner string `mapstructure:"spawner" yaml:"spawner"`
	// RetryDelayMs is the delay before the single highlight retry
	RetryDelayMs int `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
	// NamePrefix prefixes every viewer name
	NamePrefix string `mapstructure:"name_prefix" yaml:"name_prefix"`
	// ViewerCommand overrides the viewer argv. Empty runs this executable's
	// viewer subcommand.
	ViewerCommand []string `mapstructure:"viewer_command" yaml:"viewer_command"`
	// StopOnExit stops every tracked viewer when the host exits. Viewers
	// are otherwise left running.
	StopOnExit bool `mapstructure:"stop_on_exit" yaml:"stop_on_exit"`
}

// AssembleConfig controls the prompt-assembly proxy
type AssembleConfig struct {
	Upstream         string `mapstructure:"upstream" yaml:"upstream"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	FailureThreshold int    `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	// OpenSeconds is how long the breaker stays open before probing
	OpenSeconds int `mapstructure:"open_seconds" yaml:"open_seconds"`
}

// BackendConfig controls the prompt backend stub
type BackendConfig struct {
	Listen       string `mapstructure:"listen" yaml:"listen"`
	DefaultModel string `mapstructure:"default_model" yaml:"default_model"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the log directory. Empty logs to stderr.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// TUIConfig controls the terminal UI
type TUIConfig struct {
	// ValueWidth is the column budget for a field value
	ValueWidth int `mapstructure:"value_width" yaml:"value_width"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:      "127.0.0.1:7420",
			UploadDir:   filepath.Join(".pairview", "uploads"),
			MaxUploadMB: 64,
		},
		Upload: UploadConfig{
			Accept:        []string{"*.pdf", "*.json", "*.txt"},
			RatePerMinute: 120,
			Burst:         20,
		},
		Pairing: PairingConfig{
			DocTypes:         []string{"invoice", "lease", "fds", "guarantee", "acceptance"},
			SourceExtensions: []string{"pdf"},
			DataExtensions:   []string{"json", "txt"},
		},
		Peer: PeerConfig{
			Spawner:      SpawnerExec,
			RetryDelayMs: 400,
			NamePrefix:   "pairview-viewer",
		},
		Assemble: AssembleConfig{
			Upstream:         "http://localhost:8080",
			TimeoutSeconds:   60,
			FailureThreshold: 5,
			OpenSeconds:      30,
		},
		Backend: BackendConfig{
			Listen:       "127.0.0.1:8080",
			DefaultModel: "mistral:tiny",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		TUI: TUIConfig{
			ValueWidth: 48,
		},
	}
}

// Spawner names.
const (
	SpawnerExec = "exec"
	SpawnerTmux = "tmux"
)

// OriginURL returns the trusted origin, derived from the listen address
// when not set.
func (s *ServerConfig) OriginURL() string {
	if s.Origin != "" {
		return strings.TrimRight(s.Origin, "/")
	}
	return "http://" + s.Listen
}

// MaxUploadBytes returns the per-file size cap.
func (s *ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// RetryDelay returns the highlight retry delay.
func (p *PeerConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelayMs) * time.Millisecond
}

// Timeout returns the upstream request timeout.
func (a *AssembleConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// OpenTimeout returns how long the breaker stays open.
func (a *AssembleConfig) OpenTimeout() time.Duration {
	return time.Duration(a.OpenSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("server.listen", defaults.Server.Listen)
	viper.SetDefault("server.origin", defaults.Server.Origin)
	viper.SetDefault("server.upload_dir", defaults.Server.UploadDir)
	viper.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)

	viper.SetDefault("upload.accept", defaults.Upload.Accept)
	viper.SetDefault("upload.rate_per_minute", defaults.Upload.RatePerMinute)
	viper.SetDefault("upload.burst", defaults.Upload.Burst)
	viper.SetDefault("upload.watch", defaults.Upload.Watch)

	viper.SetDefault("pairing.doc_types", defaults.Pairing.DocTypes)
	viper.SetDefault("pairing.source_extensions", defaults.Pairing.SourceExtensions)
	viper.SetDefault("pairing.data_extensions", defaults.Pairing.DataExtensions)

	viper.SetDefault("peer.spawner", defaults.Peer.Spawner)
	viper.SetDefault("peer.retry_delay_ms", defaults.Peer.RetryDelayMs)
	viper.SetDefault("peer.name_prefix", defaults.Peer.NamePrefix)
	viper.SetDefault("peer.viewer_command", defaults.Peer.ViewerCommand)
	viper.SetDefault("peer.stop_on_exit", defaults.Peer.StopOnExit)

	viper.SetDefault("assemble.upstream", defaults.Assemble.Upstream)
	viper.SetDefault("assemble.timeout_seconds", defaults.Assemble.TimeoutSeconds)
	viper.SetDefault("assemble.failure_threshold", defaults.Assemble.FailureThreshold)
	viper.SetDefault("assemble.open_seconds", defaults.Assemble.OpenSeconds)

	viper.SetDefault("backend.listen", defaults.Backend.Listen)
	viper.SetDefault("backend.default_model", defaults.Backend.DefaultModel)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	viper.SetDefault("tui.value_width", defaults.TUI.ValueWidth)
}

// Load reads the configuration from viper and validates it
func Load() (*Config, error) {
	cfg, err := Unmarshal()
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return cfg, nil
}

// Unmarshal reads the configuration from viper without validating it
func Unmarshal() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pairview")
	}
	// Fall back to ~/.config/pairview
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pairview"
	}
	return filepath.Join(home, ".config", "pairview")
}

// ConfigFile returns the path to the default config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
