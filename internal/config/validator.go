package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/pairview/internal/peer"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "peer.retry_delay_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidSpawners returns the list of valid viewer spawners
func ValidSpawners() []string {
	return []string{SpawnerExec, SpawnerTmux}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateUpload()...)
	errors = append(errors, c.validatePairing()...)
	errors = append(errors, c.validatePeer()...)
	errors = append(errors, c.validateAssemble()...)
	errors = append(errors, c.validateBackend()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateTUI()...)

	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if err := validateListen(c.Server.Listen); err != "" {
		errors = append(errors, ValidationError{Field: "server.listen", Value: c.Server.Listen, Message: err})
	}

	if c.Server.Origin != "" {
		u, err := url.Parse(c.Server.Origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "server.origin",
				Value:   c.Server.Origin,
				Message: "must be an http(s) origin such as http://127.0.0.1:7420",
			})
		} else if u.Path != "" && u.Path != "/" {
			errors = append(errors, ValidationError{
				Field:   "server.origin",
				Value:   c.Server.Origin,
				Message: "must not contain a path",
			})
		}
	}

	if strings.TrimSpace(c.Server.UploadDir) == "" {
		errors = append(errors, ValidationError{
			Field:   "server.upload_dir",
			Value:   c.Server.UploadDir,
			Message: "must not be empty",
		})
	}

	const maxUploadMB = 1024
	if c.Server.MaxUploadMB <= 0 || c.Server.MaxUploadMB > maxUploadMB {
		errors = append(errors, ValidationError{
			Field:   "server.max_upload_mb",
			Value:   c.Server.MaxUploadMB,
			Message: fmt.Sprintf("must be between 1 and %d", maxUploadMB),
		})
	}

	return errors
}

func (c *Config) validateUpload() []ValidationError {
	var errors []ValidationError

	if len(c.Upload.Accept) == 0 {
		errors = append(errors, ValidationError{
			Field:   "upload.accept",
			Value:   c.Upload.Accept,
			Message: "must list at least one pattern",
		})
	}
	for i, pattern := range c.Upload.Accept {
		if _, err := glob.Compile(strings.ToLower(pattern)); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("upload.accept[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	if c.Upload.RatePerMinute < 0 {
		errors = append(errors, ValidationError{
			Field:   "upload.rate_per_minute",
			Value:   c.Upload.RatePerMinute,
			Message: "must be non-negative (0 disables rate limiting)",
		})
	}
	if c.Upload.Burst < 0 {
		errors = append(errors, ValidationError{
			Field:   "upload.burst",
			Value:   c.Upload.Burst,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validatePairing() []ValidationError {
	var errors []ValidationError

	names := make(map[string]string, len(c.Pairing.DocTypes))
	for i, tok := range c.Pairing.DocTypes {
		if strings.TrimSpace(tok) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("pairing.doc_types[%d]", i),
				Value:   tok,
				Message: "must not be empty",
			})
			continue
		}
		// Each doc type needs its own viewer name.
		name := peer.PeerName(c.Peer.NamePrefix, tok)
		if prev, ok := names[name]; ok && prev != tok {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("pairing.doc_types[%d]", i),
				Value:   tok,
				Message: fmt.Sprintf("maps to viewer name %q already used by %q", name, prev),
			})
			continue
		}
		names[name] = tok
	}

	if len(c.Pairing.SourceExtensions) == 0 {
		errors = append(errors, ValidationError{
			Field:   "pairing.source_extensions",
			Value:   c.Pairing.SourceExtensions,
			Message: "must list at least one extension",
		})
	}
	if len(c.Pairing.DataExtensions) == 0 {
		errors = append(errors, ValidationError{
			Field:   "pairing.data_extensions",
			Value:   c.Pairing.DataExtensions,
			Message: "must list at least one extension",
		})
	}

	for _, ext := range c.Pairing.SourceExtensions {
		if slices.ContainsFunc(c.Pairing.DataExtensions, func(d string) bool { return sameExt(d, ext) }) {
			errors = append(errors, ValidationError{
				Field:   "pairing.data_extensions",
				Value:   ext,
				Message: "extension cannot be both source and data",
			})
		}
	}

	return errors
}

func sameExt(a, b string) bool {
	norm := func(s string) string { return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") }
	return norm(a) == norm(b)
}

func (c *Config) validatePeer() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidSpawners(), c.Peer.Spawner) {
		errors = append(errors, ValidationError{
			Field:   "peer.spawner",
			Value:   c.Peer.Spawner,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidSpawners(), ", ")),
		})
	}

	const maxRetryDelayMs = 60000
	if c.Peer.RetryDelayMs <= 0 || c.Peer.RetryDelayMs > maxRetryDelayMs {
		errors = append(errors, ValidationError{
			Field:   "peer.retry_delay_ms",
			Value:   c.Peer.RetryDelayMs,
			Message: fmt.Sprintf("must be between 1 and %d", maxRetryDelayMs),
		})
	}

	if strings.TrimSpace(c.Peer.NamePrefix) == "" {
		errors = append(errors, ValidationError{
			Field:   "peer.name_prefix",
			Value:   c.Peer.NamePrefix,
			Message: "must not be empty",
		})
	} else if strings.ContainsAny(c.Peer.NamePrefix, " .:/") {
		errors = append(errors, ValidationError{
			Field:   "peer.name_prefix",
			Value:   c.Peer.NamePrefix,
			Message: "must not contain spaces, dots, colons or slashes",
		})
	}

	if len(c.Peer.ViewerCommand) > 0 && strings.TrimSpace(c.Peer.ViewerCommand[0]) == "" {
		errors = append(errors, ValidationError{
			Field:   "peer.viewer_command",
			Value:   c.Peer.ViewerCommand,
			Message: "first element must name an executable",
		})
	}

	return errors
}

func (c *Config) validateAssemble() []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(c.Assemble.Upstream)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "assemble.upstream",
			Value:   c.Assemble.Upstream,
			Message: "must be an http(s) URL",
		})
	}

	if c.Assemble.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "assemble.timeout_seconds",
			Value:   c.Assemble.TimeoutSeconds,
			Message: "must be positive",
		})
	}
	if c.Assemble.FailureThreshold <= 0 {
		errors = append(errors, ValidationError{
			Field:   "assemble.failure_threshold",
			Value:   c.Assemble.FailureThreshold,
			Message: "must be positive",
		})
	}
	if c.Assemble.OpenSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "assemble.open_seconds",
			Value:   c.Assemble.OpenSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateBackend() []ValidationError {
	var errors []ValidationError

	if err := validateListen(c.Backend.Listen); err != "" {
		errors = append(errors, ValidationError{Field: "backend.listen", Value: c.Backend.Listen, Message: err})
	}
	if strings.TrimSpace(c.Backend.DefaultModel) == "" {
		errors = append(errors, ValidationError{
			Field:   "backend.default_model",
			Value:   c.Backend.DefaultModel,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	const minValueWidth, maxValueWidth = 8, 200
	if c.TUI.ValueWidth < minValueWidth || c.TUI.ValueWidth > maxValueWidth {
		errors = append(errors, ValidationError{
			Field:   "tui.value_width",
			Value:   c.TUI.ValueWidth,
			Message: fmt.Sprintf("must be between %d and %d", minValueWidth, maxValueWidth),
		})
	}

	return errors
}

// validateListen returns a message when addr is not a host:port pair.
func validateListen(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "must be host:port"
	}
	if port == "" {
		return "must include a port"
	}
	if host == "" {
		return "must include a host (use 0.0.0.0 to listen on all interfaces)"
	}
	return ""
}
