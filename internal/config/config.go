// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/net/http/httpguts"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/silly-cors/config.toml",
	"configs/config.toml",
}

// Destination resolution strategies.
const (
	StrategyHeader = "header"
	StrategyPath   = "path"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config   string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host     string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	Secret   string `kong:"help='Shared secret required in the secret header (overrides config).',env='SECRET'"`
	Strategy string `kong:"help='Destination strategy: header|path (overrides config).',env='STRATEGY'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Proxy    ProxyConfig    `toml:"proxy"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath   string // resolved config file path (unexported)
	fileSecret bool   // the file itself carries proxy.secret
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"` // 0 means "use default" (3001); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64  `toml:"body_max_bytes"`
}

// ProxyConfig controls how requests are authenticated, resolved and answered.
type ProxyConfig struct {
	Strategy          string `toml:"strategy"`
	DestinationHeader string `toml:"destination_header"`
	SecretHeader      string `toml:"secret_header"`
	Secret            string `toml:"secret"`
	RewriteLocation   bool   `toml:"rewrite_location"`
	ErrorMarker       bool   `toml:"error_marker"`
}

// UpstreamConfig holds destination connection pool settings.
type UpstreamConfig struct {
	TimeoutSeconds  int `toml:"timeout_seconds"` // 0 disables the overall client timeout
	IdleConnections int `toml:"idle_connections"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds settings for the admin listener serving Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file, if any, and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/silly-cors/config.toml then configs/config.toml. Unlike an explicit
// path, a missing search-path file is not an error: the proxy runs on
// defaults plus flags.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
		cfg.fileSecret = cfg.Proxy.Secret != ""
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.Secret != "" {
		c.Proxy.Secret = cli.Secret
	}
	if cli.Strategy != "" {
		c.Proxy.Strategy = cli.Strategy
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if c.Proxy.Secret == "YOUR_SECRET_HERE" {
		return fmt.Errorf("proxy.secret contains placeholder value; set a real secret or leave empty to disable authentication")
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}

	// Proxy behavior.
	strategy := strings.ToLower(c.Proxy.Strategy)
	switch strategy {
	case StrategyHeader, StrategyPath, "":
		// valid
	default:
		return fmt.Errorf("proxy.strategy must be one of: header, path; got %q", c.Proxy.Strategy)
	}
	if c.Proxy.RewriteLocation && strategy != StrategyPath {
		return fmt.Errorf("proxy.rewrite_location requires proxy.strategy = %q", StrategyPath)
	}
	for name, v := range map[string]string{
		"proxy.destination_header": c.Proxy.DestinationHeader,
		"proxy.secret_header":      c.Proxy.SecretHeader,
	} {
		if v != "" && !httpguts.ValidHeaderFieldName(v) {
			return fmt.Errorf("%s is not a valid header name; got %q", name, v)
		}
	}
	if c.Proxy.DestinationHeader != "" && strings.EqualFold(c.Proxy.DestinationHeader, c.Proxy.SecretHeader) {
		return fmt.Errorf("proxy.destination_header and proxy.secret_header must differ; both are %q", c.Proxy.SecretHeader)
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Admin listener (only when metrics are enabled).
	if c.Metrics.Enabled {
		if c.Metrics.Addr != "" {
			if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
				return fmt.Errorf("metrics.addr must be host:port; got %q", c.Metrics.Addr)
			}
		}
		if p := c.Metrics.Path; p != "" {
			if p[0] != '/' {
				return fmt.Errorf("metrics.path must start with '/'; got %q", p)
			}
			for _, reserved := range []string{"/healthz", "/status"} {
				if p == reserved || strings.HasPrefix(p, reserved+"/") {
					return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
				}
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key. Setting port=0 in
// the config file therefore results in the default port (3001).
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3001
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	c.Proxy.Strategy = strings.ToLower(c.Proxy.Strategy)
	if c.Proxy.Strategy == "" {
		c.Proxy.Strategy = StrategyHeader
	}
	if c.Proxy.DestinationHeader == "" {
		c.Proxy.DestinationHeader = "Silly-Host"
	}
	if c.Proxy.SecretHeader == "" {
		c.Proxy.SecretHeader = "Silly-Secret"
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// WarnPermissions logs a warning if the config file holds a secret and is
// readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" || !c.fileSecret {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
