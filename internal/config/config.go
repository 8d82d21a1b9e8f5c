// Package config loads daemon configuration from flags, environment variables and .env files.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shelfsync/shelfsync-server/internal/validation"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig      `json:"app"`
	Logger   LoggerConfig   `json:"logger"`
	Metadata MetadataConfig `json:"metadata"`
	Library  LibraryConfig  `json:"library"`
	Server   ServerConfig   `json:"server"`
	Watcher  WatcherConfig  `json:"watcher"`
	Build    BuildConfig    `json:"build"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `json:"environment" validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string `json:"level" validate:"loglevel"`
	Format string `json:"format" validate:"omitempty,oneof=json text pretty"`
}

// MetadataConfig holds the location of the engine's databases.
type MetadataConfig struct {
	BasePath string `json:"base_path" validate:"required,abspath"`
}

// LibraryConfig lists the directories scanned for books.
type LibraryConfig struct {
	Paths        []string `json:"paths" validate:"dive,abspath"`
	HelpLanguage string   `json:"help_language" validate:"required,min=2"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port" validate:"gte=1,lte=65535"`
	AllowedOrigins []string      `json:"allowed_origins"`
	ReadTimeout    time.Duration `json:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `json:"write_timeout" validate:"gte=0"`
	IdleTimeout    time.Duration `json:"idle_timeout" validate:"gt=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// WatcherConfig controls filesystem watching of the library roots.
type WatcherConfig struct {
	Enabled     bool          `json:"enabled"`
	SettleDelay time.Duration `json:"settle_delay" validate:"gte=0"`
	// RescanRate is the number of rescans per second allowed per directory.
	RescanRate float64 `json:"rescan_rate" validate:"gt=0"`
}

// BuildConfig controls the startup reconciliation pass.
type BuildConfig struct {
	OnStart bool `json:"on_start"`
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("shelfsync", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, text, pretty)")
	metadataPath := fs.String("metadata-path", "", "Base path for the engine databases")
	libraryPaths := fs.String("library-paths", "", "Comma-separated list of book directories")
	helpLanguage := fs.String("help-language", "", "Locale of the built-in help book (e.g. en, de_AT)")
	host := fs.String("host", "", "Listen host")
	port := fs.String("port", "", "Server port (default: 8080)")
	origins := fs.String("allowed-origins", "", "Comma-separated CORS origins")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout, 0 for none (default: 0)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	watch := fs.String("watch", "", "Watch library directories for changes (default: true)")
	settleDelay := fs.String("settle-delay", "", "Quiet period before a changed file is rescanned (default: 2s)")
	rescanRate := fs.String("rescan-rate", "", "Rescans per second per directory (default: 5)")
	buildOnStart := fs.String("build-on-start", "", "Run a full build at startup (default: true)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env files are fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
		Metadata: MetadataConfig{
			BasePath: getConfigValue(*metadataPath, "METADATA_PATH", ""),
		},
		Library: LibraryConfig{
			Paths:        splitList(getConfigValue(*libraryPaths, "LIBRARY_PATHS", "")),
			HelpLanguage: getConfigValue(*helpLanguage, "HELP_LANGUAGE", "en"),
		},
		Server: ServerConfig{
			Host:           getConfigValue(*host, "SERVER_HOST", ""),
			Port:           getIntConfigValue(*port, "SERVER_PORT", 8080),
			AllowedOrigins: splitList(getConfigValue(*origins, "ALLOWED_ORIGINS", "")),
		},
		Watcher: WatcherConfig{
			Enabled:    getBoolConfigValue(*watch, "WATCH_ENABLED", true),
			RescanRate: getFloatConfigValue(*rescanRate, "RESCAN_RATE", 5),
		},
		Build: BuildConfig{
			OnStart: getBoolConfigValue(*buildOnStart, "BUILD_ON_START", true),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "0s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Watcher.SettleDelay, *settleDelay, "WATCH_SETTLE_DELAY", "2s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks struct constraints and that each library root is a directory.
func (c *Config) Validate() error {
	if err := validation.New().Validate(c); err != nil {
		return err
	}

	for _, p := range c.Library.Paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("library path %s: %w", p, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("library path %s is not a directory", p)
		}
	}
	return nil
}

// BooksDBPath is the sqlite database holding book records.
func (c *Config) BooksDBPath() string {
	return filepath.Join(c.Metadata.BasePath, "books.db")
}

// FingerprintDBPath is the badger directory holding file fingerprints.
func (c *Config) FingerprintDBPath() string {
	return filepath.Join(c.Metadata.BasePath, "fingerprints")
}

func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	c.Metadata.BasePath, err = expandPath(c.Metadata.BasePath, filepath.Join(homeDir, ".shelfsync"))
	if err != nil {
		return fmt.Errorf("invalid metadata path: %w", err)
	}

	for i, p := range c.Library.Paths {
		c.Library.Paths[i], err = expandPath(p, "")
		if err != nil {
			return fmt.Errorf("invalid library path %q: %w", p, err)
		}
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// An empty path yields defaultPath.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/"))
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads KEY=value lines from path. Existing environment variables win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
