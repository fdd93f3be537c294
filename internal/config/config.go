package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override secrets from the config file.
// They are also read from a .env file in the working directory.
const (
	EnvAVWXToken       = "AVWX_TOKEN"
	EnvFlightDataToken = "FLIGHTDATA_TOKEN"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP server settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
	AVWX       AVWXConfig       `toml:"avwx"`       // Primary METAR provider
	FlightData FlightDataConfig `toml:"flightdata"` // Flight data backend, also the fallback METAR provider
	Airports   AirportsConfig   `toml:"airports"`   // Optional IATA/ICAO code directory

	// Path of the file the configuration was read from, empty when built from defaults
	Path string `toml:"-"`
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on (useful for multiple interfaces)
}

// LoggingConfig contains application logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// AVWXConfig contains the AVWX REST API settings
type AVWXConfig struct {
	BaseURL               string `toml:"base_url"`                // e.g. https://avwx.rest/api
	Token                 string `toml:"token"`                   // Sent verbatim in the Authorization header; AVWX_TOKEN overrides
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // Upper bound for a single AVWX call
	HistoryHours          int    `toml:"history_hours"`           // Window requested by the history endpoint
}

// FlightDataConfig contains the flight data backend settings
type FlightDataConfig struct {
	APIBaseURL            string `toml:"api_base_url"`            // JSON API root, e.g. https://api.flightradar24.com/common/v1
	SiteBaseURL           string `toml:"site_base_url"`           // Web site root used for the airport weather page
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // Upper bound for a single backend call
	UserAgent             string `toml:"user_agent"`              // User-Agent header sent upstream
	Token                 string `toml:"token"`                   // Optional API token; FLIGHTDATA_TOKEN overrides
}

// AirportsConfig locates the OurAirports database
type AirportsConfig struct {
	DBPath string `toml:"db_path"` // Path to airports.csv; empty disables code translation
}

// Default returns the configuration used when no file is found
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               5001,
			Host:               "0.0.0.0",
			CORSAllowedOrigins: []string{"*"},
			ReadTimeoutSecs:    15,
			WriteTimeoutSecs:   60,
			IdleTimeoutSecs:    120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		AVWX: AVWXConfig{
			BaseURL:               "https://avwx.rest/api",
			RequestTimeoutSeconds: 5,
			HistoryHours:          72,
		},
		FlightData: FlightDataConfig{
			APIBaseURL:            "https://api.flightradar24.com/common/v1",
			SiteBaseURL:           "https://www.flightradar24.com",
			RequestTimeoutSeconds: 15,
			UserAgent:             "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		},
	}
}

// Load loads the configuration from the specified file path.
// Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	config := Default()

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	config.Path = path

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference.
// An explicitly requested path must exist. When nothing is found the defaults are used.
func LoadWithFallback(preferredPath string) (*Config, error) {
	if preferredPath != "" {
		return Load(preferredPath)
	}

	// List of paths to check in order of preference
	searchPaths := []string{
		"configs/config.toml",
		"config.toml",
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
			return config, nil
		}
	}

	config := Default()
	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overrides secrets from the environment, loading .env first when present
func (c *Config) applyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	if v := os.Getenv(EnvAVWXToken); v != "" {
		c.AVWX.Token = v
	}
	if v := os.Getenv(EnvFlightDataToken); v != "" {
		c.FlightData.Token = v
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	portsSeen := map[int]bool{c.Server.Port: true}
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("server timeouts must be 0 or greater")
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	// Validate AVWX config
	if err := validateURL("avwx.base_url", c.AVWX.BaseURL); err != nil {
		return err
	}
	if c.AVWX.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("avwx.request_timeout_seconds must be greater than 0")
	}
	if c.AVWX.HistoryHours <= 0 {
		return fmt.Errorf("avwx.history_hours must be greater than 0")
	}

	// Validate flight data config
	if err := validateURL("flightdata.api_base_url", c.FlightData.APIBaseURL); err != nil {
		return err
	}
	if err := validateURL("flightdata.site_base_url", c.FlightData.SiteBaseURL); err != nil {
		return err
	}
	if c.FlightData.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("flightdata.request_timeout_seconds must be greater than 0")
	}

	// Validate airports config
	if c.Airports.DBPath != "" {
		if _, err := os.Stat(c.Airports.DBPath); err != nil {
			return fmt.Errorf("airports db_path is not readable: %w", err)
		}
	}

	return nil
}

func validateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", key)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL: %q", key, raw)
	}
	return nil
}

// AVWXTimeout returns the AVWX request timeout as a duration
func (c *Config) AVWXTimeout() time.Duration {
	return time.Duration(c.AVWX.RequestTimeoutSeconds) * time.Second
}

// FlightDataTimeout returns the flight data request timeout as a duration
func (c *Config) FlightDataTimeout() time.Duration {
	return time.Duration(c.FlightData.RequestTimeoutSeconds) * time.Second
}
