// Package config handles application configuration
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// HubConfig holds Home Assistant connection settings
type HubConfig struct {
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`   // Prefer the keyring or HOMEDASH_HUB_TOKEN over this
	Timeout string `yaml:"timeout"` // HTTP request timeout (e.g., "10s")
}

// EntitiesConfig maps dashboard domains to hub entity IDs
type EntitiesConfig struct {
	Weather       string   `yaml:"weather"`
	TaskLists     []string `yaml:"task_lists"`
	Calendars     []string `yaml:"calendars"`
	MailboxSensor string   `yaml:"mailbox_sensor"`
	MailboxSwitch string   `yaml:"mailbox_switch"`
	Sun           string   `yaml:"sun"`
}

// RefreshConfig holds per-domain refresh intervals as duration strings
type RefreshConfig struct {
	Weather  string `yaml:"weather"`
	Forecast string `yaml:"forecast"`
	Tasks    string `yaml:"tasks"`
	Calendar string `yaml:"calendar"`
	Mailbox  string `yaml:"mailbox"`
}

// NetworkConfig holds connectivity probe settings
type NetworkConfig struct {
	InternetHost      string `yaml:"internet_host"`
	InternetPort      int    `yaml:"internet_port"`
	CheckInterval     string `yaml:"check_interval"`
	ProbeTimeout      string `yaml:"probe_timeout"`
	KeepaliveTarget   string `yaml:"keepalive_target"` // Optional UDP keepalive destination
	KeepalivePort     int    `yaml:"keepalive_port"`
	KeepaliveInterval string `yaml:"keepalive_interval"`
}

// CacheConfig holds persistent cache settings
type CacheConfig struct {
	Path       string `yaml:"path"`
	UseRAMDisk *bool  `yaml:"use_ramdisk"` // Prefer the tmpfs path when available (default: true)
}

// DaemonConfig holds background daemon settings
type DaemonConfig struct {
	TickInterval string `yaml:"tick_interval"` // Engine tick cadence (default: "1s")
	SocketPath   string `yaml:"socket_path"`   // Unix socket for CLI control
}

// TelemetryConfig holds local telemetry settings
type TelemetryConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Verbose bool   `yaml:"verbose"`
	File    string `yaml:"file"` // Optional daemon log file path
}

// NotificationsConfig holds desktop/log alert settings
type NotificationsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	OS             *bool  `yaml:"os"`              // Desktop notifications (default: true when enabled)
	OnMail         *bool  `yaml:"on_mail"`         // Alert when mail arrives (default: true)
	OnConnectivity *bool  `yaml:"on_connectivity"` // Alert on hub up/down (default: true)
	LogFile        string `yaml:"log_file"`        // Optional append-only alert log
}

// CalendarConfig holds calendar presentation settings
type CalendarConfig struct {
	WindowDays int `yaml:"window_days"` // How far ahead events are fetched (default: 7)
}

// Config represents the application configuration
type Config struct {
	Hub       HubConfig       `yaml:"hub"`
	Entities  EntitiesConfig  `yaml:"entities"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Network   NetworkConfig   `yaml:"network"`
	Cache     CacheConfig     `yaml:"cache"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`

	Notifications NotificationsConfig `yaml:"notifications"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			URL: "http://homeassistant.local:8123",
		},
		Entities: EntitiesConfig{
			Sun: "sun.sun",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
	}
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it creates one with defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}

	if cfg.Hub.URL == "" {
		cfg.Hub.URL = "http://homeassistant.local:8123"
	}
	if cfg.Entities.Sun == "" {
		cfg.Entities.Sun = "sun.sun"
	}
	if cfg.Cache.Path != "" {
		cfg.Cache.Path = ExpandPath(cfg.Cache.Path)
	}
	if cfg.Logging.File != "" {
		cfg.Logging.File = ExpandPath(cfg.Logging.File)
	}

	return cfg, nil
}

// save writes the configuration to the specified path
func (c *Config) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use the embedded sample config which includes all documentation and comments
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Hub.URL == "" {
		return fmt.Errorf("hub.url is required")
	}
	if !strings.HasPrefix(c.Hub.URL, "http://") && !strings.HasPrefix(c.Hub.URL, "https://") {
		return fmt.Errorf("hub.url must start with http:// or https://, got %q", c.Hub.URL)
	}

	durations := map[string]string{
		"hub.timeout":                c.Hub.Timeout,
		"refresh.weather":            c.Refresh.Weather,
		"refresh.forecast":           c.Refresh.Forecast,
		"refresh.tasks":              c.Refresh.Tasks,
		"refresh.calendar":           c.Refresh.Calendar,
		"refresh.mailbox":            c.Refresh.Mailbox,
		"network.check_interval":     c.Network.CheckInterval,
		"network.probe_timeout":      c.Network.ProbeTimeout,
		"network.keepalive_interval": c.Network.KeepaliveInterval,
		"daemon.tick_interval":       c.Daemon.TickInterval,
	}
	for key, val := range durations {
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %q", key, val)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", key, val)
		}
	}

	if c.Calendar.WindowDays < 0 {
		return fmt.Errorf("calendar.window_days must not be negative")
	}

	return nil
}

// parseDuration parses a duration string, falling back to def when unset or invalid.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetHubTimeout returns the hub HTTP timeout. Defaults to 10 seconds.
func (c *Config) GetHubTimeout() time.Duration {
	return parseDuration(c.Hub.Timeout, 10*time.Second)
}

// GetWeatherInterval returns the weather refresh interval. Defaults to 10 minutes.
func (c *Config) GetWeatherInterval() time.Duration {
	return parseDuration(c.Refresh.Weather, 10*time.Minute)
}

// GetForecastInterval returns the forecast refresh interval. Defaults to 30 minutes.
func (c *Config) GetForecastInterval() time.Duration {
	return parseDuration(c.Refresh.Forecast, 30*time.Minute)
}

// GetTasksInterval returns the task list refresh interval. Defaults to 5 minutes.
func (c *Config) GetTasksInterval() time.Duration {
	return parseDuration(c.Refresh.Tasks, 5*time.Minute)
}

// GetCalendarInterval returns the calendar refresh interval. Defaults to 15 minutes.
func (c *Config) GetCalendarInterval() time.Duration {
	return parseDuration(c.Refresh.Calendar, 15*time.Minute)
}

// GetMailboxInterval returns the mailbox sensor refresh interval. Defaults to 1 minute.
func (c *Config) GetMailboxInterval() time.Duration {
	return parseDuration(c.Refresh.Mailbox, time.Minute)
}

// GetCheckInterval returns the connectivity check interval. Defaults to 30 seconds.
func (c *Config) GetCheckInterval() time.Duration {
	return parseDuration(c.Network.CheckInterval, 30*time.Second)
}

// GetProbeTimeout returns the TCP probe timeout. Defaults to 2 seconds.
func (c *Config) GetProbeTimeout() time.Duration {
	return parseDuration(c.Network.ProbeTimeout, 2*time.Second)
}

// GetKeepaliveInterval returns the UDP keepalive interval. Defaults to 60 seconds.
func (c *Config) GetKeepaliveInterval() time.Duration {
	return parseDuration(c.Network.KeepaliveInterval, time.Minute)
}

// GetTickInterval returns the daemon tick cadence. Defaults to 1 second.
func (c *Config) GetTickInterval() time.Duration {
	return parseDuration(c.Daemon.TickInterval, time.Second)
}

// GetInternetHost returns the internet reachability probe host.
// Defaults to a well-known public DNS resolver.
func (c *Config) GetInternetHost() string {
	if c.Network.InternetHost == "" {
		return "8.8.8.8"
	}
	return c.Network.InternetHost
}

// GetInternetPort returns the internet reachability probe port. Defaults to 53.
func (c *Config) GetInternetPort() int {
	if c.Network.InternetPort <= 0 {
		return 53
	}
	return c.Network.InternetPort
}

// GetKeepalivePort returns the UDP keepalive port. Defaults to 9 (discard).
func (c *Config) GetKeepalivePort() int {
	if c.Network.KeepalivePort <= 0 {
		return 9
	}
	return c.Network.KeepalivePort
}

// IsRAMDiskEnabled returns true if the cache should prefer the tmpfs path.
// Defaults to true.
func (c *Config) IsRAMDiskEnabled() bool {
	if c.Cache.UseRAMDisk == nil {
		return true
	}
	return *c.Cache.UseRAMDisk
}

// GetCalendarWindowDays returns how far ahead calendar events are fetched.
// Returns 7 (default) if not configured.
func (c *Config) GetCalendarWindowDays() int {
	if c.Calendar.WindowDays <= 0 {
		return 7
	}
	return c.Calendar.WindowDays
}

// GetSocketPath returns the daemon control socket path.
// Defaults to an XDG runtime location.
func (c *Config) GetSocketPath() string {
	if c.Daemon.SocketPath != "" {
		return ExpandPath(c.Daemon.SocketPath)
	}
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		return filepath.Join(runtime, "homedash.sock")
	}
	return filepath.Join(os.TempDir(), "homedash.sock")
}

// IsTelemetryEnabled returns true if local telemetry is enabled in config
func (c *Config) IsTelemetryEnabled() bool {
	return c.Telemetry.Enabled
}

// GetTelemetryRetentionDays returns the telemetry retention period in days.
// Returns 30 (default) if not configured.
func (c *Config) GetTelemetryRetentionDays() int {
	if c.Telemetry.RetentionDays <= 0 {
		return 30
	}
	return c.Telemetry.RetentionDays
}

// GetTelemetryPath returns the sqlite telemetry database path.
func (c *Config) GetTelemetryPath() string {
	return filepath.Join(GetDataDir(), "telemetry.db")
}

// boolOrDefault dereferences an optional yaml bool.
func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// AreNotificationsEnabled returns true if desktop/log alerts are enabled.
func (c *Config) AreNotificationsEnabled() bool {
	return c.Notifications.Enabled
}

// IsOSNotificationEnabled returns true if the desktop channel is active.
// Defaults to true when notifications are enabled.
func (c *Config) IsOSNotificationEnabled() bool {
	return boolOrDefault(c.Notifications.OS, true)
}

// NotifyOnMail returns true if mail arrival should raise an alert. Defaults to true.
func (c *Config) NotifyOnMail() bool {
	return boolOrDefault(c.Notifications.OnMail, true)
}

// NotifyOnConnectivity returns true if hub transitions should raise an alert.
// Defaults to true.
func (c *Config) NotifyOnConnectivity() bool {
	return boolOrDefault(c.Notifications.OnConnectivity, true)
}

// GetNotificationLogFile returns the alert log path, empty when disabled.
func (c *Config) GetNotificationLogFile() string {
	return ExpandPath(c.Notifications.LogFile)
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "homedash")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "homedash")
	}
	return filepath.Join(home, fallbackPath, "homedash")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
