package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Upstream      Upstream      `yaml:"upstream"`
	Server        Server        `yaml:"server"`
	Scheduler     Scheduler     `yaml:"scheduler"`
	Notifications Notifications `yaml:"notifications"`
	SMTP          SMTP          `yaml:"smtp"`
	Admin         Admin         `yaml:"admin"`
	Output        Output        `yaml:"output"`
	Logging       Logging       `yaml:"logging"`
}

type Upstream struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
	TimeoutS  int    `yaml:"timeout_seconds"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Scheduler struct {
	IntervalHours int `yaml:"interval_hours"`
}

type Notifications struct {
	Enabled           bool   `yaml:"enabled"`
	FromAddress       string `yaml:"from_address"`
	SiteBaseURL       string `yaml:"site_base_url"`
	WindowHours       int    `yaml:"window_hours"`
	MaxAttemptsPerDay int    `yaml:"max_attempts_per_day"`
}

type SMTP struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

type Admin struct {
	TokenEnv string `yaml:"token_env"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for victimfeed.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "victimfeed")
}

// DataDir returns the XDG data directory for victimfeed.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "victimfeed")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/victimfeed/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'victimfeed init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file. Secrets referenced by
// *_env keys come from the environment; a local .env is honored.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Upstream: Upstream{
			BaseURL:   "https://api.ransomware.live",
			UserAgent: "victimfeed/1.0 (ransomware victim tracker)",
			TimeoutS:  15,
		},
		Server:    Server{Port: 8000},
		Scheduler: Scheduler{IntervalHours: 4},
		Notifications: Notifications{
			Enabled:           true,
			FromAddress:       "alerts@victimfeed.local",
			WindowHours:       24,
			MaxAttemptsPerDay: 3,
		},
		SMTP: SMTP{
			Port:        587,
			PasswordEnv: "VICTIMFEED_SMTP_PASSWORD",
		},
		Admin:   Admin{TokenEnv: "VICTIMFEED_ADMIN_TOKEN"},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// UpstreamTimeout returns the upstream HTTP timeout as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	if c.Upstream.TimeoutS <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Upstream.TimeoutS) * time.Second
}

// SchedulerInterval returns the shared polling interval.
func (c *Config) SchedulerInterval() time.Duration {
	if c.Scheduler.IntervalHours <= 0 {
		return 4 * time.Hour
	}
	return time.Duration(c.Scheduler.IntervalHours) * time.Hour
}

// SMTPPassword reads the SMTP password from the configured env var.
func (c *Config) SMTPPassword() string {
	if c.SMTP.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.SMTP.PasswordEnv)
}

// AdminToken reads the admin token from the configured env var.
func (c *Config) AdminToken() string {
	if c.Admin.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Admin.TokenEnv)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
