package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Timezone string `yaml:"timezone"`

	Booking struct {
		DefaultMinutes int   `yaml:"default_minutes"`
		DoneFee        int64 `yaml:"done_fee"`
		MaxNameLength  int   `yaml:"max_name_length"`
		ListLimitCap   int   `yaml:"list_limit_cap"`
	} `yaml:"booking"`

	Notify struct {
		WebhookURL   string `yaml:"webhook_url"`
		WebhookToken string `yaml:"webhook_token"`
		SMTP         struct {
			Host string `yaml:"host"`
			Port int    `yaml:"port"`
			User string `yaml:"user"`
			Pass string `yaml:"pass"`
			To   string `yaml:"to"`
		} `yaml:"smtp"`
	} `yaml:"notify"`

	Monitoring struct {
		HealthCheckEnabled bool `yaml:"health_check_enabled"`
		PrometheusEnabled  bool `yaml:"prometheus_enabled"`
		PrometheusPort     int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/yoyaku.db"
	}
	if cfg.Booking.DefaultMinutes <= 0 {
		cfg.Booking.DefaultMinutes = 30
	}
	if cfg.Booking.DoneFee <= 0 {
		cfg.Booking.DoneFee = 1000
	}
	if cfg.Booking.MaxNameLength <= 0 {
		cfg.Booking.MaxNameLength = 100
	}
	if cfg.Booking.ListLimitCap <= 0 {
		cfg.Booking.ListLimitCap = 500
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}
