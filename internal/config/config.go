package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SchemaVersion                = 1
	DefaultPath                  = "/etc/gohome/config.yaml"
	DefaultGRPCAddr              = "0.0.0.0:9000"
	DefaultHTTPAddr              = "0.0.0.0:8080"
	DefaultDashboardDir          = "/var/lib/gohome/dashboards"
	DefaultTechBaseURL           = "https://emodul.eu/api/v1/"
	DefaultTechSessionDir        = "/var/lib/gohome/sessions"
	DefaultTechPollInterval      = 30 * time.Second
	DefaultTechRequestsPerMinute = 60
	DefaultBlobPrefix            = "gohome/sessions"
	DefaultMQTTTopicPrefix       = "gohome/climate"
)

// Config is the root of the YAML configuration file.
type Config struct {
	SchemaVersion int         `yaml:"schema_version"`
	Core          *CoreConfig `yaml:"core"`
	Tech          *TechConfig `yaml:"tech"`
	Blob          *BlobConfig `yaml:"blob"`
	MQTT          *MQTTConfig `yaml:"mqtt"`
}

type CoreConfig struct {
	GRPCAddr     string `yaml:"grpc_addr"`
	HTTPAddr     string `yaml:"http_addr"`
	DashboardDir string `yaml:"dashboard_dir"`
}

// TechConfig configures the Tech Controllers (eModul) integration.
type TechConfig struct {
	BaseURL              string        `yaml:"base_url"`
	UsernameFile         string        `yaml:"username_file"`
	PasswordFile         string        `yaml:"password_file"`
	ModuleUDIDs          []string      `yaml:"module_udids"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute"`
	SessionDir           string        `yaml:"session_dir"`
}

// BlobConfig points at an S3-compatible bucket used to mirror session state.
type BlobConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	Region        string `yaml:"region"`
	AccessKeyFile string `yaml:"access_key_file"`
	SecretKeyFile string `yaml:"secret_key_file"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Load parses the YAML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Core == nil {
		cfg.Core = &CoreConfig{}
	}
	if cfg.Core.GRPCAddr == "" {
		cfg.Core.GRPCAddr = DefaultGRPCAddr
	}
	if cfg.Core.HTTPAddr == "" {
		cfg.Core.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Core.DashboardDir == "" {
		cfg.Core.DashboardDir = DefaultDashboardDir
	}

	if cfg.Tech != nil {
		if cfg.Tech.BaseURL == "" {
			cfg.Tech.BaseURL = DefaultTechBaseURL
		}
		if cfg.Tech.PollInterval == 0 {
			cfg.Tech.PollInterval = DefaultTechPollInterval
		}
		if cfg.Tech.MaxRequestsPerMinute == 0 {
			cfg.Tech.MaxRequestsPerMinute = DefaultTechRequestsPerMinute
		}
		if cfg.Tech.SessionDir == "" {
			cfg.Tech.SessionDir = DefaultTechSessionDir
		}
	}

	if cfg.Blob != nil && cfg.Blob.Prefix == "" {
		cfg.Blob.Prefix = DefaultBlobPrefix
	}
	if cfg.MQTT != nil && cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultMQTTTopicPrefix
	}
}

// Validate enforces required invariants beyond YAML typing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema_version must be %d", SchemaVersion)
	}

	if cfg.Core == nil {
		return fmt.Errorf("core config is required")
	}
	if cfg.Core.GRPCAddr == "" {
		return fmt.Errorf("core.grpc_addr is required")
	}
	if cfg.Core.HTTPAddr == "" {
		return fmt.Errorf("core.http_addr is required")
	}

	if cfg.Tech != nil {
		if cfg.Tech.UsernameFile == "" {
			return fmt.Errorf("tech.username_file is required")
		}
		if cfg.Tech.PasswordFile == "" {
			return fmt.Errorf("tech.password_file is required")
		}
		if cfg.Tech.PollInterval < time.Second {
			return fmt.Errorf("tech.poll_interval must be at least 1s")
		}
		if cfg.Tech.MaxRequestsPerMinute < 0 {
			return fmt.Errorf("tech.max_requests_per_minute must not be negative")
		}
		for _, udid := range cfg.Tech.ModuleUDIDs {
			if strings.TrimSpace(udid) == "" {
				return fmt.Errorf("tech.module_udids must not contain empty entries")
			}
		}
	}

	if cfg.Blob != nil {
		if cfg.Blob.Endpoint == "" {
			return fmt.Errorf("blob.endpoint is required")
		}
		if cfg.Blob.Bucket == "" {
			return fmt.Errorf("blob.bucket is required")
		}
		if cfg.Blob.AccessKeyFile == "" {
			return fmt.Errorf("blob.access_key_file is required")
		}
		if cfg.Blob.SecretKeyFile == "" {
			return fmt.Errorf("blob.secret_key_file is required")
		}
	}

	if cfg.MQTT != nil && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}

	return nil
}

// EnabledPlugins maps enabled plugin IDs based on config presence.
func EnabledPlugins(cfg *Config) map[string]bool {
	enabled := make(map[string]bool)
	if cfg == nil {
		return enabled
	}
	if cfg.Tech != nil {
		enabled["tech"] = true
	}
	return enabled
}

// ReadSecretFile returns the trimmed contents of a secret file.
func ReadSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
