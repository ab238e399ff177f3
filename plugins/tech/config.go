package tech

import (
	"fmt"
	"time"

	"github.com/joshp123/gohome-tech/internal/config"
)

const (
	defaultBaseURL = config.DefaultTechBaseURL
	provider       = "tech"
)

// Config defines runtime configuration for the Tech client.
type Config struct {
	BaseURL              string
	Username             string
	Password             string
	ModuleUDIDs          []string
	PollInterval         time.Duration
	MaxRequestsPerMinute int
	SessionDir           string
}

// ConfigFromFile resolves the YAML section, reading credentials from their secret files.
func ConfigFromFile(cfg *config.TechConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("tech config is required")
	}

	username, err := config.ReadSecretFile(cfg.UsernameFile)
	if err != nil {
		return Config{}, fmt.Errorf("read tech username: %w", err)
	}
	password, err := config.ReadSecretFile(cfg.PasswordFile)
	if err != nil {
		return Config{}, fmt.Errorf("read tech password: %w", err)
	}
	if username == "" || password == "" {
		return Config{}, fmt.Errorf("tech username and password must not be empty")
	}

	return Config{
		BaseURL:              cfg.BaseURL,
		Username:             username,
		Password:             password,
		ModuleUDIDs:          cfg.ModuleUDIDs,
		PollInterval:         cfg.PollInterval,
		MaxRequestsPerMinute: cfg.MaxRequestsPerMinute,
		SessionDir:           cfg.SessionDir,
	}, nil
}
