package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Project-Sylos/Archivist/internal/types"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "ARCHIVIST_"

// DefaultConfig returns a configuration that serves the local embedded repository
func DefaultConfig() types.Config {
	return types.Config{
		API: types.APIConfig{
			Host:        "localhost",
			Port:        8086,
			MaxUploadMB: 32,
		},
		Repository: types.RepositoryConfig{
			Binding:         types.BindingLocal,
			ConnectionName:  "default",
			FileDescription: "Uploaded by Archivist",
			Compression:     true,
			TimeoutSeconds:  30,
			DBPath:          "./archivist.db",
		},
		Notification: types.NotificationConfig{
			TimeoutSeconds: 15,
		},
		Logging: types.LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file.
// Environment overrides are applied after the file is parsed.
func LoadFromFile(configPath string) (*types.Config, error) {
	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Ensure DB path is absolute
	if cfg.Repository.Binding == types.BindingLocal && cfg.Repository.DBPath != "" &&
		cfg.Repository.DBPath != ":memory:" && !filepath.IsAbs(cfg.Repository.DBPath) {
		absPath, err := filepath.Abs(cfg.Repository.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
		cfg.Repository.DBPath = absPath
	}

	return &cfg, nil
}

// ApplyEnv overrides settings from ARCHIVIST_* variables. lookup is
// os.LookupEnv in production.
func ApplyEnv(cfg *types.Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	str("REPOSITORY_BINDING", &cfg.Repository.Binding)
	str("REPOSITORY_URL", &cfg.Repository.URL)
	str("REPOSITORY_USERNAME", &cfg.Repository.Username)
	str("REPOSITORY_PASSWORD", &cfg.Repository.Password)
	str("REPOSITORY_CONNECTION_NAME", &cfg.Repository.ConnectionName)
	str("REPOSITORY_DB_PATH", &cfg.Repository.DBPath)
	str("NOTIFICATION_RECIPIENT", &cfg.Notification.Recipient)
	str("NOTIFICATION_SENDER", &cfg.Notification.Sender)
	str("MAIL_UTILITY_URL", &cfg.Notification.MailUtilityURL)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("API_HOST", &cfg.API.Host)

	if v, ok := lookup(EnvPrefix + "API_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sAPI_PORT must be an integer, got %q", EnvPrefix, v)
		}
		cfg.API.Port = port
	}
	return nil
}

// Validate checks that the configuration parameters are valid
func Validate(cfg *types.Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	// Validate API config
	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("API port must be between 1 and 65535, got %d", cfg.API.Port)
	}
	if cfg.API.MaxUploadMB < 0 {
		return fmt.Errorf("API max_upload_mb must be non-negative, got %d", cfg.API.MaxUploadMB)
	}

	// Validate repository config
	repo := cfg.Repository
	if repo.ConnectionName == "" {
		return fmt.Errorf("repository connection_name is required")
	}
	if repo.TimeoutSeconds < 0 {
		return fmt.Errorf("repository timeout_seconds must be non-negative, got %d", repo.TimeoutSeconds)
	}
	switch repo.Binding {
	case types.BindingBrowser:
		if repo.URL == "" {
			return fmt.Errorf("repository url is required for the %s binding", repo.Binding)
		}
		if u, err := url.Parse(repo.URL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("repository url %q is not an absolute URL", repo.URL)
		}
	case types.BindingLocal:
		if repo.DBPath == "" {
			return fmt.Errorf("repository db_path is required for the %s binding", repo.Binding)
		}
	default:
		return fmt.Errorf("unknown repository binding %q (want %s or %s)", repo.Binding, types.BindingBrowser, types.BindingLocal)
	}

	// Validate notification config
	if cfg.Notification.MailUtilityURL != "" {
		if u, err := url.Parse(cfg.Notification.MailUtilityURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("notification mail_utility_url %q is not an absolute URL", cfg.Notification.MailUtilityURL)
		}
	}
	if cfg.Notification.NotifyOnUpload && cfg.Notification.MailUtilityURL == "" {
		return fmt.Errorf("notification notify_on_upload requires mail_utility_url")
	}

	switch cfg.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging format must be json or console, got %q", cfg.Logging.Format)
	}

	return nil
}

// SaveToFile saves configuration to a JSON or YAML file, chosen by extension
func SaveToFile(cfg *types.Config, configPath string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
