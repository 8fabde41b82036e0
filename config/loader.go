package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the name of the project-level config file.
	ProjectConfigFile = "curator.yaml"
	// UserConfigDir is the directory for user-level config.
	UserConfigDir = ".config/curator"
	// UserConfigFile is the name of the user-level config file.
	UserConfigFile = "config.yaml"
	// EnvConfigPath overrides the config file location entirely.
	EnvConfigPath = "CURATOR_CONFIG"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Defaults
// 2. User config (~/.config/curator/config.yaml)
// 3. Project config (curator.yaml in the working directory or parents)
// 4. CURATOR_CONFIG, which replaces the project config when set
// 5. Environment overrides for connection endpoints
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfig, err := LoadFromFile(userConfigPath); err == nil {
		l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		config.Merge(userConfig)
	} else if !os.IsNotExist(err) {
		l.logger.Warn("Failed to load user config",
			slog.String("path", userConfigPath),
			slog.String("error", err.Error()))
	}

	projectConfigPath := os.Getenv(EnvConfigPath)
	if projectConfigPath == "" {
		projectConfigPath = l.findProjectConfig()
	}
	if projectConfigPath != "" {
		if projectConfig, err := LoadFromFile(projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("Failed to load project config",
				slog.String("path", projectConfigPath),
				slog.String("error", err.Error()))
		}
	}

	l.applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overlays connection settings from the environment.
func (l *Loader) applyEnv(config *Config) {
	if v := os.Getenv("TEMPORAL_ADDRESS"); v != "" {
		config.Temporal.HostPort = v
	}
	if v := os.Getenv("TEMPORAL_NAMESPACE"); v != "" {
		config.Temporal.Namespace = v
	}
	if v := os.Getenv("TEMPORAL_API_KEY"); v != "" {
		config.Temporal.APIKey = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		config.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		config.NATS.URL = v
	}
}

// userConfigPath returns the path to the user-level config file.
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig walks up from the working directory looking for
// curator.yaml.
func (l *Loader) findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
