package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	cxcontext "github.com/codebuddy/buddy/internal/context"
)

// ConfigFileName is the name of the buddy configuration file
const ConfigFileName = "config.yaml"

// ConfigDirName is the name of the buddy configuration directory
const ConfigDirName = ".buddy"

// Config holds all buddy configuration
type Config struct {
	SmartContext SmartContextConfig `yaml:"smart_context"`
	Gemini       GeminiConfig       `yaml:"gemini"`
	Relay        RelayConfig        `yaml:"relay"`
	Session      SessionConfig      `yaml:"session"`
	Redis        RedisConfig        `yaml:"redis"`
}

// SmartContextConfig holds configuration for context selection
type SmartContextConfig struct {
	// Enabled is a pointer so an explicit false in YAML survives the merge
	Enabled          *bool          `yaml:"enabled,omitempty" env:"SMART_CONTEXT_ENABLED"`
	MaxContextSize   int            `yaml:"max_context_size" env:"MAX_CONTEXT_SIZE"`
	MaxFiles         int            `yaml:"max_files" env:"SMART_CONTEXT_MAX_FILES"`
	BaseSizes        map[string]int `yaml:"base_sizes"`
	SessionLogTail   int            `yaml:"session_log_tail"`
	ExcerptThreshold int            `yaml:"excerpt_threshold"`
	ExcerptMaxScore  float64        `yaml:"excerpt_max_score"`
	ExcerptRadius    int            `yaml:"excerpt_radius"`
}

// IsEnabled reports whether smart context is switched on.
func (c SmartContextConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// GeminiConfig holds configuration for the LLM backend
type GeminiConfig struct {
	APIKey  string        `yaml:"api_key,omitempty" env:"GEMINI_API_KEY"`
	Model   string        `yaml:"model" env:"GEMINI_MODEL"`
	Timeout time.Duration `yaml:"timeout" env:"GEMINI_TIMEOUT"`
}

// RelayConfig holds configuration for the file mailbox shared by the chat
// client and the agent
type RelayConfig struct {
	SessionsDir       string        `yaml:"sessions_dir" env:"SESSIONS_DIR"`
	PollingInterval   float64       `yaml:"polling_interval" env:"POLLING_INTERVAL"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	MaxReadBytes      int           `yaml:"max_read_bytes"`

	// MonitorInterval is how often the agent scans the session log for errors
	MonitorInterval time.Duration `yaml:"monitor_interval"`
	MaxSuggestions  int           `yaml:"max_suggestions"`
}

// Polling returns the polling interval as a duration.
func (c RelayConfig) Polling() time.Duration {
	return time.Duration(c.PollingInterval * float64(time.Second))
}

// SessionConfig holds configuration for conversation persistence
type SessionConfig struct {
	Database         string `yaml:"database"`
	HistoryExchanges int    `yaml:"history_exchanges"`
}

// RedisConfig holds configuration for the optional response cache
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"BUDDY_REDIS_ENABLED"`
	Addr     string `yaml:"addr" env:"BUDDY_REDIS_ADDR"`
	Password string `yaml:"password,omitempty" env:"BUDDY_REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	TTLHours int    `yaml:"ttl_hours"`
}

// ErrConfigNotFound is returned when no config file can be found
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when config validation fails
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from .buddy/config.yaml, falling back to defaults.
// It searches for the config directory starting from workDir and walking up
// the directory tree. Environment variables override file values.
func Load(workDir string) (*Config, error) {
	configDir, err := FindConfigDir(workDir)
	if err != nil {
		cfg := DefaultConfig()
		if err := finish(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	return LoadFromPath(filepath.Join(configDir, ConfigFileName))
}

// LoadFromPath reads config from a specific path.
// Merges loaded config with defaults, applies environment overrides and
// validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			if err := finish(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	merged := Merge(loaded, DefaultConfig())
	if err := finish(merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// finish applies environment overrides and validates.
func finish(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("%w: environment: %v", ErrInvalidConfig, err)
	}
	return Validate(cfg)
}

// FindConfigDir locates the .buddy directory by walking up from startDir.
// Returns the path to the .buddy directory if found.
func FindConfigDir(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	currentDir := absDir
	for {
		configDir := filepath.Join(currentDir, ConfigDirName)
		info, err := os.Stat(configDir)
		if err == nil && info.IsDir() {
			return configDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", ErrConfigNotFound
		}
		currentDir = parentDir
	}
}

// FindProjectRoot returns the directory holding .buddy, or workDir itself
// when there is none.
func FindProjectRoot(workDir string) (string, error) {
	if configDir, err := FindConfigDir(workDir); err == nil {
		return filepath.Dir(configDir), nil
	}
	return filepath.Abs(workDir)
}

// EnsureConfigDir creates the .buddy directory if it doesn't exist.
// Returns the path to the .buddy directory.
func EnsureConfigDir(workDir string) (string, error) {
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	configDir := filepath.Join(absDir, ConfigDirName)

	info, err := os.Stat(configDir)
	if err == nil {
		if info.IsDir() {
			return configDir, nil
		}
		return "", fmt.Errorf("%s exists but is not a directory", configDir)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	return configDir, nil
}

// Validate checks that config values are valid.
// Returns an error if validation fails.
func Validate(cfg *Config) error {
	sc := cfg.SmartContext
	if sc.MaxContextSize <= 0 {
		return fmt.Errorf("%w: max_context_size must be positive, got %d",
			ErrInvalidConfig, sc.MaxContextSize)
	}

	if sc.MaxFiles <= 0 {
		return fmt.Errorf("%w: max_files must be positive, got %d",
			ErrInvalidConfig, sc.MaxFiles)
	}

	for name, size := range sc.BaseSizes {
		if _, err := cxcontext.ParseIntent(name); err != nil {
			return fmt.Errorf("%w: base_sizes: %v", ErrInvalidConfig, err)
		}
		if size <= 0 {
			return fmt.Errorf("%w: base_sizes[%s] must be positive, got %d",
				ErrInvalidConfig, name, size)
		}
	}

	if sc.ExcerptRadius < 0 {
		return fmt.Errorf("%w: excerpt_radius must be non-negative, got %d",
			ErrInvalidConfig, sc.ExcerptRadius)
	}

	if cfg.Relay.PollingInterval <= 0 {
		return fmt.Errorf("%w: polling_interval must be positive, got %f",
			ErrInvalidConfig, cfg.Relay.PollingInterval)
	}

	if cfg.Relay.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: heartbeat_interval must be positive, got %s",
			ErrInvalidConfig, cfg.Relay.HeartbeatInterval)
	}

	if cfg.Relay.MonitorInterval <= 0 {
		return fmt.Errorf("%w: monitor_interval must be positive, got %s",
			ErrInvalidConfig, cfg.Relay.MonitorInterval)
	}

	if cfg.Relay.MaxSuggestions <= 0 {
		return fmt.Errorf("%w: max_suggestions must be positive, got %d",
			ErrInvalidConfig, cfg.Relay.MaxSuggestions)
	}

	if cfg.Session.HistoryExchanges < 0 {
		return fmt.Errorf("%w: history_exchanges must be non-negative, got %d",
			ErrInvalidConfig, cfg.Session.HistoryExchanges)
	}

	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required when redis is enabled", ErrInvalidConfig)
	}

	return nil
}

// BuilderOptions converts the smart context section into context builder options.
func (c *Config) BuilderOptions() cxcontext.Options {
	sc := c.SmartContext
	opts := cxcontext.DefaultOptions()
	opts.Enabled = sc.IsEnabled()
	opts.MaxContextSize = sc.MaxContextSize
	opts.MaxFiles = sc.MaxFiles
	opts.SessionLogTail = sc.SessionLogTail
	opts.ExcerptThreshold = sc.ExcerptThreshold
	opts.ExcerptMaxScore = sc.ExcerptMaxScore
	opts.ExcerptRadius = sc.ExcerptRadius

	if len(sc.BaseSizes) > 0 {
		sizes := cxcontext.DefaultBaseSizes()
		for name, size := range sc.BaseSizes {
			if intent, err := cxcontext.ParseIntent(name); err == nil {
				sizes[intent] = size
			}
		}
		opts.BaseSizes = sizes
	}
	return opts
}

// SessionsPath resolves the sessions directory against the project root.
func (c *Config) SessionsPath(projectRoot string) string {
	if filepath.IsAbs(c.Relay.SessionsDir) {
		return c.Relay.SessionsDir
	}
	return filepath.Join(projectRoot, c.Relay.SessionsDir)
}

// DatabasePath resolves the session database path against the sessions directory.
func (c *Config) DatabasePath(projectRoot string) string {
	if filepath.IsAbs(c.Session.Database) {
		return c.Session.Database
	}
	return filepath.Join(c.SessionsPath(projectRoot), c.Session.Database)
}

// SaveDefault writes the default configuration to .buddy/config.yaml in workDir.
// Creates the .buddy directory if it doesn't exist.
func SaveDefault(workDir string) (string, error) {
	configDir, err := EnsureConfigDir(workDir)
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(configDir, ConfigFileName)

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	header := "# buddy configuration\n# Environment variables (GEMINI_API_KEY, MAX_CONTEXT_SIZE, ...) override these values.\n\n"
	data = append([]byte(header), data...)

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}

	return configPath, nil
}
