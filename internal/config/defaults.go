package config

import (
	"time"

	cxcontext "github.com/codebuddy/buddy/internal/context"
)

// DefaultConfig returns configuration with sensible defaults.
// These defaults are used when no config file exists or when
// config file is missing specific fields.
func DefaultConfig() *Config {
	baseSizes := make(map[string]int)
	for intent, size := range cxcontext.DefaultBaseSizes() {
		baseSizes[intent.String()] = size
	}

	return &Config{
		SmartContext: SmartContextConfig{
			MaxContextSize:   cxcontext.DefaultMaxContextSize,
			MaxFiles:         cxcontext.DefaultMaxFiles,
			BaseSizes:        baseSizes,
			SessionLogTail:   cxcontext.DefaultSessionLogTail,
			ExcerptThreshold: cxcontext.DefaultExcerptThreshold,
			ExcerptMaxScore:  cxcontext.DefaultExcerptMaxScore,
			ExcerptRadius:    cxcontext.DefaultExcerptRadius,
		},
		Gemini: GeminiConfig{
			Model:   "gemini-2.5-flash",
			Timeout: 2 * time.Minute,
		},
		Relay: RelayConfig{
			SessionsDir:       ".buddy/sessions",
			PollingInterval:   1.0,
			HeartbeatInterval: 5 * time.Second,
			MaxReadBytes:      10 * 1024 * 1024,
			MonitorInterval:   500 * time.Millisecond,
			MaxSuggestions:    5,
		},
		Session: SessionConfig{
			Database:         "sessions.db",
			HistoryExchanges: 3,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			TTLHours: 24,
		},
	}
}

// Merge merges loaded config with defaults.
// Values from loaded config take precedence over defaults.
// Returns a new Config with merged values.
func Merge(loaded, defaults *Config) *Config {
	return &Config{
		SmartContext: mergeSmartContextConfig(loaded.SmartContext, defaults.SmartContext),
		Gemini:       mergeGeminiConfig(loaded.Gemini, defaults.Gemini),
		Relay:        mergeRelayConfig(loaded.Relay, defaults.Relay),
		Session:      mergeSessionConfig(loaded.Session, defaults.Session),
		Redis:        mergeRedisConfig(loaded.Redis, defaults.Redis),
	}
}

func mergeSmartContextConfig(loaded, defaults SmartContextConfig) SmartContextConfig {
	result := SmartContextConfig{
		Enabled:          loaded.Enabled,
		MaxContextSize:   pick(loaded.MaxContextSize, defaults.MaxContextSize),
		MaxFiles:         pick(loaded.MaxFiles, defaults.MaxFiles),
		SessionLogTail:   pick(loaded.SessionLogTail, defaults.SessionLogTail),
		ExcerptThreshold: pick(loaded.ExcerptThreshold, defaults.ExcerptThreshold),
		ExcerptMaxScore:  pick(loaded.ExcerptMaxScore, defaults.ExcerptMaxScore),
		ExcerptRadius:    pick(loaded.ExcerptRadius, defaults.ExcerptRadius),
	}
	if result.Enabled == nil {
		result.Enabled = defaults.Enabled
	}

	// Base sizes merge per intent so a file can override just one entry
	result.BaseSizes = make(map[string]int, len(defaults.BaseSizes))
	for name, size := range defaults.BaseSizes {
		result.BaseSizes[name] = size
	}
	for name, size := range loaded.BaseSizes {
		result.BaseSizes[name] = size
	}

	return result
}

func mergeGeminiConfig(loaded, defaults GeminiConfig) GeminiConfig {
	return GeminiConfig{
		APIKey:  pick(loaded.APIKey, defaults.APIKey),
		Model:   pick(loaded.Model, defaults.Model),
		Timeout: pick(loaded.Timeout, defaults.Timeout),
	}
}

func mergeRelayConfig(loaded, defaults RelayConfig) RelayConfig {
	return RelayConfig{
		SessionsDir:       pick(loaded.SessionsDir, defaults.SessionsDir),
		PollingInterval:   pick(loaded.PollingInterval, defaults.PollingInterval),
		HeartbeatInterval: pick(loaded.HeartbeatInterval, defaults.HeartbeatInterval),
		MaxReadBytes:      pick(loaded.MaxReadBytes, defaults.MaxReadBytes),
		MonitorInterval:   pick(loaded.MonitorInterval, defaults.MonitorInterval),
		MaxSuggestions:    pick(loaded.MaxSuggestions, defaults.MaxSuggestions),
	}
}

func mergeSessionConfig(loaded, defaults SessionConfig) SessionConfig {
	return SessionConfig{
		Database:         pick(loaded.Database, defaults.Database),
		HistoryExchanges: pick(loaded.HistoryExchanges, defaults.HistoryExchanges),
	}
}

func mergeRedisConfig(loaded, defaults RedisConfig) RedisConfig {
	return RedisConfig{
		// bool can't distinguish unset from false; the cache is opt-in so false is the default anyway
		Enabled:  loaded.Enabled,
		Addr:     pick(loaded.Addr, defaults.Addr),
		Password: pick(loaded.Password, defaults.Password),
		DB:       loaded.DB,
		TTLHours: pick(loaded.TTLHours, defaults.TTLHours),
	}
}

// pick returns loaded unless it is the zero value.
func pick[T comparable](loaded, fallback T) T {
	var zero T
	if loaded != zero {
		return loaded
	}
	return fallback
}
