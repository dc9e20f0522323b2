package kirana

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	LLM           VendorConfig        `mapstructure:"llm"`
	Store         VendorConfig        `mapstructure:"store"`
	Orchestrator  OrchestratorConfig  `mapstructure:"orchestrator"`
	Session       SessionConfig       `mapstructure:"session"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	Transports    TransportsConfig    `mapstructure:"transports"`
	Dispatcher    DispatcherConfig    `mapstructure:"dispatcher"`
	Resilience    ResilienceConfig    `mapstructure:"resilience"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type TransportsConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type OrchestratorConfig struct {
	MaxRounds    int     `mapstructure:"max_rounds"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	Temperature  float64 `mapstructure:"temperature"`
	SystemPrompt string  `mapstructure:"system_prompt"`
}

type SessionConfig struct {
	MaxHistory int `mapstructure:"max_history"`
}

type IngestConfig struct {
	DocsDir      string             `mapstructure:"docs_dir"`
	ChunkSize    int                `mapstructure:"chunk_size"`
	ChunkOverlap int                `mapstructure:"chunk_overlap"`
	ClearOnStart bool               `mapstructure:"clear_on_start"`
	Watch        bool               `mapstructure:"watch"`
	Source       IngestSourceConfig `mapstructure:"source"`
}

type IngestSourceConfig struct {
	Type      string `mapstructure:"type"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type DispatcherConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	TimeoutMS   int `mapstructure:"timeout_ms"`
}

type ResilienceConfig struct {
	Retry   RetryConfig   `mapstructure:"retry"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type RetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MaxAttempts int  `mapstructure:"max_attempts"`
	BaseDelayMS int  `mapstructure:"base_delay_ms"`
	MaxDelayMS  int  `mapstructure:"max_delay_ms"`
}

type BreakerConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Threshold  int  `mapstructure:"threshold"`
	CooldownMS int  `mapstructure:"cooldown_ms"`
}

type ObservabilityConfig struct {
	ArtifactsDir      string  `mapstructure:"artifacts_dir"`
	RetentionDays     int     `mapstructure:"retention_days"`
	BufferSize        int     `mapstructure:"buffer_size"`
	SampleRate        float64 `mapstructure:"sample_rate"`
	CostInputPerMTok  float64 `mapstructure:"cost_input_per_mtok"`
	CostOutputPerMTok float64 `mapstructure:"cost_output_per_mtok"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("orchestrator.max_rounds", 2)
	v.SetDefault("orchestrator.max_tokens", 800)
	v.SetDefault("orchestrator.temperature", 0.0)
	v.SetDefault("session.max_history", 2)
	v.SetDefault("ingest.docs_dir", "")
	v.SetDefault("ingest.chunk_size", 800)
	v.SetDefault("ingest.chunk_overlap", 100)
	v.SetDefault("ingest.clear_on_start", false)
	v.SetDefault("ingest.watch", false)
	v.SetDefault("ingest.source.type", "local")
	v.SetDefault("dispatcher.concurrency", 0)
	v.SetDefault("dispatcher.timeout_ms", 6000)
	v.SetDefault("resilience.retry.enabled", false)
	v.SetDefault("resilience.retry.max_attempts", 3)
	v.SetDefault("resilience.retry.base_delay_ms", 200)
	v.SetDefault("resilience.retry.max_delay_ms", 2000)
	v.SetDefault("resilience.breaker.enabled", false)
	v.SetDefault("resilience.breaker.threshold", 3)
	v.SetDefault("resilience.breaker.cooldown_ms", 10000)
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.retention_days", 0)
	v.SetDefault("observability.buffer_size", 2048)
	v.SetDefault("observability.sample_rate", 1.0)
	v.SetDefault("observability.cost_input_per_mtok", 0.0)
	v.SetDefault("observability.cost_output_per_mtok", 0.0)
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.Provider) == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if strings.TrimSpace(c.Store.Provider) == "" {
		return fmt.Errorf("store.provider is required")
	}
	if strings.TrimSpace(c.Transports.Provider) == "" {
		return fmt.Errorf("transports.provider is required")
	}
	if c.Orchestrator.MaxRounds < 1 {
		return fmt.Errorf("orchestrator.max_rounds must be at least 1")
	}
	if c.Orchestrator.MaxTokens < 1 {
		return fmt.Errorf("orchestrator.max_tokens must be at least 1")
	}
	switch strings.ToLower(strings.TrimSpace(c.Ingest.Source.Type)) {
	case "", "local", "s3":
	default:
		return fmt.Errorf("ingest.source.type must be local or s3")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.LLM.Settings = expandSettings(cfg.LLM.Settings)
	cfg.Store.Settings = expandSettings(cfg.Store.Settings)
	cfg.Transports.Settings = expandSettings(cfg.Transports.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
	}
}
