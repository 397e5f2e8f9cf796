// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package config

import (
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ProviderConfig describes one configured upstream, OpenAI-compatible or
// Gemini-compatible, loaded from the optional providers.yaml override.
type ProviderConfig struct {
	Name       string   `mapstructure:"name" yaml:"name" validate:"required"`
	Kind       string   `mapstructure:"kind" yaml:"kind" validate:"required,oneof=openai gemini"`
	BaseURL    string   `mapstructure:"base_url" yaml:"base_url"`
	APIKey     string   `mapstructure:"api_key" yaml:"api_key"`
	Models     []string `mapstructure:"models" yaml:"models"`
	Weight     int      `mapstructure:"weight" yaml:"weight"`
	CostPerMTk float64  `mapstructure:"cost_per_million_tokens" yaml:"cost_per_million_tokens"`
}

// CircuitBreakerConfig tunes the per-provider breaker and concurrency
// limiter (spec.md §3).
type CircuitBreakerConfig struct {
	FailureThreshold   int           `mapstructure:"failure_threshold"`
	SuccessThreshold   int           `mapstructure:"success_threshold"`
	OpenDuration       time.Duration `mapstructure:"open_duration"`
	MaxConcurrency     int           `mapstructure:"max_concurrency"`
	AdmissionQueueSize int           `mapstructure:"admission_queue_size"`
}

// RouterConfig selects and tunes the routing strategy (spec.md §4).
type RouterConfig struct {
	Strategy      string        `mapstructure:"strategy" validate:"required,oneof=cost_optimized performance round_robin health_based weighted"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	HealthProbeMs int           `mapstructure:"health_probe_interval_ms"`
}

// RealtimeConfig tunes the WebSocket transcription multiplexer (spec.md §5).
type RealtimeConfig struct {
	OpenAIWSURL        string        `mapstructure:"openai_realtime_ws_url"`
	GeminiWSURL        string        `mapstructure:"gemini_live_ws_url"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	OutboundBufferSize int           `mapstructure:"outbound_buffer_size"`
	InboundBufferSize  int           `mapstructure:"inbound_buffer_size"`
	CredentialTTL      time.Duration `mapstructure:"credential_ttl"`
}

// RedisConfig configures the optional selection/response cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig bounds per-client request volume (spec.md §6).
type RateLimitConfig struct {
	WindowMs    int `mapstructure:"window_ms"`
	MaxRequests int `mapstructure:"max_requests"`
}

// CORSConfig controls the gin-contrib/cors middleware.
type CORSConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Origins []string `mapstructure:"origins"`
}

// AppConfig is the gateway's full configuration surface, loaded through
// viper the same way the integration API loads AppConfig: env-first, with
// defaults, validated with go-playground/validator. Field names mirror
// the recognized environment variables of spec.md §6.
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"gateway_port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogJSON  bool   `mapstructure:"log_json"`

	JWTSecret string `mapstructure:"jwt_secret"`

	OpenAIAPIKey       string `mapstructure:"openai_api_key"`
	GeminiAPIKey       string `mapstructure:"gemini_api_key"`
	APIKeyHeader       string `mapstructure:"api_key_header" validate:"required"`
	RequireAuthHeader  bool   `mapstructure:"require_auth_header"`
	ProvidersFile      string `mapstructure:"providers_file"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`

	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Router         RouterConfig         `mapstructure:"router"`
	Realtime       RealtimeConfig       `mapstructure:"realtime"`
	Redis          RedisConfig          `mapstructure:"redis"`

	Providers []ProviderConfig `mapstructure:"-"`
}

// InitConfig wires a viper instance over ENV_PATH (or ./.env) with "__" as
// the nested-key delimiter, matching the integration API's env convention,
// and binds the exact top-level env var names spec.md §6 recognizes.
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	if path := os.Getenv("ENV_PATH"); path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefaults(vConfig)
	bindSpecEnvVars(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("reading gateway config from env variables: %v", err)
	}

	return vConfig, nil
}

// bindSpecEnvVars maps the recognized environment variable names of
// spec.md §6 onto the "__"-delimited mapstructure keys AppConfig expects.
func bindSpecEnvVars(v *viper.Viper) {
	bindings := map[string]string{
		"openai_api_key":              "OPENAI_API_KEY",
		"gemini_api_key":              "GEMINI_API_KEY",
		"api_key_header":              "API_KEY_HEADER",
		"require_auth_header":         "REQUIRE_AUTH_HEADER",
		"rate_limit__window_ms":       "RATE_LIMIT_WINDOW_MS",
		"rate_limit__max_requests":    "RATE_LIMIT_MAX_REQUESTS",
		"cors__enabled":               "CORS_ENABLED",
		"cors__origins":               "CORS_ORIGINS",
		"realtime__openai_realtime_ws_url": "OPENAI_REALTIME_WS_URL",
		"realtime__gemini_live_ws_url":     "GEMINI_LIVE_WS_URL",
		"gateway_port":                "GATEWAY_PORT",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "llm-gateway")
	v.SetDefault("VERSION", "0.1.0")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("GATEWAY_PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_JSON", true)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("API_KEY_HEADER", "x-api-key")
	v.SetDefault("REQUIRE_AUTH_HEADER", false)
	v.SetDefault("PROVIDERS_FILE", "providers.yaml")

	v.SetDefault("RATE_LIMIT__WINDOW_MS", 60000)
	v.SetDefault("RATE_LIMIT__MAX_REQUESTS", 120)

	v.SetDefault("CORS__ENABLED", true)
	v.SetDefault("CORS__ORIGINS", []string{"*"})

	v.SetDefault("CIRCUIT_BREAKER__FAILURE_THRESHOLD", 5)
	v.SetDefault("CIRCUIT_BREAKER__SUCCESS_THRESHOLD", 2)
	v.SetDefault("CIRCUIT_BREAKER__OPEN_DURATION", 30*time.Second)
	v.SetDefault("CIRCUIT_BREAKER__MAX_CONCURRENCY", 64)
	v.SetDefault("CIRCUIT_BREAKER__ADMISSION_QUEUE_SIZE", 128)

	v.SetDefault("ROUTER__STRATEGY", "health_based")
	v.SetDefault("ROUTER__CACHE_TTL", 5*time.Second)
	v.SetDefault("ROUTER__HEALTH_PROBE_INTERVAL_MS", 15000)

	v.SetDefault("REALTIME__OPENAI_REALTIME_WS_URL", "wss://api.openai.com/v1/realtime")
	v.SetDefault("REALTIME__GEMINI_LIVE_WS_URL", "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent")
	v.SetDefault("REALTIME__IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("REALTIME__OUTBOUND_BUFFER_SIZE", 256)
	v.SetDefault("REALTIME__INBOUND_BUFFER_SIZE", 256)
	v.SetDefault("REALTIME__CREDENTIAL_TTL", 60*time.Second)

	v.SetDefault("REDIS__ADDR", "")
	v.SetDefault("REDIS__DB", 0)
}

// GetApplicationConfig unmarshals and validates the loaded viper config,
// then folds in providers.yaml when present.
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	providers, err := LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return nil, err
	}
	cfg.Providers = providers
	return &cfg, nil
}

// LoadProviders reads the optional YAML provider list. A missing file is
// not an error — the gateway falls back to the two bare OPENAI_API_KEY /
// GEMINI_API_KEY provider slots wired up by cmd/gateway.
func LoadProviders(path string) ([]ProviderConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var doc struct {
		Providers []ProviderConfig `yaml:"providers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Providers, nil
}
