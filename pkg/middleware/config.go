package middleware

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/canopy/pkg/domain"
)

// Environment variables that override file configuration.
const (
	EnvBasePath  = "CANOPY_BASE_PATH"
	EnvRSCBase   = "CANOPY_RSC_BASE"
	EnvRedisAddr = "CANOPY_REDIS_ADDR"
)

// Spec names one middleware of the chain and carries its options.
type Spec struct {
	Name    string         `yaml:"name" json:"name"`
	Options map[string]any `yaml:"options" json:"options"`
}

// RedisConfig configures snapshot persistence.
type RedisConfig struct {
	Addr   string        `yaml:"addr" json:"addr"`
	Prefix string        `yaml:"prefix" json:"prefix"`
	TTL    time.Duration `yaml:"ttl" json:"ttl"`
}

// Config represents the structure of canopy.yaml.
type Config struct {
	BasePath   string      `yaml:"base_path" json:"base_path"`
	RSCBase    string      `yaml:"rsc_base" json:"rsc_base"`
	Middleware []Spec      `yaml:"middleware" json:"middleware"`
	Redis      RedisConfig `yaml:"redis" json:"redis"`
}

// DefaultMiddleware is the chain used when the configuration names none.
func DefaultMiddleware() []Spec {
	return []Spec{{Name: NameRequestID}, {Name: NameLogger}}
}

// LoadConfig reads a YAML (or JSON) configuration file.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ResolveConfig(nil), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes configuration bytes and fills in defaults.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return ResolveConfig(&cfg), nil
}

// ResolveConfig returns a copy of cfg with defaults filled in.
func ResolveConfig(cfg *Config) *Config {
	out := Config{}
	if cfg != nil {
		out = *cfg
	}
	if out.BasePath == "" {
		out.BasePath = domain.DefaultBasePath
	}
	if out.RSCBase == "" {
		out.RSCBase = domain.DefaultRSCBase
	}
	if out.Middleware == nil {
		out.Middleware = DefaultMiddleware()
	}
	return &out
}

// ApplyEnv overrides cfg with the CANOPY_* environment variables that are set.
func ApplyEnv(cfg *Config) *Config {
	if v := os.Getenv(EnvBasePath); v != "" {
		cfg.BasePath = v
	}
	if v := os.Getenv(EnvRSCBase); v != "" {
		cfg.RSCBase = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Redis.Addr = v
	}
	return cfg
}

// DecodeOptions decodes a middleware options map into out.
// Strings are converted to durations and numbers where the target asks for them.
func DecodeOptions(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid middleware options: %w", err)
	}
	return nil
}
