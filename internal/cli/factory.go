package cli

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/adapters/file"
	"github.com/aretw0/canopy/pkg/adapters/redis"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/middleware"
	"github.com/aretw0/canopy/pkg/observability"
	persistence "github.com/aretw0/canopy/pkg/persistence/middleware"
	"github.com/aretw0/canopy/pkg/ports"
)

// Environment variables read by the CLI in addition to the config file ones.
const (
	EnvOrigin        = "CANOPY_ORIGIN"
	EnvEncryptionKey = "CANOPY_ENCRYPTION_KEY"
	EnvPIIKeys       = "CANOPY_PII_KEYS"
)

// Options collects the global flags shared by every command.
type Options struct {
	Origin     string
	ConfigPath string
	Dir        string
	LogLevel   string
	LogFormat  string
	Debug      bool
}

// Stores bundles the snapshot persistence picked from the configuration.
type Stores struct {
	Store  ports.SnapshotStore
	Locker ports.DistributedLocker
	// Close releases the backend connection, if any.
	Close func() error
}

// NewLogger builds the application logger. Debug forces the debug level.
func NewLogger(opts Options) (*slog.Logger, error) {
	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		level = slog.LevelDebug
	}
	format, err := logging.ParseFormat(opts.LogFormat)
	if err != nil {
		return nil, err
	}
	return logging.NewWithWriter(os.Stderr, level, format), nil
}

// LoadConfig reads the config file and applies environment overrides.
func LoadConfig(opts Options) (*middleware.Config, error) {
	cfg, err := middleware.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	return middleware.ApplyEnv(cfg), nil
}

// ResolveOrigin prefers the flag, then CANOPY_ORIGIN.
func ResolveOrigin(opts Options) (string, error) {
	origin := opts.Origin
	if origin == "" {
		origin = os.Getenv(EnvOrigin)
	}
	if origin == "" {
		return "", fmt.Errorf("origin is required (--origin or %s)", EnvOrigin)
	}
	return strings.TrimRight(origin, "/"), nil
}

// OpenStores picks Redis when the config names an address and the file store
// under dir otherwise, then wraps the store with PII masking and encryption
// when their environment variables are set.
func OpenStores(cfg *middleware.Config, dir string) (*Stores, error) {
	stores := &Stores{Close: func() error { return nil }}

	if cfg.Redis.Addr != "" {
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = redis.DefaultPrefix
		}
		opts := []redis.Option{redis.WithPrefix(prefix)}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
		}
		rs := redis.New(cfg.Redis.Addr, opts...)
		stores.Store = rs
		stores.Locker = redis.NewLocker(rs.Client(), prefix)
		stores.Close = rs.Client().Close
	} else {
		stores.Store = file.New(dir)
	}

	var mws []persistence.Middleware
	if keys := os.Getenv(EnvPIIKeys); keys != "" {
		patterns := strings.Split(keys, ",")
		for _, p := range patterns {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("invalid %s pattern %q: %w", EnvPIIKeys, p, err)
			}
		}
		mws = append(mws, persistence.NewPIIMiddleware(patterns))
	}
	if raw := os.Getenv(EnvEncryptionKey); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvEncryptionKey, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("invalid %s: want 32 bytes, got %d", EnvEncryptionKey, len(key))
		}
		mws = append(mws, persistence.NewEncryptionMiddleware(persistence.EncryptionConfig{ActiveKey: key}))
	}
	stores.Store = persistence.Chain(stores.Store, mws...)
	return stores, nil
}

// ClientDeps are the collaborators NewClient wires into the client.
type ClientDeps struct {
	Logger   *slog.Logger
	Config   *middleware.Config
	Stores   *Stores
	Registry prometheus.Registerer
	LockTTL  time.Duration
}

// NewClient builds a client for origin with logging hooks and, when a
// registry is given, Prometheus metrics.
func NewClient(origin string, deps ClientDeps) (*canopy.Client, error) {
	hooks := []domain.LifecycleHooks{observability.LoggingHooks(deps.Logger)}
	if deps.Registry != nil {
		metrics, err := observability.NewMetrics(deps.Registry)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		hooks = append(hooks, metrics.Hooks())
	}

	opts := []canopy.Option{
		canopy.WithOrigin(origin),
		canopy.WithLogger(deps.Logger),
		canopy.WithLifecycleHooks(observability.Combine(hooks...)),
	}
	if deps.Config != nil {
		opts = append(opts, canopy.WithBasePath(deps.Config.BasePath, deps.Config.RSCBase))
	}
	if deps.Stores != nil {
		opts = append(opts, canopy.WithStore(deps.Stores.Store))
		if deps.Stores.Locker != nil {
			opts = append(opts, canopy.WithLocker(deps.Stores.Locker, deps.LockTTL))
		}
	}
	return canopy.New(opts...), nil
}
