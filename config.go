package multicache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/multicache/codec"
	pr "github.com/unkn0wn-root/multicache/provider"
	"github.com/unkn0wn-root/multicache/provider/bigcache"
	"github.com/unkn0wn-root/multicache/provider/docstore"
	"github.com/unkn0wn-root/multicache/provider/memory"
	"github.com/unkn0wn-root/multicache/provider/redis"
	"github.com/unkn0wn-root/multicache/provider/ristretto"
)

// DefaultTimeout applies when no timeout is configured.
const DefaultTimeout = 1200 * time.Second

// Config describes an orchestrator and its tiers. Only Providers is required.
type Config struct {
	Application string `yaml:"application"`
	// Timeout in seconds shared by tiers without an override; 0 => 1200.
	Timeout   int    `yaml:"timeout" validate:"gte=0"`
	Enable    *bool  `yaml:"enable"` // nil => enabled
	Providers string `yaml:"providers" validate:"required"`

	Memory    memory.Config    `yaml:"memory"`
	Ristretto ristretto.Config `yaml:"ristretto"`
	BigCache  bigcache.Config  `yaml:"bigcache"`
	Redis     redis.Config     `yaml:"redis"`
	DocStore  docstore.Config  `yaml:"docstore"`

	Logger Logger           `yaml:"-" validate:"-"` // if nil, NopLogger is used
	Codec  codec.Serializer `yaml:"-" validate:"-"` // nil => codec.Default()
	Hooks  Hooks            `yaml:"-" validate:"-"` // nil => NopHooks
	Clock  func() time.Time `yaml:"-" validate:"-"` // nil => time.Now
}

func (c *Config) enabled() bool { return c.Enable == nil || *c.Enable }

func (c *Config) timeout() time.Duration {
	if c.Timeout == 0 {
		return DefaultTimeout
	}
	return time.Duration(c.Timeout) * time.Second
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report yaml keys, not Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the static shape of c. Tier-specific requirements (redis
// host, env) are checked when the tier is built.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return pr.NewConfigError(key, "must be set")
	default:
		return pr.NewConfigError(key, "failed %s=%s validation, got %v", fe.Tag(), fe.Param(), fe.Value())
	}
}

// New validates cfg, builds its tiers and returns the orchestrator.
func New(ctx context.Context, cfg Config) (*Multi, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	specs, err := ParseProviders(cfg.Providers, cfg.timeout())
	if err != nil {
		return nil, err
	}
	tiers, err := build(ctx, &cfg, specs)
	if err != nil {
		return nil, err
	}
	m, err := NewFromTiers(tiers, Options{
		Name:     cfg.Application,
		Disabled: !cfg.enabled(),
		Logger:   cfg.Logger,
		Hooks:    cfg.Hooks,
	})
	if err != nil {
		return nil, err
	}
	for _, t := range tiers {
		m.log.Info("tier ready", Fields{"tier": t.Name, "kind": t.Kind, "budget": t.Budget.String()})
	}
	return m, nil
}

// ParseSettings reads flat, case-insensitive key/value settings:
// application, timeout, enable, providers, host, port, password, db, env,
// path. host/port/password/db configure the redis tier; env namespaces both
// redis and docstore; path is the docstore directory. Unknown keys are
// ignored.
func ParseSettings(settings map[string]string) (Config, error) {
	var cfg Config
	for k, v := range settings {
		v = strings.TrimSpace(v)
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "application":
			cfg.Application = v
		case "timeout":
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return Config{}, pr.NewConfigError("timeout", "invalid timeout value %q", v)
			}
			cfg.Timeout = n
		case "enable":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return Config{}, pr.NewConfigError("enable", "invalid boolean %q", v)
			}
			cfg.Enable = &b
		case "providers":
			cfg.Providers = v
		case "host":
			cfg.Redis.Host = v
		case "port":
			n, err := strconv.Atoi(v)
			if err != nil {
				return Config{}, pr.NewConfigError("port", "invalid port %q", v)
			}
			cfg.Redis.Port = n
		case "password":
			cfg.Redis.Password = v
		case "db":
			n, err := strconv.Atoi(v)
			if err != nil {
				return Config{}, pr.NewConfigError("db", "invalid db %q", v)
			}
			cfg.Redis.DB = n
		case "env":
			cfg.Redis.Env = v
			cfg.DocStore.Env = v
		case "path":
			cfg.DocStore.Path = v
		}
	}
	return cfg, nil
}

// LoadSettingsFile reads a dotenv-style file (KEY=value lines) and parses it
// with ParseSettings.
func LoadSettingsFile(path string) (Config, error) {
	settings, err := godotenv.Read(path)
	if err != nil {
		return Config{}, fmt.Errorf("multicache: read settings %s: %w", path, err)
	}
	return ParseSettings(settings)
}

// LoadYAML reads a YAML document shaped like Config.
func LoadYAML(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("multicache: read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("multicache: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
