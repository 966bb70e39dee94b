/*
Package config loads carbonboard settings from a YAML file, CARBONBOARD_* environment variables
and command line flags through viper, and builds the runtime components they describe.
*/
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/omegabytes/carbonboard/grid"
	"github.com/omegabytes/carbonboard/hardware"
	"github.com/omegabytes/carbonboard/impact"
	"github.com/omegabytes/carbonboard/ledger"
	"github.com/omegabytes/carbonboard/logger"
	"github.com/omegabytes/carbonboard/provider"
)

// EnvPrefix prefixes every environment variable read by carbonboard,
// e.g. storage.driver -> CARBONBOARD_STORAGE_DRIVER.
const EnvPrefix = "CARBONBOARD"

// Storage drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// ProviderNames lists the providers that can be configured, in display order.
var ProviderNames = []string{"openai", "groq", "gemini", "hf"}

// legacyEnv maps config keys to the environment variables used by earlier dashboard deployments.
var legacyEnv = map[string]string{
	"providers.openai.api-key": "OPENAI_API_KEY",
	"providers.gemini.api-key": "GEMINI_API_KEY",
	"providers.groq.api-key":   "GROQ_API_KEY",
	"providers.hf.api-key":     "HUGGINGFACE_API_KEY",
	"providers.openai.models":  "OPENAI_MODEL",
	"providers.gemini.models":  "GEMINI_MODEL",
	"providers.groq.models":    "GROQ_MODEL",
	"providers.hf.models":      "HUGGINGFACE_MODEL",
}

// Provider configures one inference provider.
type Provider struct {
	APIKey  string   `mapstructure:"api-key"`
	BaseURL string   `mapstructure:"base-url"`
	Models  []string `mapstructure:"models"`
}

// Providers configures every inference provider.
type Providers struct {
	Timeout time.Duration `mapstructure:"timeout"`
	OpenAI  Provider      `mapstructure:"openai"`
	Groq    Provider      `mapstructure:"groq"`
	Gemini  Provider      `mapstructure:"gemini"`
	HF      Provider      `mapstructure:"hf"`
}

// Storage selects where session ledgers are persisted.
type Storage struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
	DSN    string `mapstructure:"dsn"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `mapstructure:"addr"`
}

// Config is the complete carbonboard configuration.
type Config struct {
	LogLevel        string             `mapstructure:"log-level"`
	PUE             float64            `mapstructure:"pue"`
	LifetimeYears   float64            `mapstructure:"lifetime-years"`
	CarbonIntensity map[string]float64 `mapstructure:"carbon-intensity"`
	Fabrication     map[string]float64 `mapstructure:"fabrication"`
	// HardwareCatalog is the path of a JSON hardware catalog replacing the built-in one.
	HardwareCatalog string    `mapstructure:"hardware-catalog"`
	Providers       Providers `mapstructure:"providers"`
	Storage         Storage   `mapstructure:"storage"`
	Server          Server    `mapstructure:"server"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log-level", "info")
	v.SetDefault("pue", impact.DefaultPUE)
	v.SetDefault("lifetime-years", impact.DefaultLifetimeYears)

	intensity := make(map[string]any)
	builtin := grid.Builtin()
	for _, region := range builtin.Regions() {
		intensity[region] = builtin.Lookup(region)
	}
	v.SetDefault("carbon-intensity", intensity)

	fabrication := make(map[string]any)
	for component, kg := range impact.DefaultFabrication() {
		fabrication[component] = kg
	}
	v.SetDefault("fabrication", fabrication)
	v.SetDefault("hardware-catalog", "")

	v.SetDefault("providers.timeout", 60*time.Second)
	v.SetDefault("providers.openai.models", []string{"gpt-3.5-turbo", "gpt-4"})
	v.SetDefault("providers.groq.models", []string{"llama-3.3-70b-versatile", "llama-3.3-70b"})
	v.SetDefault("providers.gemini.models", []string{"gemini-2.5-flash"})
	v.SetDefault("providers.hf.models", []string{
		"deepseek-ai/DeepSeek-V3.1:novita",
		"mistralai/Mistral-7B-Instruct-v0.2:featherless-ai",
	})
	for _, name := range ProviderNames {
		v.SetDefault("providers."+name+".api-key", "")
		v.SetDefault("providers."+name+".base-url", provider.DefaultBaseURLs[name])
	}

	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.dir", defaultStorageDir())
	v.SetDefault("storage.dsn", "")
	v.SetDefault("server.addr", ":8080")
}

func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".carbonboard", "sessions")
	}
	return filepath.Join(home, ".carbonboard", "sessions")
}

// BindEnv enables CARBONBOARD_* variables and the legacy provider variables on v.
// A CARBONBOARD_* variable wins over its legacy name.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.NewReplacer(".", "_", "-", "_").Replace(strings.ToUpper(key))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	if err := v.BindEnv("log-level", EnvPrefix+"_LOG_LEVEL", logger.EnvVarLogLevel); err != nil {
		return fmt.Errorf("bind log-level: %w", err)
	}
	return nil
}

// ReadInConfig reads cfgFile, or when empty searches $HOME/.carbonboard.yaml and then
// ./config/carbonboard.yaml. A missing file is not an error. It returns the file used, if any.
func ReadInConfig(v *viper.Viper, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return v.ConfigFileUsed(), nil
	}

	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.SetConfigName(".carbonboard")
	err := v.ReadInConfig()

	notFound := viper.ConfigFileNotFoundError{}
	if err != nil && errors.As(err, &notFound) {
		v.AddConfigPath("./config")
		v.SetConfigName("carbonboard")
		err = v.ReadInConfig()
	}
	switch {
	case err == nil:
		return v.ConfigFileUsed(), nil
	case errors.As(err, &notFound):
		return "", nil
	default:
		return "", fmt.Errorf("read config: %w", err)
	}
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	for _, p := range []*Provider{&cfg.Providers.OpenAI, &cfg.Providers.Groq, &cfg.Providers.Gemini, &cfg.Providers.HF} {
		p.Models = cleanList(p.Models)
		p.APIKey = strings.TrimSpace(p.APIKey)
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration produced by the defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		panic(fmt.Sprintf("config: defaults are invalid: %v", err))
	}
	return cfg
}

// cleanList trims entries and drops empty ones, so "a, ,b" and "" behave as expected.
func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log-level %q must be one of debug|info|warn|error", c.LogLevel))
	}
	if c.PUE < 1 {
		errs = append(errs, fmt.Errorf("pue must be >= 1, got %v", c.PUE))
	}
	if c.LifetimeYears <= 0 {
		errs = append(errs, fmt.Errorf("lifetime-years must be > 0, got %v", c.LifetimeYears))
	}
	if _, ok := c.CarbonIntensity[grid.DefaultRegion]; !ok {
		errs = append(errs, fmt.Errorf("carbon-intensity must define %q", grid.DefaultRegion))
	}
	for component, kg := range c.Fabrication {
		if kg < 0 {
			errs = append(errs, fmt.Errorf("fabrication.%s must be >= 0, got %v", component, kg))
		}
	}
	if c.Providers.Timeout < 0 {
		errs = append(errs, fmt.Errorf("providers.timeout must be >= 0, got %v", c.Providers.Timeout))
	}
	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required by the file driver"))
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required by the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be one of file|postgres|memory", c.Storage.Driver))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr cannot be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Model builds the carbon model described by c.
func (c *Config) Model(log *slog.Logger) (*impact.Model, error) {
	cat := hardware.Builtin()
	if c.HardwareCatalog != "" {
		loaded, err := hardware.Load(c.HardwareCatalog)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}
	table, err := grid.New(c.CarbonIntensity)
	if err != nil {
		return nil, fmt.Errorf("carbon-intensity: %w", err)
	}
	opts := []impact.Option{
		impact.WithPUE(c.PUE),
		impact.WithLifetimeYears(c.LifetimeYears),
		impact.WithFabrication(impact.FabricationCosts(c.Fabrication)),
	}
	if log != nil {
		opts = append(opts, impact.WithLogger(log))
	}
	return impact.NewModel(cat, table, opts...)
}

// ProviderSettings returns the settings of every configured provider in ProviderNames order.
func (c *Config) ProviderSettings() []provider.Settings {
	byName := map[string]Provider{
		"openai": c.Providers.OpenAI,
		"groq":   c.Providers.Groq,
		"gemini": c.Providers.Gemini,
		"hf":     c.Providers.HF,
	}
	settings := make([]provider.Settings, 0, len(ProviderNames))
	for _, name := range ProviderNames {
		p := byName[name]
		settings = append(settings, provider.Settings{
			Name:    name,
			APIKey:  p.APIKey,
			BaseURL: p.BaseURL,
			Models:  p.Models,
			Timeout: c.Providers.Timeout,
		})
	}
	return settings
}

// Store opens the session store selected by c.Storage. The returned close function releases
// any connection held by the store.
func (c *Config) Store(ctx context.Context) (ledger.Store, func() error, error) {
	noop := func() error { return nil }
	switch c.Storage.Driver {
	case DriverMemory:
		return ledger.NewMemoryStore(), noop, nil
	case DriverFile:
		s, err := ledger.NewFileStore(c.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case DriverPostgres:
		db, err := ledger.OpenPostgres(ctx, c.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		s := ledger.NewPostgresStore(db)
		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return s, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
}
