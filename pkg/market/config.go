package market

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"marketpipe/pkg/confkit"
)

// Config describes the set of market data sources available to the application.
type Config struct {
	Default   string                     `yaml:"default"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig represents configuration for a single market data source.
type ProviderConfig struct {
	Type string `yaml:"type"`

	BaseURL        string `yaml:"base_url"`
	FuturesBaseURL string `yaml:"futures_base_url"`

	HTTPTimeoutRaw string        `yaml:"http_timeout"`
	HTTPTimeout    time.Duration `yaml:"-"`
	MaxRetries     int           `yaml:"max_retries"`
}

// SourceBuilder constructs a Source from configuration.
type SourceBuilder func(name string, cfg *ProviderConfig) (Source, error)

var (
	sourceRegistry   = make(map[string]SourceBuilder)
	sourceRegistryMu sync.RWMutex
)

// RegisterSource registers a market source constructor under typeName.
func RegisterSource(typeName string, builder SourceBuilder) {
	sourceRegistryMu.Lock()
	defer sourceRegistryMu.Unlock()
	sourceRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupSourceBuilder(typeName string) (SourceBuilder, bool) {
	sourceRegistryMu.RLock()
	defer sourceRegistryMu.RUnlock()
	builder, ok := sourceRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// DefaultConfig returns a single Binance source using public endpoints.
func DefaultConfig() *Config {
	return &Config{
		Default: "binance",
		Providers: map[string]*ProviderConfig{
			"binance": {Type: "binance"},
		},
	}
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal market config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	for name, provider := range c.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
			c.Providers[name] = provider
		}
		provider.expandEnv()
		if err := provider.parseDurations(name); err != nil {
			return err
		}
	}
	if c.Default == "" && len(c.Providers) == 1 {
		for name := range c.Providers {
			c.Default = name
		}
	}
	return nil
}

func (p *ProviderConfig) expandEnv() {
	p.Type = strings.TrimSpace(os.ExpandEnv(p.Type))
	p.BaseURL = strings.TrimSpace(os.ExpandEnv(p.BaseURL))
	p.FuturesBaseURL = strings.TrimSpace(os.ExpandEnv(p.FuturesBaseURL))
	p.HTTPTimeoutRaw = strings.TrimSpace(os.ExpandEnv(p.HTTPTimeoutRaw))
}

func (p *ProviderConfig) parseDurations(name string) error {
	if p.HTTPTimeoutRaw == "" {
		return nil
	}
	d, err := time.ParseDuration(p.HTTPTimeoutRaw)
	if err != nil {
		return fmt.Errorf("market provider %s: invalid http_timeout %q: %w", name, p.HTTPTimeoutRaw, err)
	}
	if d <= 0 {
		return fmt.Errorf("market provider %s: http_timeout must be positive, got %s", name, d)
	}
	p.HTTPTimeout = d
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("market config: providers cannot be empty")
	}
	if c.Default != "" {
		if _, ok := c.Providers[c.Default]; !ok {
			return fmt.Errorf("market config: default provider %q not defined", c.Default)
		}
	}
	for name, provider := range c.Providers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("market config: provider name cannot be empty")
		}
		if err := provider.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProviderConfig) validate(name string) error {
	if p == nil {
		return fmt.Errorf("market config: provider %s is nil", name)
	}
	if strings.TrimSpace(p.Type) == "" {
		return fmt.Errorf("market config: provider %s must specify type", name)
	}
	if _, ok := lookupSourceBuilder(p.Type); !ok {
		return fmt.Errorf("market config: provider %s has unsupported type %q", name, p.Type)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("market config: provider %s max_retries must not be negative", name)
	}
	return nil
}

// BuildSources instantiates market data sources according to configuration.
func (c *Config) BuildSources() (map[string]Source, error) {
	result := make(map[string]Source, len(c.Providers))
	for name, providerCfg := range c.Providers {
		builder, ok := lookupSourceBuilder(providerCfg.Type)
		if !ok {
			return nil, fmt.Errorf("market provider %s: unsupported type %q", name, providerCfg.Type)
		}
		source, err := builder(name, providerCfg)
		if err != nil {
			return nil, fmt.Errorf("market provider %s: %w", name, err)
		}
		result[name] = source
	}
	return result, nil
}

// BuildDefault instantiates only the default source.
func (c *Config) BuildDefault() (Source, error) {
	providerCfg, ok := c.Providers[c.Default]
	if !ok {
		return nil, fmt.Errorf("market config: default provider %q not defined", c.Default)
	}
	builder, ok := lookupSourceBuilder(providerCfg.Type)
	if !ok {
		return nil, fmt.Errorf("market provider %s: unsupported type %q", c.Default, providerCfg.Type)
	}
	source, err := builder(c.Default, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("market provider %s: %w", c.Default, err)
	}
	return source, nil
}
