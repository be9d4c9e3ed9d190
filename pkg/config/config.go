package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all configuration for the application
type Config struct {
	APIURL    string `koanf:"api-url"`
	Namespace string `koanf:"namespace"`
	Token     string `koanf:"token"`
	APIKey    string `koanf:"api-key"`
	APISecret string `koanf:"api-secret"`
	Timeout   int    `koanf:"timeout"` // seconds, also sent as Request-Timeout header
	Workers   int    `koanf:"workers"`
	RateLimit int    `koanf:"rate-limit"` // requests per second, 0 disables
	GitOrg    string `koanf:"git-org"`    // prefix for bare repo names in project CSVs
	JSONLogs  bool   `koanf:"json-logs"`
	Verbose   int    `koanf:"verbose"`
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	// A local .env is honored the way the original tooling honors python-dotenv.
	_ = godotenv.Load()

	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"api-url":    "https://api.endorlabs.com/v1",
		"namespace":  "",
		"token":      "",
		"api-key":    "",
		"api-secret": "",
		"timeout":    60,
		"workers":    5,
		"rate-limit": 0,
		"git-org":    "",
		"json-logs":  false,
		"verbose":    0,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - endor-ops.toml
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider("endor-ops.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: ENDOR_OPS_ (e.g., ENDOR_OPS_NAMESPACE=my-namespace)
	if err := k.Load(env.Provider("ENDOR_OPS_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "ENDOR_OPS_")), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Compatibility with the variables the original scripts read.
	if cfg.Token == "" {
		cfg.Token = os.Getenv("ENDOR_TOKEN")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ENDOR_API_CREDENTIALS_KEY")
	}
	if cfg.APISecret == "" {
		cfg.APISecret = os.Getenv("ENDOR_API_CREDENTIALS_SECRET")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = os.Getenv("ENDOR_NAMESPACE")
	}
	if cfg.GitOrg == "" {
		cfg.GitOrg = os.Getenv("GITORG")
	}

	return &cfg, nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
