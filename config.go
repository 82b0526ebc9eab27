package httpproxy

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the on-disk proxy configuration.
type Config struct {
	// Host is the listen address (default "127.0.0.1").
	Host string `mapstructure:"host"`

	// Port is the listen port. Out-of-range values fall back to 8080.
	Port int `mapstructure:"port"`

	// Debug enables trace logging.
	Debug bool `mapstructure:"debug"`

	// Rules is the ordered rewrite rule set.
	Rules []RuleConfig `mapstructure:"rules"`
}

// RuleConfig is a single rewrite rule in the config file.
type RuleConfig struct {
	// Match is the pattern specification. Must begin with "http://".
	Match string `mapstructure:"match"`

	// Proxy is the target URL template or a local path.
	Proxy string `mapstructure:"proxy"`

	// Headers are static header overrides for forwarded requests.
	Headers map[string]string `mapstructure:"headers"`
}

// DefaultConfig returns a Config with the proxy's defaults.
func DefaultConfig() Config {
	return Config{
		Host: "127.0.0.1",
		Port: 8080,
	}
}

// LoadConfig loads configuration from a YAML/JSON/TOML file with
// environment variable overrides (HTTP_PROXY_ prefix). When configPath is
// empty, it searches ./proxy.yaml, $HOME/.leizm-http-proxy, and
// /etc/leizm-http-proxy.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("proxy")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.leizm-http-proxy")
	v.AddConfigPath("/etc/leizm-http-proxy")

	v.SetEnvPrefix("HTTP_PROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Missing config file is fine; defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// LoadConfigFromReader loads configuration from raw bytes. Useful for
// testing or embedded configs.
func LoadConfigFromReader(configType string, data []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType(configType)

	if err := v.ReadConfig(strings.NewReader(string(data))); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("host", defaults.Host)
	v.SetDefault("port", defaults.Port)
	v.SetDefault("debug", defaults.Debug)
}

// Addr returns the effective listen address. An invalid port falls back to
// 8080.
func (c *Config) Addr() string {
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Port
	if port <= 0 || port > 65535 {
		port = 8080
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// BuildRules converts the config's rule entries into registry rules.
// Malformed entries (missing match/proxy, or match not beginning with
// "http://") are skipped with a warning, never fatal.
func (c *Config) BuildRules(logger *slog.Logger) []Rule {
	if logger == nil {
		logger = slog.Default()
	}

	rules := make([]Rule, 0, len(c.Rules))
	for i, rc := range c.Rules {
		switch {
		case rc.Match == "" || rc.Proxy == "":
			logger.Warn("skipping rule: match and proxy are required", "index", i)
		case !strings.HasPrefix(rc.Match, "http://"):
			logger.Warn("skipping rule: match must begin with http://", "index", i, "match", rc.Match)
		default:
			rules = append(rules, Rule{
				Match:   rc.Match,
				Proxy:   rc.Proxy,
				Headers: rc.Headers,
			})
		}
	}
	return rules
}

// WriteExampleConfig writes an example configuration file.
func WriteExampleConfig(path string) error {
	example := `# leizm-http-proxy configuration

# Listen address
host: "127.0.0.1"
port: 8080

# Trace logging
debug: false

# Rewrite rules, applied in order: the first match wins.
rules:
  # Redirect one host's path space to another; {1} is the first capture.
  - match: "http://a.example/(.*)"
    proxy: "http://b.example/{1}"

  # Named parameters capture single path segments.
  - match: "http://cdn.example/:file"
    proxy: "http://origin.example/static/{file}"
    headers:
      x-forwarded-proxy: "leizm-http-proxy"

  # A target without a scheme is served from local disk.
  - match: "http://site.example/*"
    proxy: "/var/www/site.example/{1}"
`

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	return os.WriteFile(path, []byte(example), 0644)
}
