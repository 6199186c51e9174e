// Package config loads server and runner configuration from a YAML file
// with sane defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML strings like "45s" or "1h" into a time.Duration.
// Plain integers are taken as nanoseconds, matching time.Duration itself.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(v)
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level configuration.
type Config struct {
	Addr        string   `yaml:"addr"`
	UILang      string   `yaml:"ui_lang"`
	RevealDelay Duration `yaml:"reveal_delay"`
	Redis       Redis    `yaml:"redis"`
	Oracle      Oracle   `yaml:"oracle"`
}

// Redis configures the optional Redis persistence backend. An empty Addr
// selects the in-memory stores.
type Redis struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// Oracle configures the answer-validation endpoint. An empty URL selects the
// local exact-match oracle.
type Oracle struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:        ":8080",
		UILang:      "ru",
		RevealDelay: Duration(400 * time.Millisecond),
		Oracle:      Oracle{Timeout: Duration(15 * time.Second)},
	}
}

// Load reads a YAML config file over the defaults, then applies environment
// overrides. An empty path skips the file and keeps the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets deployments override the file without editing it. Only the
// connection-level settings are exposed this way.
func applyEnv(cfg *Config) {
	if v := os.Getenv("LESSONLOOP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("LESSONLOOP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LESSONLOOP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LESSONLOOP_ORACLE_URL"); v != "" {
		cfg.Oracle.URL = v
	}
}
