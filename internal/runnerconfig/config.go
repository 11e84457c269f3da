// Package runnerconfig loads the optional agent launcher file that tells the
// panel which binary to spawn and with what extra arguments.
package runnerconfig

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultBinary is spawned when no binary is configured.
const DefaultBinary = "claude"

// Config describes how the agent process is launched.
type Config struct {
	Binary     string            `yaml:"binary"`
	Args       []string          `yaml:"args"`
	Env        map[string]string `yaml:"env"`
	WorkingDir string            `yaml:"working_dir"`
}

// Default returns the launcher settings used without a file.
func Default() Config {
	return Config{Binary: DefaultBinary}
}

// Load parses a launcher file. $VARS in binary and working_dir are expanded.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, fmt.Errorf("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg.normalize(), nil
}

// Merge overrides file values with non-empty flag values.
func (c Config) Merge(binary string, args, env []string, workDir string) Config {
	if strings.TrimSpace(binary) != "" {
		c.Binary = binary
	}
	if len(args) > 0 {
		c.Args = append([]string(nil), args...)
	}
	if len(env) > 0 {
		merged := make(map[string]string, len(c.Env)+len(env))
		for key, val := range c.Env {
			merged[key] = val
		}
		c.Env = merged
		for key, val := range MapFromEnv(env) {
			c.Env[key] = val
		}
	}
	if strings.TrimSpace(workDir) != "" {
		c.WorkingDir = workDir
	}
	return c.normalize()
}

// EnvList flattens Env into KEY=VAL pairs.
func (c Config) EnvList() []string {
	if len(c.Env) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.Env))
	for key, value := range c.Env {
		out = append(out, key+"="+value)
	}
	return out
}

func (c Config) normalize() Config {
	c.Binary = expandEnv(strings.TrimSpace(c.Binary))
	c.WorkingDir = expandEnv(strings.TrimSpace(c.WorkingDir))
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	return c
}

// MapFromEnv parses KEY=VAL pairs, skipping malformed ones.
func MapFromEnv(values []string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for _, value := range values {
		key, val, ok := strings.Cut(value, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		out[key] = val
	}
	return out
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		switch key {
		case "UID":
			return fmt.Sprintf("%d", os.Getuid())
		case "GID":
			return fmt.Sprintf("%d", os.Getgid())
		}
		return "$" + key
	})
}
