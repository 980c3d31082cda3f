package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML as either a Go
// duration string ("15m") or a bare number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var seconds float64
	if err := value.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds * float64(time.Second)))
		return nil
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q", raw)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// OperationConfig is the per-operation section of an answers file.
type OperationConfig struct {
	Timeout Duration          `yaml:"timeout"`
	Answers map[string]string `yaml:"answers"`
}

// FileConfig is the parsed answers file: per-operation timeout and answer
// overrides layered between the built-in defaults and --answer flags.
type FileConfig struct {
	Operations map[string]OperationConfig `yaml:"operations"`
}

// LoadFileConfig reads and parses a YAML answers file.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers file: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse answers file %s: %w", path, err)
	}
	for name := range cfg.Operations {
		if _, ok := opSpecs[name]; !ok {
			return nil, fmt.Errorf("answers file %s: unknown operation %q", path, name)
		}
	}
	return &cfg, nil
}

func (c *FileConfig) operation(name string) OperationConfig {
	if c == nil {
		return OperationConfig{}
	}
	return c.Operations[name]
}
