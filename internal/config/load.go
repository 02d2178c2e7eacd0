package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads path as a brrr.yaml config file, expands ${ENV_VAR}
// references, and unmarshals the result into a Config describing the
// store/queue/audit backends a worker, server, schedule, monitor, or
// reset invocation should wire up. Unknown keys are rejected to catch
// typos early.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("brrr: config file not found: %s", path)
		}
		return nil, fmt.Errorf("brrr: cannot read config file %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("brrr: invalid YAML in %s: %w", path, err)
	}

	return &cfg, nil
}
