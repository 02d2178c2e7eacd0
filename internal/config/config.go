package config

import (
	"fmt"
	"time"
)

// Config represents a brrr.yaml configuration file: which store and queue
// backend to wire up, and how to reach them. All values are optional; an
// empty backend name selects the in-memory backend. No CLI flag overrides
// these values: the commands take only the config file path from flags.
type Config struct {
	Store StoreConfig `yaml:"store"`
	Queue QueueConfig `yaml:"queue"`

	// MaxSpawns bounds a single worker's lifetime child-registration
	// count. Zero means unlimited.
	MaxSpawns int `yaml:"max_spawns"`
	// PollInterval is how long a worker sleeps after an empty queue poll.
	PollInterval Duration `yaml:"poll_interval"`

	Audit AuditConfig `yaml:"audit"`
}

// StoreConfig selects and configures the Store backend.
type StoreConfig struct {
	// Backend is one of "memory", "s3".
	Backend string `yaml:"backend"`

	S3 S3StoreConfig `yaml:"s3"`
}

// S3StoreConfig mirrors store/s3store.Config's fields for YAML loading.
type S3StoreConfig struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// QueueConfig selects and configures the Queue backend.
type QueueConfig struct {
	// Backend is one of "memory", "redis".
	Backend string `yaml:"backend"`

	Redis RedisQueueConfig `yaml:"redis"`
}

// RedisQueueConfig mirrors queue/redisqueue.Config's fields for YAML loading.
type RedisQueueConfig struct {
	URL         string   `yaml:"url"`
	Key         string   `yaml:"key"`
	PollTimeout Duration `yaml:"poll_timeout"`
}

// AuditConfig enables the optional Lode-backed audit sink.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
