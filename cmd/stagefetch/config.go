package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/stagefetch/layout"
)

// Dataset kinds understood by the CLI.
const (
	KindFolders = "folders"
	KindCIFAR10 = "cifar10"
)

// Config is the YAML configuration of one dataset.
type Config struct {
	// BaseDir holds one folder per split.
	BaseDir string `yaml:"base_dir"`
	// Kind selects the unpacker and codec: folders or cifar10.
	Kind string `yaml:"kind"`
	// Sources are archive locations tried in order.
	Sources []string `yaml:"sources,omitempty"`
	// Splits lists the split folders of a folders dataset. Derived from
	// Folders.Splits when empty.
	Splits []string `yaml:"splits,omitempty"`

	Layout           string        `yaml:"layout"`
	TempDir          string        `yaml:"temp_dir"`
	RateLimit        string        `yaml:"rate_limit"`
	ProgressInterval time.Duration `yaml:"progress_interval"`

	Log     LogConfig     `yaml:"log"`
	Folders FoldersConfig `yaml:"folders"`
	CIFAR10 CIFARConfig   `yaml:"cifar10"`
	S3      S3Config      `yaml:"s3"`
	MinIO   MinIOConfig   `yaml:"minio"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FoldersConfig configures the folders unpacker.
type FoldersConfig struct {
	StripComponents int               `yaml:"strip_components"`
	Splits          map[string]string `yaml:"splits,omitempty"`
	MaxFileSize     string            `yaml:"max_file_size"`
	// Codec names the payload codec, e.g. bytes or bytes+zstd.
	Codec string `yaml:"codec"`
}

// CIFARConfig names the CIFAR-10 split folders.
type CIFARConfig struct {
	TrainSplit string `yaml:"train_split"`
	TestSplit  string `yaml:"test_split"`
}

// S3Config configures s3:// sources.
type S3Config struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
	PartSize     string `yaml:"part_size"`
	Concurrency  int    `yaml:"concurrency"`
}

// MinIOConfig configures minio:// sources.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

// DefaultConfig returns the defaults applied before the YAML file.
func DefaultConfig() *Config {
	return &Config{
		Kind:             KindFolders,
		Layout:           layout.StrategyFlat.String(),
		ProgressInterval: 5 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Folders: FoldersConfig{
			Codec: "bytes",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STAGEFETCH_BASE_DIR"); v != "" {
		c.BaseDir = v
	}
	if v := os.Getenv("STAGEFETCH_TEMP_DIR"); v != "" {
		c.TempDir = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.MinIO.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.MinIO.SecretKey = v
	}
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return errors.New("base_dir is required")
	}
	switch c.Kind {
	case KindFolders:
		if len(c.SplitNames()) == 0 {
			return errors.New("folders datasets need splits or folders.splits")
		}
	case KindCIFAR10:
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	if _, err := layout.ParseStrategy(c.Layout); err != nil {
		return err
	}
	for name, v := range map[string]string{
		"rate_limit":            c.RateLimit,
		"folders.max_file_size": c.Folders.MaxFileSize,
		"s3.part_size":          c.S3.PartSize,
	} {
		if _, err := parseBytes(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// SplitNames returns the split folders of a folders dataset, in config
// order when listed and sorted when derived from the folder mapping.
func (c *Config) SplitNames() []string {
	if len(c.Splits) > 0 {
		return c.Splits
	}
	var names []string
	for _, s := range c.Folders.Splits {
		if !slices.Contains(names, s) {
			names = append(names, s)
		}
	}
	slices.Sort(names)
	return names
}

// parseBytes accepts sizes such as "10MB" or "512KiB". Empty means zero.
func parseBytes(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}
