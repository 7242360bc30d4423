package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

var validate = validator.New()

type Config struct {
	Dataset  string   `yaml:"dataset"`
	Output   Output   `yaml:"output"`
	Model    Model    `yaml:"model"`
	Text     Text     `yaml:"text"`
	Scaling  Scaling  `yaml:"scaling"`
	Features Features `yaml:"features"`
	Fetch    Fetch    `yaml:"fetch"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Model struct {
	Topics        int   `yaml:"topics" validate:"gte=1"`
	TopTerms      int   `yaml:"top_terms" validate:"gte=1"`
	MaxIterations int   `yaml:"max_iterations" validate:"gte=1"`
	VocabularyCap int   `yaml:"vocabulary_cap" validate:"gte=1"`
	Seed          int64 `yaml:"seed"`
	Workers       int   `yaml:"workers" validate:"gte=0"`
}

type Text struct {
	MinTokenLength int      `yaml:"min_token_length" validate:"gte=1"`
	ExtraStopwords []string `yaml:"extra_stopwords"`
}

type Scaling struct {
	WithMean bool `yaml:"with_mean"`
	WithStd  bool `yaml:"with_std"`
}

type Features struct {
	Weights map[string]float64 `yaml:"weights"`
}

type Fetch struct {
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"gte=1"`
	Limit          int `yaml:"limit" validate:"gte=1"`
}

// Timeout returns the fetch timeout as a duration.
func (f Fetch) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

type Server struct {
	Port int `yaml:"port" validate:"gte=1,lte=65535"`
}

type Logging struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn error"`
}

// ConfigDir returns the XDG config directory for trailscout.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "trailscout")
}

// DataDir returns the XDG data directory for trailscout.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "trailscout")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/trailscout/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'trailscout init' to create a default config",
		xdgConfig,
	)
}

// Load reads, parses and validates a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Model: Model{
			Topics:        8,
			TopTerms:      10,
			MaxIterations: 250,
			VocabularyCap: 6000,
			Seed:          9,
		},
		Text:    Text{MinTokenLength: 2},
		Scaling: Scaling{WithMean: true, WithStd: true},
		Fetch:   Fetch{TimeoutSeconds: 20, Limit: 25},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the SQLite database path inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "trailscout.db")
}

// BundlePath returns the model bundle path inside the data directory.
func (c *Config) BundlePath() string {
	return filepath.Join(c.GetDataDir(), "bundle.json")
}

// TopicTablesPath returns the path of the per-run topic table dump inside
// the data directory.
func (c *Config) TopicTablesPath() string {
	return filepath.Join(c.GetDataDir(), "topics.json")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
