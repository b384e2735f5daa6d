// Package config handles carrousel configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level carrousel configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Output   OutputConfig   `yaml:"output"`
	Assets   AssetsConfig   `yaml:"assets"`
	Browser  BrowserConfig  `yaml:"browser"`
	Render   RenderConfig   `yaml:"render"`
	Batch    BatchConfig    `yaml:"batch"`
	Carousel CarouselConfig `yaml:"carousel"`
	DB       string         `yaml:"db"`        // render log; empty disables it
	LogLevel string         `yaml:"log_level"` // debug | info | warn | error
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// StaticOutput serves the output directory under Output.PublicURL.
	StaticOutput bool `yaml:"static_output"`
}

// OutputConfig controls where images land and how they are addressed.
type OutputConfig struct {
	Dir           string `yaml:"dir"`
	PublicURL     string `yaml:"public_url"`
	SaveDocuments bool   `yaml:"save_documents"`
	PDF           bool   `yaml:"pdf"`
}

// AssetsConfig maps a URL prefix to a local directory.
type AssetsConfig struct {
	BaseURL string `yaml:"base_url"`
	Dir     string `yaml:"dir"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Bin              string        `yaml:"bin"`
	NoSandbox        bool          `yaml:"no_sandbox"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
}

// RenderConfig controls page readiness and the timeout watchdog.
type RenderConfig struct {
	Width       int           `yaml:"width"`
	Height      int           `yaml:"height"`
	LoadTimeout time.Duration `yaml:"load_timeout"`
	Grace       time.Duration `yaml:"grace"`
	Watchdog    int           `yaml:"watchdog"` // negative disables
}

// BatchConfig controls batch execution.
type BatchConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// CarouselConfig holds transform defaults.
type CarouselConfig struct {
	HighlightColor      string `yaml:"highlight_color"`
	HighlightBackground string `yaml:"highlight_background"`
	FilenamePrefix      string `yaml:"filename_prefix"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
	if c.Output.PublicURL == "" {
		c.Output.PublicURL = "/output"
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Render.Width <= 0 {
		c.Render.Width = 1080
	}
	if c.Render.Height <= 0 {
		c.Render.Height = 1440
	}
	if c.Render.LoadTimeout <= 0 {
		c.Render.LoadTimeout = 30 * time.Second
	}
	if c.Render.Grace <= 0 {
		c.Render.Grace = 150 * time.Millisecond
	}
	if c.Render.Watchdog == 0 {
		c.Render.Watchdog = 3
	}
	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = 1
	}
	if c.Batch.Timeout <= 0 {
		c.Batch.Timeout = 5 * time.Minute
	}
	if c.Carousel.FilenamePrefix == "" {
		c.Carousel.FilenamePrefix = "slide"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if (c.Assets.BaseURL == "") != (c.Assets.Dir == "") {
		return fmt.Errorf("config: assets.base_url and assets.dir must be set together")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}
