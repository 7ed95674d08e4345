// Package session wires a browser tab, its scroll memory and its navigation
// controller into one supervised unit, configured from YAML.
package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level navkeeper configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Page    PageConfig    `yaml:"page"`
	Storage StorageConfig `yaml:"storage"`
	Sinks   []SinkConfig  `yaml:"sinks"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote  string `yaml:"remote"`  // devtools URL; empty launches locally
	Headful bool   `yaml:"headful"`
	Stealth bool   `yaml:"stealth"`
}

// PageConfig defines the page to drive.
type PageConfig struct {
	URL             string `yaml:"url"`
	Mount           string `yaml:"mount"`            // selector of the render mount
	ScrollContainer string `yaml:"scroll_container"` // explicit override selector
	Push            string `yaml:"push"`             // websocket URL for server pushes
}

// StorageConfig selects where scroll positions persist.
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory | browser | sqlite
	Path    string `yaml:"path"`    // for sqlite
	Profile string `yaml:"profile"` // for sqlite
}

// SinkConfig defines a lifecycle-event output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook | sqlite
	URL  string `yaml:"url"`  // for webhook
	Path string `yaml:"path"` // for sqlite
}

// Default returns a ready configuration for driving url with defaults.
func Default(url string) *Config {
	cfg := &Config{}
	cfg.Page.URL = url
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Page.Mount == "" {
		c.Page.Mount = "#app"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "browser"
	}
	if c.Storage.Profile == "" {
		c.Storage.Profile = "default"
	}
	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = "navkeeper.db"
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
}

func (c *Config) validate() error {
	if c.Page.URL == "" {
		return fmt.Errorf("session: page.url is required")
	}
	switch c.Storage.Backend {
	case "memory", "browser", "sqlite":
	default:
		return fmt.Errorf("session: unknown storage backend %q", c.Storage.Backend)
	}
	for _, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("session: webhook sink needs a url")
			}
		case "sqlite":
			if s.Path == "" {
				return fmt.Errorf("session: sqlite sink needs a path")
			}
		default:
			return fmt.Errorf("session: unknown sink type %q", s.Type)
		}
	}
	return nil
}
