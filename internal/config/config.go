// Package config loads instrument configuration from an optional YAML file
// overlaid with FEEDLAB_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/feedlab/feedlab/internal/core/domain"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Collector CollectorConfig `koanf:"collector"`
	Admin     AdminConfig     `koanf:"admin"`
	Posts     []PostConfig    `koanf:"posts"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type CollectorConfig struct {
	URL     string `koanf:"url"`
	Token   string `koanf:"token"`
	Timeout string `koanf:"timeout"` // Duration string like "10s"
}

type AdminConfig struct {
	Password string `koanf:"password"`
}

// PostConfig is one stimulus post in the study catalog. Catalog order is
// significant: it fixes the participant row's column order.
type PostConfig struct {
	ID       string `koanf:"id"`
	Author   string `koanf:"author"`
	Text     string `koanf:"text"`
	ImageURL string `koanf:"image_url"`
	LinkURL  string `koanf:"link_url"`
}

// Load reads configuration from path (skipped when empty or absent) and then
// the environment. FEEDLAB_SERVER_PORT=9090 maps to server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("FEEDLAB_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "FEEDLAB_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "sqlite")
	}
	if !k.Exists("storage.sqlite.path") {
		k.Set("storage.sqlite.path", "./data/feedlab.db")
	}
	if !k.Exists("collector.timeout") {
		k.Set("collector.timeout", "10s")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// PostCatalog converts the configured posts to domain posts in catalog order.
func (c *Config) PostCatalog() []domain.Post {
	posts := make([]domain.Post, len(c.Posts))
	for i, p := range c.Posts {
		posts[i] = domain.Post{
			ID:       p.ID,
			Author:   p.Author,
			Text:     p.Text,
			ImageURL: p.ImageURL,
			LinkURL:  p.LinkURL,
		}
	}
	return posts
}

// CollectorTimeout parses the collector timeout, falling back to 10s on a
// bad or missing value.
func (c *Config) CollectorTimeout() time.Duration {
	d, err := time.ParseDuration(c.Collector.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
