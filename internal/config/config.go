// Package config loads the TOML configuration that shapes the server's
// provider topology and the player's cache. Topology is data, not plugins:
// the composite is built eagerly at startup from what this file describes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const defaultListen = "localhost:3614"

type Config struct {
	Server   ServerConfig             `koanf:"server"`
	Backends map[string]BackendConfig `koanf:"backends"`
	Player   PlayerConfig             `koanf:"player"`
}

// ServerConfig holds the [server] table.
type ServerConfig struct {
	Name        string `koanf:"name"`
	Listen      string `koanf:"listen"`
	HMACKey     string `koanf:"hmac-key"`
	ShareKey    string `koanf:"share-hmac-key"`
	ShareKeyID  string `koanf:"share-key-id"`
	ReloadToken string `koanf:"reload-token"`
	// Transcode selects the lossy pipeline, "aac" (default) or "opus".
	Transcode string `koanf:"transcode"`
}

// BackendConfig holds one [backends.<name>] table.
type BackendConfig struct {
	Enable bool   `koanf:"enable"`
	Type   string `koanf:"type"` // "file" | "proxy"
	DB     string `koanf:"db"`   // repo database path (convention layout)

	// File backends.
	Root   string `koanf:"root"`
	Layout string `koanf:"layout"` // "strict" (default) | "convention"
	Layer  int    `koanf:"layer"`

	// Proxy backends.
	URL     string `koanf:"url"`
	Auth    string `koanf:"auth"`
	Timeout string `koanf:"timeout"`

	Cache *BackendCacheConfig `koanf:"cache"`
}

// BackendCacheConfig holds a [backends.<name>.cache] table.
type BackendCacheConfig struct {
	Root    string `koanf:"root"`
	MaxSize string `koanf:"max-size"`
}

// PlayerConfig holds the [player] table used by the client side.
type PlayerConfig struct {
	CacheRoot string `koanf:"cache-root"`
	Quality   string `koanf:"quality"`
}

// Load reads the configuration file at path. An empty path falls back to
// the default locations.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	paths := []string{path}
	if path == "" {
		paths = defaultPaths()
	}

	loaded := false
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := k.Load(file.Provider(p), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %q: %w", p, err)
		}
		loaded = true
	}
	if !loaded {
		return nil, fmt.Errorf("no config file found (tried %s)", strings.Join(paths, ", "))
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	for name, backend := range cfg.Backends {
		backend.Root = expandPath(backend.Root)
		backend.DB = expandPath(backend.DB)
		if backend.Cache != nil {
			backend.Cache.Root = expandPath(backend.Cache.Root)
		}
		cfg.Backends[name] = backend
	}
	cfg.Player.CacheRoot = expandPath(cfg.Player.CacheRoot)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.HMACKey == "" {
		return fmt.Errorf("server.hmac-key is required")
	}
	if c.Server.ReloadToken == "" {
		return fmt.Errorf("server.reload-token is required")
	}
	for name, backend := range c.Backends {
		if !backend.Enable {
			continue
		}
		switch backend.Type {
		case "file":
			if backend.Root == "" {
				return fmt.Errorf("backends.%s: root is required for file backends", name)
			}
			if layout := backend.Layout; layout != "" && layout != "strict" && layout != "convention" {
				return fmt.Errorf("backends.%s: unknown layout %q", name, layout)
			}
			if backend.Layout == "convention" && backend.DB == "" {
				return fmt.Errorf("backends.%s: convention layout needs a repo db", name)
			}
		case "proxy":
			if backend.URL == "" {
				return fmt.Errorf("backends.%s: url is required for proxy backends", name)
			}
		case "drive":
			return fmt.Errorf("backends.%s: drive backends are not supported by this build", name)
		default:
			return fmt.Errorf("backends.%s: unknown type %q", name, backend.Type)
		}
	}
	return nil
}

// GetListen returns the listen address, defaulted.
func (c *ServerConfig) GetListen() string {
	if c.Listen == "" {
		return defaultListen
	}
	return c.Listen
}

// GetShareKey returns the share signing key, falling back to the main
// HMAC key when no dedicated one is configured.
func (c *ServerConfig) GetShareKey() string {
	if c.ShareKey == "" {
		return c.HMACKey
	}
	return c.ShareKey
}

// GetTranscode returns the lossy transcode codec, defaulted.
func (c *ServerConfig) GetTranscode() string {
	if c.Transcode == "" {
		return "aac"
	}
	return c.Transcode
}

// GetLayer returns the shard depth for strict layouts, defaulted to 2.
func (b *BackendConfig) GetLayer() int {
	if b.Layer <= 0 {
		return 2
	}
	return b.Layer
}

// GetTimeout parses the proxy request timeout, defaulted to 30s. Upstream
// requests have no intrinsic timeout, so the bound always comes from here.
func (b *BackendConfig) GetTimeout() time.Duration {
	if b.Timeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(b.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetMaxSize parses the humanized cache budget ("500 MB"); 0 means
// unbounded.
func (c *BackendCacheConfig) GetMaxSize() uint64 {
	if c.MaxSize == "" {
		return 0
	}
	size, err := humanize.ParseBytes(c.MaxSize)
	if err != nil {
		return 0
	}
	return size
}

// GetCacheRoot returns the player cache directory, defaulted into the
// XDG cache home.
func (p *PlayerConfig) GetCacheRoot() string {
	if p.CacheRoot != "" {
		return p.CacheRoot
	}
	return filepath.Join(xdg.CacheHome, "anni", "audio")
}

func defaultPaths() []string {
	paths := []string{}
	if cfg, err := xdg.ConfigFile(filepath.Join("anni", "annil.toml")); err == nil {
		paths = append(paths, cfg)
	}
	paths = append(paths, "annil.toml")
	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
