// Package config loads the engine configuration: the filesystem root for
// table namespaces and the HTTP server binding. The OXIDE_HOME environment
// variable always wins over the config file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"oxide/internal/storage"
)

// DefaultConfigFile is the config file name looked up in the working
// directory when no path is given.
const DefaultConfigFile = "oxide.toml"

// Config is the engine configuration document.
type Config struct {
	// Root selects the filesystem root for all namespaces.
	Root string `toml:"root"`
	// Server configures the HTTP collaborator.
	Server ServerConfig `toml:"server"`
}

// ServerConfig is the [server] section.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Root:   storage.OxideHome(),
		Server: ServerConfig{Host: "127.0.0.1", Port: 8080},
	}
}

// Load reads a config file, filling defaults for missing keys.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// LoadOrDefault reads the config at path when it exists, otherwise the
// defaults. An empty path looks for oxide.toml in the working directory.
func LoadOrDefault(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigFile
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
	}
	return Load(path)
}

// Parse decodes TOML content, filling defaults for missing keys.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode error: %w", err)
	}
	// the environment overrides the file
	if home := os.Getenv(storage.DefaultRootEnv); home != "" {
		cfg.Root = home
	}
	if cfg.Root == "" {
		cfg.Root = storage.OxideHome()
	}
	cfg.Root = filepath.Clean(cfg.Root)
	return cfg, nil
}

// Addr returns the server's host:port binding.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
