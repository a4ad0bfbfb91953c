package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultProjectPath    = "~/bw"
	DefaultPort           = 22
	DefaultConcurrency    = 8
	DefaultTimeout        = 10 * time.Minute
	DefaultHostTimeout    = 2 * time.Minute
	DefaultConnectTimeout = 15 * time.Second
)

// Settings holds the defaults a run starts from. Command-line flags override them.
type Settings struct {
	ProjectPath    string        `koanf:"project_path"`
	Concurrency    int           `koanf:"concurrency"`
	Port           int           `koanf:"port"`
	KnownHosts     string        `koanf:"known_hosts"`
	Timeout        time.Duration `koanf:"timeout"`
	HostTimeout    time.Duration `koanf:"host_timeout"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// Defaults returns the settings used when no settings file exists.
func Defaults() Settings {
	return Settings{
		ProjectPath:    DefaultProjectPath,
		Concurrency:    DefaultConcurrency,
		Port:           DefaultPort,
		Timeout:        DefaultTimeout,
		HostTimeout:    DefaultHostTimeout,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Config manages the vcsinfo settings stored at ~/.config/vcsinfo/config.toml.
type Config struct {
	path string
}

// New creates a Config. If configPath is empty, uses the default location.
func New(configPath string) *Config {
	if configPath == "" {
		configPath = defaultPath()
	}
	return &Config{path: configPath}
}

func defaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "vcsinfo", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "vcsinfo", "config.toml")
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

var tomlParser = toml.Parser()

// Read returns the settings from the config file laid over Defaults. A missing
// file yields the defaults.
func (c *Config) Read() (Settings, error) {
	settings := Defaults()

	k := koanf.New(".")
	if err := k.Load(file.Provider(c.path), tomlParser); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return settings, nil
		}
		return Settings{}, err
	}

	if err := k.UnmarshalWithConf("", &settings, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Settings{}, err
	}
	settings.KnownHosts = expandPath(settings.KnownHosts)
	return settings, nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
