// Package config provides configuration management for guildexport.
// Settings come from two places: an optional YAML file for local preferences
// (export directory, exporter binary path, proxy, logging) and required
// environment variables for the OAuth application identity.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultAPIRoot is the base URL for Discord's REST API.
const DefaultAPIRoot = "https://discord.com/api/"

// appDirName is the per-user config directory holding credentials and logs.
const appDirName = "guildexport"

// Config represents the application's configuration.
type Config struct {
	// APIRoot is the base URL for the provider API. Exposed mainly so tests
	// can point the client at a local server.
	APIRoot string `yaml:"api-root"`

	// ClientID is the OAuth2 application client id (env CLIENT_ID).
	ClientID string `yaml:"-"`

	// RedirectURI is the registered loopback redirect (env REDIRECT_URI).
	RedirectURI string `yaml:"-"`

	// Scopes requested during authorization.
	Scopes []string `yaml:"scopes"`

	// AuthDir is the directory holding the persisted credential bundle.
	AuthDir string `yaml:"auth-dir"`

	// ExportDir is where chat exports are written.
	ExportDir string `yaml:"export-dir"`

	// ExporterPath is the DiscordChatExporter.Cli binary to spawn.
	ExporterPath string `yaml:"exporter-path"`

	// ProxyURL is an optional proxy for outbound requests (http, https or socks5).
	ProxyURL string `yaml:"proxy-url"`

	// LoggingToFile mirrors logs into a rotating file under AuthDir/logs.
	LoggingToFile bool `yaml:"logging-to-file"`

	// Debug enables debug level logging.
	Debug bool `yaml:"debug"`
}

// MissingEnvError reports a required environment variable that was not set.
type MissingEnvError struct {
	Key string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("required environment variable %s is not set", e.Key)
}

// Load reads the optional YAML config file at path, applies defaults and pulls
// the required OAuth identity from the environment. A missing file is fine; a
// missing CLIENT_ID or REDIRECT_URI is a fatal configuration error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, errUnmarshal)
			}
		case os.IsNotExist(err):
			// Optional file; fall through to defaults.
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.ClientID = strings.TrimSpace(os.Getenv("CLIENT_ID"))
	if cfg.ClientID == "" {
		return nil, &MissingEnvError{Key: "CLIENT_ID"}
	}
	cfg.RedirectURI = strings.TrimSpace(os.Getenv("REDIRECT_URI"))
	if cfg.RedirectURI == "" {
		return nil, &MissingEnvError{Key: "REDIRECT_URI"}
	}

	if root := strings.TrimSpace(os.Getenv("ROOT")); root != "" {
		cfg.APIRoot = root
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.APIRoot == "" {
		c.APIRoot = DefaultAPIRoot
	}
	if !strings.HasSuffix(c.APIRoot, "/") {
		c.APIRoot += "/"
	}
	if len(c.Scopes) == 0 {
		c.Scopes = []string{"identify", "guilds"}
	}
	if c.AuthDir == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			c.AuthDir = filepath.Join(dir, appDirName)
		} else {
			c.AuthDir = appDirName
		}
	}
	if c.ExportDir == "" {
		c.ExportDir = "exports"
	}
	if c.ExporterPath == "" {
		c.ExporterPath = "DiscordChatExporter.Cli"
	}
}

// AuthorizeURL returns the provider authorization endpoint.
func (c *Config) AuthorizeURL() string { return c.APIRoot + "oauth2/authorize" }

// TokenURL returns the provider token endpoint.
func (c *Config) TokenURL() string { return c.APIRoot + "oauth2/token" }

// MeURL returns the identity endpoint for the current user.
func (c *Config) MeURL() string { return c.APIRoot + "users/@me" }

// GuildsURL returns the guild list endpoint for the current user.
func (c *Config) GuildsURL() string { return c.APIRoot + "users/@me/guilds" }
