package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/statusdeck/statusdeck/pkg/types"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultServerURL      = "http://localhost:3000"
	DefaultInterval       = 30 * time.Second
	DefaultFetchTimeout   = 10 * time.Second
	DefaultRenderInterval = time.Second
)

// Config is the agent configuration. The `server:` and `upstreams:` keys of a
// shared config.yaml are ignored.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerURL is the base URL of statusdeck-server.
	ServerURL string `yaml:"server_url"`

	// Title is shown above the board.
	Title string `yaml:"title"`

	// Interval is the poll interval for sources that do not set their own.
	Interval time.Duration `yaml:"interval"`

	// FetchTimeout bounds each poll; a slow source never delays another.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// RenderInterval controls how often the board is redrawn.
	RenderInterval time.Duration `yaml:"render_interval"`

	// Sources is the list of proxy endpoints shown as cards.
	Sources []Source `yaml:"sources"`

	// ServerAuth must match the server's server.auth block, or an
	// authenticating proxy in front of it.
	ServerAuth AuthConfig `yaml:"server_auth"`

	// TLS holds dial options for an https server_url.
	TLS TLSConfig `yaml:"tls"`
}

// Source describes one polled card.
type Source struct {
	// ID is a unique, human-readable identifier for this source.
	ID string `yaml:"id"`

	// Title is the card heading; defaults to ID.
	Title string `yaml:"title"`

	// Kind selects the normalizer: node | containers | media | vm | raw.
	Kind types.Kind `yaml:"kind"`

	// Path is the server path to poll, including any query string.
	Path string `yaml:"path"`

	// Interval overrides AgentConfig.Interval for this source.
	Interval time.Duration `yaml:"interval"`
}

// DisplayTitle returns Title, or ID when no title is set.
func (s Source) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return s.ID
}

// AuthConfig specifies how the agent authenticates to the server.
type AuthConfig struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header carrying the key when Mode == "apikey".
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username (safe to store in config).
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string { return fromEnv(a.KeyEnv) }

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string { return fromEnv(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string { return fromEnv(a.PasswordEnv) }

func fromEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// TLSConfig holds TLS dial options for the server connection.
type TLSConfig struct {
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string `yaml:"ca_file"`

	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg.Agent.ServerURL = strings.TrimRight(cfg.Agent.ServerURL, "/")
	for i := range cfg.Agent.Sources {
		if cfg.Agent.Sources[i].Interval == 0 {
			cfg.Agent.Sources[i].Interval = cfg.Agent.Interval
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			ServerURL:      DefaultServerURL,
			Title:          "statusdeck",
			Interval:       DefaultInterval,
			FetchTimeout:   DefaultFetchTimeout,
			RenderInterval: DefaultRenderInterval,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	u, err := url.Parse(a.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("agent.server_url %q must be an absolute http(s) URL", a.ServerURL)
	}
	if a.Interval <= 0 {
		return fmt.Errorf("agent.interval must be positive")
	}
	if a.FetchTimeout <= 0 {
		return fmt.Errorf("agent.fetch_timeout must be positive")
	}
	if a.RenderInterval <= 0 {
		return fmt.Errorf("agent.render_interval must be positive")
	}

	seen := make(map[string]bool, len(a.Sources))
	for i, src := range a.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true
		if !src.Kind.Valid() {
			return fmt.Errorf("sources[%d] %q: unknown kind %q", i, src.ID, src.Kind)
		}
		if !strings.HasPrefix(src.Path, "/") {
			return fmt.Errorf("sources[%d] %q: path must start with /", i, src.ID)
		}
		if src.Interval < 0 {
			return fmt.Errorf("sources[%d] %q: interval must be positive", i, src.ID)
		}
	}

	switch a.ServerAuth.Mode {
	case "apikey":
		if a.ServerAuth.Header == "" {
			return fmt.Errorf("agent.server_auth.header is required for apikey mode")
		}
	case "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("agent.server_auth: unknown mode %q", a.ServerAuth.Mode)
	}
	return nil
}
