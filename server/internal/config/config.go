package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort    = 3000
	DefaultAuditPath   = "logs/proxy.log"
	DefaultKeyParam    = "key"
	DefaultChatModel   = "gpt-4o-mini"
	DefaultChatTimeout = 30 * time.Second
)

// NodePattern matches the hypervisor node names accepted in routes and config.
var NodePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Config holds the server configuration parsed from config.yaml.
// The `agent:` key in the same file is ignored.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstreams UpstreamsConfig `yaml:"upstreams"`
}

// ServerConfig holds the inbound HTTP settings.
type ServerConfig struct {
	// HTTPPort is the port the proxy and static file server listen on (default 3000).
	HTTPPort int `yaml:"http_port"`

	// StaticDir is served at / when set. Source files and the audit log
	// directory are never served from it.
	StaticDir string `yaml:"static_dir"`

	// Public is the only configuration a browser ever sees, via /env.js.
	Public PublicConfig `yaml:"public"`

	Audit AuditConfig `yaml:"audit"`

	// Auth guards every route except /healthz. Off by default.
	Auth AuthConfig `yaml:"auth"`

	// TLS selects the trust used for every outbound upstream call.
	TLS TLSConfig `yaml:"tls"`
}

// PublicConfig is exposed to browsers. It must never gain a credential field.
type PublicConfig struct {
	Title   string                   `yaml:"title"`
	Nodes   []string                 `yaml:"nodes"`
	VMs     []string                 `yaml:"vms"`
	Refresh map[string]time.Duration `yaml:"refresh"`
}

// AuditConfig controls the append-only proxy audit log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AuthConfig specifies how clients authenticate to the server. Secrets are
// read from the environment, never from the file.
type AuthConfig struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// Header carries the key when Mode == "apikey".
	Header string `yaml:"header"`
	KeyEnv string `yaml:"key_env"`

	TokenEnv string `yaml:"token_env"`

	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key resolved from the environment.
func (a AuthConfig) Key() string { return fromEnv(a.KeyEnv) }

// Token returns the bearer token resolved from the environment.
func (a AuthConfig) Token() string { return fromEnv(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string { return fromEnv(a.PasswordEnv) }

// TLSConfig selects how upstream certificates are verified.
type TLSConfig struct {
	// CAFile is a PEM bundle appended to the system roots.
	CAFile string `yaml:"ca_file"`

	// InsecureSkipVerify disables verification entirely. Opt-in only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// UpstreamsConfig names every third-party service the server proxies.
type UpstreamsConfig struct {
	Hypervisor HypervisorConfig `yaml:"hypervisor"`
	Containers ContainersConfig `yaml:"containers"`
	Media      MediaConfig      `yaml:"media"`
	Chat       ChatConfig       `yaml:"chat"`
}

// HypervisorConfig describes a Proxmox VE API endpoint.
type HypervisorConfig struct {
	BaseURL string `yaml:"base_url"`

	// TokenEnv names the environment variable holding the full
	// "user@realm!tokenid=secret" API token.
	TokenEnv string `yaml:"token_env"`

	// DefaultNode is used by the VM route when no ?node= is given.
	DefaultNode string `yaml:"default_node"`
}

// Token returns the API token resolved from the environment.
func (h HypervisorConfig) Token() string { return fromEnv(h.TokenEnv) }

// ContainersConfig describes the container host status endpoint.
type ContainersConfig struct {
	URL    string `yaml:"url"`
	KeyEnv string `yaml:"key_env"`

	// KeyParam is the query parameter carrying the key (default "key").
	KeyParam string `yaml:"key_param"`
}

// Key returns the access key resolved from the environment.
func (c ContainersConfig) Key() string { return fromEnv(c.KeyEnv) }

// MediaConfig describes a Tautulli-style media server API.
type MediaConfig struct {
	BaseURL string `yaml:"base_url"`
	KeyEnv  string `yaml:"key_env"`
}

// Key returns the API key resolved from the environment.
func (m MediaConfig) Key() string { return fromEnv(m.KeyEnv) }

// ChatConfig describes an OpenAI-compatible chat completion endpoint.
type ChatConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	TokenEnv string        `yaml:"token_env"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Token returns the bearer token resolved from the environment. Empty is
// valid: local endpoints often need no token.
func (c ChatConfig) Token() string { return fromEnv(c.TokenEnv) }

func fromEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if cfg.Upstreams.Containers.KeyParam == "" {
		cfg.Upstreams.Containers.KeyParam = DefaultKeyParam
	}
	if cfg.Upstreams.Chat.Model == "" {
		cfg.Upstreams.Chat.Model = DefaultChatModel
	}
	if cfg.Server.Audit.Path == "" {
		cfg.Server.Audit.Path = DefaultAuditPath
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Audit: AuditConfig{
				Enabled: true,
				Path:    DefaultAuditPath,
			},
		},
		Upstreams: UpstreamsConfig{
			Containers: ContainersConfig{KeyParam: DefaultKeyParam},
			Chat: ChatConfig{
				Model:   DefaultChatModel,
				Timeout: DefaultChatTimeout,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}

	switch a := cfg.Server.Auth; a.Mode {
	case "", "none", "bearer":
	case "apikey":
		if a.Header == "" {
			return fmt.Errorf("server.auth.header is required for apikey mode")
		}
	case "basic":
		if a.Username == "" {
			return fmt.Errorf("server.auth.username is required for basic mode")
		}
	default:
		return fmt.Errorf("server.auth: unknown mode %q", a.Mode)
	}

	up := cfg.Upstreams
	urls := []struct {
		field, value string
	}{
		{"upstreams.hypervisor.base_url", up.Hypervisor.BaseURL},
		{"upstreams.containers.url", up.Containers.URL},
		{"upstreams.media.base_url", up.Media.BaseURL},
		{"upstreams.chat.endpoint", up.Chat.Endpoint},
	}
	for _, u := range urls {
		if err := checkURL(u.value); err != nil {
			return fmt.Errorf("%s: %w", u.field, err)
		}
	}

	if n := up.Hypervisor.DefaultNode; n != "" && !NodePattern.MatchString(n) {
		return fmt.Errorf("upstreams.hypervisor.default_node %q contains invalid characters", n)
	}
	for _, n := range cfg.Server.Public.Nodes {
		if !NodePattern.MatchString(n) {
			return fmt.Errorf("server.public.nodes: %q contains invalid characters", n)
		}
	}
	if up.Chat.Timeout <= 0 {
		return fmt.Errorf("upstreams.chat.timeout must be positive")
	}
	for k, d := range cfg.Server.Public.Refresh {
		if d <= 0 {
			return fmt.Errorf("server.public.refresh.%s must be positive", k)
		}
	}
	return nil
}

// checkURL accepts an empty value (upstream not configured) or an absolute
// http(s) URL.
func checkURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q unsupported: want http|https", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
