// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent}: the `agent:` section; server keys in the same file are ignored
//   - AgentConfig: server_url, title, interval, fetch_timeout, render_interval,
//     sources [], server_auth, tls
//   - Source: id, title, kind (node|containers|media|vm|raw), path, interval
//   - AuthConfig: mode (apikey|bearer|basic|none), matching the server's
//     server.auth block; Key(), Token() and Password() resolve from the
//     environment
//
// Load(path) reads the YAML file, applies defaults (30s interval, 10s fetch
// timeout, 1s redraw), then validates required fields and enums.
//
// Watch(ctx, path, onChange) watches the file's directory with fsnotify,
// debounces editor bursts and calls onChange with the newly parsed Config.
// The agent rebuilds its pollers from the new source list.
package config
