// Package config loads the server configuration from config.yaml.
//
// Sections:
//   - server.http_port    listen port (default 3000)
//   - server.static_dir   optional browser UI directory served at /
//   - server.public       values published to browsers via /env.js
//   - server.audit        append-only proxy log (enabled, path)
//   - server.tls          outbound trust: ca_file or insecure_skip_verify
//   - upstreams.*         hypervisor, containers, media, chat endpoints
//
// Secrets never appear in the file. Each upstream names the environment
// variable holding its credential (token_env, key_env) and the value is read
// through an accessor such as HypervisorConfig.Token.
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
