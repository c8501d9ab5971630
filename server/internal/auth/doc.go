// Package auth provides access control for statusdeck-server.
//
// Middleware(cfg, skip) wraps an http.Handler and checks an API key header,
// a bearer token or basic credentials depending on cfg.Mode. These are the
// same modes the agent's server_auth block speaks.
//
// When the mode is "none" or its secret is not set in the environment, all
// requests pass through (useful for a dashboard on a trusted LAN). Comparisons
// are constant-time.
package auth
