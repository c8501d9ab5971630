// Package upstream is the only code that holds upstream credentials.
//
// A Client is built once at startup from the upstream configuration. Handlers
// name a Category and a logical Target; the client resolves the base URL and
// injects the credential using that category's scheme:
//
//	hypervisor  Authorization: PVEAPIToken=<token>
//	containers  ?<key_param>=<key>
//	media       ?apikey=<key>
//	chat        Authorization: Bearer <token>   (optional)
//
// A required credential that is unset fails with ErrMissingCredential before
// any connection is attempted. Error messages pass through Scrub, and Secret
// renders as [REDACTED] from fmt, encoding/json and log/slog.
package upstream
