// Package audit writes one redacted JSON line per proxied upstream call.
//
// Records are append-only and never read back by the server. Secret query
// parameters are replaced in the URL before a line is marshalled, so no
// partially written line can ever carry a credential. A failing log never
// affects the request being logged.
package audit
