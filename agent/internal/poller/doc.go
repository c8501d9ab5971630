// Package poller runs one independent polling loop per dashboard source.
//
// Each Loop owns its ticker and context. It fetches once on Start, then once
// per interval, bounds every fetch with its own timeout, normalizes the body
// according to the source kind and publishes an Outcome to a Sink. A failed
// fetch publishes an Outcome with Err set and the loop carries on; nothing a
// source does can delay or stop another source's loop.
//
// HTTPFetcher is the production Fetcher: a GET against statusdeck-server with
// the optional server_auth credentials.
package poller
