// Package types defines the normalized status records shared by the server
// and the agent. Every upstream response, whatever its shape, is reduced to
// one of these value types before it is displayed.
//
// Records are plain values: they hold no references to upstream payloads and
// are safe to copy between goroutines. Optional numeric fields are pointers
// so that "unknown" (nil) is distinguishable from zero.
package types
