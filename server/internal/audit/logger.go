package audit

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MaxSnippetRunes caps the response body kept per record.
const MaxSnippetRunes = 2000

// Entry describes one proxied call as handlers report it. URL may still
// contain secrets; Record redacts before anything is written.
type Entry struct {
	Route  string
	URL    string
	Status int // 0 when no upstream response was received
	Body   string
	Err    error
}

// record is the on-disk JSON line.
type record struct {
	Timestamp   time.Time `json:"timestamp"`
	Route       string    `json:"route"`
	URL         string    `json:"url"`
	HTTPStatus  *int      `json:"http_status"`
	BodySnippet *string   `json:"body_snippet"`
	Error       *string   `json:"error"`
}

// Counter is satisfied by prometheus.Counter.
type Counter interface{ Inc() }

// Option customises a Logger.
type Option func(*Logger)

// WithScrub passes error text and body snippets through fn before writing.
func WithScrub(fn func(string) string) Option {
	return func(l *Logger) { l.scrub = fn }
}

// WithParams adds query parameter names to redact alongside SecretParams.
func WithParams(names ...string) Option {
	return func(l *Logger) {
		for _, n := range names {
			if n != "" {
				l.params = append(l.params, n)
			}
		}
	}
}

// WithFailureCounter counts every record that could not be written.
func WithFailureCounter(c Counter) Option {
	return func(l *Logger) { l.failures = c }
}

// Logger appends one JSON line per proxied call to a single file.
// The enabled flag is fixed at construction.
type Logger struct {
	enabled  bool
	path     string
	params   []string
	scrub    func(string) string
	failures Counter
	now      func() time.Time

	mu     sync.Mutex
	file   *os.File
	warned bool
}

// New returns a Logger writing to path. The file is opened lazily on the
// first record, so a disabled Logger never creates it.
func New(enabled bool, path string, opts ...Option) *Logger {
	l := &Logger{
		enabled: enabled,
		path:    path,
		params:  append([]string(nil), SecretParams...),
		scrub:   func(s string) string { return s },
		now:     time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Enabled reports whether records are written.
func (l *Logger) Enabled() bool { return l.enabled }

// Record redacts e and appends it. It never fails the caller: write errors
// are logged once, counted and dropped.
func (l *Logger) Record(e Entry) {
	if l == nil || !l.enabled {
		return
	}

	rec := record{
		Timestamp: l.now().UTC(),
		Route:     e.Route,
		URL:       RedactURL(l.scrub(e.URL), l.params),
	}
	if e.Status != 0 {
		status := e.Status
		rec.HTTPStatus = &status
	}
	if e.Body != "" {
		snippet := l.scrub(truncate(e.Body, MaxSnippetRunes))
		rec.BodySnippet = &snippet
	}
	if e.Err != nil {
		msg := l.scrub(e.Err.Error())
		rec.Error = &msg
	}

	line, err := json.Marshal(rec)
	if err != nil {
		l.fail("marshal", err)
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		f, err := open(l.path)
		if err != nil {
			l.failLocked("open", err)
			return
		}
		l.file = f
	}
	// One Write per line keeps concurrent records from interleaving.
	if _, err := l.file.Write(line); err != nil {
		l.failLocked("write", err)
	}
}

// Close releases the file. Records after Close reopen it.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) fail(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failLocked(op, err)
}

func (l *Logger) failLocked(op string, err error) {
	if l.failures != nil {
		l.failures.Inc()
	}
	if l.warned {
		return
	}
	l.warned = true
	slog.Warn("audit: record dropped", "op", op, "path", l.path, "err", err)
}

func open(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	var b strings.Builder
	for i, r := range []rune(s) {
		if i == n {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}
