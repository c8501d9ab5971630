package poller

import (
	"context"
	"sync"
	"time"

	"github.com/statusdeck/statusdeck/agent/internal/config"
	"github.com/statusdeck/statusdeck/pkg/types"
)

const defaultTimeout = 10 * time.Second

// Response is one successful fetch.
type Response struct {
	Status int
	Body   []byte
}

// Fetcher retrieves the server path of a source.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (*Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, path string) (*Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, path string) (*Response, error) { return f(ctx, path) }

// Outcome is the result of one poll. Exactly one of Record and Err is set.
type Outcome struct {
	SourceID string
	Kind     types.Kind
	Record   types.Record
	Err      error
	At       time.Time
}

// Sink receives every Outcome. Publish must not block for long; it is called
// from the source's own loop.
type Sink interface {
	Publish(o Outcome)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(o Outcome)

func (f SinkFunc) Publish(o Outcome) { f(o) }

// State is the lifecycle state of a Loop.
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// Option customises a Loop.
type Option func(*Loop)

// WithTimeout bounds every fetch of the loop.
func WithTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithClock replaces time.Now for Outcome timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// Loop polls one source on its own ticker until stopped.
type Loop struct {
	src     config.Source
	fetch   Fetcher
	sink    Sink
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an idle Loop for src.
func New(src config.Source, fetch Fetcher, sink Sink, opts ...Option) *Loop {
	l := &Loop{
		src:     src,
		fetch:   fetch,
		sink:    sink,
		timeout: defaultTimeout,
		now:     time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	if l.src.Interval <= 0 {
		l.src.Interval = config.DefaultInterval
	}
	return l
}

// ID returns the source ID.
func (l *Loop) ID() string { return l.src.ID }

// State reports whether the loop is running.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start begins polling: one fetch immediately, then one per interval.
// Calling Start on a polling loop does nothing.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Polling {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.state, l.cancel, l.done = Polling, cancel, done
	go l.run(ctx, done)
}

// Stop cancels the loop and any in-flight fetch, then waits for the loop
// goroutine to exit. Calling Stop on an idle loop does nothing.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.state == Idle {
		l.mu.Unlock()
		return
	}
	cancel, done := l.cancel, l.done
	l.state, l.cancel, l.done = Idle, nil, nil
	l.mu.Unlock()

	cancel()
	<-done
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer func() {
		// A cancelled parent context ends the loop without Stop.
		l.mu.Lock()
		if l.done == done {
			l.state, l.cancel, l.done = Idle, nil, nil
		}
		l.mu.Unlock()
		close(done)
	}()

	l.poll(ctx)

	// Ticks that arrive during a slow poll are dropped, not queued, and the
	// ticker keeps its phase.
	ticker := time.NewTicker(l.src.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.poll(ctx)
		}
	}
}

func (l *Loop) poll(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, l.timeout)
	resp, err := l.fetch.Fetch(fctx, l.src.Path)
	cancel()
	if ctx.Err() != nil {
		// Stopping; the result belongs to no one.
		return
	}

	o := Outcome{SourceID: l.src.ID, Kind: l.src.Kind, At: l.now()}
	if err != nil {
		o.Err = err
	} else {
		o.Record = Normalize(l.src.Kind, resp)
	}
	l.sink.Publish(o)
}

// Group runs a fixed set of loops. Loops share nothing; the group only
// starts and stops them together.
type Group struct {
	loops []*Loop
}

// NewGroup returns a Group over loops.
func NewGroup(loops ...*Loop) *Group {
	return &Group{loops: loops}
}

// Len returns the number of loops.
func (g *Group) Len() int { return len(g.loops) }

// Start starts every loop.
func (g *Group) Start(ctx context.Context) {
	for _, l := range g.loops {
		l.Start(ctx)
	}
}

// Stop stops every loop concurrently and waits for all of them.
func (g *Group) Stop() {
	var wg sync.WaitGroup
	for _, l := range g.loops {
		wg.Add(1)
		go func(l *Loop) {
			defer wg.Done()
			l.Stop()
		}(l)
	}
	wg.Wait()
}
