package board

import (
	"log/slog"
	"sync"

	"github.com/statusdeck/statusdeck/agent/internal/config"
	"github.com/statusdeck/statusdeck/agent/internal/poller"
	"github.com/statusdeck/statusdeck/agent/internal/render"
)

// availabilityWindow is the number of recent poll outcomes tracked per source.
const availabilityWindow = 20

// Board is a thread-safe in-memory view of the latest card per source.
// It implements poller.Sink.
type Board struct {
	mu      sync.RWMutex
	order   []render.SourceMeta
	entries map[string]*entry
}

// entry holds one source's card and availability history.
type entry struct {
	meta    render.SourceMeta
	card    render.CardView
	seen    bool
	history []bool // newest last
}

// New returns a Board for sources. Every source has a card from the start.
func New(sources []config.Source) *Board {
	b := &Board{entries: make(map[string]*entry)}
	b.SetSources(sources)
	return b
}

// SetSources replaces the configured source list. Sources that remain keep
// their card and history; removed sources are dropped.
func (b *Board) SetSources(sources []config.Source) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order := make([]render.SourceMeta, 0, len(sources))
	entries := make(map[string]*entry, len(sources))
	for _, s := range sources {
		meta := render.SourceMeta{ID: s.ID, Title: s.DisplayTitle(), Kind: s.Kind}
		order = append(order, meta)

		e, ok := b.entries[s.ID]
		if !ok || e.meta.Kind != meta.Kind {
			e = &entry{}
		}
		e.meta = meta
		if e.seen {
			// Title changes apply without waiting for the next poll.
			e.card.Title = meta.Title
		} else {
			e.card = render.Card(meta, poller.Outcome{SourceID: s.ID, Kind: s.Kind})
		}
		entries[s.ID] = e
	}
	b.order, b.entries = order, entries
}

// Publish records o. Outcomes for unknown sources are dropped.
func (b *Board) Publish(o poller.Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[o.SourceID]
	if !ok {
		slog.Debug("board: outcome for unknown source", "source", o.SourceID)
		return
	}

	prev := e.card.UpdatedAt
	e.card = render.Card(e.meta, o)
	if e.seen && e.card.UpdatedAt.Before(prev) {
		e.card.UpdatedAt = prev
	}
	e.seen = true
	e.record(o.Err == nil)
}

// Snapshot returns copies of all cards in configured order, each with its
// availability filled in.
func (b *Board) Snapshot() []render.CardView {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]render.CardView, 0, len(b.order))
	for _, m := range b.order {
		e := b.entries[m.ID]
		c := e.card
		c.Lines = append([]string(nil), e.card.Lines...)
		if pct, ok := e.availability(); ok {
			c.Availability = &pct
		}
		out = append(out, c)
	}
	return out
}

// Pending returns how many sources have not reported yet.
func (b *Board) Pending() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, e := range b.entries {
		if !e.seen {
			n++
		}
	}
	return n
}

// Availability returns the success percentage over the recent window, or
// false before the source's first outcome.
func (b *Board) Availability(id string) (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[id]
	if !ok {
		return 0, false
	}
	return e.availability()
}

func (e *entry) record(success bool) {
	if len(e.history) >= availabilityWindow {
		e.history = e.history[1:]
	}
	e.history = append(e.history, success)
}

func (e *entry) availability() (float64, bool) {
	if len(e.history) == 0 {
		return 0, false
	}
	var ok int
	for _, s := range e.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(e.history)) * 100, true
}
