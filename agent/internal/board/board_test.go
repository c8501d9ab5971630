package board

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/statusdeck/statusdeck/agent/internal/config"
	"github.com/statusdeck/statusdeck/agent/internal/poller"
	"github.com/statusdeck/statusdeck/agent/internal/render"
	"github.com/statusdeck/statusdeck/pkg/types"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func tick(n int) time.Time { return t0.Add(time.Duration(n) * time.Second) }

func sources() []config.Source {
	return []config.Source{
		{ID: "pve", Title: "Proxmox", Kind: types.KindNode},
		{ID: "docker", Kind: types.KindContainers},
		{ID: "plex", Kind: types.KindMedia},
	}
}

func ok(id string, r types.Record, at time.Time) poller.Outcome {
	return poller.Outcome{SourceID: id, Kind: r.Kind(), Record: r, At: at}
}

func failed(id string, at time.Time) poller.Outcome {
	return poller.Outcome{SourceID: id, Err: errors.New("connection refused"), At: at}
}

func TestBoard_EveryConfiguredSourceHasACard(t *testing.T) {
	b := New(sources())
	cards := b.Snapshot()
	if len(cards) != 3 {
		t.Fatalf("cards = %d, want 3", len(cards))
	}
	wantIDs := []string{"pve", "docker", "plex"}
	for i, c := range cards {
		if c.SourceID != wantIDs[i] {
			t.Errorf("card %d = %q, want %q", i, c.SourceID, wantIDs[i])
		}
		if c.Badge != render.BadgeOffline || c.Availability != nil {
			t.Errorf("pending card = %+v", c)
		}
	}
	if b.Pending() != 3 {
		t.Errorf("Pending = %d, want 3", b.Pending())
	}
	if cards[0].Title != "Proxmox" || cards[1].Title != "docker" {
		t.Errorf("titles = %q, %q", cards[0].Title, cards[1].Title)
	}
}

func TestBoard_PublishUpdatesOnlyItsSource(t *testing.T) {
	b := New(sources())
	b.Publish(ok("docker", types.ContainerList{{Name: "web", Running: true}}, tick(1)))
	b.Publish(failed("pve", tick(1)))

	if b.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", b.Pending())
	}
	cards := b.Snapshot()
	if cards[0].Badge != render.BadgeOffline || cards[0].Lines[len(cards[0].Lines)-1] != "unreachable" {
		t.Errorf("pve card = %+v", cards[0])
	}
	if cards[1].Badge != render.BadgeOnline || cards[1].Lines[0] != "1/1 running" {
		t.Errorf("docker card = %+v", cards[1])
	}
	if cards[2].Lines[len(cards[2].Lines)-1] != "waiting for first poll" {
		t.Errorf("plex card = %+v", cards[2])
	}
}

func TestBoard_UnknownSourceIgnored(t *testing.T) {
	b := New(sources())
	b.Publish(ok("ghost", types.SessionList{}, tick(1)))
	if len(b.Snapshot()) != 3 {
		t.Error("unknown source added a card")
	}
	if _, ok := b.Availability("ghost"); ok {
		t.Error("availability reported for unknown source")
	}
}

func TestBoard_UpdatedAtNeverMovesBack(t *testing.T) {
	b := New(sources())
	b.Publish(ok("plex", types.SessionList{}, tick(10)))
	b.Publish(ok("plex", types.SessionList{{Title: "late", User: "u"}}, tick(5)))

	c := b.Snapshot()[2]
	if !c.UpdatedAt.Equal(tick(10)) {
		t.Errorf("UpdatedAt = %v, want %v", c.UpdatedAt, tick(10))
	}
	if c.Lines[0] != "1 active" {
		t.Errorf("content not replaced: %q", c.Lines)
	}
}

func TestBoard_Availability(t *testing.T) {
	b := New(sources())
	if _, ok := b.Availability("pve"); ok {
		t.Fatal("availability before first outcome")
	}

	// 5 successes, 4 failures.
	for i := 0; i < 9; i++ {
		if i%2 == 0 {
			b.Publish(ok("pve", types.NodeStatus{Online: true}, tick(i)))
		} else {
			b.Publish(failed("pve", tick(i)))
		}
	}
	got, _ := b.Availability("pve")
	if want := 5.0 / 9.0 * 100; got < want-0.01 || got > want+0.01 {
		t.Errorf("availability = %.2f, want %.2f", got, want)
	}
	if c := b.Snapshot()[0]; c.Availability == nil || *c.Availability != got {
		t.Errorf("card availability = %v", c.Availability)
	}
}

func TestBoard_AvailabilityRollingWindow(t *testing.T) {
	b := New(sources())
	for i := 0; i < availabilityWindow+5; i++ {
		b.Publish(failed("docker", tick(i)))
	}
	for i := 0; i < 6; i++ {
		b.Publish(ok("docker", types.ContainerList{}, tick(100+i)))
	}
	got, _ := b.Availability("docker")
	if want := 6.0 / float64(availabilityWindow) * 100; got != want {
		t.Errorf("availability = %.2f, want %.2f", got, want)
	}
}

func TestBoard_SetSourcesKeepsAndPrunes(t *testing.T) {
	b := New(sources())
	b.Publish(ok("pve", types.NodeStatus{Online: true}, tick(1)))
	b.Publish(ok("plex", types.SessionList{}, tick(1)))

	b.SetSources([]config.Source{
		{ID: "plex", Title: "Plex", Kind: types.KindMedia},
		{ID: "vm108", Kind: types.KindVM},
		{ID: "pve", Kind: types.KindRaw}, // kind changed: starts over
	})

	cards := b.Snapshot()
	if len(cards) != 3 || cards[0].SourceID != "plex" || cards[1].SourceID != "vm108" || cards[2].SourceID != "pve" {
		t.Fatalf("cards = %+v", cards)
	}
	if cards[0].Title != "Plex" || cards[0].Lines[0] != "no active streams" || cards[0].Availability == nil {
		t.Errorf("kept card = %+v", cards[0])
	}
	if cards[2].Availability != nil {
		t.Errorf("re-kinded source kept history: %+v", cards[2])
	}
	if _, ok := b.Availability("docker"); ok {
		t.Error("removed source still tracked")
	}
}

func TestBoard_SnapshotIsACopy(t *testing.T) {
	b := New(sources())
	b.Publish(ok("docker", types.ContainerList{{Name: "web"}}, tick(1)))
	snap := b.Snapshot()
	snap[1].Lines[0] = "mutated"
	if b.Snapshot()[1].Lines[0] == "mutated" {
		t.Error("Snapshot shares line storage with the board")
	}
}

func TestBoard_ConcurrentPublish(t *testing.T) {
	b := New(sources())
	var wg sync.WaitGroup
	for _, id := range []string{"pve", "docker", "plex"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b.Publish(failed(id, tick(i)))
				_ = b.Snapshot()
			}
		}(id)
	}
	wg.Wait()
	for _, c := range b.Snapshot() {
		if !c.UpdatedAt.Equal(tick(199)) {
			t.Errorf("%s UpdatedAt = %v", c.SourceID, c.UpdatedAt)
		}
	}
}

var _ poller.Sink = (*Board)(nil)
