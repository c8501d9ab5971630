package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/statusdeck/statusdeck/agent/internal/poller"
	"github.com/statusdeck/statusdeck/pkg/types"
)

// Placeholder stands in for any value that is absent or unknown.
const Placeholder = "—"

// maxRows caps the per-item lines of list cards.
const maxRows = 6

// maxLineRunes caps free-text lines such as error messages and raw bodies.
const maxLineRunes = 60

// Badge is the headline state of a card.
type Badge string

const (
	BadgeOnline  Badge = "Online"
	BadgeOffline Badge = "Offline"
	BadgeError   Badge = "Error"
)

// SourceMeta identifies the source a card belongs to.
type SourceMeta struct {
	ID    string
	Title string
	Kind  types.Kind
}

// CardView is everything needed to draw one card.
type CardView struct {
	SourceID  string
	Title     string
	Badge     Badge
	Lines     []string
	UpdatedAt time.Time

	// Availability is the share of recent polls that succeeded, in percent.
	// Card leaves it nil; the board fills it in.
	Availability *float64
}

// Card maps one poll outcome to its card. It depends on nothing but its
// arguments, so the same outcome always yields the same card.
//
// A failed poll still produces a full card: the kind's usual lines with
// placeholder values, followed by the reason. An Outcome with neither a
// record nor an error is a source that has not reported yet.
func Card(src SourceMeta, o poller.Outcome) CardView {
	c := CardView{
		SourceID:  src.ID,
		Title:     src.Title,
		UpdatedAt: o.At,
	}
	if c.Title == "" {
		c.Title = src.ID
	}

	switch {
	case o.Err != nil:
		c.Badge = BadgeOffline
		var se *poller.StatusError
		if errors.As(o.Err, &se) {
			c.Badge = BadgeError
		}
		c.Lines = append(placeholderLines(src.Kind), reason(o.Err))
	case o.Record == nil:
		c.Badge = BadgeOffline
		c.Lines = append(placeholderLines(src.Kind), "waiting for first poll")
	default:
		c.Badge, c.Lines = recordLines(o.Record)
	}
	return c
}

func recordLines(r types.Record) (Badge, []string) {
	switch r := r.(type) {
	case types.NodeStatus:
		return onlineBadge(r.Online), nodeLines(r)
	case types.ContainerList:
		return BadgeOnline, containerLines(r)
	case types.SessionList:
		return BadgeOnline, sessionLines(r)
	case types.VMPowerState:
		return onlineBadge(r.Online), []string{vmLine(r.VMID, r.RawStatus)}
	case types.Raw:
		b := BadgeOnline
		if r.Status < 200 || r.Status > 299 {
			b = BadgeError
		}
		return b, []string{fmt.Sprintf("HTTP %d", r.Status), clip(oneLine(r.Body))}
	}
	return BadgeError, []string{fmt.Sprintf("unsupported record %T", r)}
}

func onlineBadge(online bool) Badge {
	if online {
		return BadgeOnline
	}
	return BadgeOffline
}

func nodeLines(n types.NodeStatus) []string {
	cpu := Placeholder
	if n.CPUPercent != nil {
		cpu = fmt.Sprintf("%.1f%%", *n.CPUPercent)
	}
	return []string{
		"CPU     " + cpu,
		"Memory  " + bytesText(n.MemoryUsedBytes) + " / " + bytesText(n.MemoryTotalBytes),
	}
}

func bytesText(v *int64) string {
	if v == nil {
		return Placeholder
	}
	return humanize.IBytes(uint64(*v))
}

func containerLines(l types.ContainerList) []string {
	lines := []string{fmt.Sprintf("%d/%d running", l.Running(), len(l))}
	for i, c := range l {
		if i == maxRows {
			lines = append(lines, fmt.Sprintf("+%d more", len(l)-maxRows))
			break
		}
		mark := "○"
		if c.Running {
			mark = "●"
		}
		lines = append(lines, fmt.Sprintf("%s %s  %s", mark, c.Name, orPlaceholder(c.UptimeText)))
	}
	return lines
}

func sessionLines(l types.SessionList) []string {
	if len(l) == 0 {
		return []string{"no active streams"}
	}
	lines := []string{fmt.Sprintf("%d active", len(l))}
	for i, s := range l {
		if i == maxRows {
			lines = append(lines, fmt.Sprintf("+%d more", len(l)-maxRows))
			break
		}
		progress := Placeholder
		if s.ProgressPercent != nil {
			progress = fmt.Sprintf("%.0f%%", *s.ProgressPercent)
		}
		lines = append(lines,
			clip(s.User+": "+s.Title),
			"  "+orPlaceholder(s.Device)+"  "+progress)
	}
	return lines
}

func vmLine(vmid, status string) string {
	if vmid == "" {
		vmid = Placeholder
	}
	if status == "" {
		status = Placeholder
	}
	return "VM " + vmid + ": " + status
}

func placeholderLines(kind types.Kind) []string {
	switch kind {
	case types.KindNode:
		return nodeLines(types.NodeStatus{})
	case types.KindContainers:
		return []string{Placeholder + " running"}
	case types.KindMedia:
		return []string{Placeholder + " active"}
	case types.KindVM:
		return []string{vmLine("", "")}
	}
	return []string{"HTTP " + Placeholder}
}

func reason(err error) string {
	var se *poller.StatusError
	switch {
	case errors.As(err, &se):
		if se.Message != "" {
			return clip(se.Message)
		}
		return fmt.Sprintf("server returned %d", se.Status)
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	}
	return "unreachable"
}

func orPlaceholder(s *string) string {
	if s == nil || *s == "" {
		return Placeholder
	}
	return *s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxLineRunes {
		return s
	}
	return string(r[:maxLineRunes-1]) + "…"
}
