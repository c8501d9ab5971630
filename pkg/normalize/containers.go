package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/statusdeck/statusdeck/pkg/types"
)

// NoUptime is the placeholder shown when no uptime can be derived.
const NoUptime = "—"

// uptimePattern extracts the "Up 3 hours" part of a Docker status line,
// leaving off any parenthesised health suffix.
var uptimePattern = regexp.MustCompile(`(?i)\bup\s+[^()]+`)

var (
	containerLists = []probe[[]any]{
		arrayAt(),
		arrayAt("containers"),
		arrayAt("data"),
	}
	containerNames = []probe[string]{
		firstName,
		stringAt("Name"),
		stringAt("name"),
		stringAt("Names"),
		shortID("Id"),
		shortID("ID"),
		shortID("id"),
	}
	containerStates = []probe[string]{
		stringAt("State"),
		stringAt("State", "Status"),
		stringAt("state"),
	}
	containerStatuses = []probe[string]{
		stringAt("Status"),
		stringAt("status"),
	}
	containerStarted = []probe[string]{
		startedAt("StartedAt"),
		startedAt("State", "StartedAt"),
		startedAt("Started"),
		startedAt("started_at"),
	}
)

// Containers normalizes a container host status payload. Entries that are
// not JSON objects are skipped.
func Containers(payload []byte) types.ContainerList {
	v, ok := decode(payload)
	if !ok {
		return types.ContainerList{}
	}
	items, ok := first(v, containerLists...)
	if !ok {
		return types.ContainerList{}
	}

	out := make(types.ContainerList, 0, len(items))
	for _, item := range items {
		if _, isObj := item.(map[string]any); !isObj {
			continue
		}
		out = append(out, container(item))
	}
	return out
}

func container(v any) types.Container {
	name, ok := first(v, containerNames...)
	if !ok {
		name = "unnamed"
	}
	state, _ := first(v, containerStates...)
	status, _ := first(v, containerStatuses...)

	c := types.Container{
		Name:       name,
		Running:    containerRunning(v, state, status),
		StatusText: status,
	}
	if c.StatusText == "" {
		c.StatusText = state
	}
	if c.StatusText == "" {
		c.StatusText = NoUptime
	}

	uptime := NoUptime
	if m := uptimePattern.FindString(status); m != "" {
		uptime = strings.TrimSpace(m)
	} else if started, ok := first(v, containerStarted...); ok {
		uptime = started
	}
	c.UptimeText = &uptime
	return c
}

func containerRunning(v any, state, status string) bool {
	if strings.EqualFold(state, "running") {
		return true
	}
	if strings.Contains(strings.ToLower(status), "up") {
		return true
	}
	if online, ok := boolAt("Online")(v); ok && online {
		return true
	}
	if running, ok := boolAt("State", "Running")(v); ok && running {
		return true
	}
	exited := strings.EqualFold(state, "exited") ||
		strings.HasPrefix(strings.ToLower(status), "exited")
	if code, ok := first(v, intAt("ExitCode"), intAt("State", "ExitCode")); ok && code == 0 && !exited {
		return true
	}
	return false
}

// firstName returns Names[0] with Docker's leading slash removed.
func firstName(v any) (string, bool) {
	names, ok := arrayAt("Names")(v)
	if !ok || len(names) == 0 {
		return "", false
	}
	s, ok := asString(names[0])
	if !ok {
		return "", false
	}
	s = strings.TrimLeft(s, "/")
	return s, s != ""
}

func shortID(key string) probe[string] {
	return func(v any) (string, bool) {
		id, ok := stringAt(key)(v)
		if !ok {
			return "", false
		}
		if len(id) > 12 {
			id = id[:12]
		}
		return id, true
	}
}

// startedAt formats a start timestamp, skipping Docker's zero time.
func startedAt(path ...string) probe[string] {
	return func(v any) (string, bool) {
		x, ok := lookup(v, path...)
		if !ok {
			return "", false
		}
		if secs, ok := x.(float64); ok {
			if secs <= 0 {
				return "", false
			}
			return "Since " + time.Unix(int64(secs), 0).UTC().Format(time.RFC3339), true
		}
		s, ok := asString(x)
		if !ok {
			return "", false
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			if t.Year() <= 1 {
				return "", false
			}
			return "Since " + t.UTC().Format(time.RFC3339), true
		}
		return "Since " + s, true
	}
}
