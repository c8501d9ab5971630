package normalize

import (
	"github.com/statusdeck/statusdeck/pkg/types"
)

var (
	sessionLists = []probe[[]any]{
		arrayAt("sessions"),
		arrayAt("response", "data"),
		arrayAt("response", "data", "sessions"),
		arrayAt("data", "sessions"),
	}
	sessionTitles = []probe[string]{
		stringAt("full_title"),
		stringAt("title"),
		stringAt("grandparent_title"),
	}
	sessionUsers = []probe[string]{
		stringAt("friendly_name"),
		stringAt("user"),
		stringAt("username"),
		stringAt("User", "title"),
	}
	sessionDevices = []probe[string]{
		stringAt("player"),
		stringAt("device"),
		stringAt("platform"),
		stringAt("Player", "title"),
	}
	sessionOffsets = []probe[float64]{
		floatAt("view_offset"),
		floatAt("viewOffset"),
	}
	sessionDurations = []probe[float64]{
		floatAt("duration"),
	}
)

// Sessions normalizes a media-server activity payload. The session array is
// searched for under "sessions", "response.data", "response.data.sessions"
// and "data.sessions", in that order. No match yields an empty list.
func Sessions(payload []byte) types.SessionList {
	v, ok := decode(payload)
	if !ok {
		return types.SessionList{}
	}
	items, ok := first(v, sessionLists...)
	if !ok {
		return types.SessionList{}
	}

	out := make(types.SessionList, 0, len(items))
	for _, item := range items {
		if _, isObj := item.(map[string]any); !isObj {
			continue
		}
		out = append(out, session(item))
	}
	return out
}

func session(v any) types.Session {
	s := types.Session{Title: "Untitled", User: "unknown"}
	if title, ok := first(v, sessionTitles...); ok {
		s.Title = title
	}
	if user, ok := first(v, sessionUsers...); ok {
		s.User = user
	}
	if device, ok := first(v, sessionDevices...); ok {
		s.Device = ptr(device)
	}
	if pct, ok := first(v, floatAt("progress_percent"), progressFromOffset); ok {
		s.ProgressPercent = ptr(clamp(pct, 0, 100))
	}
	return s
}

// progressFromOffset computes offset/duration*100; a zero duration matches nothing.
func progressFromOffset(v any) (float64, bool) {
	offset, ok := first(v, sessionOffsets...)
	if !ok {
		return 0, false
	}
	duration, ok := first(v, sessionDurations...)
	if !ok || duration <= 0 {
		return 0, false
	}
	return offset / duration * 100, true
}
