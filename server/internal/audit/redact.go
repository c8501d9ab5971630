package audit

import (
	"strings"
)

// Redacted replaces secret query parameter values in logged URLs.
const Redacted = "REDACTED"

// SecretParams are the query parameter names always redacted.
var SecretParams = []string{"key", "apikey", "api_key", "token", "access_token"}

// RedactURL replaces the value of every query parameter in raw whose name
// matches one of params, case-insensitively, with Redacted. Parameter order,
// other values and the rest of the URL are preserved byte for byte. raw does
// not need to be a valid URL.
//
// A secret value written unescaped may itself contain '&' or '#'. Segments
// after a secret that carry no '=' are taken as part of its value, and a
// fragment that follows a secret parameter is dropped with it.
func RedactURL(raw string, params []string) string {
	start := strings.IndexByte(raw, '?')
	if start < 0 {
		return raw
	}
	end := len(raw)
	if i := strings.IndexByte(raw[start:], '#'); i >= 0 {
		end = start + i
	}
	tail := raw[end:]

	pairs := strings.Split(raw[start+1:end], "&")
	out := make([]string, 0, len(pairs))
	for i := 0; i < len(pairs); i++ {
		name, _, _ := strings.Cut(pairs[i], "=")
		if !matches(name, params) {
			out = append(out, pairs[i])
			continue
		}
		out = append(out, name+"="+Redacted)
		for i+1 < len(pairs) && !strings.Contains(pairs[i+1], "=") {
			i++
		}
		if i == len(pairs)-1 {
			tail = ""
		}
	}
	return raw[:start+1] + strings.Join(out, "&") + tail
}

func matches(name string, params []string) bool {
	if name == "" {
		return false
	}
	for _, p := range params {
		if strings.EqualFold(name, p) {
			return true
		}
	}
	return false
}
