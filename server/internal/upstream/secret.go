package upstream

import (
	"log/slog"
	"strings"
)

// Placeholder replaces credential values wherever text might leave the process.
const Placeholder = "[REDACTED]"

// Secret is a credential value. Every formatting path renders it as
// Placeholder; only this package reads the underlying string.
type Secret string

func (Secret) String() string   { return Placeholder }
func (Secret) GoString() string { return Placeholder }

func (Secret) MarshalJSON() ([]byte, error) { return []byte(`"` + Placeholder + `"`), nil }

func (Secret) LogValue() slog.Value { return slog.StringValue(Placeholder) }

func (s Secret) empty() bool { return strings.TrimSpace(string(s)) == "" }

func (s Secret) reveal() string { return string(s) }
