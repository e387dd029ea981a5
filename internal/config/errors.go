package config

import "fmt"

// Error is the ConfigurationError kind from spec.md §7: malformed config or
// an unknown action type, fatal at startup, reported with the offending
// path so an operator can find it in the YAML without a stack trace.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration error at %s: %s", e.Path, e.Reason)
}
