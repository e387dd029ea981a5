package transport

import "fmt"

// ErrorKind enumerates the TransportError variants named in spec.md §7.
type ErrorKind uint8

const (
	Unreachable ErrorKind = iota
	Closed
	Framing
	Timeout
)

func (k ErrorKind) String() string {
	switch k {
	case Unreachable:
		return "Unreachable"
	case Closed:
		return "Closed"
	case Framing:
		return "Framing"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Error is the TransportError kind from spec.md §7: connection-level errors
// are logged and the connection torn down; Framing errors additionally carry
// up to 64 bytes of the offending context for the log line.
type Error struct {
	Kind    ErrorKind
	Peer    string
	Reason  string
	Context []byte
}

func (e *Error) Error() string {
	if len(e.Context) > 0 {
		return fmt.Sprintf("transport: %s (%s): %s [%x]", e.Kind, e.Peer, e.Reason, e.Context)
	}
	return fmt.Sprintf("transport: %s (%s): %s", e.Kind, e.Peer, e.Reason)
}

// contextSnippet truncates b to at most 64 bytes, the bound spec.md §7
// names for framing-error log context.
func contextSnippet(b []byte) []byte {
	if len(b) > 64 {
		return b[:64]
	}
	return b
}
