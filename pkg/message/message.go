package message

import "strings"

// Tag identifies the kind of payload a Message carries and, indirectly,
// which action(s) in a plan's chain are interested in it.
type Tag uint32

const (
	TagEmpty Tag = iota
	TagOpen
	TagClose
	TagGrib
	TagDomain
	TagMask
	TagField
	TagStepComplete
	TagStatisticsUpdate
)

func (t Tag) String() string {
	switch t {
	case TagEmpty:
		return "Empty"
	case TagOpen:
		return "Open"
	case TagClose:
		return "Close"
	case TagGrib:
		return "Grib"
	case TagDomain:
		return "Domain"
	case TagMask:
		return "Mask"
	case TagField:
		return "Field"
	case TagStepComplete:
		return "StepComplete"
	case TagStatisticsUpdate:
		return "StatisticsUpdate"
	default:
		return "Unknown"
	}
}

// Header carries everything about a Message except its payload.
type Header struct {
	Tag         Tag
	Source      Peer
	Destination Peer
	Metadata    Metadata
}

// Message is a framed, self-describing unit carried across the transport:
// a Header plus an owned opaque byte payload. Messages are value-like:
// moves transfer the payload, copies are explicit and rare — in Go terms,
// treat Payload as owned by whoever holds the Message and avoid aliasing it
// across concurrently-processed Messages.
type Message struct {
	Header
	Payload []byte
}

// NewMessage builds a Message with the given tag, source/destination peers
// and metadata. The payload is taken by reference, matching the move
// semantics of the original protocol.
func NewMessage(tag Tag, source, destination Peer, md Metadata, payload []byte) Message {
	return Message{
		Header: Header{
			Tag:         tag,
			Source:      source,
			Destination: destination,
			Metadata:    md,
		},
		Payload: payload,
	}
}

// DefaultHashKeys is the default tuple of metadata keys used to derive a
// FieldIdentifier when no configuration overrides it.
var DefaultHashKeys = []string{"category", "name", "level"}

// FieldIdentifier derives a deterministic string key from the configured
// tuple of metadata keys, shared by every part of one global field
// regardless of which client produced it.
func (m Message) FieldIdentifier(hashKeys []string) (string, error) {
	if len(hashKeys) == 0 {
		hashKeys = DefaultHashKeys
	}
	var sb strings.Builder
	for i, key := range hashKeys {
		v, err := m.Metadata.Get(key)
		if err != nil {
			return "", err
		}
		if i > 0 {
			sb.WriteByte('\x1f') // unit separator, keeps distinct tuples from colliding when values contain plain text
		}
		sb.WriteString(v.StringOrEmpty())
	}
	return sb.String(), nil
}

// Domain returns the "domain" metadata key used to look up the DomainMap
// entry relevant to this message, or "" if unset (e.g. control messages
// that aren't domain-scoped).
func (m Message) Domain() string {
	v, ok := m.Metadata.GetOpt("domain")
	if !ok {
		return ""
	}
	s, err := v.String()
	if err != nil {
		return ""
	}
	return s
}
