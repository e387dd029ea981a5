package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Load parses a YAML document into a Tree. This is the one concession to
// "configuration loading" spec.md calls an external collaborator: the
// result is just a plain struct, and nothing downstream of this function
// ever re-reads a file or an io.Reader again.
func Load(r io.Reader) (*Tree, error) {
	var tree Tree
	dec := yaml.NewDecoder(r)
	dec.KnownFields(false)
	if err := dec.Decode(&tree); err != nil {
		return nil, &Error{Path: "<root>", Reason: err.Error()}
	}
	if err := validate(&tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

func validate(t *Tree) error {
	switch t.Transport {
	case "mpi", "tcp", "nats":
	default:
		return &Error{Path: "transport", Reason: fmt.Sprintf("unsupported transport %q", t.Transport)}
	}
	if t.Group == "" {
		return &Error{Path: "group", Reason: "must not be empty"}
	}
	if t.Count <= 0 {
		return &Error{Path: "count", Reason: "must be positive"}
	}
	for i, p := range t.Plans {
		if p.Name == "" {
			return &Error{Path: fmt.Sprintf("plans[%d].name", i), Reason: "must not be empty"}
		}
		if len(p.Actions) == 0 {
			return &Error{Path: fmt.Sprintf("plans[%d].actions", i), Reason: "must have at least one action"}
		}
		switch p.OnError {
		case "", "continue", "abort":
		default:
			return &Error{Path: fmt.Sprintf("plans[%d].on-error", i), Reason: "must be \"continue\" or \"abort\""}
		}
	}
	if t.Discovery != nil {
		switch t.Discovery.Strategy {
		case "dns", "mdns":
		default:
			return &Error{Path: "discovery.strategy", Reason: fmt.Sprintf("unsupported strategy %q", t.Discovery.Strategy)}
		}
	}
	for i, sc := range t.Sinks {
		if sc.Name == "" {
			return &Error{Path: fmt.Sprintf("sinks[%d].name", i), Reason: "must not be empty"}
		}
		switch sc.Type {
		case "file", "s3":
		default:
			return &Error{Path: fmt.Sprintf("sinks[%d].type", i), Reason: fmt.Sprintf("unsupported sink type %q", sc.Type)}
		}
	}
	return nil
}
