// Package config reduces configuration to the typed tree spec.md §6
// describes — parsing YAML/JSON is the caller's concern; this package only
// carries a loader built on a real YAML library (SPEC_FULL.md §9.3) for
// callers who want one, and every constructor elsewhere in the module
// accepts a *Tree directly, never a path or raw bytes.
package config

// Tree is the recognized top-level configuration schema (spec.md §6).
type Tree struct {
	Transport string         `yaml:"transport"` // "mpi" | "tcp" | "nats"
	Group     string         `yaml:"group"`
	Count     int            `yaml:"count"`
	Servers   []ServerGroup  `yaml:"servers"`
	Plans     []PlanConfig   `yaml:"plans"`
	HashKeys  []string       `yaml:"hash-keys"`
	Discovery *Discovery     `yaml:"discovery,omitempty"`
	Sinks     []SinkConfig   `yaml:"sinks,omitempty"`
	Integrity bool           `yaml:"integrity,omitempty"`
	Extra     map[string]any `yaml:"-"`
}

// SinkConfig names one constructible sink.Sink (spec.md §6's
// "sink.sinks: [SinkConfig]"), keyed by Name for a "sink" action's "name"
// to reference.
type SinkConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // "file" | "s3"

	// Dir is used by Type "file".
	Dir string `yaml:"dir,omitempty"`

	// Endpoint, Bucket, Prefix, AccessKey, SecretKey, Region, and
	// UsePathStyle are used by Type "s3".
	Endpoint     string `yaml:"endpoint,omitempty"`
	Bucket       string `yaml:"bucket,omitempty"`
	Prefix       string `yaml:"prefix,omitempty"`
	AccessKey    string `yaml:"access-key,omitempty"`
	SecretKey    string `yaml:"secret-key,omitempty"`
	Region       string `yaml:"region,omitempty"`
	UsePathStyle bool   `yaml:"use-path-style,omitempty"`
}

// ServerGroup names a host and the ports its server processes listen on.
type ServerGroup struct {
	Host  string `yaml:"host"`
	Ports []int  `yaml:"ports"`
}

// Discovery configures the optional peer-discovery strategies
// (SPEC_FULL.md §10): "dns" (SRV records) or "mdns" (LAN multicast). When
// set, it resolves the server group's dial addresses instead of (or in
// addition to) the "servers" list's host/ports.
type Discovery struct {
	Strategy string `yaml:"strategy"` // "dns" | "mdns"
	SRVName  string `yaml:"srv-name,omitempty"`
	// Resolver is the "host:port" of the DNS server to query (strategy "dns").
	Resolver string `yaml:"resolver,omitempty"`
	// Tag is the service tag peers advertise under (strategy "mdns").
	Tag string `yaml:"mdns-tag,omitempty"`
	// WindowSeconds bounds how long to collect announcements (strategy "mdns").
	WindowSeconds int `yaml:"window-seconds,omitempty"`
}

// PlanConfig is one entry in the "plans" list.
type PlanConfig struct {
	Name    string         `yaml:"name"`
	Actions []ActionConfig `yaml:"actions"`
	OnError string         `yaml:"on-error,omitempty"` // "continue" | "abort", default "abort"
	Match   map[string]any `yaml:"match,omitempty"`
}

// ActionConfig is one entry in a plan's "actions" list. Type is
// recognized by the action registry (see internal/bootstrap); the rest of the
// keys are action-specific and read lazily from Raw.
type ActionConfig struct {
	Type string         `yaml:"type"`
	Raw  map[string]any `yaml:",inline"`
}
