package config

import (
	"strings"
	"testing"
)

func TestLoad_RejectsUnrecognizedDiscoveryStrategy(t *testing.T) {
	yaml := `
transport: tcp
group: g
count: 1
discovery:
  strategy: carrier-pigeon
`
	if _, err := Load(strings.NewReader(yaml)); err == nil {
		t.Fatalf("expected an error for an unrecognized discovery strategy")
	}
}

func TestLoad_AcceptsDNSDiscovery(t *testing.T) {
	yaml := `
transport: tcp
group: g
count: 1
discovery:
  strategy: dns
  srv-name: _multio-server._tcp.example.internal.
  resolver: 127.0.0.1:53
`
	tree, err := Load(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tree.Discovery == nil || tree.Discovery.Strategy != "dns" || tree.Discovery.Resolver != "127.0.0.1:53" {
		t.Fatalf("unexpected discovery config: %+v", tree.Discovery)
	}
}

func TestLoad_RejectsSinkWithoutName(t *testing.T) {
	yaml := `
transport: tcp
group: g
count: 1
sinks:
  - type: file
    dir: ./out
`
	if _, err := Load(strings.NewReader(yaml)); err == nil {
		t.Fatalf("expected an error for a sink with no name")
	}
}

func TestLoad_RejectsSinkWithUnknownType(t *testing.T) {
	yaml := `
transport: tcp
group: g
count: 1
sinks:
  - name: primary
    type: ftp
`
	if _, err := Load(strings.NewReader(yaml)); err == nil {
		t.Fatalf("expected an error for an unsupported sink type")
	}
}

func TestLoad_AcceptsFileAndS3Sinks(t *testing.T) {
	yaml := `
transport: tcp
group: g
count: 1
sinks:
  - name: primary
    type: file
    dir: ./out
  - name: archive
    type: s3
    bucket: my-bucket
    region: us-west-2
`
	tree, err := Load(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tree.Sinks) != 2 || tree.Sinks[1].Bucket != "my-bucket" {
		t.Fatalf("unexpected sinks: %+v", tree.Sinks)
	}
}
