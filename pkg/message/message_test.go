package message

import "testing"

func TestFieldIdentifier_DefaultHashKeys(t *testing.T) {
	md := NewMetadata()
	md.Set("category", StringValue("ocean"))
	md.Set("name", StringValue("sst"))
	md.Set("level", IntValue(1))

	msg := NewMessage(TagField, Peer{}, Peer{}, md, nil)

	id, err := msg.FieldIdentifier(nil)
	if err != nil {
		t.Fatalf("fieldIdentifier: %v", err)
	}

	other := NewMessage(TagField, NewPeer("clients", 1), NewPeer("servers", 0), md.Clone(), []byte{1})
	otherID, err := other.FieldIdentifier(nil)
	if err != nil {
		t.Fatalf("fieldIdentifier: %v", err)
	}

	if id != otherID {
		t.Fatalf("parts of the same field must share one identifier: %q vs %q", id, otherID)
	}
}

func TestFieldIdentifier_MissingHashKeyFails(t *testing.T) {
	msg := NewMessage(TagField, Peer{}, Peer{}, NewMetadata(), nil)
	if _, err := msg.FieldIdentifier(nil); err == nil {
		t.Fatalf("expected an error when a hash key is missing")
	}
}
