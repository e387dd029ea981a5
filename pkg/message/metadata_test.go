package message

import "testing"

func TestMetadata_SetGet(t *testing.T) {
	md := NewMetadata()
	md.Set("category", StringValue("ocean"))
	md.Set("level", IntValue(1))

	v, err := md.GetString("category")
	if err != nil || v != "ocean" {
		t.Fatalf("expected ocean, got %q err=%v", v, err)
	}

	if _, err := md.Get("missing"); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestMetadata_TrySetIsNoopOnExisting(t *testing.T) {
	md := NewMetadata()
	md.Set("k", IntValue(1))

	inserted := md.TrySet("k", IntValue(2))
	if inserted {
		t.Fatalf("trySet should not have inserted over an existing key")
	}

	v, _ := md.GetInt("k")
	if v != 1 {
		t.Fatalf("existing value should be unchanged, got %d", v)
	}
}

// TestableProperty (spec.md §8): metadata.update(m).update(m) == metadata.update(m)
func TestMetadata_UpdateIsIdempotent(t *testing.T) {
	base := NewMetadata()
	base.Set("a", IntValue(1))

	patch := NewMetadata()
	patch.Set("a", IntValue(2))
	patch.Set("b", StringValue("x"))

	once := base.Clone()
	once.Update(patch)

	twice := base.Clone()
	twice.Update(patch)
	twice.Update(patch)

	if !once.Equal(twice) {
		t.Fatalf("update should be idempotent: %v vs %v", once, twice)
	}
}

func TestMetadata_UpdateReturnsShadowedValues(t *testing.T) {
	base := NewMetadata()
	base.Set("a", IntValue(1))
	base.Set("b", StringValue("kept"))

	patch := NewMetadata()
	patch.Set("a", IntValue(99))

	shadowed := base.Update(patch)

	v, err := shadowed.GetInt("a")
	if err != nil || v != 1 {
		t.Fatalf("expected shadowed value 1 for a, got %d err=%v", v, err)
	}
	if shadowed.Has("b") {
		t.Fatalf("b was never overwritten, should not appear in shadowed map")
	}

	newA, _ := base.GetInt("a")
	if newA != 99 {
		t.Fatalf("base should now hold the patched value, got %d", newA)
	}
}

// TestableProperty (spec.md §8): a.merge(b) preserves every a-key's value
// and moves in only b-keys absent from a.
func TestMetadata_MergePreservesReceiverKeys(t *testing.T) {
	a := NewMetadata()
	a.Set("shared", StringValue("a-wins"))
	a.Set("onlyA", IntValue(1))

	b := NewMetadata()
	b.Set("shared", StringValue("b-loses"))
	b.Set("onlyB", IntValue(2))

	a.Merge(&b)

	shared, _ := a.GetString("shared")
	if shared != "a-wins" {
		t.Fatalf("merge must not overwrite receiver keys, got %q", shared)
	}

	onlyB, err := a.GetInt("onlyB")
	if err != nil || onlyB != 2 {
		t.Fatalf("merge must move in keys absent from receiver, got %d err=%v", onlyB, err)
	}

	if b.Has("onlyB") {
		t.Fatalf("merge should move onlyB out of the donor map")
	}
	if !b.Has("shared") {
		t.Fatalf("merge should leave colliding keys in the donor map")
	}
}
