package domain

import "testing"

func TestEncodeDecodeDescriptor_RoundTripsWithoutMask(t *testing.T) {
	d := &Descriptor{GlobalSize: 8, GlobalIndices: []int{4, 5, 6, 7}}

	got, err := DecodeDescriptor(EncodeDescriptor(d))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.GlobalSize != d.GlobalSize {
		t.Fatalf("GlobalSize = %d, want %d", got.GlobalSize, d.GlobalSize)
	}
	if len(got.GlobalIndices) != len(d.GlobalIndices) {
		t.Fatalf("GlobalIndices length = %d, want %d", len(got.GlobalIndices), len(d.GlobalIndices))
	}
	for i := range d.GlobalIndices {
		if got.GlobalIndices[i] != d.GlobalIndices[i] {
			t.Fatalf("GlobalIndices[%d] = %d, want %d", i, got.GlobalIndices[i], d.GlobalIndices[i])
		}
	}
	if got.Mask != nil {
		t.Fatalf("expected nil Mask, got %v", got.Mask)
	}
}

func TestEncodeDecodeDescriptor_RoundTripsWithMask(t *testing.T) {
	d := &Descriptor{
		GlobalSize:    4,
		GlobalIndices: []int{0, 1, 2, 3},
		Mask:          []bool{true, false, true, true},
	}

	got, err := DecodeDescriptor(EncodeDescriptor(d))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Mask) != len(d.Mask) {
		t.Fatalf("Mask length = %d, want %d", len(got.Mask), len(d.Mask))
	}
	for i := range d.Mask {
		if got.Mask[i] != d.Mask[i] {
			t.Fatalf("Mask[%d] = %v, want %v", i, got.Mask[i], d.Mask[i])
		}
	}
}

func TestDecodeDescriptor_RejectsTruncatedPayload(t *testing.T) {
	full := EncodeDescriptor(&Descriptor{GlobalSize: 8, GlobalIndices: []int{0, 1, 2, 3}})
	if _, err := DecodeDescriptor(full[:len(full)-2]); err == nil {
		t.Fatalf("expected an error decoding a truncated descriptor payload")
	}
}
