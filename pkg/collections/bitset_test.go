package collections

import "testing"

func TestBitsetSetTestClear(t *testing.T) {
	b := NewBitset(100)

	if b.Test(5) {
		t.Error("fresh bitset should be empty")
	}

	b.Set(5)
	b.Set(63)
	b.Set(64)
	if !b.Test(5) || !b.Test(63) || !b.Test(64) {
		t.Error("set ids should test true")
	}
	if b.Test(6) {
		t.Error("unset id should test false")
	}
	if b.Count() != 3 {
		t.Errorf("expected count 3, got %d", b.Count())
	}

	b.Clear(63)
	if b.Test(63) {
		t.Error("cleared id should test false")
	}
	if b.Count() != 2 {
		t.Errorf("expected count 2, got %d", b.Count())
	}
}

func TestBitsetGrow(t *testing.T) {
	b := NewBitset(10)

	b.Set(1000)
	if !b.Test(1000) {
		t.Error("out-of-range Set should grow and stick")
	}
	if b.Size() != 1001 {
		t.Errorf("expected size 1001, got %d", b.Size())
	}
}

func TestBitsetBounds(t *testing.T) {
	b := NewBitset(10)

	// Negative and out-of-range ids are safe no-ops.
	b.Set(-1)
	b.Clear(-1)
	b.Clear(9999)
	if b.Test(-1) || b.Test(9999) {
		t.Error("out-of-range ids should test false")
	}
	if b.Count() != 0 {
		t.Errorf("expected empty set, got count %d", b.Count())
	}
}

func TestBitsetZeroSize(t *testing.T) {
	b := NewBitset(0)
	b.Set(3)
	if !b.Test(3) {
		t.Error("zero-size bitset should default to a usable range")
	}
}
