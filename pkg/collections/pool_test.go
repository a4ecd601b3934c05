package collections

import "testing"

func TestSlicePool(t *testing.T) {
	pool := NewSlicePool[int](8)

	s := pool.Get()
	if len(*s) != 0 {
		t.Errorf("expected empty slice, got len %d", len(*s))
	}

	*s = append(*s, 1, 2, 3)
	pool.Put(s)

	s2 := pool.Get()
	if len(*s2) != 0 {
		t.Errorf("expected slice cleared on Put, got len %d", len(*s2))
	}
	pool.Put(s2)
}

func TestSlicePoolDefaultCapacity(t *testing.T) {
	pool := NewSlicePool[byte](0)
	s := pool.Get()
	if cap(*s) != 256 {
		t.Errorf("expected default capacity 256, got %d", cap(*s))
	}
	pool.Put(s)
}

func TestPredefinedPools(t *testing.T) {
	f := GetFloat32Slice()
	*f = append(*f, 1.5)
	PutFloat32Slice(f)

	u := GetUint32Slice()
	*u = append(*u, 42)
	PutUint32Slice(u)

	if got := GetFloat32Slice(); len(*got) != 0 {
		t.Errorf("expected cleared float32 slice, got len %d", len(*got))
	}
	if got := GetUint32Slice(); len(*got) != 0 {
		t.Errorf("expected cleared uint32 slice, got len %d", len(*got))
	}
}
