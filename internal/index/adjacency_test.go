package index

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjacencyStoreBasics(t *testing.T) {
	s := NewAdjacencyStore()

	assert.Nil(t, s.Get(1))
	assert.Equal(t, 0, s.Len())

	s.Set(1, []uint32{2, 3, 4})
	assert.Equal(t, []uint32{2, 3, 4}, s.Get(1))
	assert.Equal(t, 1, s.Len())

	s.Append(1, 5)
	assert.Equal(t, []uint32{2, 3, 4, 5}, s.Get(1))

	s.Clear(1)
	assert.Empty(t, s.Get(1))
	assert.NotNil(t, s.Get(1), "cleared entry stays present")

	s.PutIfAbsent(7)
	assert.NotNil(t, s.Get(7))
	s.Set(7, []uint32{1})
	s.PutIfAbsent(7)
	assert.Equal(t, []uint32{1}, s.Get(7), "put_if_absent keeps existing list")
}

func TestAdjacencyStoreSnapshotIsolation(t *testing.T) {
	s := NewAdjacencyStore()
	s.Set(0, []uint32{1, 2})

	snap := s.Get(0)
	snap[0] = 99
	assert.Equal(t, []uint32{1, 2}, s.Get(0), "snapshot mutation must not leak")
}

func TestAdjacencyStoreUpdate(t *testing.T) {
	s := NewAdjacencyStore()
	s.Set(3, []uint32{10, 20})

	s.Update(3, func(list []uint32) []uint32 {
		return append(list, 30)
	})
	assert.Equal(t, []uint32{10, 20, 30}, s.Get(3))
}

func TestAdjacencyStoreConcurrent(t *testing.T) {
	s := NewAdjacencyStore()
	const ids = 100
	const appendsPerID = 20

	var wg sync.WaitGroup
	for id := uint32(0); id < ids; id++ {
		wg.Add(1)
		go func(id uint32) {
			defer wg.Done()
			for j := uint32(0); j < appendsPerID; j++ {
				s.Append(id, j)
			}
		}(id)
	}
	wg.Wait()

	require.Equal(t, ids, s.Len())
	for id := uint32(0); id < ids; id++ {
		assert.Len(t, s.Get(id), appendsPerID)
	}
}
