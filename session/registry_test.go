package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAllocatesLowestFree(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, Handle(0), r.Allocate())
	for want := Handle(0); want < 4; want++ {
		h := r.Add(newEntry(newLoopback("/dev/ttyS0", 9600), "/dev/ttyS0"))
		assert.Equal(t, want, h)
	}

	_, ok := r.Remove(1)
	require.True(t, ok)
	assert.Equal(t, Handle(1), r.Allocate())
	assert.Equal(t, Handle(1), r.Add(newEntry(newLoopback("/dev/ttyS1", 9600), "/dev/ttyS1")))
	assert.Equal(t, Handle(4), r.Allocate())
}

func TestRegistryAllocateDoesNotReserve(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, r.Allocate(), r.Allocate())
	assert.Equal(t, 0, r.Len())
}

func TestRegistryInsertNeverOverwrites(t *testing.T) {
	r := NewRegistry()
	first := newEntry(newLoopback("/dev/ttyS0", 9600), "/dev/ttyS0")
	second := newEntry(newLoopback("/dev/ttyS1", 9600), "/dev/ttyS1")

	require.NoError(t, r.Insert(3, first))
	err := r.Insert(3, second)
	require.ErrorIs(t, err, ErrHandleInUse)

	got, ok := r.Lookup(3)
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, Handle(0), r.Allocate())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	h := r.Add(newEntry(newLoopback("/dev/ttyS0", 9600), "/dev/ttyS0"))

	e, ok := r.Remove(h)
	require.True(t, ok)
	assert.Equal(t, "/dev/ttyS0", e.path)

	_, ok = r.Remove(h)
	assert.False(t, ok)
	_, ok = r.Lookup(h)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryHandlesSorted(t *testing.T) {
	r := NewRegistry()
	for _, h := range []Handle{7, 2, 5} {
		require.NoError(t, r.Insert(h, newEntry(newLoopback("/dev/ttyS0", 9600), "/dev/ttyS0")))
	}
	assert.Equal(t, []Handle{2, 5, 7}, r.Handles())
	assert.Equal(t, Handle(0), r.Allocate())
}

func TestRegistryConcurrentAdd(t *testing.T) {
	r := NewRegistry()
	const n = 64

	var wg sync.WaitGroup
	handles := make([]Handle, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles[i] = r.Add(newEntry(newLoopback("/dev/ttyS0", 9600), "/dev/ttyS0"))
		}()
	}
	wg.Wait()

	seen := make(map[Handle]bool)
	for _, h := range handles {
		assert.False(t, seen[h], "handle %d allocated twice", h)
		seen[h] = true
		assert.Less(t, h, Handle(n))
	}
	assert.Equal(t, n, r.Len())
}

func TestEntryInfo(t *testing.T) {
	r := NewRegistry()
	e := newEntry(newLoopback("/dev/ttyUSB0", 57600), "/dev/ttyUSB0")
	h := r.Add(e)

	info := e.Info()
	assert.Equal(t, h, info.Handle)
	assert.Equal(t, "/dev/ttyUSB0", info.Path)
	assert.Equal(t, 57600, info.BaudRate)
	assert.NotZero(t, info.ID)
	assert.False(t, info.OpenedAt.IsZero())
}
