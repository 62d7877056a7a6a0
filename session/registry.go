package session

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/allbin/go-serialhost"
	"github.com/oklog/ulid/v2"
)

// Handle identifies one open serial port within a Registry
type Handle uint32

// Port is the port resource a session drives. Ports returned by
// serial.Open satisfy it.
type Port interface {
	io.ReadWriteCloser
	BaudRate() int
	SetBaudRate(rate int) error
	SetBreak() error
	ClearBreak() error
	SetRTS(state bool) error
	SetDTR(state bool) error
	BytesToRead() (int, error)
	BytesToWrite() (int, error)
	Drain() error
	FlushInput() error
	FlushOutput() error
	Flush() error
	GetModemSignals() (serial.ModemSignals, error)
}

// Info is a snapshot of an open session
type Info struct {
	Handle   Handle
	Path     string
	BaudRate int
	ID       ulid.ULID
	OpenedAt time.Time
}

// Entry owns one open port. Its mutex serializes every operation on the
// port, so two calls on one handle never interleave.
type Entry struct {
	mu       sync.Mutex
	port     Port
	closed   bool
	handle   Handle
	path     string
	id       ulid.ULID
	openedAt time.Time
}

func newEntry(p Port, path string) *Entry {
	return &Entry{
		port:     p,
		path:     path,
		id:       ulid.Make(),
		openedAt: time.Now(),
	}
}

// Info returns a snapshot of the entry. It does not wait for an operation
// in progress on the port.
func (e *Entry) Info() Info {
	return Info{
		Handle:   e.handle,
		Path:     e.path,
		BaudRate: e.port.BaudRate(),
		ID:       e.id,
		OpenedAt: e.openedAt,
	}
}

// Registry maps handles to open ports. Handles are small integers; a new
// port always gets the lowest value not currently in use.
type Registry struct {
	mu      sync.RWMutex
	entries map[Handle]*Entry
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Handle]*Entry)}
}

// Allocate returns the lowest handle not in use. The value is not
// reserved; use Add to allocate and insert atomically.
func (r *Registry) Allocate() Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allocate()
}

// allocate scans upward from 0. Callers hold r.mu.
func (r *Registry) allocate() Handle {
	var h Handle
	for {
		if _, ok := r.entries[h]; !ok {
			return h
		}
		h++
	}
}

// Insert stores e under h. It never replaces a live entry.
func (r *Registry) Insert(h Handle, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[h]; ok {
		return ErrHandleInUse
	}
	e.handle = h
	r.entries[h] = e
	return nil
}

// Add allocates the lowest free handle for e and stores it
func (r *Registry) Add(e *Entry) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.allocate()
	e.handle = h
	r.entries[h] = e
	return h
}

// Lookup returns the entry for h
func (r *Registry) Lookup(h Handle) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[h]
	return e, ok
}

// Remove deletes h and returns the entry it held. The handle value is free
// for reuse as soon as Remove returns.
func (r *Registry) Remove(h Handle) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[h]
	if ok {
		delete(r.entries, h)
	}
	return e, ok
}

// Len returns the number of open handles
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Handles returns the open handles in ascending order
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	handles := make([]Handle, 0, len(r.entries))
	for h := range r.entries {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}
