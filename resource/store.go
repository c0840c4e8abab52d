package resource

import (
	"sync"

	"github.com/wasit-fuzz/wasit/errs"
	"github.com/wasit-fuzz/wasit/spec"
)

// EventType describes a resource lifecycle transition.
type EventType uint8

const (
	EventDeclared EventType = iota
	EventInstalled
	EventFulfilled
)

// Event is broadcast to Observers on every store mutation.
type Event struct {
	Type EventType
	ID   uint64
}

// Observer receives resource lifecycle notifications, letting the
// orchestrator and reporter watch installs without polling the store.
type Observer interface {
	OnResourceEvent(Event)
}

// Entry is one live resource: an id, its declared type, and the bytes
// backing it. len(Bytes) == spec.LayoutOf(Type).Size except for
// variable-length types (String, Array), where Bytes holds the raw
// materialized body and length is implicit.
type Entry struct {
	Type  spec.Type
	Bytes []byte
	ID    uint64
}

// Store is the host-side, id-keyed table of live resources (§4.B). A
// single Store instance is owned by exactly one orchestrator; see §5.
type Store struct {
	entries    map[uint64]Entry
	fulfillers map[uint64]map[uint64]struct{} // id -> set of ids that fulfill it
	observers  []Observer
	mu         sync.RWMutex
}

// New creates an empty resource store.
func New() *Store {
	return &Store{
		entries:    make(map[uint64]Entry),
		fulfillers: make(map[uint64]map[uint64]struct{}),
	}
}

// Decl installs a host-seeded resource (e.g. a preopen fd). It fails
// with errs.KindDuplicateID if id already exists.
func (s *Store) Decl(id uint64, t spec.Type, bytes []byte) error {
	return s.install(id, t, bytes, EventDeclared)
}

// InstallResult installs a resource produced by a call's ResultSpec. It
// fails with errs.KindDuplicateID if id already exists.
func (s *Store) InstallResult(id uint64, t spec.Type, bytes []byte) error {
	return s.install(id, t, bytes, EventInstalled)
}

func (s *Store) install(id uint64, t spec.Type, bytes []byte, evt EventType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		return errs.DuplicateID(id)
	}
	s.entries[id] = Entry{ID: id, Type: t, Bytes: bytes}
	s.notify(Event{Type: evt, ID: id})
	return nil
}

// Get reads a live resource by id. It fails with errs.KindMissing if
// no such resource exists.
func (s *Store) Get(id uint64) (spec.Type, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, nil, errs.Missing(id)
	}
	return e.Type, e.Bytes, nil
}

// Has reports whether a resource is live, without erroring.
func (s *Store) Has(id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Fulfill records that fulfiller describes or sizes fulfilled (§3: "a
// resource's value may fulfill another" — e.g. an NByte size result
// fulfilling a FileSliceLen read buffer).
func (s *Store) Fulfill(fulfilled, fulfiller uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fulfillers[fulfilled] == nil {
		s.fulfillers[fulfilled] = make(map[uint64]struct{})
	}
	s.fulfillers[fulfilled][fulfiller] = struct{}{}
	s.notify(Event{Type: EventFulfilled, ID: fulfilled})
}

// FulfillersOf returns the set of live resource ids that fulfill id.
func (s *Store) FulfillersOf(id uint64) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.fulfillers[id]
	out := make([]uint64, 0, len(set))
	for fid := range set {
		out = append(out, fid)
	}
	return out
}

// ByHandleSubKind returns the ids of live resources whose Type is a
// spec.HandleType with the given SubKind ("" matches any handle type),
// used by the generator to filter e.g. directory fds for path_open
// (§4.C.1).
func (s *Store) ByHandleSubKind(subKind string) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []uint64
	for id, e := range s.entries {
		ht, ok := e.Type.(spec.HandleType)
		if !ok {
			continue
		}
		if subKind == "" || ht.SubKind == subKind {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of live resources.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers o to receive future Events.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Unsubscribe removes a previously registered Observer.
func (s *Store) Unsubscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, obs := range s.observers {
		if obs == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *Store) notify(e Event) {
	for _, o := range s.observers {
		o.OnResourceEvent(e)
	}
}
