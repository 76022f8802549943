// Package ledger collects the assumptions query answers rest on, so a
// caller can find every answer that depends on a type once that type's
// subclass set changes. Sessions persist to disk as msgpack or CBOR.
package ledger

import (
	"slices"
	"sync"
	"time"

	"fortio.org/safecast"
	"github.com/google/uuid"

	"hostmeta/internal/resolved"
)

// Entry is one recorded assumption, stored by type and method names so it
// outlives the universe that produced it.
type Entry struct {
	Seq     uint32   `msgpack:"seq" cbor:"seq" json:"seq"`
	Query   string   `msgpack:"query" cbor:"query" json:"query"`
	Kind    string   `msgpack:"kind" cbor:"kind" json:"kind"`
	Context string   `msgpack:"context" cbor:"context" json:"context"`
	Subtype string   `msgpack:"subtype,omitempty" cbor:"subtype,omitempty" json:"subtype,omitempty"`
	Method  string   `msgpack:"method,omitempty" cbor:"method,omitempty" json:"method,omitempty"`
	Impl    string   `msgpack:"impl,omitempty" cbor:"impl,omitempty" json:"impl,omitempty"`
	Types   []string `msgpack:"types" cbor:"types" json:"types"` // every type the fact depends on
}

// Describe renders the assumption the way resolved.Assumption prints.
func (e *Entry) Describe() string {
	switch {
	case e.Impl != "":
		return e.Kind + "(" + e.Method + ", " + e.Context + ", " + e.Impl + ")"
	case e.Subtype != "":
		return e.Kind + "(" + e.Context + ", " + e.Subtype + ")"
	default:
		return e.Kind + "(" + e.Context + ")"
	}
}

// key identifies the fact regardless of which query recorded it.
type key struct {
	kind, context, subtype, method, impl string
}

func (e *Entry) key() key {
	return key{e.Kind, e.Context, e.Subtype, e.Method, e.Impl}
}

// Ledger is a thread-safe, append-only assumption registry for one session.
type Ledger struct {
	mu       sync.RWMutex
	id       uuid.UUID
	created  time.Time
	universe string
	entries  []Entry
	seen     map[key]struct{}
	byType   map[string][]int // type name -> entry indexes
}

// New starts a session for the named universe.
func New(universe string) *Ledger {
	return &Ledger{
		id:       uuid.New(),
		created:  time.Now().UTC(),
		universe: universe,
		seen:     make(map[key]struct{}),
		byType:   make(map[string][]int),
	}
}

func (l *Ledger) ID() uuid.UUID { return l.id }

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Record stores the assumptions produced by query and returns how many
// were new to the session.
func (l *Ledger) Record(query string, as []resolved.Assumption) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	added := 0
	for _, a := range as {
		e := entryOf(query, a)
		k := e.key()
		if _, dup := l.seen[k]; dup {
			continue
		}
		seq, err := safecast.Conv[uint32](len(l.entries) + 1)
		if err != nil {
			return added, err
		}
		e.Seq = seq
		l.seen[k] = struct{}{}
		idx := len(l.entries)
		l.entries = append(l.entries, e)
		for _, name := range e.Types {
			l.byType[name] = append(l.byType[name], idx)
		}
		added++
	}
	return added, nil
}

func entryOf(query string, a resolved.Assumption) Entry {
	e := Entry{
		Query:   query,
		Kind:    a.Kind.String(),
		Context: a.Context.Name(),
	}
	if a.Subtype != nil {
		e.Subtype = a.Subtype.Name()
	}
	if a.Method != nil {
		e.Method = a.Method.String()
	}
	if a.Impl != nil {
		e.Impl = a.Impl.String()
	}
	for _, t := range a.Types() {
		e.Types = append(e.Types, t.Name())
	}
	return e
}

// Entries returns every recorded entry in recording order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// DependentsOf returns the entries that loading a new subtype of typeName
// could invalidate.
func (l *Ledger) DependentsOf(typeName string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.byType[typeName]
	out := make([]Entry, 0, len(idx))
	for _, i := range idx {
		out = append(out, l.entries[i])
	}
	return out
}

// Session returns a persistable snapshot.
func (l *Ledger) Session() *Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Session{
		Schema:   SchemaVersion,
		ID:       l.id.String(),
		Created:  l.created,
		Universe: l.universe,
		Entries:  slices.Clone(l.entries),
	}
}
