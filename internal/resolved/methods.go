package resolved

import (
	"fmt"
	"sync"

	"hostmeta/internal/meta"
	"hostmeta/internal/trace"
)

// MethodHandle is the canonical wrapper for one host method. Handles are
// interned on their declaring node, so identical methods compare equal with
// ==.
type MethodHandle struct {
	id         meta.MethodID
	name       string
	descriptor string
	holder     *TypeNode
	mods       meta.Modifiers
}

// ID returns the native identity the handle is interned under.
func (m *MethodHandle) ID() meta.MethodID { return m.id }

func (m *MethodHandle) Name() string { return m.name }

// Descriptor returns the method descriptor, e.g. "(I)V".
func (m *MethodHandle) Descriptor() string { return m.descriptor }

// Holder returns the declaring type.
func (m *MethodHandle) Holder() *TypeNode         { return m.holder }
func (m *MethodHandle) Modifiers() meta.Modifiers { return m.mods }

// IsConcrete reports whether m has a body, i.e. is not abstract. Default
// interface methods are concrete.
func (m *MethodHandle) IsConcrete() bool { return !m.mods.IsAbstract() }

func (m *MethodHandle) IsPublic() bool  { return m.mods.IsPublic() }
func (m *MethodHandle) IsPrivate() bool { return m.mods.IsPrivate() }
func (m *MethodHandle) IsStatic() bool  { return m.mods.IsStatic() }
func (m *MethodHandle) IsFinal() bool   { return m.mods.IsFinal() }

// IsConstructor reports whether m is an instance initializer.
func (m *MethodHandle) IsConstructor() bool { return m.name == constructorName }

// CanBeStaticallyBound reports whether every call of m reaches m itself.
func (m *MethodHandle) CanBeStaticallyBound() bool {
	return (m.IsFinal() || m.IsPrivate() || m.holder.IsLeaf()) && m.IsConcrete()
}

func (m *MethodHandle) String() string {
	return fmt.Sprintf("%s.%s%s", m.holder.name, m.name, m.descriptor)
}

// AccessContext keeps interned handles alive across compiler invocations.
// Register is called once per handle while the declaring node's method
// cache is locked; it must not call back into the universe.
type AccessContext interface {
	Register(h *MethodHandle)
}

// HandleRegistry is the default AccessContext: it records handles in
// registration order.
type HandleRegistry struct {
	mu      sync.Mutex
	handles []*MethodHandle
}

func NewHandleRegistry() *HandleRegistry { return &HandleRegistry{} }

func (r *HandleRegistry) Register(h *MethodHandle) {
	r.mu.Lock()
	r.handles = append(r.handles, h)
	r.mu.Unlock()
}

// Handles returns a snapshot of the registered handles.
func (r *HandleRegistry) Handles() []*MethodHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*MethodHandle, len(r.handles))
	copy(out, r.handles)
	return out
}

func (r *HandleRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// methodCache is a small slot array scanned linearly, backed by a map once
// the slots are full. Both are guarded by mu.
type methodCache struct {
	mu       sync.Mutex
	slots    []*MethodHandle
	overflow map[meta.MethodID]*MethodHandle
}

// intern returns the canonical handle for info, creating and registering it
// on first observation.
func (n *TypeNode) intern(info meta.MethodInfo) *MethodHandle {
	c := &n.methods
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, h := range c.slots {
		if h == nil {
			h = n.newHandle(info)
			c.slots[i] = h
			return h
		}
		if h.id == info.ID {
			return h
		}
	}
	if h, ok := c.overflow[info.ID]; ok {
		return h
	}
	if c.overflow == nil {
		c.overflow = make(map[meta.MethodID]*MethodHandle)
	}
	h := n.newHandle(info)
	c.overflow[info.ID] = h
	return h
}

func (n *TypeNode) newHandle(info meta.MethodInfo) *MethodHandle {
	h := &MethodHandle{
		id:         info.ID,
		name:       info.Name,
		descriptor: info.Descriptor,
		holder:     n,
		mods:       info.Modifiers,
	}
	n.u.access.Register(h)
	trace.Point(n.u.tracer, trace.ScopeCache, "method", h.String())
	return h
}
