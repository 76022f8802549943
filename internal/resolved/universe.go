package resolved

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"hostmeta/internal/meta"
	"hostmeta/internal/trace"
)

// DefaultMethodCacheSlots is the fast-path capacity of each node's method
// cache.
const DefaultMethodCacheSlots = 8

// DefaultSignaturePolymorphicHolders lists the holders whose methods are
// never fast-accepted by dispatch resolution.
var DefaultSignaturePolymorphicHolders = []string{
	"java/lang/invoke/MethodHandle",
	"java/lang/invoke/VarHandle",
}

// Config tunes a Universe. The zero value is usable.
type Config struct {
	MethodCacheSlots            int
	SignaturePolymorphicHolders []string // nil selects the defaults
	Tracer                      trace.Tracer

	// Access receives every newly interned method handle. Defaults to a
	// fresh HandleRegistry.
	Access AccessContext
}

// Universe is the append-only set of canonical type nodes for one provider.
type Universe struct {
	p           meta.Provider
	tracer      trace.Tracer
	access      AccessContext
	slots       int
	polymorphic map[string]struct{}

	nodes  sync.Map   // meta.TypeRef -> *TypeNode
	create sync.Mutex // guards node creation only
	count  atomic.Int64
	root   *TypeNode
}

// NewUniverse binds a universe to p and materializes the root type.
func NewUniverse(p meta.Provider, cfg Config) (*Universe, error) {
	if cfg.MethodCacheSlots <= 0 {
		cfg.MethodCacheSlots = DefaultMethodCacheSlots
	}
	holders := cfg.SignaturePolymorphicHolders
	if holders == nil {
		holders = DefaultSignaturePolymorphicHolders
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.Nop
	}
	if cfg.Access == nil {
		cfg.Access = NewHandleRegistry()
	}
	u := &Universe{
		p:           p,
		tracer:      cfg.Tracer,
		access:      cfg.Access,
		slots:       cfg.MethodCacheSlots,
		polymorphic: make(map[string]struct{}, len(holders)),
	}
	for _, h := range holders {
		u.polymorphic[h] = struct{}{}
	}
	root, err := u.Node(p.Root())
	if err != nil {
		return nil, fmt.Errorf("root type: %w", err)
	}
	u.root = root
	return u, nil
}

// Provider returns the metadata provider behind u.
func (u *Universe) Provider() meta.Provider { return u.p }

// Access returns the context new method handles are registered with.
func (u *Universe) Access() AccessContext { return u.access }

// Root returns the root of the class tree.
func (u *Universe) Root() *TypeNode { return u.root }

// Len reports how many nodes have been materialized.
func (u *Universe) Len() int { return int(u.count.Load()) }

// Lookup returns the node for a fully-qualified type name.
func (u *Universe) Lookup(name string) (*TypeNode, error) {
	ref, err := u.p.Lookup(name)
	if err != nil {
		return nil, err
	}
	return u.Node(ref)
}

// Node returns the canonical node for ref, creating it on first use.
// Concurrent first observations converge on one node.
func (u *Universe) Node(ref meta.TypeRef) (*TypeNode, error) {
	if n, ok := u.nodes.Load(ref); ok {
		return n.(*TypeNode), nil
	}
	if err := u.checkSuperChain(ref); err != nil {
		return nil, err
	}
	return u.materialize(ref)
}

// materialize builds the node for ref once its superclass chain is known
// to be acyclic. The superclass, component and elemental nodes are created
// first, outside the creation lock, so the lock only ever covers one node.
func (u *Universe) materialize(ref meta.TypeRef) (*TypeNode, error) {
	if n, ok := u.nodes.Load(ref); ok {
		return n.(*TypeNode), nil
	}
	info, err := u.p.TypeInfo(ref)
	if err != nil {
		return nil, err
	}
	n := &TypeNode{
		u:    u,
		ref:  ref,
		name: info.Name,
		kind: info.Kind,
		mods: info.Modifiers,
	}
	switch info.Kind {
	case meta.KindPrimitive, meta.KindInterface:
	case meta.KindClass:
		if n.super, err = u.superNode(ref); err != nil {
			return nil, err
		}
	case meta.KindArray:
		if n.super, err = u.superNode(ref); err != nil {
			return nil, err
		}
		comp, err := u.p.ComponentTypeOf(ref)
		if err != nil {
			return nil, err
		}
		if n.component, err = u.Node(comp); err != nil {
			return nil, err
		}
		elem, err := u.p.ElementalTypeOf(ref)
		if err != nil {
			return nil, err
		}
		if n.elemental, err = u.Node(elem); err != nil {
			return nil, err
		}
	default:
		return nil, &ModelError{Kind: ModelErrUnknownKind, Type: info.Name, Detail: info.Kind.String()}
	}
	n.methods.slots = make([]*MethodHandle, u.slots)

	u.create.Lock()
	defer u.create.Unlock()
	if existing, ok := u.nodes.Load(ref); ok {
		return existing.(*TypeNode), nil
	}
	u.nodes.Store(ref, n)
	u.count.Add(1)
	trace.Point(u.tracer, trace.ScopeCache, "node", n.name)
	return n, nil
}

func (u *Universe) superNode(ref meta.TypeRef) (*TypeNode, error) {
	sup, err := u.p.SupertypeOf(ref)
	if err != nil || sup == meta.NoType {
		return nil, err
	}
	return u.materialize(sup)
}

// checkSuperChain walks the provider's superclass chain from ref until it
// reaches the root or a node that already exists, failing on a repeat.
func (u *Universe) checkSuperChain(ref meta.TypeRef) error {
	var chain []meta.TypeRef
	for cur := ref; cur != meta.NoType; {
		if _, ok := u.nodes.Load(cur); ok {
			return nil
		}
		if slices.Contains(chain, cur) {
			return u.cycleError(append(chain, cur))
		}
		chain = append(chain, cur)
		next, err := u.p.SupertypeOf(cur)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}

func (u *Universe) cycleError(refs []meta.TypeRef) error {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		info, err := u.p.TypeInfo(r)
		if err != nil {
			return err
		}
		names = append(names, info.Name)
	}
	return &ModelError{Kind: ModelErrCyclicHierarchy, Type: names[0], Cycle: names}
}

// Method returns the canonical handle for id, interned on its holder.
func (u *Universe) Method(id meta.MethodID) (*MethodHandle, error) {
	info, err := u.p.MethodInfo(id)
	if err != nil {
		return nil, err
	}
	holder, err := u.Node(info.Holder)
	if err != nil {
		return nil, err
	}
	return holder.intern(info), nil
}

// Resolve resolves a call of m on a receiver of static type receiver from
// code in caller.
func (u *Universe) Resolve(m *MethodHandle, receiver, caller *TypeNode) (*MethodHandle, bool, error) {
	return receiver.ResolveMethod(m, caller)
}

func (u *Universe) isSignaturePolymorphicHolder(t *TypeNode) bool {
	_, ok := u.polymorphic[t.name]
	return ok
}
