package resolved

import (
	"slices"
	"sync"
	"sync/atomic"

	"hostmeta/internal/meta"
	"hostmeta/internal/trace"
)

// TypeNode is the canonical lattice element for one loaded type.
type TypeNode struct {
	u    *Universe
	ref  meta.TypeRef
	name string
	kind meta.Kind
	mods meta.Modifiers

	super     *TypeNode // declared superclass; nil for the root, interfaces and primitives
	component *TypeNode // arrays only
	elemental *TypeNode // arrays only

	mu        sync.Mutex // guards population of the caches below
	ifaces    atomic.Pointer[[]*TypeNode]
	instance  atomic.Pointer[[]Field]
	array     atomic.Pointer[TypeNode]
	ambiguous atomic.Bool // the single-implementor answer is Ambiguous

	methods methodCache
}

// Ref returns the provider handle n was created from.
func (n *TypeNode) Ref() meta.TypeRef { return n.ref }

// Name returns the fully-qualified name; arrays end in "[]".
func (n *TypeNode) Name() string   { return n.name }
func (n *TypeNode) String() string { return n.name }

func (n *TypeNode) Kind() meta.Kind { return n.kind }

// Modifiers returns the type's access flags. Arrays carry the elemental
// type's visibility plus final and abstract.
func (n *TypeNode) Modifiers() meta.Modifiers { return n.mods }

// Universe returns the universe that owns n.
func (n *TypeNode) Universe() *Universe { return n.u }

func (n *TypeNode) IsArray() bool     { return n.kind == meta.KindArray }
func (n *TypeNode) IsInterface() bool { return n.kind == meta.KindInterface }
func (n *TypeNode) IsPrimitive() bool { return n.kind == meta.KindPrimitive }

// IsInstanceClass reports whether n is a class, as opposed to an
// interface, array or primitive.
func (n *TypeNode) IsInstanceClass() bool { return n.kind == meta.KindClass }

// IsRoot reports whether n is the root of the class tree.
func (n *TypeNode) IsRoot() bool { return n == n.u.root }

// IsAbstract reports the abstract flag. Interfaces, arrays and primitives
// are always abstract.
func (n *TypeNode) IsAbstract() bool { return n.mods.IsAbstract() }
func (n *TypeNode) IsFinal() bool    { return n.mods.IsFinal() }

// Superclass returns the declared superclass, nil for the root, interfaces
// and primitives. Arrays report the root.
func (n *TypeNode) Superclass() *TypeNode { return n.super }

// Component returns the component type of an array, nil otherwise.
func (n *TypeNode) Component() *TypeNode { return n.component }

// Elemental returns the innermost non-array component of an array, or n
// itself for any other type.
func (n *TypeNode) Elemental() *TypeNode {
	if n.elemental != nil {
		return n.elemental
	}
	return n
}

// IsLeaf reports whether no proper subtype of n can ever exist: its
// elemental type is final or primitive. It is a static property; a class
// that merely has no subclass loaded yet is not a leaf (see isLeafClass,
// which asks the current lattice and needs a LeafType assumption).
func (n *TypeNode) IsLeaf() bool {
	e := n.Elemental()
	return e.IsPrimitive() || e.IsFinal()
}

// Supertype returns the closest proper supertype in the lattice. Interfaces
// answer the root. An array of T answers an array of T's supertype, or the
// root when T is primitive or the root itself. The root and primitives
// answer nil.
func (n *TypeNode) Supertype() (*TypeNode, error) {
	switch n.kind {
	case meta.KindArray:
		if n.component.IsPrimitive() || n.component.IsRoot() {
			return n.u.root, nil
		}
		cs, err := n.component.Supertype()
		if err != nil {
			return nil, err
		}
		if cs == nil {
			return n.u.root, nil
		}
		return cs.ArrayOf()
	case meta.KindInterface:
		return n.u.root, nil
	case meta.KindPrimitive:
		return nil, nil
	default:
		return n.super, nil
	}
}

// IsAssignableFrom reports whether every value of other is a value of n.
func (n *TypeNode) IsAssignableFrom(other *TypeNode) (bool, error) {
	if n == other {
		return true, nil
	}
	if n.IsPrimitive() || other.IsPrimitive() {
		return false, nil
	}
	if n.IsRoot() {
		return true, nil
	}
	if n.IsArray() {
		if !other.IsArray() {
			return false, nil
		}
		nc, oc := n.component, other.component
		if nc.IsPrimitive() || oc.IsPrimitive() {
			return nc == oc, nil
		}
		return nc.IsAssignableFrom(oc)
	}
	return n.u.p.IsSubtype(n.ref, other.ref)
}

// FindLeastCommonAncestor walks both supertype chains in lock step until one
// side is assignable from the other. It reports false when either side is
// primitive.
func (n *TypeNode) FindLeastCommonAncestor(other *TypeNode) (*TypeNode, bool, error) {
	if n.IsPrimitive() || other.IsPrimitive() {
		return nil, false, nil
	}
	t1, t2 := n, other
	for t1 != nil && t2 != nil {
		ok, err := t1.IsAssignableFrom(t2)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return t1, true, nil
		}
		if ok, err = t2.IsAssignableFrom(t1); err != nil {
			return nil, false, err
		} else if ok {
			return t2, true, nil
		}
		if t1, err = t1.Supertype(); err != nil {
			return nil, false, err
		}
		if t2, err = t2.Supertype(); err != nil {
			return nil, false, err
		}
	}
	return n.u.root, true, nil
}

// ArrayOf returns the array type with component n.
func (n *TypeNode) ArrayOf() (*TypeNode, error) {
	if a := n.array.Load(); a != nil {
		return a, nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if a := n.array.Load(); a != nil {
		return a, nil
	}
	ref, err := n.u.p.ArrayOf(n.ref)
	if err != nil {
		return nil, err
	}
	a, err := n.u.Node(ref)
	if err != nil {
		return nil, err
	}
	n.array.Store(a)
	return a, nil
}

// LinkageState returns the current state. Arrays and primitives are always
// initialized.
func (n *TypeNode) LinkageState() (meta.LinkageState, error) {
	if n.IsArray() || n.IsPrimitive() {
		return meta.Initialized, nil
	}
	return n.u.p.LinkageStateOf(n.ref)
}

func (n *TypeNode) IsLinked() (bool, error) {
	s, err := n.LinkageState()
	return s >= meta.Linked, err
}

func (n *TypeNode) IsInitialized() (bool, error) {
	s, err := n.LinkageState()
	return s == meta.Initialized, err
}

// Initialize moves n to Initialized. It is a no-op when n already is.
func (n *TypeNode) Initialize() error {
	done, err := n.IsInitialized()
	if err != nil || done {
		return err
	}
	return n.u.p.InitializeType(n.ref)
}

// Interfaces returns the directly implemented interfaces in declaration
// order. The list is computed once per node.
func (n *TypeNode) Interfaces() ([]*TypeNode, error) {
	if l := n.ifaces.Load(); l != nil {
		return slices.Clone(*l), nil
	}
	if n.IsPrimitive() {
		return nil, nil
	}
	if err := n.u.checkInterfaceGraph(n.ref); err != nil {
		return nil, err
	}
	refs, err := n.u.p.InterfacesOf(n.ref)
	if err != nil {
		return nil, err
	}
	list := make([]*TypeNode, 0, len(refs))
	for _, r := range refs {
		in, err := n.u.Node(r)
		if err != nil {
			return nil, err
		}
		list = append(list, in)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if l := n.ifaces.Load(); l != nil {
		return slices.Clone(*l), nil
	}
	n.ifaces.Store(&list)
	trace.Point(n.u.tracer, trace.ScopeCache, "interfaces", n.name)
	return slices.Clone(list), nil
}

// checkInterfaceGraph fails when the superinterface graph reachable from ref
// contains a cycle. Nodes whose interfaces are already published were
// checked before and are skipped.
func (u *Universe) checkInterfaceGraph(ref meta.TypeRef) error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[meta.TypeRef]uint8)
	var path []meta.TypeRef
	var visit func(r meta.TypeRef) error
	visit = func(r meta.TypeRef) error {
		switch state[r] {
		case visiting:
			i := slices.Index(path, r)
			return u.cycleError(append(slices.Clone(path[i:]), r))
		case done:
			return nil
		}
		if n, ok := u.nodes.Load(r); ok && n.(*TypeNode).ifaces.Load() != nil {
			state[r] = done
			return nil
		}
		state[r] = visiting
		path = append(path, r)
		refs, err := u.p.InterfacesOf(r)
		if err != nil {
			return err
		}
		for _, in := range refs {
			if err := visit(in); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[r] = done
		return nil
	}
	return visit(ref)
}

// Implementor is the single-implementor answer for an interface. Type is
// set only when Kind is meta.ImplementorUnique.
type Implementor struct {
	Kind meta.ImplementorKind
	Type *TypeNode
}

// SingleImplementor reports the unique class implementing interface n.
// Calling it on a non-interface is a modeling error. An Ambiguous answer
// can never change in an append-only universe, so it is cached on n.
func (n *TypeNode) SingleImplementor() (Implementor, error) {
	if !n.IsInterface() {
		return Implementor{}, &ModelError{Kind: ModelErrNotInterface, Type: n.name}
	}
	if n.ambiguous.Load() {
		return Implementor{Kind: meta.ImplementorAmbiguous}, nil
	}
	impl, err := n.u.p.UniqueImplementorOf(n.ref)
	if err != nil {
		return Implementor{}, err
	}
	switch impl.Kind {
	case meta.ImplementorAmbiguous:
		if n.ambiguous.CompareAndSwap(false, true) {
			trace.Point(n.u.tracer, trace.ScopeCache, "implementor", n.name+": ambiguous")
		}
		return Implementor{Kind: meta.ImplementorAmbiguous}, nil
	case meta.ImplementorUnique:
		t, err := n.u.Node(impl.Type)
		if err != nil {
			return Implementor{}, err
		}
		if t.IsInterface() {
			return Implementor{}, &ModelError{Kind: ModelErrInterfaceImplementor, Type: n.name, Detail: t.name}
		}
		return Implementor{Kind: meta.ImplementorUnique, Type: t}, nil
	default:
		return Implementor{Kind: meta.ImplementorNone}, nil
	}
}

// isLeafClass reports whether n currently has no direct subclass. The
// answer holds only until the next class loads, so callers that rely on it
// record a LeafType assumption.
func (n *TypeNode) isLeafClass() (bool, error) {
	sub, err := n.u.p.FirstSubclassOf(n.ref)
	return sub == meta.NoType, err
}

// soleSubclass returns n's only direct subclass. It reports false when n has
// none or more than one.
func (n *TypeNode) soleSubclass() (*TypeNode, bool, error) {
	sub, err := n.u.p.FirstSubclassOf(n.ref)
	if err != nil || sub == meta.NoType {
		return nil, false, err
	}
	next, err := n.u.p.NextSiblingOf(sub)
	if err != nil || next != meta.NoType {
		return nil, false, err
	}
	s, err := n.u.Node(sub)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}
