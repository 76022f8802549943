package resolved

import (
	"hostmeta/internal/meta"
)

const (
	constructorName = "<init>"
	initializerName = "<clinit>"
)

// DeclaredMethods returns the canonical handles of the methods n declares,
// without constructors or the class initializer.
func (n *TypeNode) DeclaredMethods() ([]*MethodHandle, error) {
	return n.declared(func(name string) bool {
		return name != constructorName && name != initializerName
	})
}

// DeclaredConstructors returns the canonical handles of n's constructors.
func (n *TypeNode) DeclaredConstructors() ([]*MethodHandle, error) {
	return n.declared(func(name string) bool { return name == constructorName })
}

// ClassInitializer returns n's static initializer, if it declares one.
func (n *TypeNode) ClassInitializer() (*MethodHandle, bool, error) {
	hs, err := n.declared(func(name string) bool { return name == initializerName })
	if err != nil || len(hs) == 0 {
		return nil, false, err
	}
	return hs[0], true, nil
}

// declared interns the methods of n whose name passes keep. Arrays and
// primitives declare nothing.
func (n *TypeNode) declared(keep func(string) bool) ([]*MethodHandle, error) {
	if n.kind != meta.KindClass && n.kind != meta.KindInterface {
		return nil, nil
	}
	ids, err := n.u.p.MethodsOf(n.ref)
	if err != nil {
		return nil, err
	}
	out := make([]*MethodHandle, 0, len(ids))
	for _, id := range ids {
		info, err := n.u.p.MethodInfo(id)
		if err != nil {
			return nil, err
		}
		if keep(info.Name) {
			out = append(out, n.intern(info))
		}
	}
	return out, nil
}

// HasFinalizer reports whether instances of n must be finalized, that is
// whether n or a superclass overrides finalize. Unlike
// HasFinalizableSubclass it says nothing about subclasses.
func (n *TypeNode) HasFinalizer() (bool, error) {
	if n.kind != meta.KindClass {
		return false, nil
	}
	return n.u.p.HasFinalizer(n.ref)
}

// InstanceSize returns the allocation size of an instance of n. A negative
// value means the instance cannot be allocated on the fast path; its
// absolute value is still the size. Arrays, interfaces and primitives have
// no instance size.
func (n *TypeNode) InstanceSize() (int64, error) {
	if n.kind != meta.KindClass {
		return 0, &ModelError{Kind: ModelErrNotInstanceClass, Type: n.name, Detail: "instance size"}
	}
	size, slow, err := n.u.p.InstanceSizeOf(n.ref)
	if err != nil {
		return 0, err
	}
	if slow {
		return -size, nil
	}
	return size, nil
}

// VtableLength returns the number of virtual table entries of n.
// Interfaces and arrays report the root's table. Primitives have none.
func (n *TypeNode) VtableLength() (int, error) {
	if n.kind == meta.KindInterface || n.kind == meta.KindArray {
		return n.u.p.VtableLengthOf(n.u.root.ref)
	}
	return n.u.p.VtableLengthOf(n.ref)
}
