package memmeta

import (
	"fmt"

	"hostmeta/internal/meta"
)

// IsSubtype implements meta.Provider.
func (r *Runtime) IsSubtype(super, sub meta.TypeRef) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	se, err := r.entry(super)
	if err != nil {
		return false, err
	}
	be, err := r.entry(sub)
	if err != nil {
		return false, err
	}
	return r.isSubtypeLocked(se, be), nil
}

func (r *Runtime) isSubtypeLocked(super, sub *typeEntry) bool {
	if super == sub {
		return true
	}
	if super.kind == meta.KindPrimitive || sub.kind == meta.KindPrimitive {
		return false
	}
	if super.ref == r.root {
		return true
	}
	if sub.kind == meta.KindArray {
		if super.kind == meta.KindArray {
			sc, bc := r.types[super.component], r.types[sub.component]
			if sc.kind == meta.KindPrimitive || bc.kind == meta.KindPrimitive {
				return sc == bc
			}
			return r.isSubtypeLocked(sc, bc)
		}
		for _, ref := range r.arrayInterfacesLocked() {
			if r.isSubtypeLocked(super, r.types[ref]) {
				return true
			}
		}
		return false
	}
	if super.kind == meta.KindArray {
		return false
	}
	if super.kind == meta.KindInterface {
		return r.implementsLocked(sub, super.ref)
	}
	for c := sub; c != nil; c = r.superEntry(c) {
		if c == super {
			return true
		}
	}
	return false
}

func (r *Runtime) superEntry(e *typeEntry) *typeEntry {
	if e.super == meta.NoType {
		return nil
	}
	return r.types[e.super]
}

// implementsLocked reports whether e implements iface through its class
// chain or superinterfaces.
func (r *Runtime) implementsLocked(e *typeEntry, iface meta.TypeRef) bool {
	for c := e; c != nil; c = r.superEntry(c) {
		for _, in := range c.ifaces {
			if in == iface || r.implementsLocked(r.types[in], iface) {
				return true
			}
		}
	}
	return false
}

// subtypesLocked lists t and every loaded class or interface below it.
func (r *Runtime) subtypesLocked(t *typeEntry) []*typeEntry {
	out := make([]*typeEntry, 0, 8)
	for _, e := range r.types[1:] {
		if e.kind != meta.KindClass && e.kind != meta.KindInterface {
			continue
		}
		if r.isSubtypeLocked(t, e) {
			out = append(out, e)
		}
	}
	return out
}

// UniqueImplementorOf implements meta.Provider. A class counts as an
// implementor unless its superclass already implements the interface;
// sub-interfaces never count.
func (r *Runtime) UniqueImplementorOf(iface meta.TypeRef) (meta.Implementor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ie, err := r.entry(iface)
	if err != nil {
		return meta.Implementor{}, err
	}
	if ie.kind != meta.KindInterface {
		return meta.Implementor{}, fmt.Errorf("%w: %s", ErrNotInterface, ie.name)
	}
	found := meta.NoType
	for _, e := range r.types[1:] {
		if e.kind != meta.KindClass || !r.implementsLocked(e, iface) {
			continue
		}
		if se := r.superEntry(e); se != nil && r.implementsLocked(se, iface) {
			continue
		}
		if found != meta.NoType {
			return meta.Implementor{Kind: meta.ImplementorAmbiguous}, nil
		}
		found = e.ref
	}
	if found == meta.NoType {
		return meta.Implementor{Kind: meta.ImplementorNone}, nil
	}
	return meta.Implementor{Kind: meta.ImplementorUnique, Type: found}, nil
}

// HasOverridingFinalizer implements meta.Provider: t or a subclass declares
// a concrete finalize()V other than the root's.
func (r *Runtime) HasOverridingFinalizer(t meta.TypeRef) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return false, err
	}
	if e.kind == meta.KindArray || e.kind == meta.KindPrimitive {
		return false, nil
	}
	for _, s := range r.subtypesLocked(e) {
		if r.declaresFinalizerLocked(s) {
			return true, nil
		}
	}
	return false, nil
}

// HasFinalizer implements meta.Provider: t or one of its superclasses
// declares a concrete finalize()V other than the root's. This is the
// has-finalizer access flag a class receives when it is loaded.
func (r *Runtime) HasFinalizer(t meta.TypeRef) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return false, err
	}
	if e.kind != meta.KindClass {
		return false, nil
	}
	for c := e; c != nil; c = r.superEntry(c) {
		if r.declaresFinalizerLocked(c) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Runtime) declaresFinalizerLocked(e *typeEntry) bool {
	if e.ref == r.root || e.kind != meta.KindClass {
		return false
	}
	for _, id := range e.methods {
		mi := r.methods[id]
		if mi.Name == "finalize" && mi.Descriptor == "()V" && !mi.Modifiers.IsAbstract() && !mi.Modifiers.IsStatic() {
			return true
		}
	}
	return false
}

// LinkageStateOf implements meta.Provider. Arrays and primitives are always
// initialized.
func (r *Runtime) LinkageStateOf(t meta.TypeRef) (meta.LinkageState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return meta.Unlinked, err
	}
	return e.state, nil
}

// Link links t and its supertypes.
func (r *Runtime) Link(t meta.TypeRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.entry(t)
	if err != nil {
		return err
	}
	r.advanceLocked(e, meta.Linked)
	return nil
}

// InitializeType implements meta.Provider. Supertypes are initialized first.
func (r *Runtime) InitializeType(t meta.TypeRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.entry(t)
	if err != nil {
		return err
	}
	r.advanceLocked(e, meta.Initialized)
	return nil
}

func (r *Runtime) advanceLocked(e *typeEntry, to meta.LinkageState) {
	if e.state >= to {
		return
	}
	if se := r.superEntry(e); se != nil {
		r.advanceLocked(se, to)
	}
	for _, in := range e.ifaces {
		r.advanceLocked(r.types[in], to)
	}
	e.state = to
}
