package memmeta

import (
	"hostmeta/internal/meta"
)

// VirtualTableResolve implements meta.Provider.
func (r *Runtime) VirtualTableResolve(receiver meta.TypeRef, m meta.MethodID, caller meta.TypeRef) (meta.MethodID, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	re, err := r.entry(receiver)
	if err != nil {
		return meta.NoMethod, false, err
	}
	mi, err := r.method(m)
	if err != nil {
		return meta.NoMethod, false, err
	}
	if caller != meta.NoType {
		if _, err := r.entry(caller); err != nil {
			return meta.NoMethod, false, err
		}
	}
	id, ok := r.selectLocked(re, mi, caller)
	return id, ok, nil
}

// selectLocked picks the method a call of mi dispatches to on receiver.
func (r *Runtime) selectLocked(receiver *typeEntry, mi meta.MethodInfo, caller meta.TypeRef) (meta.MethodID, bool) {
	if receiver.kind == meta.KindArray {
		receiver = r.types[r.root]
	}
	if receiver.kind != meta.KindClass {
		return meta.NoMethod, false
	}
	holder := r.types[mi.Holder]
	if !r.isSubtypeLocked(holder, receiver) {
		return meta.NoMethod, false
	}
	if mi.Modifiers.IsPrivate() || mi.Modifiers.IsStatic() {
		if mi.Modifiers.IsPrivate() && caller != meta.NoType && caller != mi.Holder {
			return meta.NoMethod, false
		}
		return mi.ID, true
	}

	for c := receiver; c != nil; c = r.superEntry(c) {
		for _, id := range c.methods {
			cand := r.methods[id]
			if cand.ID == mi.ID {
				return id, true
			}
			if cand.Name != mi.Name || cand.Descriptor != mi.Descriptor || cand.Modifiers.IsStatic() {
				continue
			}
			if r.overrides(cand, mi) {
				return id, true
			}
		}
	}
	if holder.kind != meta.KindInterface {
		return meta.NoMethod, false
	}
	if id, ok := r.defaultMethodLocked(receiver, mi); ok {
		return id, true
	}
	// Only the abstract declaration is reachable.
	return mi.ID, true
}

// overrides reports whether cand overrides declared. Private methods are
// never overridden; package-private ones only within their package.
func (r *Runtime) overrides(cand, declared meta.MethodInfo) bool {
	if cand.Modifiers.IsPrivate() || declared.Modifiers.IsPrivate() {
		return false
	}
	if declared.Modifiers.IsPublic() || declared.Modifiers.IsProtected() {
		return true
	}
	if r.types[declared.Holder].kind == meta.KindInterface {
		return true
	}
	return packageOf(r.types[cand.Holder].name) == packageOf(r.types[declared.Holder].name)
}

// defaultMethodLocked finds the maximally specific concrete interface
// method for mi among the superinterfaces of receiver.
func (r *Runtime) defaultMethodLocked(receiver *typeEntry, mi meta.MethodInfo) (meta.MethodID, bool) {
	var cands []meta.MethodInfo
	seen := make(map[meta.TypeRef]bool)
	var walk func(e *typeEntry)
	walk = func(e *typeEntry) {
		for _, in := range e.ifaces {
			if seen[in] {
				continue
			}
			seen[in] = true
			ie := r.types[in]
			for _, id := range ie.methods {
				cand := r.methods[id]
				if cand.Name == mi.Name && cand.Descriptor == mi.Descriptor &&
					!cand.Modifiers.IsAbstract() && !cand.Modifiers.IsStatic() && !cand.Modifiers.IsPrivate() {
					cands = append(cands, cand)
				}
			}
			walk(ie)
		}
	}
	for c := receiver; c != nil; c = r.superEntry(c) {
		walk(c)
	}

	var specific []meta.MethodInfo
	for _, c := range cands {
		shadowed := false
		for _, o := range cands {
			if o.ID != c.ID && o.Holder != c.Holder && r.isSubtypeLocked(r.types[c.Holder], r.types[o.Holder]) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			specific = append(specific, c)
		}
	}
	if len(specific) != 1 {
		return meta.NoMethod, false
	}
	return specific[0].ID, true
}

// UniqueConcreteMethod implements meta.Provider. Every concrete class at or
// below context must select the same concrete method.
func (r *Runtime) UniqueConcreteMethod(context meta.TypeRef, m meta.MethodID) (meta.MethodID, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ce, err := r.entry(context)
	if err != nil {
		return meta.NoMethod, false, err
	}
	mi, err := r.method(m)
	if err != nil {
		return meta.NoMethod, false, err
	}
	if mi.Modifiers.IsStatic() {
		return meta.NoMethod, false, nil
	}
	concrete := !mi.Modifiers.IsAbstract()
	if concrete && (mi.Modifiers.IsPrivate() || mi.Modifiers.IsFinal() || r.types[mi.Holder].mods.IsFinal()) {
		return mi.ID, true, nil
	}
	if ce.kind == meta.KindArray {
		ce = r.types[r.root]
	}

	found := meta.NoMethod
	for _, s := range r.subtypesLocked(ce) {
		if s.kind != meta.KindClass || s.mods.IsAbstract() || !r.isSubtypeLocked(r.types[mi.Holder], s) {
			continue
		}
		sel, ok := r.selectLocked(s, mi, meta.NoType)
		if !ok || r.methods[sel].Modifiers.IsAbstract() {
			return meta.NoMethod, false, nil
		}
		if found == meta.NoMethod {
			found = sel
		} else if found != sel {
			return meta.NoMethod, false, nil
		}
	}
	if concrete {
		if found == meta.NoMethod {
			found = mi.ID
		} else if found != mi.ID {
			return meta.NoMethod, false, nil
		}
	}
	if found == meta.NoMethod {
		return meta.NoMethod, false, nil
	}
	return found, true, nil
}
