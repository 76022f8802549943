package memmeta

import (
	"slices"

	"hostmeta/internal/meta"
)

// MethodsOf implements meta.Provider.
func (r *Runtime) MethodsOf(t meta.TypeRef) ([]meta.MethodID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.methods), nil
}

// VtableLengthOf implements meta.Provider. Interfaces and arrays carry the
// root's table.
func (r *Runtime) VtableLengthOf(t meta.TypeRef) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return 0, err
	}
	switch e.kind {
	case meta.KindClass:
	case meta.KindInterface, meta.KindArray:
		e = r.types[r.root]
	default:
		return 0, nil
	}
	return len(r.vtableLocked(e)), nil
}

// vtableLocked builds the virtual table of class e: the superclass table
// with overridden entries replaced, then e's new virtual methods, then
// interface methods no entry implements yet.
func (r *Runtime) vtableLocked(e *typeEntry) []meta.MethodInfo {
	var table []meta.MethodInfo
	if se := r.superEntry(e); se != nil {
		table = r.vtableLocked(se)
	}
	for _, id := range e.methods {
		mi := r.methods[id]
		if !isVirtual(mi) {
			continue
		}
		replaced := false
		for i, old := range table {
			if old.Name == mi.Name && old.Descriptor == mi.Descriptor && r.overrides(mi, old) {
				table[i] = mi
				replaced = true
			}
		}
		if !replaced {
			table = append(table, mi)
		}
	}

	seen := make(map[meta.TypeRef]bool)
	var walk func(ifaces []meta.TypeRef)
	walk = func(ifaces []meta.TypeRef) {
		for _, in := range ifaces {
			if seen[in] {
				continue
			}
			seen[in] = true
			ie := r.types[in]
			for _, id := range ie.methods {
				mi := r.methods[id]
				if !isVirtual(mi) {
					continue
				}
				if !slices.ContainsFunc(table, func(old meta.MethodInfo) bool {
					return old.Name == mi.Name && old.Descriptor == mi.Descriptor
				}) {
					table = append(table, mi)
				}
			}
			walk(ie.ifaces)
		}
	}
	walk(e.ifaces)
	return table
}

func isVirtual(mi meta.MethodInfo) bool {
	if mi.Name == constructorName || mi.Name == initializerName {
		return false
	}
	return !mi.Modifiers.IsStatic() && !mi.Modifiers.IsPrivate()
}
