package resolved

import (
	"fmt"
	"slices"

	"hostmeta/internal/meta"
	"hostmeta/internal/trace"
)

// Field is one resolved field of a type.
type Field struct {
	Name      string
	Signature string // declared type name
	Offset    int64  // within an instance, or within the static area
	Static    bool
	Modifiers meta.Modifiers
	Generic   bool // carries a generic signature
	Index     int  // position in the holder's raw field stream
	Holder    *TypeNode
}

// Type resolves the declared type of f.
func (f Field) Type() (*TypeNode, error) {
	return f.Holder.u.Lookup(f.Signature)
}

func (f Field) String() string {
	return fmt.Sprintf("%s.%s:%s@%d", f.Holder.name, f.Name, f.Signature, f.Offset)
}

// Fields returns the static fields of n when wantStatic is set, and all
// instance fields including inherited ones otherwise.
func (n *TypeNode) Fields(wantStatic bool) ([]Field, error) {
	if wantStatic {
		return n.StaticFields()
	}
	return n.InstanceFields(true)
}

// InstanceFields returns n's instance fields ordered by offset. Inherited
// fields come first. With includeSuperclasses unset only the fields n
// declares itself are returned. Arrays, interfaces and primitives have none.
func (n *TypeNode) InstanceFields(includeSuperclasses bool) ([]Field, error) {
	if !n.IsInstanceClass() {
		return nil, nil
	}
	all, err := n.instanceFields()
	if err != nil {
		return nil, err
	}
	if includeSuperclasses || n.super == nil {
		return slices.Clone(all), nil
	}
	inherited, err := n.super.instanceFields()
	if err != nil {
		return nil, err
	}
	if len(inherited) == len(all) {
		return nil, nil
	}
	return slices.Clone(all[len(inherited):]), nil
}

func (n *TypeNode) instanceFields() ([]Field, error) {
	if l := n.instance.Load(); l != nil {
		return *l, nil
	}
	if !n.IsInstanceClass() {
		return nil, nil
	}
	var inherited []Field
	if n.super != nil {
		var err error
		if inherited, err = n.super.instanceFields(); err != nil {
			return nil, err
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if l := n.instance.Load(); l != nil {
		return *l, nil
	}
	list, err := n.collectFields(false, inherited)
	if err != nil {
		return nil, err
	}
	n.instance.Store(&list)
	trace.Point(n.u.tracer, trace.ScopeCache, "instance-fields", fmt.Sprintf("%s: %d", n.name, len(list)))
	return list, nil
}

// StaticFields returns the static fields n declares, ordered by offset.
// They are recomputed on every call.
func (n *TypeNode) StaticFields() ([]Field, error) {
	if n.IsArray() || n.IsPrimitive() {
		return nil, nil
	}
	return n.collectFields(true, nil)
}

// collectFields decodes n's raw fields of the wanted kind and places each
// into offset order after prepend as it is discovered.
func (n *TypeNode) collectFields(wantStatic bool, prepend []Field) ([]Field, error) {
	raw, err := n.u.p.RawFieldsOf(n.ref)
	if err != nil {
		return nil, err
	}
	count := 0
	for i := range raw {
		if raw[i].Static == wantStatic {
			count++
		}
	}
	if count == 0 {
		return slices.Clone(prepend), nil
	}

	base := len(prepend)
	out := make([]Field, base, base+count)
	copy(out, prepend)
	for _, rf := range raw {
		if rf.Static != wantStatic {
			continue
		}
		f := Field{
			Name:      rf.Name,
			Signature: rf.Signature,
			Offset:    rf.Offset,
			Static:    rf.Static,
			Modifiers: rf.Modifiers,
			Generic:   rf.Generic,
			Index:     rf.Index,
			Holder:    n,
		}
		out = append(out, f)
		j := len(out) - 2
		for ; j >= base && out[j].Offset > f.Offset; j-- {
			out[j+1] = out[j]
		}
		out[j+1] = f
	}
	for i := 1; i < len(out); i++ {
		if out[i].Offset <= out[i-1].Offset {
			return nil, &ModelError{
				Kind:   ModelErrFieldOrder,
				Type:   n.name,
				Detail: fmt.Sprintf("%s then %s", out[i-1], out[i]),
			}
		}
	}
	return out, nil
}

// FieldAtOffset returns the instance field stored at offset, if any.
func (n *TypeNode) FieldAtOffset(offset int64) (Field, bool, error) {
	all, err := n.instanceFields()
	if err != nil {
		return Field{}, false, err
	}
	i, ok := slices.BinarySearchFunc(all, offset, func(f Field, off int64) int {
		switch {
		case f.Offset < off:
			return -1
		case f.Offset > off:
			return 1
		}
		return 0
	})
	if !ok {
		return Field{}, false, nil
	}
	return all[i], true, nil
}
