package memmeta

import (
	"fmt"

	"fortio.org/safecast"

	"hostmeta/internal/meta"
)

// Field stream record layout: six u2 slots per field, followed by one
// trailing slot per field that carries a generic signature.
const (
	slotFlags = iota
	slotName
	slotSignature
	slotInitval
	slotLowOffset
	slotHighOffset
	fieldSlots
)

const (
	offsetTagSize = 2
	offsetTag     = 0x1

	accHasGenericSignature uint16 = 0x0800
)

type fieldPlacement struct {
	decl int
	size int64
	ref  bool
}

func (r *Runtime) placement(decl int, typeName string) fieldPlacement {
	if sz, ok := primitiveSizes[typeName]; ok {
		return fieldPlacement{decl: decl, size: sz}
	}
	return fieldPlacement{decl: decl, size: r.opts.ReferenceSize, ref: true}
}

// layoutFields assigns offsets and encodes e.fields. Instance fields start
// where the superclass's instance fields end and are grouped large to
// small with references last; the stream itself keeps declaration order.
func (r *Runtime) layoutFields(e *typeEntry, decls []FieldDecl) error {
	start := r.opts.HeaderSize
	if e.kind == meta.KindClass && e.super != meta.NoType {
		start = r.types[e.super].size
	}

	seen := make(map[string]struct{}, len(decls))
	var instance, static []fieldPlacement
	for i, fd := range decls {
		if fd.Name == "" || fd.Type == "" {
			return fmt.Errorf("%w: field %d has no name or type", ErrInvalidDecl, i)
		}
		if _, dup := seen[fd.Name]; dup {
			return fmt.Errorf("%w: duplicate field %s", ErrInvalidDecl, fd.Name)
		}
		seen[fd.Name] = struct{}{}
		p := r.placement(i, fd.Type)
		if fd.Modifiers.IsStatic() {
			static = append(static, p)
			continue
		}
		if e.kind == meta.KindInterface {
			return fmt.Errorf("%w: interface field %s must be static", ErrInvalidDecl, fd.Name)
		}
		instance = append(instance, p)
	}

	offsets := make([]int64, len(decls))
	e.size = r.pack(instance, start, offsets)
	r.pack(static, 0, offsets)

	stream := make([]uint16, 0, len(decls)*fieldSlots+len(decls))
	var trailer []uint16
	for i, fd := range decls {
		name, err := r.intern(fd.Name)
		if err != nil {
			return err
		}
		sig, err := r.intern(fd.Type)
		if err != nil {
			return err
		}
		packed, err := safecast.Conv[uint32](offsets[i]<<offsetTagSize | offsetTag)
		if err != nil {
			return fmt.Errorf("field %s offset %d: %w", fd.Name, offsets[i], err)
		}
		flags := uint16(fd.Modifiers)
		if fd.Generic {
			flags |= accHasGenericSignature
			gen, err := r.intern(fd.Type + "<*>")
			if err != nil {
				return err
			}
			trailer = append(trailer, gen)
		}
		stream = append(stream,
			flags,
			name,
			sig,
			0,
			uint16(packed&0xFFFF),
			uint16(packed>>16),
		)
	}
	e.fields = append(stream, trailer...)
	return nil
}

// pack places fields by descending size, each naturally aligned, and
// returns the end offset.
func (r *Runtime) pack(fields []fieldPlacement, start int64, offsets []int64) int64 {
	pos := start
	for _, size := range []int64{8, 4, 2, 1} {
		for i := range fields {
			if fields[i].ref || fields[i].size != size {
				continue
			}
			pos = alignUp(pos, size)
			offsets[fields[i].decl] = pos
			pos += size
		}
	}
	for i := range fields {
		if !fields[i].ref {
			continue
		}
		pos = alignUp(pos, r.opts.ReferenceSize)
		offsets[fields[i].decl] = pos
		pos += r.opts.ReferenceSize
	}
	return pos
}

func alignUp(v, align int64) int64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// InstanceSizeOf implements meta.Provider. Abstract classes and classes
// with a finalizer cannot be allocated on the fast path.
func (r *Runtime) InstanceSizeOf(t meta.TypeRef) (int64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return 0, false, err
	}
	if e.kind != meta.KindClass {
		return 0, false, fmt.Errorf("%w: %s is a %s", ErrNotInstanceClass, e.name, e.kind)
	}
	slow := e.mods.IsAbstract()
	for c := e; c != nil && !slow; c = r.superEntry(c) {
		slow = r.declaresFinalizerLocked(c)
	}
	return alignUp(e.size, r.opts.ObjectAlignment), slow, nil
}

// RawFieldsOf implements meta.Provider by decoding the packed field stream.
func (r *Runtime) RawFieldsOf(t meta.TypeRef) ([]meta.RawField, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return nil, err
	}
	if e.kind != meta.KindClass && e.kind != meta.KindInterface {
		return nil, nil
	}
	stream := e.fields
	length := len(stream)
	out := make([]meta.RawField, 0, length/fieldSlots)
	index := 0
	for i := 0; i < length; i += fieldSlots {
		rec := stream[i : i+fieldSlots]
		flags := rec[slotFlags]
		if flags&accHasGenericSignature != 0 {
			// the generic signature occupies one trailing slot
			length--
		}
		packed := uint32(rec[slotHighOffset])<<16 | uint32(rec[slotLowOffset])
		out = append(out, meta.RawField{
			Name:      r.symbols[rec[slotName]],
			Signature: r.symbols[rec[slotSignature]],
			Static:    meta.Modifiers(flags).IsStatic(),
			Offset:    int64(packed >> offsetTagSize),
			Modifiers: meta.Modifiers(flags &^ accHasGenericSignature),
			Generic:   flags&accHasGenericSignature != 0,
			Index:     index,
		})
		index++
	}
	return out, nil
}
