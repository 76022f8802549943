// Package memmeta is an in-memory host runtime implementing meta.Provider.
//
// It models a running program's loaded classes: types are defined once and
// never removed, direct-subclass lists grow as classes load, and linkage
// state only advances. Field metadata is kept in a packed u2 stream and
// decoded on request, so the resolved model only ever sees RawField values.
package memmeta

import (
	"fmt"
	"strings"
	"sync"

	"fortio.org/safecast"

	"hostmeta/internal/meta"
)

// DefaultRootName is the name of the implicit root class.
const DefaultRootName = "Object"

// Options tunes the layout and naming of a Runtime.
type Options struct {
	RootName      string
	HeaderSize    int64 // instance header bytes before the first field
	ReferenceSize int64
	// ArrayInterfaces names interfaces every array type implements once they
	// are defined.
	ArrayInterfaces []string
	RootMethods     []MethodDecl
	// ObjectAlignment rounds instance sizes.
	ObjectAlignment int64
}

// DefaultOptions returns the compressed-pointer layout defaults.
func DefaultOptions() Options {
	return Options{
		RootName:        DefaultRootName,
		HeaderSize:      12,
		ReferenceSize:   4,
		ObjectAlignment: 8,
		ArrayInterfaces: []string{"Cloneable", "Serializable"},
	}
}

var primitiveSizes = map[string]int64{
	"boolean": 1,
	"byte":    1,
	"char":    2,
	"short":   2,
	"int":     4,
	"float":   4,
	"long":    8,
	"double":  8,
}

type typeEntry struct {
	ref        meta.TypeRef
	name       string
	kind       meta.Kind
	mods       meta.Modifiers
	super      meta.TypeRef
	ifaces     []meta.TypeRef
	component  meta.TypeRef
	elemental  meta.TypeRef
	arrayOf    meta.TypeRef
	subclasses []meta.TypeRef // newest first
	methods    []meta.MethodID
	fields     []uint16 // packed field stream
	state      meta.LinkageState
	size       int64 // primitives: value size; classes: end of instance fields
}

// Runtime is a thread-safe in-memory class universe.
type Runtime struct {
	mu       sync.RWMutex
	opts     Options
	types    []*typeEntry // index is the TypeRef; 0 reserved
	byName   map[string]meta.TypeRef
	methods  []meta.MethodInfo // index is the MethodID; 0 reserved
	symbols  []string
	symIndex map[string]uint16
	root     meta.TypeRef
}

// New constructs a Runtime holding the root class and the primitive types.
func New(opts Options) (*Runtime, error) {
	def := DefaultOptions()
	if opts.RootName == "" {
		opts.RootName = def.RootName
	}
	if opts.HeaderSize <= 0 {
		opts.HeaderSize = def.HeaderSize
	}
	if opts.ReferenceSize <= 0 {
		opts.ReferenceSize = def.ReferenceSize
	}
	if opts.ObjectAlignment <= 0 {
		opts.ObjectAlignment = def.ObjectAlignment
	}
	r := &Runtime{
		opts:     opts,
		types:    make([]*typeEntry, 1, 64),
		byName:   make(map[string]meta.TypeRef, 64),
		methods:  make([]meta.MethodInfo, 1, 128),
		symIndex: make(map[string]uint16, 128),
	}
	if _, err := r.intern(""); err != nil { // reserve symbol 0
		return nil, err
	}
	for _, name := range []string{"boolean", "byte", "char", "short", "int", "float", "long", "double"} {
		r.addEntry(&typeEntry{
			name:  name,
			kind:  meta.KindPrimitive,
			mods:  meta.ModPublic | meta.ModFinal | meta.ModAbstract,
			state: meta.Initialized,
			size:  primitiveSizes[name],
		})
	}
	root := r.addEntry(&typeEntry{
		name:  opts.RootName,
		kind:  meta.KindClass,
		mods:  meta.ModPublic,
		state: meta.Initialized,
		size:  opts.HeaderSize,
	})
	r.root = root.ref
	if err := validateMethods(root, opts.RootMethods); err != nil {
		return nil, fmt.Errorf("%s: %w", opts.RootName, err)
	}
	r.addMethods(root, opts.RootMethods)
	return r, nil
}

// MustNew is New for tests and fixtures; it panics on error.
func MustNew(opts Options) *Runtime {
	r, err := New(opts)
	if err != nil {
		panic(fmt.Errorf("memmeta: %w", err))
	}
	return r
}

func (r *Runtime) addEntry(e *typeEntry) *typeEntry {
	n, err := safecast.Conv[uint32](len(r.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	e.ref = meta.TypeRef(n)
	r.types = append(r.types, e)
	r.byName[e.name] = e.ref
	return e
}

func (r *Runtime) intern(sym string) (uint16, error) {
	if idx, ok := r.symIndex[sym]; ok {
		return idx, nil
	}
	idx, err := safecast.Conv[uint16](len(r.symbols))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSymbolOverflow, err)
	}
	r.symbols = append(r.symbols, sym)
	r.symIndex[sym] = idx
	return idx, nil
}

func (r *Runtime) entry(t meta.TypeRef) (*typeEntry, error) {
	if t == meta.NoType || int(t) >= len(r.types) {
		return nil, fmt.Errorf("%w: type#%d", ErrUnknownType, t)
	}
	return r.types[t], nil
}

func (r *Runtime) method(m meta.MethodID) (meta.MethodInfo, error) {
	if m == meta.NoMethod || m >= meta.MethodID(len(r.methods)) {
		return meta.MethodInfo{}, fmt.Errorf("%w: method#%d", ErrUnknownMethod, m)
	}
	return r.methods[m], nil
}

// Define loads a class or interface. Its supertypes must already be loaded.
func (r *Runtime) Define(d ClassDecl) (meta.TypeRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defineLocked(d)
}

func (r *Runtime) defineLocked(d ClassDecl) (meta.TypeRef, error) {
	name := strings.TrimSpace(d.Name)
	switch {
	case name == "":
		return meta.NoType, fmt.Errorf("%w: empty type name", ErrInvalidDecl)
	case strings.HasSuffix(name, "[]"):
		return meta.NoType, fmt.Errorf("%w: %s: array types are derived, not declared", ErrInvalidDecl, name)
	}
	if _, exists := r.byName[name]; exists {
		return meta.NoType, fmt.Errorf("%w: %s", ErrDuplicateType, name)
	}

	kind := d.Kind
	if kind == meta.KindInvalid {
		kind = meta.KindClass
	}
	mods := d.Modifiers
	super := r.root
	switch kind {
	case meta.KindClass:
		if d.Super != "" {
			ref, ok := r.byName[d.Super]
			if !ok {
				return meta.NoType, fmt.Errorf("%w: %s: superclass %s", ErrUnknownType, name, d.Super)
			}
			se := r.types[ref]
			if se.kind != meta.KindClass {
				return meta.NoType, fmt.Errorf("%w: %s: superclass %s is a %s", ErrInvalidDecl, name, d.Super, se.kind)
			}
			if se.mods.IsFinal() {
				return meta.NoType, fmt.Errorf("%w: %s: cannot extend final class %s", ErrInvalidDecl, name, d.Super)
			}
			super = ref
		}
		if mods.IsFinal() && mods.IsAbstract() {
			return meta.NoType, fmt.Errorf("%w: %s: class is both final and abstract", ErrInvalidDecl, name)
		}
	case meta.KindInterface:
		if d.Super != "" && d.Super != r.opts.RootName {
			return meta.NoType, fmt.Errorf("%w: %s: interfaces have no superclass", ErrInvalidDecl, name)
		}
		super = meta.NoType
		mods |= meta.ModInterface | meta.ModAbstract
		mods &^= meta.ModFinal
	default:
		return meta.NoType, fmt.Errorf("%w: %s: kind %s cannot be declared", ErrInvalidDecl, name, kind)
	}

	ifaces := make([]meta.TypeRef, 0, len(d.Interfaces))
	for _, in := range d.Interfaces {
		ref, ok := r.byName[in]
		if !ok {
			return meta.NoType, fmt.Errorf("%w: %s: interface %s", ErrUnknownType, name, in)
		}
		if r.types[ref].kind != meta.KindInterface {
			return meta.NoType, fmt.Errorf("%w: %s: %s is not an interface", ErrInvalidDecl, name, in)
		}
		ifaces = append(ifaces, ref)
	}

	e := &typeEntry{
		name:   name,
		kind:   kind,
		mods:   mods,
		super:  super,
		ifaces: ifaces,
		state:  d.State,
	}
	if super != meta.NoType && d.State > meta.Unlinked {
		// A loaded class is never more prepared than its superclass.
		if ss := r.types[super].state; ss < d.State {
			e.state = ss
		}
	}
	if err := validateMethods(e, d.Methods); err != nil {
		return meta.NoType, fmt.Errorf("%s: %w", name, err)
	}
	if err := r.layoutFields(e, d.Fields); err != nil {
		return meta.NoType, fmt.Errorf("%s: %w", name, err)
	}
	r.addEntry(e)
	r.addMethods(e, d.Methods)
	if kind == meta.KindClass {
		se := r.types[super]
		se.subclasses = append([]meta.TypeRef{e.ref}, se.subclasses...)
	}
	return e.ref, nil
}

func validateMethods(e *typeEntry, decls []MethodDecl) error {
	seen := make(map[string]struct{}, len(decls))
	for _, md := range decls {
		if md.Name == "" || !strings.HasPrefix(md.Descriptor, "(") {
			return fmt.Errorf("%w: method %q%s", ErrInvalidDecl, md.Name, md.Descriptor)
		}
		key := md.Name + md.Descriptor
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate method %s", ErrInvalidDecl, key)
		}
		seen[key] = struct{}{}
		mods := md.Modifiers
		if mods.IsAbstract() && (mods.IsPrivate() || mods.IsStatic() || mods.IsFinal()) {
			return fmt.Errorf("%w: abstract method %s cannot be %s", ErrInvalidDecl, key, mods)
		}
		if mods.IsAbstract() && e.kind == meta.KindClass && !e.mods.IsAbstract() {
			return fmt.Errorf("%w: concrete class declares abstract method %s", ErrInvalidDecl, key)
		}
		switch md.Name {
		case constructorName:
			if mods.IsAbstract() || mods.IsStatic() || e.kind == meta.KindInterface {
				return fmt.Errorf("%w: invalid constructor %s", ErrInvalidDecl, key)
			}
		case initializerName:
			if md.Descriptor != "()V" || mods.IsAbstract() {
				return fmt.Errorf("%w: invalid class initializer %s", ErrInvalidDecl, key)
			}
		}
	}
	return nil
}

func (r *Runtime) addMethods(e *typeEntry, decls []MethodDecl) {
	for _, md := range decls {
		id := meta.MethodID(len(r.methods))
		r.methods = append(r.methods, meta.MethodInfo{
			ID:         id,
			Name:       md.Name,
			Descriptor: md.Descriptor,
			Holder:     e.ref,
			Modifiers:  md.Modifiers,
		})
		e.methods = append(e.methods, id)
	}
}

// Root returns the root class.
func (r *Runtime) Root() meta.TypeRef { return r.root }

// Lookup resolves a type name. "T[]" names are created on first use.
func (r *Runtime) Lookup(name string) (meta.TypeRef, error) {
	r.mu.RLock()
	ref, ok := r.byName[name]
	r.mu.RUnlock()
	if ok {
		return ref, nil
	}
	if elem, found := strings.CutSuffix(name, "[]"); found {
		elemRef, err := r.Lookup(elem)
		if err != nil {
			return meta.NoType, err
		}
		return r.ArrayOf(elemRef)
	}
	return meta.NoType, fmt.Errorf("%w: %s", ErrUnknownType, name)
}

// MustLookup panics when name is unknown.
func (r *Runtime) MustLookup(name string) meta.TypeRef {
	ref, err := r.Lookup(name)
	if err != nil {
		panic(err)
	}
	return ref
}

// Name returns the name of t, or "" when unknown.
func (r *Runtime) Name(t meta.TypeRef) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return ""
	}
	return e.name
}

// Len reports the number of loaded types, including primitives and arrays.
func (r *Runtime) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types) - 1
}

// Names returns every declared class and interface name in load order.
func (r *Runtime) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for _, e := range r.types[1:] {
		if e.kind == meta.KindClass || e.kind == meta.KindInterface {
			out = append(out, e.name)
		}
	}
	return out
}

// TypeInfo implements meta.Provider.
func (r *Runtime) TypeInfo(t meta.TypeRef) (meta.TypeInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return meta.TypeInfo{}, err
	}
	return meta.TypeInfo{Name: e.name, Kind: e.kind, Modifiers: e.mods}, nil
}

// SupertypeOf implements meta.Provider.
func (r *Runtime) SupertypeOf(t meta.TypeRef) (meta.TypeRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return meta.NoType, err
	}
	return e.super, nil
}

// InterfacesOf implements meta.Provider.
func (r *Runtime) InterfacesOf(t meta.TypeRef) ([]meta.TypeRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return nil, err
	}
	if e.kind == meta.KindArray {
		return r.arrayInterfacesLocked(), nil
	}
	return append([]meta.TypeRef(nil), e.ifaces...), nil
}

func (r *Runtime) arrayInterfacesLocked() []meta.TypeRef {
	out := make([]meta.TypeRef, 0, len(r.opts.ArrayInterfaces))
	for _, name := range r.opts.ArrayInterfaces {
		if ref, ok := r.byName[name]; ok && r.types[ref].kind == meta.KindInterface {
			out = append(out, ref)
		}
	}
	return out
}

// ComponentTypeOf implements meta.Provider.
func (r *Runtime) ComponentTypeOf(t meta.TypeRef) (meta.TypeRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return meta.NoType, err
	}
	if e.kind != meta.KindArray {
		return meta.NoType, fmt.Errorf("%w: %s", ErrNotArray, e.name)
	}
	return e.component, nil
}

// ElementalTypeOf implements meta.Provider.
func (r *Runtime) ElementalTypeOf(t meta.TypeRef) (meta.TypeRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return meta.NoType, err
	}
	if e.kind != meta.KindArray {
		return meta.NoType, fmt.Errorf("%w: %s", ErrNotArray, e.name)
	}
	return e.elemental, nil
}

// ArrayOf implements meta.Provider. The array type is created on first use.
func (r *Runtime) ArrayOf(t meta.TypeRef) (meta.TypeRef, error) {
	r.mu.RLock()
	e, err := r.entry(t)
	if err != nil {
		r.mu.RUnlock()
		return meta.NoType, err
	}
	ref := e.arrayOf
	r.mu.RUnlock()
	if ref != meta.NoType {
		return ref, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e.arrayOf != meta.NoType {
		return e.arrayOf, nil
	}
	elemental := t
	if e.kind == meta.KindArray {
		elemental = e.elemental
	}
	arr := r.addEntry(&typeEntry{
		name:      e.name + "[]",
		kind:      meta.KindArray,
		mods:      (r.types[elemental].mods & meta.ModAccess) | meta.ModFinal | meta.ModAbstract,
		super:     r.root,
		component: t,
		elemental: elemental,
		state:     meta.Initialized,
	})
	e.arrayOf = arr.ref
	return arr.ref, nil
}

// FirstSubclassOf implements meta.Provider.
func (r *Runtime) FirstSubclassOf(t meta.TypeRef) (meta.TypeRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return meta.NoType, err
	}
	if len(e.subclasses) == 0 {
		return meta.NoType, nil
	}
	return e.subclasses[0], nil
}

// NextSiblingOf implements meta.Provider.
func (r *Runtime) NextSiblingOf(t meta.TypeRef) (meta.TypeRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.entry(t)
	if err != nil {
		return meta.NoType, err
	}
	if e.kind != meta.KindClass || e.super == meta.NoType {
		return meta.NoType, nil
	}
	siblings := r.types[e.super].subclasses
	for i, s := range siblings {
		if s == t && i+1 < len(siblings) {
			return siblings[i+1], nil
		}
	}
	return meta.NoType, nil
}

// MethodInfo implements meta.Provider.
func (r *Runtime) MethodInfo(m meta.MethodID) (meta.MethodInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.method(m)
}

// FindMethod returns the method named name+descriptor declared on typeName.
func (r *Runtime) FindMethod(typeName, name, descriptor string) (meta.MethodID, error) {
	ref, err := r.Lookup(typeName)
	if err != nil {
		return meta.NoMethod, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.types[ref].methods {
		if mi := r.methods[id]; mi.Name == name && mi.Descriptor == descriptor {
			return id, nil
		}
	}
	return meta.NoMethod, fmt.Errorf("%w: %s.%s%s", ErrUnknownMethod, typeName, name, descriptor)
}

// MethodBySpec resolves "Holder.name(desc)ret".
func (r *Runtime) MethodBySpec(spec string) (meta.MethodID, error) {
	holder, name, desc, err := ParseMethodSpec(spec)
	if err != nil {
		return meta.NoMethod, err
	}
	return r.FindMethod(holder, name, desc)
}
