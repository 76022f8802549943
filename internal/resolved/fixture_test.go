package resolved

import (
	"errors"
	"testing"

	"hostmeta/internal/memmeta"
	"hostmeta/internal/meta"
)

// universeText describes:
//
//	interface Shape { area()D }
//	abstract class Base implements Shape { int id; area()D; describe()V }
//	class Circle extends Base { double radius; Object label; area()D }
//	interface Drawable; final class Square, class Tri implement it
//	interface Named; class Tag implements it
//	abstract class Animal; class Dog, class Cat extend it
//	class Resource overrides finalize()V
//	class Gen with instance, static and generic fields
//	class Many with six methods
//	class Widget with constructors, a class initializer, static and private methods
const universeText = `
root = "Object"

[[root_method]]
name = "finalize"
descriptor = "()V"
flags = ["protected"]

[[type]]
name = "Shape"
kind = "interface"
flags = ["public"]
  [[type.method]]
  name = "area"
  descriptor = "()D"
  flags = ["public", "abstract"]

[[type]]
name = "Base"
flags = ["public", "abstract"]
interfaces = ["Shape"]
state = "linked"
  [[type.field]]
  name = "id"
  type = "int"
  flags = ["private"]
  [[type.method]]
  name = "area"
  descriptor = "()D"
  flags = ["public", "abstract"]
  [[type.method]]
  name = "describe"
  descriptor = "()V"
  flags = ["public"]

[[type]]
name = "Circle"
super = "Base"
flags = ["public"]
state = "linked"
  [[type.field]]
  name = "label"
  type = "Object"
  [[type.field]]
  name = "radius"
  type = "double"
  [[type.method]]
  name = "area"
  descriptor = "()D"
  flags = ["public"]

[[type]]
name = "Drawable"
kind = "interface"

[[type]]
name = "Square"
interfaces = ["Drawable"]
flags = ["public", "final"]
  [[type.method]]
  name = "draw"
  descriptor = "()V"
  flags = ["public"]

[[type]]
name = "Tri"
interfaces = ["Drawable"]
flags = ["public"]

[[type]]
name = "Named"
kind = "interface"

[[type]]
name = "Tag"
interfaces = ["Named"]
flags = ["public"]

[[type]]
name = "Animal"
flags = ["public", "abstract"]

[[type]]
name = "Dog"
super = "Animal"
flags = ["public"]

[[type]]
name = "Cat"
super = "Animal"
flags = ["public"]

[[type]]
name = "Resource"
flags = ["public"]
  [[type.method]]
  name = "finalize"
  descriptor = "()V"
  flags = ["protected"]

[[type]]
name = "Plain"
flags = ["public"]

[[type]]
name = "Main"
flags = ["public"]

[[type]]
name = "java/lang/invoke/MethodHandle"
flags = ["public", "abstract"]
state = "linked"
  [[type.method]]
  name = "invoke"
  descriptor = "()V"
  flags = ["public", "final"]

[[type]]
name = "Gen"
flags = ["public"]
  [[type.field]]
  name = "a"
  type = "byte"
  [[type.field]]
  name = "b"
  type = "long"
  generic = true
  [[type.field]]
  name = "c"
  type = "int"
  [[type.field]]
  name = "COUNT"
  type = "int"
  flags = ["static"]
  [[type.field]]
  name = "NAME"
  type = "Object"
  flags = ["static"]
  generic = true

[[type]]
name = "Many"
flags = ["public"]
  [[type.method]]
  name = "m0"
  descriptor = "()V"
  [[type.method]]
  name = "m1"
  descriptor = "()V"
  [[type.method]]
  name = "m2"
  descriptor = "()V"
  [[type.method]]
  name = "m3"
  descriptor = "()V"
  [[type.method]]
  name = "m4"
  descriptor = "()V"
  [[type.method]]
  name = "m5"
  descriptor = "()V"

[[type]]
name = "Widget"
flags = ["public"]
  [[type.field]]
  name = "count"
  type = "int"
  [[type.method]]
  name = "<clinit>"
  descriptor = "()V"
  flags = ["static"]
  [[type.method]]
  name = "<init>"
  descriptor = "()V"
  flags = ["public"]
  [[type.method]]
  name = "run"
  descriptor = "()V"
  flags = ["public"]
  [[type.method]]
  name = "<init>"
  descriptor = "(I)V"
  flags = ["public"]
  [[type.method]]
  name = "helper"
  descriptor = "()V"
  flags = ["private"]
  [[type.method]]
  name = "size"
  descriptor = "()I"
  flags = ["public", "static"]
`

type fixture struct {
	rt *memmeta.Runtime
	u  *Universe
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	rt, err := memmeta.ParseManifest(universeText)
	if err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	u, err := NewUniverse(rt, cfg)
	if err != nil {
		t.Fatalf("new universe: %v", err)
	}
	return &fixture{rt: rt, u: u}
}

func (f *fixture) node(t *testing.T, name string) *TypeNode {
	t.Helper()
	n, err := f.u.Lookup(name)
	if err != nil {
		t.Fatalf("lookup %s: %v", name, err)
	}
	return n
}

func (f *fixture) method(t *testing.T, spec string) *MethodHandle {
	t.Helper()
	id, err := f.rt.MethodBySpec(spec)
	if err != nil {
		t.Fatalf("method %s: %v", spec, err)
	}
	m, err := f.u.Method(id)
	if err != nil {
		t.Fatalf("intern %s: %v", spec, err)
	}
	return m
}

func wantModelError(t *testing.T, err error, kind ModelErrorKind) {
	t.Helper()
	if !errors.Is(err, ErrModel) {
		t.Fatalf("expected modeling error, got %v", err)
	}
	var me *ModelError
	if !errors.As(err, &me) || me.Kind != kind {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

func assumptionStrings(as []Assumption) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.String()
	}
	return out
}

// classNames lists the reference class types of the fixture.
var classNames = []string{"Object", "Base", "Circle", "Square", "Tri", "Tag", "Animal", "Dog", "Cat", "Resource", "Plain", "Gen"}

// stubProvider overrides individual provider calls on top of a runtime.
type stubProvider struct {
	*memmeta.Runtime
	supertypeOf  func(meta.TypeRef) (meta.TypeRef, bool)
	interfacesOf func(meta.TypeRef) ([]meta.TypeRef, bool)
	rawFieldsOf  func(meta.TypeRef) ([]meta.RawField, bool)
	finalizer    error
	vtableCalls  int
}

func (s *stubProvider) SupertypeOf(t meta.TypeRef) (meta.TypeRef, error) {
	if s.supertypeOf != nil {
		if ref, ok := s.supertypeOf(t); ok {
			return ref, nil
		}
	}
	return s.Runtime.SupertypeOf(t)
}

func (s *stubProvider) InterfacesOf(t meta.TypeRef) ([]meta.TypeRef, error) {
	if s.interfacesOf != nil {
		if refs, ok := s.interfacesOf(t); ok {
			return refs, nil
		}
	}
	return s.Runtime.InterfacesOf(t)
}

func (s *stubProvider) RawFieldsOf(t meta.TypeRef) ([]meta.RawField, error) {
	if s.rawFieldsOf != nil {
		if raw, ok := s.rawFieldsOf(t); ok {
			return raw, nil
		}
	}
	return s.Runtime.RawFieldsOf(t)
}

func (s *stubProvider) HasOverridingFinalizer(t meta.TypeRef) (bool, error) {
	if s.finalizer != nil {
		return false, s.finalizer
	}
	return s.Runtime.HasOverridingFinalizer(t)
}

func (s *stubProvider) VirtualTableResolve(receiver meta.TypeRef, m meta.MethodID, caller meta.TypeRef) (meta.MethodID, bool, error) {
	s.vtableCalls++
	return s.Runtime.VirtualTableResolve(receiver, m, caller)
}
