package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"hostmeta/internal/memmeta"
	"hostmeta/internal/resolved"
)

const universeText = `
root = "Object"

[[type]]
name = "Shape"
kind = "interface"
  [[type.method]]
  name = "area"
  descriptor = "()D"
  flags = ["public", "abstract"]

[[type]]
name = "Base"
flags = ["public", "abstract"]
interfaces = ["Shape"]
  [[type.method]]
  name = "area"
  descriptor = "()D"
  flags = ["public", "abstract"]

[[type]]
name = "Circle"
super = "Base"
flags = ["public"]
  [[type.method]]
  name = "area"
  descriptor = "()D"
  flags = ["public"]
`

func newUniverse(t *testing.T) (*memmeta.Runtime, *resolved.Universe) {
	t.Helper()
	rt, err := memmeta.ParseManifest(universeText)
	if err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	u, err := resolved.NewUniverse(rt, resolved.Config{})
	if err != nil {
		t.Fatalf("new universe: %v", err)
	}
	return rt, u
}

func recordShape(t *testing.T, l *Ledger) {
	t.Helper()
	rt, u := newUniverse(t)
	shape, err := u.Lookup("Shape")
	if err != nil {
		t.Fatal(err)
	}
	r, ok, err := shape.FindLeafConcreteSubtype()
	if err != nil || !ok {
		t.Fatalf("leaf Shape: %v %v", ok, err)
	}
	if _, err := l.Record("leaf Shape", r.Assumptions()); err != nil {
		t.Fatal(err)
	}

	id, err := rt.MethodBySpec("Base.area()D")
	if err != nil {
		t.Fatal(err)
	}
	m, err := u.Method(id)
	if err != nil {
		t.Fatal(err)
	}
	base, _ := u.Lookup("Base")
	mr, ok, err := base.FindUniqueConcreteMethod(m)
	if err != nil || !ok {
		t.Fatalf("unique-method Base.area: %v %v", ok, err)
	}
	if _, err := l.Record("unique-method Base Base.area()D", mr.Assumptions()); err != nil {
		t.Fatal(err)
	}
}

func describe(es []Entry) []string {
	out := make([]string, len(es))
	for i := range es {
		out[i] = es[i].Describe()
	}
	return out
}

func TestRecordDeduplicates(t *testing.T) {
	l := New("test")
	recordShape(t, l)
	want := []string{
		"concrete-subtype(Shape, Base)",
		"leaf-type(Circle)",
		"concrete-subtype(Base, Circle)",
		"concrete-method(Base.area()D, Base, Circle.area()D)",
	}
	if got := describe(l.Entries()); !reflect.DeepEqual(got, want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	// A second identical query adds nothing.
	_, u := newUniverse(t)
	shape, _ := u.Lookup("Shape")
	r, _, _ := shape.FindLeafConcreteSubtype()
	n, err := l.Record("leaf Shape again", r.Assumptions())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || l.Len() != len(want) {
		t.Fatalf("re-record added %d entries (len %d)", n, l.Len())
	}
	for i, e := range l.Entries() {
		if int(e.Seq) != i+1 {
			t.Fatalf("entry %d has seq %d", i, e.Seq)
		}
	}
}

func TestDependentsOf(t *testing.T) {
	l := New("test")
	recordShape(t, l)
	cases := map[string][]string{
		"Circle": {"leaf-type(Circle)", "concrete-subtype(Base, Circle)", "concrete-method(Base.area()D, Base, Circle.area()D)"},
		"Shape":  {"concrete-subtype(Shape, Base)"},
		"Object": {},
	}
	for name, want := range cases {
		if got := describe(l.DependentsOf(name)); !reflect.DeepEqual(got, want) {
			t.Fatalf("DependentsOf(%s) = %v, want %v", name, got, want)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecMsgpack, CodecCBOR} {
		t.Run(codec.String(), func(t *testing.T) {
			l := New("shapes.toml")
			recordShape(t, l)
			ext := ".mp"
			if codec == CodecCBOR {
				ext = ".cbor"
			}
			path := filepath.Join(t.TempDir(), "sub", "ledger"+ext)
			if err := l.Save(path, codec); err != nil {
				t.Fatalf("save: %v", err)
			}
			s, err := Load(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if s.ID != l.ID().String() || s.Universe != "shapes.toml" {
				t.Fatalf("session header = %s %s", s.ID, s.Universe)
			}
			if !reflect.DeepEqual(s.Entries, l.Entries()) {
				t.Fatalf("entries differ after round trip")
			}
			if got := describe(s.DependentsOf("Circle")); !reflect.DeepEqual(got, describe(l.DependentsOf("Circle"))) {
				t.Fatalf("loaded DependentsOf(Circle) = %v", got)
			}
			matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "ledger-*"))
			if len(matches) != 0 {
				t.Fatalf("temp files left behind: %v", matches)
			}
		})
	}
}

func TestLoadRejectsOtherSchema(t *testing.T) {
	s := New("x").Session()
	s.Schema = SchemaVersion + 1
	data, err := Marshal(s, CodecMsgpack)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "old.mp")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestUnmarshalRejectsBadID(t *testing.T) {
	s := New("x").Session()
	s.ID = "not-a-uuid"
	data, err := Marshal(s, CodecCBOR)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Unmarshal(data, CodecCBOR); !errors.Is(err, ErrBadSession) {
		t.Fatalf("expected bad session, got %v", err)
	}
}

func TestParseCodec(t *testing.T) {
	for in, want := range map[string]Codec{"": CodecMsgpack, "MsgPack": CodecMsgpack, "cbor": CodecCBOR} {
		got, err := ParseCodec(in)
		if err != nil || got != want {
			t.Fatalf("ParseCodec(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseCodec("gob"); err == nil {
		t.Fatalf("expected error for gob")
	}
	if CodecFor("a/b.CBOR") != CodecCBOR || CodecFor("a/b.mp") != CodecMsgpack {
		t.Fatalf("CodecFor mismatch")
	}
}

func TestLoadFallsBackToOtherCodec(t *testing.T) {
	l := New("x")
	recordShape(t, l)
	path := filepath.Join(t.TempDir(), "ledger.mp")
	if err := l.Save(path, CodecCBOR); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load cbor from .mp: %v", err)
	}
	if len(s.Entries) != l.Len() {
		t.Fatalf("loaded %d entries, want %d", len(s.Entries), l.Len())
	}
}
