package resolved

import (
	"testing"

	"hostmeta/internal/memmeta"
)

func TestResolveMethod(t *testing.T) {
	f := newFixture(t, Config{})
	main := f.node(t, "Main")
	cases := []struct {
		method, receiver string
		want             string // "" for not resolved
	}{
		{"Circle.area()D", "Circle", "Circle.area()D"},
		{"Base.area()D", "Circle", "Circle.area()D"},
		{"Shape.area()D", "Circle", "Circle.area()D"},
		{"Base.describe()V", "Circle", "Base.describe()V"},
		{"Circle.area()D", "Base", ""},
		{"Base.area()D", "Dog", ""},
		{"Shape.area()D", "Shape", ""},
		{"Object.finalize()V", "Circle[]", "Object.finalize()V"},
		{"Object.finalize()V", "Resource", "Resource.finalize()V"},
	}
	for _, tc := range cases {
		m := f.method(t, tc.method)
		got, ok, err := f.u.Resolve(m, f.node(t, tc.receiver), main)
		if err != nil {
			t.Fatalf("resolve %s on %s: %v", tc.method, tc.receiver, err)
		}
		if tc.want == "" {
			if ok {
				t.Fatalf("resolve %s on %s = %s, want unresolved", tc.method, tc.receiver, got)
			}
			continue
		}
		if !ok || got.String() != tc.want {
			t.Fatalf("resolve %s on %s = %v (%v), want %s", tc.method, tc.receiver, got, ok, tc.want)
		}
	}
}

func TestResolveMethodArrayCaller(t *testing.T) {
	f := newFixture(t, Config{})
	_, _, err := f.node(t, "Circle").ResolveMethod(f.method(t, "Circle.area()D"), f.node(t, "Main[]"))
	wantModelError(t, err, ModelErrArrayCaller)
}

func TestResolveFastPath(t *testing.T) {
	rt, err := memmeta.ParseManifest(universeText)
	if err != nil {
		t.Fatal(err)
	}
	p := &stubProvider{Runtime: rt}
	u, err := NewUniverse(p, Config{})
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{rt: rt, u: u}

	circle := f.node(t, "Circle")
	area := f.method(t, "Circle.area()D")
	got, ok, err := circle.ResolveMethod(area, nil)
	if err != nil || !ok || got != area {
		t.Fatalf("fast path = %v %v %v", got, ok, err)
	}
	if p.vtableCalls != 0 {
		t.Fatalf("exact public concrete method consulted the vtable")
	}

	mh := f.node(t, "java/lang/invoke/MethodHandle")
	invoke := f.method(t, "java/lang/invoke/MethodHandle.invoke()V")
	got, ok, err = mh.ResolveMethod(invoke, nil)
	if err != nil || !ok || got != invoke {
		t.Fatalf("polymorphic holder = %v %v %v", got, ok, err)
	}
	if p.vtableCalls != 1 {
		t.Fatalf("signature-polymorphic holder skipped the vtable (%d calls)", p.vtableCalls)
	}
}
