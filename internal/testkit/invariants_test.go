package testkit

import (
	"strings"
	"testing"

	"hostmeta/internal/memmeta"
	"hostmeta/internal/meta"
	"hostmeta/internal/resolved"
)

const universeText = `
root = "Object"

[[type]]
name = "Shape"
kind = "interface"

[[type]]
name = "Base"
flags = ["abstract"]
interfaces = ["Shape"]
  [[type.field]]
  name = "id"
  type = "int"

[[type]]
name = "Circle"
super = "Base"
  [[type.field]]
  name = "r"
  type = "double"
  [[type.field]]
  name = "tag"
  type = "Object"

[[type]]
name = "Square"
super = "Base"
flags = ["final"]

[[type]]
name = "Other"
`

func newUniverse(t *testing.T, p meta.Provider) *resolved.Universe {
	t.Helper()
	u, err := resolved.NewUniverse(p, resolved.Config{})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestCheckUniverseClean(t *testing.T) {
	rt, err := memmeta.ParseManifest(universeText)
	if err != nil {
		t.Fatal(err)
	}
	u := newUniverse(t, rt)
	names := append(rt.Names(), "int", "Circle[]", "int[]")
	if err := CheckUniverse(u, names); err != nil {
		t.Fatalf("invariants violated:\n%v", err)
	}
}

// lyingProvider answers truthfully the first time target is asked about,
// then reports a subclass, as if one was loaded in between.
type lyingProvider struct {
	*memmeta.Runtime
	target meta.TypeRef
	calls  int
}

func (p *lyingProvider) FirstSubclassOf(t meta.TypeRef) (meta.TypeRef, error) {
	if t == p.target {
		p.calls++
		if p.calls > 1 {
			return p.target, nil
		}
	}
	return p.Runtime.FirstSubclassOf(t)
}

func TestCheckUniverseReportsViolations(t *testing.T) {
	rt, err := memmeta.ParseManifest(universeText)
	if err != nil {
		t.Fatal(err)
	}
	u := newUniverse(t, rt)
	if err := CheckUniverse(u, []string{"Circle", "Missing"}); err == nil || !strings.Contains(err.Error(), "Missing") {
		t.Fatalf("expected unknown type violation, got %v", err)
	}

	// Circle's leaf answer rests on leaf-type(Circle); a subclass appearing
	// afterwards must be noticed.
	lp := &lyingProvider{Runtime: rt, target: rt.MustLookup("Circle")}
	u = newUniverse(t, lp)
	err = CheckUniverse(u, []string{"Circle"})
	if err == nil || !strings.Contains(err.Error(), "assumed leaf") {
		t.Fatalf("expected leaf violation, got %v", err)
	}
}
