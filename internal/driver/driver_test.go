package driver

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"hostmeta/internal/ledger"
	"hostmeta/internal/memmeta"
	"hostmeta/internal/resolved"
	"hostmeta/internal/trace"
)

const universeText = `
root = "Object"

[[root_method]]
name = "finalize"
descriptor = "()V"
flags = ["protected"]

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
  [[type.field]]
  name = "id"
  type = "int"
  [[type.method]]
  name = "area"
  descriptor = "()D"
  flags = ["public", "abstract"]

[[type]]
name = "Circle"
super = "Base"
flags = ["public"]
  [[type.field]]
  name = "radius"
  type = "double"
  [[type.method]]
  name = "area"
  descriptor = "()D"
  flags = ["public"]

[[type]]
name = "Resource"
flags = ["public"]
  [[type.method]]
  name = "finalize"
  descriptor = "()V"
  flags = ["protected"]

[[type]]
name = "Main"
flags = ["public"]
`

const queriesText = `
[[query]]
op = "leaf"
type = "Shape"

[[query]]
op = "unique-method"
type = "Base"
method = "Base.area()D"

[[query]]
op = "resolve"
type = "Circle"
method = "Shape.area()D"
caller = "Main"

[[query]]
op = "finalizable"
type = "Base"

[[query]]
op = "lca"
type = "Circle"
other = "Resource"

[[query]]
op = "assignable"
type = "Shape"
other = "Circle"

[[query]]
op = "fields"
type = "Circle"

[[query]]
op = "initialize"
type = "Circle"

[[query]]
op = "supertype"
type = "Object"

[[query]]
op = "interfaces"
type = "Base"

[[query]]
op = "implementor"
type = "Shape"

[[query]]
op = "leaf"
type = "Missing"
`

func setup(t *testing.T, tr trace.Tracer) (*memmeta.Runtime, *resolved.Universe, []Query) {
	t.Helper()
	rt, err := memmeta.ParseManifest(universeText)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	u, err := resolved.NewUniverse(rt, resolved.Config{Tracer: tr})
	if err != nil {
		t.Fatalf("universe: %v", err)
	}
	qs, err := ParseQueries(queriesText)
	if err != nil {
		t.Fatalf("queries: %v", err)
	}
	return rt, u, qs
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) OnEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func TestRunBatch(t *testing.T) {
	rt, u, qs := setup(t, nil)
	led := ledger.New("test")
	sink := &recordingSink{}
	outcomes, stats, err := Run(context.Background(), u, rt, qs, Options{Jobs: 4, Ledger: led, Sink: sink})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []struct {
		found  bool
		value  string
		values []string
	}{
		{true, "Circle", nil},
		{true, "Circle.area()D", nil},
		{true, "Circle.area()D", nil},
		{true, "false", nil},
		{true, "Object", nil},
		{true, "true", nil},
		{true, "", []string{"Base.id:int@12", "Circle.radius:double@16"}},
		{true, "initialized", nil},
		{false, "", nil},
		{true, "", []string{"Shape"}},
		{true, "unique Base", nil},
	}
	for i, w := range want {
		o := outcomes[i]
		if o.Index != i || o.Err != nil {
			t.Fatalf("query %d (%s): index %d err %v", i, o.Query, o.Index, o.Err)
		}
		if o.Found != w.found || o.Value != w.value || !reflect.DeepEqual(o.Values, w.values) {
			t.Fatalf("query %d (%s) = %v %q %v, want %v %q %v", i, o.Query, o.Found, o.Value, o.Values, w.found, w.value, w.values)
		}
	}
	missing := outcomes[len(outcomes)-1]
	if !errors.Is(missing.Err, memmeta.ErrUnknownType) || missing.Error == "" {
		t.Fatalf("missing type: %v", missing.Err)
	}
	if stats.Total != len(qs) || stats.Failed != 1 || stats.NoAnswer != 1 || stats.Answered != len(qs)-2 || stats.Skipped != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	// leaf Shape, unique-method Base and finalizable Base all rest on assumptions.
	if got := led.DependentsOf("Circle"); len(got) == 0 {
		t.Fatalf("ledger has no Circle dependents: %v", led.Entries())
	}
	if stats.Assumptions < led.Len() {
		t.Fatalf("stats.Assumptions = %d, ledger len %d", stats.Assumptions, led.Len())
	}

	counts := map[Status]int{}
	for _, ev := range sink.events {
		counts[ev.Status]++
	}
	if counts[StatusQueued] != len(qs) || counts[StatusWorking] != len(qs) || counts[StatusDone] != len(qs)-1 || counts[StatusError] != 1 {
		t.Fatalf("event counts = %v", counts)
	}
}

func TestRunModelErrorIsReported(t *testing.T) {
	rt, u, _ := setup(t, nil)
	qs := []Query{{Op: OpFinalizable, Type: "Base[]"}}
	outcomes, _, err := Run(context.Background(), u, rt, qs, Options{Jobs: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(outcomes[0].Err, resolved.ErrModel) {
		t.Fatalf("expected modeling error, got %v", outcomes[0].Err)
	}
}

func TestRunResolveOnArrayReceiver(t *testing.T) {
	rt, u, _ := setup(t, nil)
	qs := []Query{
		{Op: OpResolve, Type: "Circle[]", Method: "Object.finalize()V"},
		{Op: OpResolve, Type: "Circle[]", Method: "Object.finalize()V", Caller: "Main"},
		{Op: OpResolve, Type: "Circle", Method: "Object.finalize()V", Caller: "Base[]"},
	}
	outcomes, _, err := Run(context.Background(), u, rt, qs, Options{Jobs: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range outcomes[:2] {
		if o.Err != nil || !o.Found || o.Value != "Object.finalize()V" {
			t.Fatalf("%s = %v %q %v", o.Query, o.Found, o.Value, o.Err)
		}
	}
	if !errors.Is(outcomes[2].Err, resolved.ErrModel) {
		t.Fatalf("explicit array caller: expected modeling error, got %v", outcomes[2].Err)
	}
}

func TestRunFailFast(t *testing.T) {
	rt, u, _ := setup(t, nil)
	qs := []Query{{Op: OpLeaf, Type: "Missing"}}
	for range 8 {
		qs = append(qs, Query{Op: OpLeaf, Type: "Base"})
	}
	outcomes, stats, err := Run(context.Background(), u, rt, qs, Options{Jobs: 1, FailFast: true})
	if !errors.Is(err, memmeta.ErrUnknownType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
	if outcomes[0].Err == nil || stats.Skipped != len(qs)-1 {
		t.Fatalf("fail fast did not stop the batch: %+v", stats)
	}
}

func TestRunCancelled(t *testing.T) {
	rt, u, qs := setup(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes, stats, err := Run(ctx, u, rt, qs, Options{Jobs: 2})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if stats.Skipped != len(qs) || !outcomes[0].Skipped {
		t.Fatalf("cancelled batch ran queries: %+v", stats)
	}
}

func TestRunEmitsQuerySpans(t *testing.T) {
	var buf bytes.Buffer
	tr := trace.NewStreamTracer(&buf, trace.LevelQuery, trace.FormatText)
	rt, u, qs := setup(t, tr)
	if _, _, err := Run(context.Background(), u, rt, qs[:1], Options{Tracer: tr, Jobs: 1}); err != nil {
		t.Fatal(err)
	}
	if err := tr.Flush(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"→ batch", "→ leaf Shape", "← leaf Shape (Circle)", "assumptions=3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("trace output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "cache") {
		t.Fatalf("cache events leaked at query level:\n%s", out)
	}
}

func TestParseQueriesRejects(t *testing.T) {
	cases := map[string]string{
		"unknown op":     "[[query]]\nop = \"guess\"\ntype = \"A\"\n",
		"missing type":   "[[query]]\nop = \"leaf\"\n",
		"missing other":  "[[query]]\nop = \"lca\"\ntype = \"A\"\n",
		"missing method": "[[query]]\nop = \"resolve\"\ntype = \"A\"\n",
		"unknown key":    "[[query]]\nop = \"leaf\"\ntype = \"A\"\nwhy = 1\n",
	}
	for name, text := range cases {
		if _, err := ParseQueries(text); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestQueryString(t *testing.T) {
	q := Query{Op: OpResolve, Type: "Circle", Method: "Shape.area()D", Caller: "Main"}
	if got := q.String(); got != "resolve Circle Shape.area()D from Main" {
		t.Fatalf("String() = %q", got)
	}
}
