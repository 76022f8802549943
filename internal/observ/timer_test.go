package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	var now Counts
	tm := NewTimer(func() Counts { return now })

	load := tm.Begin("load")
	time.Sleep(time.Millisecond)
	now.Types = 12
	tm.End(load, "universe.toml")

	q := tm.Begin("queries")
	now.Nodes, now.Methods = 5, 3
	tm.Add(q, Counts{Queries: 4, Assumptions: 2})
	tm.End(q, "")
	tm.End(99, "ignored")
	tm.Add(-1, Counts{Queries: 1})

	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != "load" || r.Phases[0].Note != "universe.toml" {
		t.Fatalf("report = %+v", r)
	}
	if got := r.Phases[0].Counts; got != (Counts{Types: 12}) {
		t.Fatalf("load counts = %+v", got)
	}
	if got := r.Phases[1].Counts; got != (Counts{Nodes: 5, Methods: 3, Queries: 4, Assumptions: 2}) {
		t.Fatalf("queries counts = %+v", got)
	}
	if r.Counts != (Counts{Types: 12, Nodes: 5, Methods: 3, Queries: 4, Assumptions: 2}) {
		t.Fatalf("total counts = %+v", r.Counts)
	}
	if r.Phases[0].DurationMS < 1 || r.TotalMS < r.Phases[0].DurationMS {
		t.Fatalf("durations = %+v", r)
	}
	s := tm.Summary()
	for _, want := range []string{"timings:", "+12 types", "// universe.toml", "+5 nodes +3 methods 4 queries 2 assumptions", "total"} {
		if !strings.Contains(s, want) {
			t.Fatalf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestTimerWithoutSampler(t *testing.T) {
	if r := NewTimer(nil).Report(); r.TotalMS != 0 || r.Phases != nil {
		t.Fatalf("empty report = %+v", r)
	}
	tm := NewTimer(nil)
	idx := tm.Begin("check")
	tm.End(idx, "")
	if got := tm.Report().Phases[0].Counts; got != (Counts{}) {
		t.Fatalf("counts without sampler = %+v", got)
	}
	if s := tm.Summary(); strings.Contains(s, "nodes") {
		t.Fatalf("zero counts rendered:\n%s", s)
	}
}
