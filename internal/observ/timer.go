// Package observ times the phases of a hostmeta run (manifest load,
// universe setup, query batch, ledger write) and records how much of the
// type lattice each phase touched.
package observ

import (
	"fmt"
	"strings"
	"time"
)

// Counts are domain totals. Types and Nodes grow as the provider loads
// declarations and the universe materializes canonical nodes; Methods
// counts interned handles. Queries and Assumptions are reported by the
// phase itself through Add.
type Counts struct {
	Types       int `json:"types,omitempty"`
	Nodes       int `json:"nodes,omitempty"`
	Methods     int `json:"methods,omitempty"`
	Queries     int `json:"queries,omitempty"`
	Assumptions int `json:"assumptions,omitempty"`
}

func (c Counts) plus(o Counts) Counts {
	return Counts{
		Types:       c.Types + o.Types,
		Nodes:       c.Nodes + o.Nodes,
		Methods:     c.Methods + o.Methods,
		Queries:     c.Queries + o.Queries,
		Assumptions: c.Assumptions + o.Assumptions,
	}
}

func (c Counts) minus(o Counts) Counts {
	return c.plus(Counts{
		Types:       -o.Types,
		Nodes:       -o.Nodes,
		Methods:     -o.Methods,
		Queries:     -o.Queries,
		Assumptions: -o.Assumptions,
	})
}

func (c Counts) String() string {
	var parts []string
	add := func(n int, unit string) {
		if n != 0 {
			parts = append(parts, fmt.Sprintf("%+d %s", n, unit))
		}
	}
	add(c.Types, "types")
	add(c.Nodes, "nodes")
	add(c.Methods, "methods")
	if c.Queries != 0 {
		parts = append(parts, fmt.Sprintf("%d queries", c.Queries))
	}
	if c.Assumptions != 0 {
		parts = append(parts, fmt.Sprintf("%d assumptions", c.Assumptions))
	}
	return strings.Join(parts, " ")
}

// Sampler reads the current lattice totals. It is called at both ends of
// every phase, so it must be cheap.
type Sampler func() Counts

// Phase is one timed step of a run. Counts hold the lattice growth
// between Begin and End plus whatever the phase added itself.
type Phase struct {
	Name   string
	Start  time.Time
	Dur    time.Duration
	Note   string
	Counts Counts

	before Counts
}

// Timer tracks phases in the order they began. It is not goroutine-safe;
// phases belong to the command goroutine.
type Timer struct {
	sample Sampler
	phases []Phase
}

// NewTimer returns a Timer that samples lattice totals with sample. A nil
// sampler records durations and explicit counts only.
func NewTimer(sample Sampler) *Timer {
	if sample == nil {
		sample = func() Counts { return Counts{} }
	}
	return &Timer{sample: sample, phases: make([]Phase, 0, 8)}
}

// Begin starts a phase and returns its index for End.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now(), before: t.sample()})
	return len(t.phases) - 1
}

// Add credits queries or assumptions to the phase at idx.
func (t *Timer) Add(idx int, c Counts) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	t.phases[idx].Counts = t.phases[idx].Counts.plus(c)
}

// End finishes the phase at idx. Out-of-range indexes are ignored.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
	p.Counts = p.Counts.plus(t.sample().minus(p.before))
}

// Summary renders the phases as an aligned table.
func (t *Timer) Summary() string {
	report := t.Report()
	var b strings.Builder
	b.WriteString("timings:\n")
	for _, p := range report.Phases {
		fmt.Fprintf(&b, "  %-12s %8.2f ms", p.Name, p.DurationMS)
		if s := p.Counts.String(); s != "" {
			b.WriteString("  " + s)
		}
		if p.Note != "" {
			b.WriteString("  // " + p.Note)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  %-12s %8.2f ms", "total", report.TotalMS)
	if s := report.Counts.String(); s != "" {
		b.WriteString("  " + s)
	}
	b.WriteString("\n")
	return b.String()
}

// PhaseReport is the serializable form of a Phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
	Counts     Counts  `json:"counts"`
}

// Report aggregates all phases. Counts is the sum over phases.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Counts  Counts        `json:"counts"`
	Phases  []PhaseReport `json:"phases"`
}

func (t *Timer) Report() Report {
	if len(t.phases) == 0 {
		return Report{}
	}
	report := Report{Phases: make([]PhaseReport, len(t.phases))}
	var total time.Duration
	for i, phase := range t.phases {
		total += phase.Dur
		report.Counts = report.Counts.plus(phase.Counts)
		report.Phases[i] = PhaseReport{
			Name:       phase.Name,
			DurationMS: float64(phase.Dur) / float64(time.Millisecond),
			Note:       phase.Note,
			Counts:     phase.Counts,
		}
	}
	report.TotalMS = float64(total) / float64(time.Millisecond)
	return report
}
