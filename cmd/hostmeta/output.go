package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"hostmeta/internal/driver"
	"hostmeta/internal/ledger"
)

var (
	labelColor  = color.New(color.FgCyan)
	okColor     = color.New(color.FgGreen)
	noneColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed, color.Bold)
	assumeColor = color.New(color.FgMagenta)
	dimColor    = color.New(color.Faint)
)

// kv prints aligned "key  value" rows.
type kv struct {
	out   io.Writer
	width int
}

func newKV(out io.Writer, keys ...string) *kv {
	w := 0
	for _, k := range keys {
		w = max(w, runewidth.StringWidth(k))
	}
	return &kv{out: out, width: w}
}

func (p *kv) row(key, value string) {
	fmt.Fprintf(p.out, "%s  %s\n", labelColor.Sprint(runewidth.FillRight(key, p.width)), value)
}

func (p *kv) list(key string, values []string) {
	if len(values) == 0 {
		p.row(key, dimColor.Sprint("(none)"))
		return
	}
	p.row(key, values[0])
	indent := strings.Repeat(" ", p.width+2)
	for _, v := range values[1:] {
		fmt.Fprintf(p.out, "%s%s\n", indent, v)
	}
}

func renderOutcomesPretty(out io.Writer, outcomes []driver.Outcome, stats driver.Stats) {
	width := 0
	for i := range outcomes {
		width = max(width, runewidth.StringWidth(outcomes[i].Query.String()))
	}
	width = min(width, 60)
	for i := range outcomes {
		o := &outcomes[i]
		label := runewidth.FillRight(runewidth.Truncate(o.Query.String(), width, "..."), width)
		fmt.Fprintf(out, "%s  %s\n", labelColor.Sprint(label), answerText(o))
		for _, v := range o.Values {
			fmt.Fprintf(out, "%s    %s\n", strings.Repeat(" ", width), v)
		}
		for _, a := range o.Assumptions {
			fmt.Fprintf(out, "%s    %s %s\n", strings.Repeat(" ", width), dimColor.Sprint("assumes"), assumeColor.Sprint(a))
		}
	}
	fmt.Fprintf(out, "\n%d queries: %d answered, %d no answer, %d failed",
		stats.Total, stats.Answered, stats.NoAnswer, stats.Failed)
	if stats.Skipped > 0 {
		fmt.Fprintf(out, ", %d skipped", stats.Skipped)
	}
	fmt.Fprintf(out, "; %d assumptions\n", stats.Assumptions)
}

func answerText(o *driver.Outcome) string {
	switch {
	case o.Err != nil:
		return errColor.Sprint("error: ") + o.Error
	case o.Skipped:
		return dimColor.Sprint("skipped")
	case !o.Found:
		return noneColor.Sprint("no answer")
	case o.Value != "":
		return okColor.Sprint(o.Value)
	default:
		return okColor.Sprintf("%d items", len(o.Values))
	}
}

type outcomesPayload struct {
	Outcomes []driver.Outcome `json:"outcomes"`
	Stats    statsPayload     `json:"stats"`
	Ledger   string           `json:"ledger,omitempty"`
}

type statsPayload struct {
	Total       int     `json:"total"`
	Answered    int     `json:"answered"`
	NoAnswer    int     `json:"no_answer"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	Assumptions int     `json:"assumptions"`
	ElapsedMS   float64 `json:"elapsed_ms"`
}

func renderOutcomesJSON(out io.Writer, outcomes []driver.Outcome, stats driver.Stats, ledgerID string) error {
	payload := outcomesPayload{
		Outcomes: outcomes,
		Stats: statsPayload{
			Total:       stats.Total,
			Answered:    stats.Answered,
			NoAnswer:    stats.NoAnswer,
			Failed:      stats.Failed,
			Skipped:     stats.Skipped,
			Assumptions: stats.Assumptions,
			ElapsedMS:   float64(stats.Elapsed.Microseconds()) / 1000,
		},
		Ledger: ledgerID,
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func renderSessionPretty(out io.Writer, s *ledger.Session, entries []ledger.Entry) {
	p := newKV(out, "session", "universe", "created", "entries")
	p.row("session", s.ID)
	p.row("universe", s.Universe)
	p.row("created", s.Created.Format("2006-01-02 15:04:05 MST"))
	p.row("entries", fmt.Sprintf("%d", len(entries)))
	fmt.Fprintln(out)
	for _, e := range entries {
		fmt.Fprintf(out, "%s %s  %s\n",
			dimColor.Sprintf("#%-4d", e.Seq),
			assumeColor.Sprint(e.Describe()),
			dimColor.Sprint("<- "+e.Query))
	}
}

func checkFormat(format string) error {
	switch format {
	case "pretty", "json":
		return nil
	default:
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
}
