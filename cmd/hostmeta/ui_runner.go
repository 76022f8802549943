package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"hostmeta/internal/driver"
	"hostmeta/internal/resolved"
	"hostmeta/internal/ui"
)

type batchOutcome struct {
	outcomes []driver.Outcome
	stats    driver.Stats
	err      error
}

// runQueriesWithUI runs the batch while a Bubble Tea program renders its
// progress events.
func runQueriesWithUI(ctx context.Context, title string, u *resolved.Universe, finder driver.MethodFinder, qs []driver.Query, opts driver.Options) ([]driver.Outcome, driver.Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan batchOutcome, 1)

	go func() {
		o := opts
		o.Sink = driver.ChannelSink{Ch: events}
		outcomes, stats, err := driver.Run(ctx, u, finder, qs, o)
		outcomeCh <- batchOutcome{outcomes: outcomes, stats: stats, err: err}
		close(events)
	}()

	labels := make([]string, len(qs))
	for i, q := range qs {
		labels[i] = q.String()
	}
	model := ui.NewProgressModel(title, labels, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// The program only returns before the batch does when the user quit.
	cancel()
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.outcomes, outcome.stats, uiErr
	}
	return outcome.outcomes, outcome.stats, outcome.err
}
