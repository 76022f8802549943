package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hostmeta/internal/resolved"
	"hostmeta/internal/trace"
)

var (
	activeTracer    trace.Tracer = trace.Nop
	activeHeartbeat *trace.Heartbeat
)

// setupTracing merges the trace flags over the [trace] config section and
// attaches the tracer to the command context.
func setupTracing(cmd *cobra.Command) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	tc := cfg.Trace
	flags := cmd.Root().PersistentFlags()
	if flags.Changed("trace") {
		tc.Output, _ = flags.GetString("trace")
		if tc.Level == "" || tc.Level == "off" {
			tc.Level = "query"
		}
	}
	if flags.Changed("trace-level") {
		tc.Level, _ = flags.GetString("trace-level")
	}
	if flags.Changed("trace-mode") {
		tc.Mode, _ = flags.GetString("trace-mode")
	}
	if flags.Changed("trace-ring-size") {
		tc.RingSize, _ = flags.GetInt("trace-ring-size")
	}
	if flags.Changed("trace-heartbeat") {
		hb, _ := flags.GetDuration("trace-heartbeat")
		tc.Heartbeat = hb.String()
	}
	merged := *cfg
	merged.Trace = tc
	tcfg, err := merged.TraceConfig()
	if err != nil {
		return fmt.Errorf("invalid trace settings: %w", err)
	}

	tracer, err := trace.New(tcfg)
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	activeTracer = tracer
	activeHeartbeat = trace.StartHeartbeat(tracer, tcfg.Heartbeat)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = trace.WithTracer(ctx, tracer)
	cmd.SetContext(ctx)
	return nil
}

func closeTracing(cmd *cobra.Command) {
	activeHeartbeat.Stop()
	activeHeartbeat = nil
	if err := activeTracer.Flush(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
	}
	if err := activeTracer.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
	}
	activeTracer = trace.Nop
}

// dumpTraceRing writes the retained events to stderr, when a ring exists.
func dumpTraceRing(reason string) {
	ring, ok := trace.RingOf(activeTracer)
	if !ok {
		return
	}
	fmt.Fprintf(os.Stderr, "--- trace (%s) ---\n", reason)
	if err := ring.Dump(os.Stderr, trace.FormatText); err != nil {
		fmt.Fprintf(os.Stderr, "trace: dump error: %v\n", err)
	}
}

// dumpTraceOnModelError dumps the ring when err is a modeling error.
func dumpTraceOnModelError(err error) {
	if err != nil && errors.Is(err, resolved.ErrModel) {
		dumpTraceRing("modeling error")
	}
}

// dumpTraceOnPanic dumps the ring before re-panicking.
func dumpTraceOnPanic() {
	if r := recover(); r != nil {
		dumpTraceRing("panic")
		panic(r)
	}
}
