package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hostmeta/internal/memmeta"
	"hostmeta/internal/observ"
	"hostmeta/internal/resolved"
	"hostmeta/internal/trace"
)

// session bundles what every universe-backed command needs.
type session struct {
	ctx      context.Context
	tracer   trace.Tracer
	runtime  *memmeta.Runtime
	universe *resolved.Universe
	handles  *resolved.HandleRegistry
	timer    *observ.Timer
}

func openSession(cmd *cobra.Command, manifest string) (*session, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tracer := trace.FromContext(ctx)
	var (
		rt      *memmeta.Runtime
		u       *resolved.Universe
		handles = resolved.NewHandleRegistry()
	)
	timer := observ.NewTimer(func() observ.Counts {
		c := observ.Counts{Methods: handles.Len()}
		if rt != nil {
			c.Types = rt.Len()
		}
		if u != nil {
			c.Nodes = u.Len()
		}
		return c
	})

	idx := timer.Begin("load")
	span := trace.Begin(tracer, trace.ScopeDriver, "load", 0)
	rt, err = memmeta.LoadManifest(manifest)
	span.End(manifest)
	if err != nil {
		timer.End(idx, "failed")
		return nil, err
	}
	timer.End(idx, manifest)

	idx = timer.Begin("universe")
	u, err = resolved.NewUniverse(resolved.TracedProvider(rt, tracer), cfg.ResolvedConfig(tracer, handles))
	timer.End(idx, "")
	if err != nil {
		dumpTraceOnModelError(err)
		return nil, err
	}
	return &session{
		ctx:      ctx,
		tracer:   tracer,
		runtime:  rt,
		universe: u,
		handles:  handles,
		timer:    timer,
	}, nil
}

// finish prints the phase timings when --timings is set.
func (s *session) finish(cmd *cobra.Command) {
	show, _ := cmd.Root().PersistentFlags().GetBool("timings")
	if show {
		fmt.Fprint(cmd.ErrOrStderr(), s.timer.Summary())
	}
}
