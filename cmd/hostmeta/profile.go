package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hostmeta/internal/prof"
)

var activeProfiler *prof.Profiler

// setupProfiling starts the profiles named by the persistent flags.
func setupProfiling(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	var cfg prof.Config
	var err error
	if cfg.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if cfg.Mem, err = flags.GetString("mem-profile"); err != nil {
		return fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if cfg.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	activeProfiler, err = prof.Start(cfg)
	return err
}

func stopProfiling(cmd *cobra.Command) {
	if err := activeProfiler.Stop(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
	}
	activeProfiler = nil
}
