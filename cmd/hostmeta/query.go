package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hostmeta/internal/driver"
	"hostmeta/internal/ledger"
	"hostmeta/internal/observ"
	"hostmeta/internal/resolved"
)

var queryCmd = &cobra.Command{
	Use:   "query <universe.toml> <queries.toml>",
	Short: "Run a batch of queries against a universe",
	Long: `Run every [[query]] of a query file against a universe on a worker
pool, print the answers with the assumptions they rest on, and optionally
record those assumptions in a ledger file`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().Int("jobs", 0, "max parallel workers (0=config or auto)")
	queryCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
	queryCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	queryCmd.Flags().String("ledger", "", "write recorded assumptions to this file (.mp or .cbor)")
	queryCmd.Flags().String("ledger-codec", "", "ledger encoding (msgpack|cbor, default: by extension)")
	queryCmd.Flags().Bool("fail-fast", false, "stop at the first failed query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()

	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if err := checkFormat(format); err != nil {
		return err
	}
	uiFlag, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := parseProgressMode(uiFlag)
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if jobs <= 0 {
		jobs = cfg.Jobs()
	}
	failFast, err := cmd.Flags().GetBool("fail-fast")
	if err != nil {
		return fmt.Errorf("failed to get fail-fast flag: %w", err)
	}
	failFast = failFast || cfg.Driver.FailFast

	ledgerPath, _ := cmd.Flags().GetString("ledger")
	if ledgerPath == "" {
		ledgerPath = cfg.Ledger.Path
	}
	codec, err := ledgerCodec(cmd, ledgerPath, cfg.LedgerCodec())
	if err != nil {
		return err
	}

	qs, err := driver.LoadQueries(args[1])
	if err != nil {
		return err
	}
	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.finish(cmd)

	var led *ledger.Ledger
	if ledgerPath != "" {
		led = ledger.New(args[0])
	}
	opts := driver.Options{
		Jobs:     jobs,
		FailFast: failFast,
		Tracer:   s.tracer,
		Ledger:   led,
	}

	idx := s.timer.Begin("queries")
	var (
		outcomes []driver.Outcome
		stats    driver.Stats
		runErr   error
	)
	if mode.showProgress(format, len(qs), isTerminal(os.Stdout)) {
		outcomes, stats, runErr = runQueriesWithUI(s.ctx, "queries", s.universe, s.runtime, qs, opts)
	} else {
		outcomes, stats, runErr = driver.Run(s.ctx, s.universe, s.runtime, qs, opts)
	}
	s.timer.Add(idx, observ.Counts{Queries: stats.Total, Assumptions: stats.Assumptions})
	s.timer.End(idx, fmt.Sprintf("%d jobs", jobs))

	ledgerID := ""
	if led != nil {
		idx = s.timer.Begin("ledger")
		if err := led.Save(ledgerPath, codec); err != nil {
			return fmt.Errorf("save ledger: %w", err)
		}
		s.timer.End(idx, fmt.Sprintf("%d entries", led.Len()))
		ledgerID = led.ID().String()
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		if err := renderOutcomesJSON(out, outcomes, stats, ledgerID); err != nil {
			return err
		}
	} else {
		renderOutcomesPretty(out, outcomes, stats)
		if ledgerID != "" {
			fmt.Fprintf(out, "ledger %s -> %s\n", ledgerID, ledgerPath)
		}
	}

	for i := range outcomes {
		if errors.Is(outcomes[i].Err, resolved.ErrModel) {
			dumpTraceOnModelError(outcomes[i].Err)
			break
		}
	}
	if runErr != nil {
		return runErr
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d queries failed", stats.Failed, stats.Total)
	}
	return nil
}

func ledgerCodec(cmd *cobra.Command, path string, def ledger.Codec) (ledger.Codec, error) {
	name, err := cmd.Flags().GetString("ledger-codec")
	if err != nil {
		return def, fmt.Errorf("failed to get ledger-codec flag: %w", err)
	}
	if name != "" {
		return ledger.ParseCodec(name)
	}
	if path != "" && ledger.CodecFor(path) == ledger.CodecCBOR {
		return ledger.CodecCBOR, nil
	}
	return def, nil
}
