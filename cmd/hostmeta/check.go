package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hostmeta/internal/resolved"
	"hostmeta/internal/testkit"
	"hostmeta/internal/trace"
)

var checkCmd = &cobra.Command{
	Use:   "check <universe.toml>",
	Short: "Load a universe and validate every type",
	Long: `Materialize every class and interface of a universe, resolving
interfaces and field layouts, and report hierarchy or layout problems`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Bool("invariants", false, "also verify lattice, layout and assumption invariants")
}

type checkProblem struct {
	typ string
	err error
}

func runCheck(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()

	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.finish(cmd)

	idx := s.timer.Begin("check")
	var (
		problems                []checkProblem
		classes, ifaces, fields int
	)
	for _, name := range s.runtime.Names() {
		n, err := s.universe.Lookup(name)
		if err == nil {
			err = validateNode(n, &fields)
		}
		if err != nil {
			problems = append(problems, checkProblem{typ: name, err: err})
			trace.Point(s.tracer, trace.ScopeDriver, "check-failed", name+": "+err.Error())
			continue
		}
		if n.IsInterface() {
			ifaces++
		} else {
			classes++
		}
	}
	s.timer.End(idx, fmt.Sprintf("%d problems", len(problems)))

	invariants, err := cmd.Flags().GetBool("invariants")
	if err != nil {
		return fmt.Errorf("failed to get invariants flag: %w", err)
	}
	if invariants && len(problems) == 0 {
		idx = s.timer.Begin("invariants")
		if err := testkit.CheckUniverse(s.universe, s.runtime.Names()); err != nil {
			problems = append(problems, checkProblem{typ: "invariants", err: err})
		}
		s.timer.End(idx, "")
	}

	out := cmd.OutOrStdout()
	for _, p := range problems {
		fmt.Fprintf(out, "%s %s: %v\n", errColor.Sprint("error:"), p.typ, p.err)
	}
	p := newKV(out, "classes", "interfaces", "fields", "nodes")
	p.row("classes", fmt.Sprint(classes))
	p.row("interfaces", fmt.Sprint(ifaces))
	p.row("fields", fmt.Sprint(fields))
	p.row("nodes", fmt.Sprint(s.universe.Len()))

	if len(problems) > 0 {
		var modelErr error
		for _, pr := range problems {
			if errors.Is(pr.err, resolved.ErrModel) {
				modelErr = pr.err
				break
			}
		}
		dumpTraceOnModelError(modelErr)
		return fmt.Errorf("check failed with %d problems", len(problems))
	}
	fmt.Fprintln(out, okColor.Sprint("ok"))
	return nil
}

// validateNode forces every lazily computed part of n.
func validateNode(n *resolved.TypeNode, fields *int) error {
	if _, err := n.Interfaces(); err != nil {
		return err
	}
	if _, err := n.Supertype(); err != nil {
		return err
	}
	if n.IsInterface() {
		_, err := n.SingleImplementor()
		return err
	}
	inst, err := n.InstanceFields(false)
	if err != nil {
		return err
	}
	stat, err := n.StaticFields()
	if err != nil {
		return err
	}
	*fields += len(inst) + len(stat)
	return nil
}
