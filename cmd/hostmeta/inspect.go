package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hostmeta/internal/resolved"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <universe.toml> <type>",
	Short: "Describe one type of a universe",
	Args:  cobra.ExactArgs(2),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()

	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.finish(cmd)

	idx := s.timer.Begin("inspect")
	err = inspectType(cmd, s, args[1])
	s.timer.End(idx, args[1])
	dumpTraceOnModelError(err)
	return err
}

func inspectType(cmd *cobra.Command, s *session, name string) error {
	n, err := s.universe.Lookup(name)
	if err != nil {
		return err
	}
	p := newKV(cmd.OutOrStdout(),
		"type", "kind", "modifiers", "linkage", "supertype", "interfaces",
		"component", "elemental", "implementor", "leaf subtype", "finalizable",
		"finalizer", "instance size", "vtable length", "initializer",
		"constructors", "methods", "instance fields", "static fields")

	p.row("type", n.Name())
	p.row("kind", n.Kind().String())
	p.row("modifiers", n.Modifiers().String())
	state, err := n.LinkageState()
	if err != nil {
		return err
	}
	p.row("linkage", state.String())

	super, err := n.Supertype()
	if err != nil {
		return err
	}
	p.row("supertype", nameOr(super, "(none)"))
	ifaces, err := n.Interfaces()
	if err != nil {
		return err
	}
	p.list("interfaces", typeNames(ifaces))

	if n.IsArray() {
		p.row("component", n.Component().Name())
		p.row("elemental", n.Elemental().Name())
	}
	if n.IsInterface() {
		impl, err := n.SingleImplementor()
		if err != nil {
			return err
		}
		text := impl.Kind.String()
		if impl.Type != nil {
			text += " " + impl.Type.Name()
		}
		p.row("implementor", text)
	}

	if !n.IsPrimitive() {
		leaf, ok, err := n.FindLeafConcreteSubtype()
		if err != nil {
			return err
		}
		if ok {
			p.row("leaf subtype", withAssumptions(leaf.Value.Name(), leaf.Assumptions()))
		} else {
			p.row("leaf subtype", noneColor.Sprint("no answer"))
		}
	}
	if !n.IsArray() && !n.IsPrimitive() {
		fin, err := n.HasFinalizableSubclass()
		if err != nil {
			return err
		}
		p.row("finalizable", withAssumptions(fmt.Sprint(fin.Value), fin.Assumptions()))
	}

	if !n.IsPrimitive() {
		vt, err := n.VtableLength()
		if err != nil {
			return err
		}
		p.row("vtable length", fmt.Sprint(vt))
	}
	if n.IsInstanceClass() {
		fin, err := n.HasFinalizer()
		if err != nil {
			return err
		}
		p.row("finalizer", fmt.Sprint(fin))
		size, err := n.InstanceSize()
		if err != nil {
			return err
		}
		if size < 0 {
			p.row("instance size", fmt.Sprintf("%d %s", -size, dimColor.Sprint("(slow path)")))
		} else {
			p.row("instance size", fmt.Sprint(size))
		}
	}
	if n.IsInstanceClass() || n.IsInterface() {
		clinit, ok, err := n.ClassInitializer()
		if err != nil {
			return err
		}
		if ok {
			p.row("initializer", clinit.String())
		}
		ctors, err := n.DeclaredConstructors()
		if err != nil {
			return err
		}
		if n.IsInstanceClass() {
			p.list("constructors", methodStrings(ctors))
		}
		methods, err := n.DeclaredMethods()
		if err != nil {
			return err
		}
		p.list("methods", methodStrings(methods))
	}

	if n.IsInstanceClass() {
		inst, err := n.InstanceFields(true)
		if err != nil {
			return err
		}
		p.list("instance fields", fieldStrings(inst))
	}
	if n.IsInstanceClass() || n.IsInterface() {
		stat, err := n.StaticFields()
		if err != nil {
			return err
		}
		p.list("static fields", fieldStrings(stat))
	}
	return nil
}

func withAssumptions(value string, as []resolved.Assumption) string {
	if len(as) == 0 {
		return okColor.Sprint(value)
	}
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = a.String()
	}
	return okColor.Sprint(value) + " " + assumeColor.Sprint("assuming "+strings.Join(parts, ", "))
}

func nameOr(n *resolved.TypeNode, def string) string {
	if n == nil {
		return dimColor.Sprint(def)
	}
	return n.Name()
}

func typeNames(ns []*resolved.TypeNode) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Name()
	}
	return out
}

func fieldStrings(fs []resolved.Field) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.String()
	}
	return out
}

func methodStrings(ms []*resolved.MethodHandle) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = strings.TrimSpace(m.Modifiers().String() + " " + m.Name() + m.Descriptor())
	}
	return out
}
