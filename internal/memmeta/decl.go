package memmeta

import (
	"fmt"
	"strings"

	"hostmeta/internal/meta"
)

// ClassDecl declares a class or interface to be loaded into a Runtime.
type ClassDecl struct {
	Name       string
	Kind       meta.Kind // KindClass or KindInterface
	Super      string    // defaults to the root for classes
	Interfaces []string
	Modifiers  meta.Modifiers
	State      meta.LinkageState
	Fields     []FieldDecl
	Methods    []MethodDecl
}

// FieldDecl declares a field. Type is the name of the declared type.
type FieldDecl struct {
	Name      string
	Type      string
	Modifiers meta.Modifiers // ModStatic selects the static area
	Generic   bool
}

// MethodDecl declares a method.
// Reserved method names.
const (
	constructorName = "<init>"
	initializerName = "<clinit>"
)

type MethodDecl struct {
	Name       string
	Descriptor string
	Modifiers  meta.Modifiers
}

// deps lists the names a declaration needs defined first.
func (d *ClassDecl) deps(root string) []string {
	out := make([]string, 0, 1+len(d.Interfaces))
	if d.Super != "" && d.Super != root {
		out = append(out, d.Super)
	}
	out = append(out, d.Interfaces...)
	return out
}

// DefineAll defines a batch of declarations in dependency order.
// Declarations may reference each other in any order; already loaded types
// are also valid dependencies.
func (r *Runtime) DefineAll(decls []ClassDecl) error {
	byName := make(map[string]int, len(decls))
	for i := range decls {
		name := decls[i].Name
		if _, dup := byName[name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateType, name)
		}
		byName[name] = i
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]uint8, len(decls))
	order := make([]int, 0, len(decls))
	var stack []string

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			cycle := append(append([]string(nil), stack...), decls[i].Name)
			return fmt.Errorf("%w: %s", ErrCyclicHierarchy, strings.Join(cycle, " -> "))
		}
		state[i] = visiting
		stack = append(stack, decls[i].Name)
		for _, dep := range decls[i].deps(r.opts.RootName) {
			if j, ok := byName[dep]; ok {
				if err := visit(j); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = done
		order = append(order, i)
		return nil
	}

	for i := range decls {
		if err := visit(i); err != nil {
			return err
		}
	}
	for _, i := range order {
		if _, err := r.Define(decls[i]); err != nil {
			return err
		}
	}
	return nil
}

// ParseMethodSpec splits "Holder.name(desc)ret" into its parts.
func ParseMethodSpec(spec string) (holder, name, descriptor string, err error) {
	spec = strings.TrimSpace(spec)
	paren := strings.IndexByte(spec, '(')
	if paren < 0 {
		return "", "", "", fmt.Errorf("method %q: missing descriptor", spec)
	}
	dot := strings.LastIndexByte(spec[:paren], '.')
	if dot <= 0 || dot == paren-1 {
		return "", "", "", fmt.Errorf("method %q: expected Holder.name(desc)", spec)
	}
	return spec[:dot], spec[dot+1 : paren], spec[paren:], nil
}

func packageOf(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return ""
}
