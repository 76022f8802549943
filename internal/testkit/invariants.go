// Package testkit checks structural invariants of a resolved universe. The
// check command and package tests run it over whole manifests.
package testkit

import (
	"errors"
	"fmt"

	"hostmeta/internal/meta"
	"hostmeta/internal/resolved"
)

// CheckUniverse runs the invariant set over the named types:
//  1. lookups are canonical and every supertype chain ends at the root
//  2. assignability is reflexive and the root accepts every reference type
//  3. instance field offsets strictly increase and fields belong to the
//     class or one of its superclasses
//  4. leaf answers are assignable concrete classes, and every leaf-type
//     assumption names a type without subclasses
//  5. the least common ancestor of two classes is assignable from both
//
// All violations are joined into the returned error.
func CheckUniverse(u *resolved.Universe, names []string) error {
	if u == nil {
		return errors.New("nil universe")
	}
	var errs []error
	nodes := make([]*resolved.TypeNode, 0, len(names))
	for _, name := range names {
		n, err := u.Lookup(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if again, err := u.Lookup(name); err != nil || again != n {
			errs = append(errs, fmt.Errorf("%s: lookup is not canonical", name))
		}
		nodes = append(nodes, n)
	}
	bound := u.Len() + len(names) + 1
	for _, n := range nodes {
		errs = append(errs, checkChain(u, n, bound))
		errs = append(errs, checkAssignable(u, n))
		errs = append(errs, checkFields(n))
		errs = append(errs, checkLeaf(u, n))
	}
	var classes []*resolved.TypeNode
	for _, n := range nodes {
		if n.IsInstanceClass() {
			classes = append(classes, n)
		}
	}
	for i, a := range classes {
		for _, b := range classes[i+1:] {
			errs = append(errs, checkLCA(a, b))
		}
	}
	return errors.Join(errs...)
}

func checkChain(u *resolved.Universe, n *resolved.TypeNode, bound int) error {
	if !n.IsInstanceClass() {
		return nil
	}
	c := n
	for range bound {
		if c.IsRoot() {
			return nil
		}
		c = c.Superclass()
		if c == nil {
			return fmt.Errorf("%s: superclass chain ends before %s", n, u.Root())
		}
	}
	return fmt.Errorf("%s: superclass chain longer than %d", n, bound)
}

func checkAssignable(u *resolved.Universe, n *resolved.TypeNode) error {
	ok, err := n.IsAssignableFrom(n)
	if err != nil {
		return fmt.Errorf("%s: %w", n, err)
	}
	if !ok {
		return fmt.Errorf("%s: not assignable from itself", n)
	}
	if n.IsPrimitive() {
		return nil
	}
	if ok, err := u.Root().IsAssignableFrom(n); err != nil || !ok {
		return fmt.Errorf("%s: root does not accept it (%v)", n, err)
	}
	return nil
}

func checkFields(n *resolved.TypeNode) error {
	if !n.IsInstanceClass() {
		return nil
	}
	fs, err := n.InstanceFields(true)
	if err != nil {
		return fmt.Errorf("%s: %w", n, err)
	}
	for i, f := range fs {
		if i > 0 && f.Offset <= fs[i-1].Offset {
			return fmt.Errorf("%s: field %s at %d does not follow %s at %d", n, f.Name, f.Offset, fs[i-1].Name, fs[i-1].Offset)
		}
		if ok, err := f.Holder.IsAssignableFrom(n); err != nil || !ok {
			return fmt.Errorf("%s: field %s held by unrelated %s", n, f.Name, f.Holder)
		}
	}
	return nil
}

func checkLeaf(u *resolved.Universe, n *resolved.TypeNode) error {
	if n.IsPrimitive() {
		return nil
	}
	r, ok, err := n.FindLeafConcreteSubtype()
	if err != nil {
		return fmt.Errorf("%s: leaf: %w", n, err)
	}
	if !ok {
		return nil
	}
	leaf := r.Value
	if ok, err := n.IsAssignableFrom(leaf); err != nil || !ok {
		return fmt.Errorf("%s: leaf %s is not a subtype", n, leaf)
	}
	if leaf.IsInterface() || (leaf.IsInstanceClass() && leaf.IsAbstract()) {
		return fmt.Errorf("%s: leaf %s is not concrete", n, leaf)
	}
	for _, a := range r.Assumptions() {
		if a.Kind != resolved.LeafType {
			continue
		}
		sub, err := u.Provider().FirstSubclassOf(a.Context.Ref())
		if err != nil {
			return fmt.Errorf("%s: %w", n, err)
		}
		if sub != meta.NoType {
			return fmt.Errorf("%s: %s assumed leaf but has subclasses", n, a.Context)
		}
	}
	return nil
}

func checkLCA(a, b *resolved.TypeNode) error {
	lca, ok, err := a.FindLeastCommonAncestor(b)
	if err != nil {
		return fmt.Errorf("lca(%s, %s): %w", a, b, err)
	}
	if !ok {
		return fmt.Errorf("lca(%s, %s): no answer for two classes", a, b)
	}
	for _, x := range []*resolved.TypeNode{a, b} {
		if ok, err := lca.IsAssignableFrom(x); err != nil || !ok {
			return fmt.Errorf("lca(%s, %s) = %s does not accept %s", a, b, lca, x)
		}
	}
	return nil
}
