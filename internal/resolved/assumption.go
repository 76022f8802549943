package resolved

import (
	"fmt"
	"slices"

	"hostmeta/internal/meta"
)

// AssumptionKind names the lattice fact an Assumption depends on.
type AssumptionKind uint8

const (
	// LeafType: Context has no subclass.
	LeafType AssumptionKind = iota + 1
	// ConcreteSubtype: Subtype is the only concrete subtype of Context.
	ConcreteSubtype
	// ConcreteMethod: Impl is the only implementation of Method reachable
	// from Context.
	ConcreteMethod
	// NoFinalizableSubclass: no subtype of Context overrides finalize.
	NoFinalizableSubclass
)

func (k AssumptionKind) String() string {
	switch k {
	case LeafType:
		return "leaf-type"
	case ConcreteSubtype:
		return "concrete-subtype"
	case ConcreteMethod:
		return "concrete-method"
	case NoFinalizableSubclass:
		return "no-finalizable-subclass"
	default:
		return fmt.Sprintf("AssumptionKind(%d)", k)
	}
}

// Assumption is an immutable record of one fact a query answer relies on.
// Loading a class that breaks the fact invalidates the answer; tracking
// that is up to the caller.
type Assumption struct {
	Kind    AssumptionKind
	Context *TypeNode
	Subtype *TypeNode     // ConcreteSubtype only
	Method  *MethodHandle // ConcreteMethod only
	Impl    *MethodHandle // ConcreteMethod only
}

func (a Assumption) String() string {
	switch a.Kind {
	case ConcreteSubtype:
		return fmt.Sprintf("%s(%s, %s)", a.Kind, a.Context, a.Subtype)
	case ConcreteMethod:
		return fmt.Sprintf("%s(%s, %s, %s)", a.Kind, a.Method, a.Context, a.Impl)
	default:
		return fmt.Sprintf("%s(%s)", a.Kind, a.Context)
	}
}

// Types lists the distinct types whose subclass set the assumption
// depends on.
func (a Assumption) Types() []*TypeNode {
	out := []*TypeNode{a.Context}
	add := func(t *TypeNode) {
		if t != nil && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	add(a.Subtype)
	if a.Method != nil {
		add(a.Method.holder)
	}
	if a.Impl != nil {
		add(a.Impl.holder)
	}
	return out
}

func leafType(t *TypeNode) Assumption {
	return Assumption{Kind: LeafType, Context: t}
}

func concreteSubtype(ctx, sub *TypeNode) Assumption {
	return Assumption{Kind: ConcreteSubtype, Context: ctx, Subtype: sub}
}

func concreteMethod(m *MethodHandle, ctx *TypeNode, impl *MethodHandle) Assumption {
	return Assumption{Kind: ConcreteMethod, Context: ctx, Method: m, Impl: impl}
}

// Result is a query answer together with the assumptions it rests on. An
// empty assumption list means the answer holds unconditionally.
type Result[T any] struct {
	Value       T
	assumptions []Assumption
}

// NewResult returns a result for v resting on as.
func NewResult[T any](v T, as ...Assumption) Result[T] {
	r := Result[T]{Value: v}
	r.Add(as...)
	return r
}

// Add records further assumptions, skipping ones already present.
func (r *Result[T]) Add(as ...Assumption) {
	for _, a := range as {
		if !slices.Contains(r.assumptions, a) {
			r.assumptions = append(r.assumptions, a)
		}
	}
}

// Assumptions returns the recorded assumptions in the order they were added.
func (r Result[T]) Assumptions() []Assumption {
	return slices.Clone(r.assumptions)
}

// IsAssumptionFree reports whether the value holds unconditionally.
func (r Result[T]) IsAssumptionFree() bool {
	return len(r.assumptions) == 0
}

// FindLeafConcreteSubtype returns the unique concrete type every value of n
// currently has, with the assumptions that keep it unique. It reports false
// when the lattice admits more than one candidate.
func (n *TypeNode) FindLeafConcreteSubtype() (Result[*TypeNode], bool, error) {
	if n.IsLeaf() {
		return NewResult(n), true, nil
	}
	switch n.kind {
	case meta.KindArray:
		return n.leafConcreteArray()
	case meta.KindInterface:
		return n.leafConcreteImplementor()
	case meta.KindClass:
		return n.leafConcreteClass()
	default:
		return Result[*TypeNode]{}, false, nil
	}
}

// leafConcreteArray answers for an array only when its elemental type is
// itself the leaf. A single concrete subtype of the element is not enough:
// arrays of that subtype would still be proper subtypes of n.
func (n *TypeNode) leafConcreteArray() (Result[*TypeNode], bool, error) {
	elem := n.elemental
	er, ok, err := elem.FindLeafConcreteSubtype()
	if err != nil || !ok || er.Value != elem {
		return Result[*TypeNode]{}, false, err
	}
	r := NewResult(n)
	r.Add(er.assumptions...)
	return r, true, nil
}

// leafConcreteImplementor follows a unique implementor down to a concrete
// leaf. When the implementor is abstract or has subclasses, the answer
// composes both facts so that breaking either invalidates it.
func (n *TypeNode) leafConcreteImplementor() (Result[*TypeNode], bool, error) {
	impl, err := n.SingleImplementor()
	if err != nil || impl.Kind != meta.ImplementorUnique {
		return Result[*TypeNode]{}, false, err
	}
	t := impl.Type
	leaf, err := t.isLeafClass()
	if err != nil {
		return Result[*TypeNode]{}, false, err
	}
	if t.IsAbstract() || !leaf {
		sub, ok, err := t.FindLeafConcreteSubtype()
		if err != nil || !ok {
			return Result[*TypeNode]{}, false, err
		}
		r := NewResult(sub.Value, concreteSubtype(n, t))
		r.Add(sub.assumptions...)
		return r, true, nil
	}
	return n.concreteSubtype(t), true, nil
}

// leafConcreteClass walks single-child chains below abstract classes.
func (n *TypeNode) leafConcreteClass() (Result[*TypeNode], bool, error) {
	t := n
	for t.IsAbstract() {
		sub, ok, err := t.soleSubclass()
		if err != nil || !ok {
			return Result[*TypeNode]{}, false, err
		}
		t = sub
	}
	leaf, err := t.isLeafClass()
	if err != nil || t.IsAbstract() || t.IsInterface() || !leaf {
		return Result[*TypeNode]{}, false, err
	}
	if n.IsAbstract() {
		return n.concreteSubtype(t), true, nil
	}
	return NewResult(t, leafType(t)), true, nil
}

func (n *TypeNode) concreteSubtype(t *TypeNode) Result[*TypeNode] {
	if t.IsLeaf() {
		return NewResult(t, concreteSubtype(n, t))
	}
	return NewResult(t, leafType(t), concreteSubtype(n, t))
}

// FindUniqueConcreteMethod returns the single implementation a call of m
// on a receiver of static type n can reach, with the assumption that keeps
// it unique. It reports false when no single target can be established.
func (n *TypeNode) FindUniqueConcreteMethod(m *MethodHandle) (Result[*MethodHandle], bool, error) {
	declared := m.holder
	related, err := declared.IsAssignableFrom(n)
	if err != nil {
		return Result[*MethodHandle]{}, false, err
	}
	linked, err := n.IsLinked()
	if err != nil {
		return Result[*MethodHandle]{}, false, err
	}
	if !related || n.IsArray() || n == declared || !linked || n.IsInterface() {
		// n tells us nothing beyond the declared holder.
		if m.CanBeStaticallyBound() {
			return NewResult(m), true, nil
		}
		return n.uniqueConcreteIn(m, declared, m)
	}

	target, ok, err := n.ResolveMethod(m, n)
	if err != nil || !ok {
		return Result[*MethodHandle]{}, false, err
	}
	if target.CanBeStaticallyBound() {
		return NewResult(target), true, nil
	}
	return n.uniqueConcreteIn(m, n, target)
}

// uniqueConcreteIn asks the provider for the unique concrete override of
// target below ctx and records it as a ConcreteMethod assumption on m.
func (n *TypeNode) uniqueConcreteIn(m *MethodHandle, ctx *TypeNode, target *MethodHandle) (Result[*MethodHandle], bool, error) {
	// An interface context hides superclass implementations inherited by
	// its implementors, and default methods are not tracked per class.
	if ctx.IsInterface() || (target.holder.IsInterface() && target.IsConcrete()) {
		return Result[*MethodHandle]{}, false, nil
	}
	id, ok, err := n.u.p.UniqueConcreteMethod(ctx.ref, target.id)
	if err != nil || !ok {
		return Result[*MethodHandle]{}, false, err
	}
	impl, err := n.u.Method(id)
	if err != nil {
		return Result[*MethodHandle]{}, false, err
	}
	if ok, err := n.related(impl.holder); err != nil || !ok {
		return Result[*MethodHandle]{}, false, err
	}
	return NewResult(impl, concreteMethod(m, ctx, impl)), true, nil
}

// related reports whether n and t are comparable in the lattice.
func (n *TypeNode) related(t *TypeNode) (bool, error) {
	ok, err := t.IsAssignableFrom(n)
	if err != nil || ok {
		return ok, err
	}
	return n.IsAssignableFrom(t)
}

// HasFinalizableSubclass reports whether n or a subtype overrides finalize.
// A false answer rests on a NoFinalizableSubclass assumption. Asking about
// an array type is a modeling error.
func (n *TypeNode) HasFinalizableSubclass() (Result[bool], error) {
	if n.IsArray() {
		return Result[bool]{}, &ModelError{Kind: ModelErrArrayFinalizerQuery, Type: n.name}
	}
	has, err := n.u.p.HasOverridingFinalizer(n.ref)
	if err != nil {
		return Result[bool]{}, err
	}
	if has {
		return NewResult(true), nil
	}
	return NewResult(false, Assumption{Kind: NoFinalizableSubclass, Context: n}), nil
}
