package driver

import (
	"fmt"
	"strconv"

	"hostmeta/internal/meta"
	"hostmeta/internal/resolved"
)

// MethodFinder resolves "Holder.name(desc)ret" to a method id.
// memmeta.Runtime satisfies it.
type MethodFinder interface {
	MethodBySpec(spec string) (meta.MethodID, error)
}

// Outcome is the answer to one query.
type Outcome struct {
	Index       int      `json:"index"`
	Query       Query    `json:"query"`
	Found       bool     `json:"found"`
	Value       string   `json:"value,omitempty"`
	Values      []string `json:"values,omitempty"`
	Assumptions []string `json:"assumptions,omitempty"`
	Error       string   `json:"error,omitempty"`
	Skipped     bool     `json:"skipped,omitempty"`
	ElapsedUS   int64    `json:"elapsed_us"`

	Err error                 `json:"-"`
	raw []resolved.Assumption // recorded into the ledger
}

func (o *Outcome) fail(err error) {
	o.Err = err
	o.Error = err.Error()
}

// Summary is a short text used as the span end detail.
func (o *Outcome) Summary() string {
	switch {
	case o.Err != nil:
		return "error: " + o.Error
	case o.Skipped:
		return "skipped"
	case !o.Found:
		return "no answer"
	case len(o.Values) > 0 || o.Value == "":
		return strconv.Itoa(len(o.Values)) + " items"
	default:
		return o.Value
	}
}

type evaluator struct {
	u      *resolved.Universe
	finder MethodFinder
}

func (e *evaluator) node(name string) (*resolved.TypeNode, error) {
	return e.u.Lookup(name)
}

func (e *evaluator) method(spec string) (*resolved.MethodHandle, error) {
	id, err := e.finder.MethodBySpec(spec)
	if err != nil {
		return nil, err
	}
	return e.u.Method(id)
}

func (e *evaluator) eval(q Query, o *Outcome) error {
	t, err := e.node(q.Type)
	if err != nil {
		return err
	}
	switch q.Op {
	case OpLeaf:
		r, ok, err := t.FindLeafConcreteSubtype()
		if err != nil || !ok {
			return err
		}
		setResult(o, r.Value.Name(), r.Assumptions())
	case OpUniqueMethod:
		m, err := e.method(q.Method)
		if err != nil {
			return err
		}
		r, ok, err := t.FindUniqueConcreteMethod(m)
		if err != nil || !ok {
			return err
		}
		setResult(o, r.Value.String(), r.Assumptions())
	case OpResolve:
		m, err := e.method(q.Method)
		if err != nil {
			return err
		}
		// Without an explicit caller the call is made from the receiver's
		// own class. Array types have no code, so they call from nowhere.
		caller := t
		if t.IsArray() {
			caller = nil
		}
		if q.Caller != "" {
			if caller, err = e.node(q.Caller); err != nil {
				return err
			}
		}
		h, ok, err := t.ResolveMethod(m, caller)
		if err != nil || !ok {
			return err
		}
		o.Found, o.Value = true, h.String()
	case OpFinalizable:
		r, err := t.HasFinalizableSubclass()
		if err != nil {
			return err
		}
		setResult(o, strconv.FormatBool(r.Value), r.Assumptions())
	case OpLCA:
		other, err := e.node(q.Other)
		if err != nil {
			return err
		}
		a, ok, err := t.FindLeastCommonAncestor(other)
		if err != nil || !ok {
			return err
		}
		o.Found, o.Value = true, a.Name()
	case OpAssignable:
		other, err := e.node(q.Other)
		if err != nil {
			return err
		}
		ok, err := t.IsAssignableFrom(other)
		if err != nil {
			return err
		}
		o.Found, o.Value = true, strconv.FormatBool(ok)
	case OpFields, OpStaticFields:
		var fs []resolved.Field
		if q.Op == OpFields {
			fs, err = t.InstanceFields(true)
		} else {
			fs, err = t.StaticFields()
		}
		if err != nil {
			return err
		}
		o.Found = true
		for _, f := range fs {
			o.Values = append(o.Values, f.String())
		}
	case OpInitialize:
		if err := t.Initialize(); err != nil {
			return err
		}
		st, err := t.LinkageState()
		if err != nil {
			return err
		}
		o.Found, o.Value = true, st.String()
	case OpSupertype:
		s, err := t.Supertype()
		if err != nil || s == nil {
			return err
		}
		o.Found, o.Value = true, s.Name()
	case OpInterfaces:
		ifaces, err := t.Interfaces()
		if err != nil {
			return err
		}
		o.Found = true
		for _, in := range ifaces {
			o.Values = append(o.Values, in.Name())
		}
	case OpImplementor:
		impl, err := t.SingleImplementor()
		if err != nil {
			return err
		}
		o.Found, o.Value = true, impl.Kind.String()
		if impl.Type != nil {
			o.Value += " " + impl.Type.Name()
		}
	default:
		return fmt.Errorf("unknown op %q", q.Op)
	}
	return nil
}

func setResult(o *Outcome, value string, as []resolved.Assumption) {
	o.Found, o.Value = true, value
	o.raw = as
	o.Assumptions = make([]string, len(as))
	for i, a := range as {
		o.Assumptions[i] = a.String()
	}
}
