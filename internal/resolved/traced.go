package resolved

import (
	"fmt"

	"hostmeta/internal/meta"
	"hostmeta/internal/trace"
)

// TracedProvider wraps p so the lattice and dependency queries the engine
// issues show up as provider-scope trace events.
func TracedProvider(p meta.Provider, t trace.Tracer) meta.Provider {
	if t == nil || !t.Level().ShouldEmit(trace.ScopeProvider) {
		return p
	}
	return &tracedProvider{Provider: p, t: t}
}

type tracedProvider struct {
	meta.Provider
	t trace.Tracer
}

func (p *tracedProvider) point(name string, refs ...uint64) {
	detail := ""
	for i, r := range refs {
		if i > 0 {
			detail += " "
		}
		detail += fmt.Sprintf("#%d", r)
	}
	trace.Point(p.t, trace.ScopeProvider, name, detail)
}

func (p *tracedProvider) SupertypeOf(t meta.TypeRef) (meta.TypeRef, error) {
	p.point("SupertypeOf", uint64(t))
	return p.Provider.SupertypeOf(t)
}

func (p *tracedProvider) InterfacesOf(t meta.TypeRef) ([]meta.TypeRef, error) {
	p.point("InterfacesOf", uint64(t))
	return p.Provider.InterfacesOf(t)
}

func (p *tracedProvider) ElementalTypeOf(t meta.TypeRef) (meta.TypeRef, error) {
	p.point("ElementalTypeOf", uint64(t))
	return p.Provider.ElementalTypeOf(t)
}

func (p *tracedProvider) RawFieldsOf(t meta.TypeRef) ([]meta.RawField, error) {
	p.point("RawFieldsOf", uint64(t))
	return p.Provider.RawFieldsOf(t)
}

func (p *tracedProvider) VirtualTableResolve(receiver meta.TypeRef, m meta.MethodID, caller meta.TypeRef) (meta.MethodID, bool, error) {
	p.point("VirtualTableResolve", uint64(receiver), uint64(m), uint64(caller))
	return p.Provider.VirtualTableResolve(receiver, m, caller)
}

func (p *tracedProvider) UniqueConcreteMethod(context meta.TypeRef, m meta.MethodID) (meta.MethodID, bool, error) {
	p.point("UniqueConcreteMethod", uint64(context), uint64(m))
	return p.Provider.UniqueConcreteMethod(context, m)
}

func (p *tracedProvider) UniqueImplementorOf(iface meta.TypeRef) (meta.Implementor, error) {
	p.point("UniqueImplementorOf", uint64(iface))
	return p.Provider.UniqueImplementorOf(iface)
}

func (p *tracedProvider) HasOverridingFinalizer(t meta.TypeRef) (bool, error) {
	p.point("HasOverridingFinalizer", uint64(t))
	return p.Provider.HasOverridingFinalizer(t)
}

func (p *tracedProvider) InitializeType(t meta.TypeRef) error {
	p.point("InitializeType", uint64(t))
	return p.Provider.InitializeType(t)
}

func (p *tracedProvider) LinkageStateOf(t meta.TypeRef) (meta.LinkageState, error) {
	p.point("LinkageStateOf", uint64(t))
	return p.Provider.LinkageStateOf(t)
}

func (p *tracedProvider) MethodsOf(t meta.TypeRef) ([]meta.MethodID, error) {
	p.point("MethodsOf", uint64(t))
	return p.Provider.MethodsOf(t)
}
