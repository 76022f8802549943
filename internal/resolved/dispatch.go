package resolved

import "hostmeta/internal/meta"

// ResolveMethod resolves a call of m on a receiver whose static type is n,
// made from code in caller. caller may be nil when no access context
// applies. It reports false when no concrete target is reachable from n.
func (n *TypeNode) ResolveMethod(m *MethodHandle, caller *TypeNode) (*MethodHandle, bool, error) {
	if caller != nil && caller.IsArray() {
		return nil, false, &ModelError{Kind: ModelErrArrayCaller, Type: caller.name}
	}
	if n.IsInterface() {
		return nil, false, nil
	}
	if m.IsConcrete() && m.holder == n && m.IsPublic() && !n.u.isSignaturePolymorphicHolder(m.holder) {
		return m, true, nil
	}
	ok, err := m.holder.IsAssignableFrom(n)
	if err != nil || !ok {
		return nil, false, err
	}
	if m.IsConstructor() {
		return m, true, nil
	}
	callerRef := meta.NoType
	if caller != nil {
		callerRef = caller.ref
	}
	id, ok, err := n.u.p.VirtualTableResolve(n.ref, m.id, callerRef)
	if err != nil || !ok {
		return nil, false, err
	}
	if id == m.id {
		return m, true, nil
	}
	target, err := n.u.Method(id)
	if err != nil {
		return nil, false, err
	}
	return target, true, nil
}
