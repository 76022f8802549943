// Package meta defines the boundary between the resolved-type model and the
// host runtime that owns the real class metadata.
//
// Everything behind Provider is platform specific: raw field streams, layout
// arithmetic, virtual tables and dependency searches. The resolved package
// only consumes the pre-parsed values declared here.
package meta

import (
	"fmt"
	"strings"
)

// TypeRef is an opaque provider handle for a loaded type.
type TypeRef uint32

// NoType marks the absence of a type.
const NoType TypeRef = 0

// MethodID is the native identity of a method. Two lookups of the same
// underlying method always yield the same MethodID.
type MethodID uint64

// NoMethod marks the absence of a method.
const NoMethod MethodID = 0

// Kind enumerates the shapes a type can take.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindPrimitive
	KindClass
	KindInterface
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindPrimitive:
		return "primitive"
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ParseKind converts a manifest spelling to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "class":
		return KindClass, nil
	case "interface":
		return KindInterface, nil
	default:
		return KindInvalid, fmt.Errorf("invalid type kind: %q (expected: class|interface)", s)
	}
}

// LinkageState tracks class preparation. It only ever increases.
type LinkageState uint8

const (
	Unlinked LinkageState = iota
	Linked
	Initialized
)

func (s LinkageState) String() string {
	switch s {
	case Unlinked:
		return "unlinked"
	case Linked:
		return "linked"
	case Initialized:
		return "initialized"
	default:
		return fmt.Sprintf("LinkageState(%d)", s)
	}
}

// ParseLinkageState converts a manifest spelling to a LinkageState.
func ParseLinkageState(s string) (LinkageState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unlinked":
		return Unlinked, nil
	case "linked":
		return Linked, nil
	case "initialized":
		return Initialized, nil
	default:
		return Unlinked, fmt.Errorf("invalid linkage state: %q (expected: unlinked|linked|initialized)", s)
	}
}

// TypeInfo is the static description of a loaded type.
type TypeInfo struct {
	Name      string
	Kind      Kind
	Modifiers Modifiers
}

// RawField is one decoded entry of a type's field stream.
type RawField struct {
	Name      string
	Signature string // type name of the declared field type
	Static    bool
	Offset    int64
	Modifiers Modifiers
	Generic   bool // carries a generic signature
	Index     int  // position in the raw stream
}

// MethodInfo describes a method identified by a MethodID.
type MethodInfo struct {
	ID         MethodID
	Name       string
	Descriptor string
	Holder     TypeRef
	Modifiers  Modifiers
}

// ImplementorKind tags the answer of a single-implementor query.
type ImplementorKind uint8

const (
	// ImplementorNone means no class implements the interface.
	ImplementorNone ImplementorKind = iota
	// ImplementorUnique means exactly one class implements it.
	ImplementorUnique
	// ImplementorAmbiguous means more than one class implements it.
	ImplementorAmbiguous
)

func (k ImplementorKind) String() string {
	switch k {
	case ImplementorNone:
		return "none"
	case ImplementorUnique:
		return "unique"
	case ImplementorAmbiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("ImplementorKind(%d)", k)
	}
}

// Implementor is the tagged answer of Provider.UniqueImplementorOf.
// Type is set only for ImplementorUnique.
type Implementor struct {
	Kind ImplementorKind
	Type TypeRef
}

// Provider supplies raw type, field and method facts from the host runtime.
// Implementations must be safe for concurrent use. All calls are synchronous
// and side-effect free except InitializeType.
type Provider interface {
	// Root returns the root of the class tree.
	Root() TypeRef
	// Lookup resolves a type by its fully-qualified name.
	Lookup(name string) (TypeRef, error)
	TypeInfo(t TypeRef) (TypeInfo, error)

	// SupertypeOf returns the declared superclass, or NoType for the root
	// and for interfaces.
	SupertypeOf(t TypeRef) (TypeRef, error)
	InterfacesOf(t TypeRef) ([]TypeRef, error)
	ComponentTypeOf(array TypeRef) (TypeRef, error)
	ElementalTypeOf(array TypeRef) (TypeRef, error)
	ArrayOf(t TypeRef) (TypeRef, error)
	// FirstSubclassOf and NextSiblingOf expose the direct-subclass list.
	FirstSubclassOf(t TypeRef) (TypeRef, error)
	NextSiblingOf(t TypeRef) (TypeRef, error)
	// IsSubtype reports whether values of sub are assignable to super.
	IsSubtype(super, sub TypeRef) (bool, error)

	RawFieldsOf(t TypeRef) ([]RawField, error)

	MethodInfo(m MethodID) (MethodInfo, error)
	// MethodsOf lists the methods t declares, constructors and the class
	// initializer included, in declaration order.
	MethodsOf(t TypeRef) ([]MethodID, error)
	// VirtualTableResolve selects the method invoked for receiver.
	VirtualTableResolve(receiver TypeRef, m MethodID, caller TypeRef) (MethodID, bool, error)
	// UniqueConcreteMethod returns the single concrete method selected for m
	// by every concrete subtype of context.
	UniqueConcreteMethod(context TypeRef, m MethodID) (MethodID, bool, error)

	UniqueImplementorOf(iface TypeRef) (Implementor, error)
	HasOverridingFinalizer(t TypeRef) (bool, error)
	// HasFinalizer reports whether instances of t itself need finalization.
	HasFinalizer(t TypeRef) (bool, error)

	// InstanceSizeOf returns the aligned instance size of a class and
	// whether allocation must take the slow path.
	InstanceSizeOf(t TypeRef) (size int64, slowPath bool, err error)
	// VtableLengthOf returns the number of virtual table entries of t.
	VtableLengthOf(t TypeRef) (int, error)

	InitializeType(t TypeRef) error
	LinkageStateOf(t TypeRef) (LinkageState, error)
}
