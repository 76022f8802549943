package memmeta

import "errors"

var (
	// ErrUnknownType is returned for names or refs that were never defined.
	ErrUnknownType = errors.New("unknown type")
	// ErrUnknownMethod is returned for method ids that were never defined.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrDuplicateType is returned when a name is defined twice.
	ErrDuplicateType = errors.New("duplicate type")
	// ErrInvalidDecl is returned for malformed declarations.
	ErrInvalidDecl = errors.New("invalid declaration")
	// ErrCyclicHierarchy is returned when declarations depend on each other.
	ErrCyclicHierarchy = errors.New("cyclic type hierarchy")
	// ErrNotArray is returned by array-only queries on other kinds.
	ErrNotArray = errors.New("not an array type")
	// ErrNotInterface is returned by interface-only queries on other kinds.
	ErrNotInterface = errors.New("not an interface type")
	// ErrNotInstanceClass is returned by class-only queries on other kinds.
	ErrNotInstanceClass = errors.New("not an instance class")
	// ErrSymbolOverflow is returned when the symbol table exceeds u2 indices.
	ErrSymbolOverflow = errors.New("symbol table overflow")
)
