// Package resolved is the resolved-type model an optimizing compiler queries
// through its host interface.
//
// A Universe owns one canonical TypeNode per loaded type. Nodes expose the
// type lattice (supertypes, assignability, least common ancestors), lazily
// computed field layouts and interned method handles, virtual dispatch
// resolution, and the assumption engine: queries that answer optimistically
// and return the Assumption records the answer depends on. Callers register
// those records with their own invalidation machinery.
//
// All host facts come from a meta.Provider. The universe is append-only and
// safe for concurrent use; derived data is published once per node.
package resolved
