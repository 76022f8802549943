package driver

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Op names a query operation in a query file.
type Op string

const (
	OpLeaf         Op = "leaf"
	OpUniqueMethod Op = "unique-method"
	OpResolve      Op = "resolve"
	OpFinalizable  Op = "finalizable"
	OpLCA          Op = "lca"
	OpAssignable   Op = "assignable"
	OpFields       Op = "fields"
	OpStaticFields Op = "static-fields"
	OpInitialize   Op = "initialize"
	OpSupertype    Op = "supertype"
	OpInterfaces   Op = "interfaces"
	OpImplementor  Op = "implementor"
)

var knownOps = map[Op]struct{}{
	OpLeaf: {}, OpUniqueMethod: {}, OpResolve: {}, OpFinalizable: {},
	OpLCA: {}, OpAssignable: {}, OpFields: {}, OpStaticFields: {},
	OpInitialize: {}, OpSupertype: {}, OpInterfaces: {}, OpImplementor: {},
}

// Query is one [[query]] entry.
type Query struct {
	Op     Op     `toml:"op" json:"op"`
	Type   string `toml:"type" json:"type"`
	Other  string `toml:"other" json:"other,omitempty"`
	Method string `toml:"method" json:"method,omitempty"`
	Caller string `toml:"caller" json:"caller,omitempty"`
}

// String renders the query on one line, e.g. "resolve Circle Base.area()D from Main".
func (q Query) String() string {
	var b strings.Builder
	b.WriteString(string(q.Op))
	b.WriteByte(' ')
	b.WriteString(q.Type)
	if q.Other != "" {
		b.WriteByte(' ')
		b.WriteString(q.Other)
	}
	if q.Method != "" {
		b.WriteByte(' ')
		b.WriteString(q.Method)
	}
	if q.Caller != "" {
		b.WriteString(" from ")
		b.WriteString(q.Caller)
	}
	return b.String()
}

// Validate checks that the operands op needs are present.
func (q Query) Validate() error {
	if _, ok := knownOps[q.Op]; !ok {
		return fmt.Errorf("unknown op %q", q.Op)
	}
	if q.Type == "" {
		return fmt.Errorf("%s: missing type", q.Op)
	}
	switch q.Op {
	case OpLCA, OpAssignable:
		if q.Other == "" {
			return fmt.Errorf("%s: missing other", q.Op)
		}
	case OpUniqueMethod, OpResolve:
		if q.Method == "" {
			return fmt.Errorf("%s: missing method", q.Op)
		}
	}
	return nil
}

type queryFile struct {
	Query []Query `toml:"query"`
}

// LoadQueries reads a query file.
func LoadQueries(path string) ([]Query, error) {
	var qf queryFile
	md, err := toml.DecodeFile(path, &qf)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	qs, err := checkQueries(&qf, md)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return qs, nil
}

// ParseQueries is LoadQueries for in-memory text.
func ParseQueries(text string) ([]Query, error) {
	var qf queryFile
	md, err := toml.Decode(text, &qf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return checkQueries(&qf, md)
}

func checkQueries(qf *queryFile, md toml.MetaData) ([]Query, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown query key %q", undecoded[0].String())
	}
	for i := range qf.Query {
		q := &qf.Query[i]
		q.Op = Op(strings.ToLower(strings.TrimSpace(string(q.Op))))
		q.Type = strings.TrimSpace(q.Type)
		q.Other = strings.TrimSpace(q.Other)
		q.Method = strings.TrimSpace(q.Method)
		q.Caller = strings.TrimSpace(q.Caller)
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("query %d: %w", i+1, err)
		}
	}
	return qf.Query, nil
}
