package resolved

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModel matches every *ModelError through errors.Is.
var ErrModel = errors.New("modeling error")

// ModelErrorKind enumerates violations of the type model.
type ModelErrorKind uint8

const (
	// ModelErrCyclicHierarchy indicates a supertype chain or interface graph
	// that loops back on itself.
	ModelErrCyclicHierarchy ModelErrorKind = iota + 1
	ModelErrArrayCaller
	ModelErrArrayFinalizerQuery
	ModelErrNotInterface
	ModelErrInterfaceImplementor
	ModelErrFieldOrder
	ModelErrUnknownKind
	ModelErrNotInstanceClass
)

func (k ModelErrorKind) String() string {
	switch k {
	case ModelErrCyclicHierarchy:
		return "cyclic hierarchy"
	case ModelErrArrayCaller:
		return "array caller"
	case ModelErrArrayFinalizerQuery:
		return "array finalizer query"
	case ModelErrNotInterface:
		return "implementor query on non-interface"
	case ModelErrInterfaceImplementor:
		return "interface reported as implementor"
	case ModelErrFieldOrder:
		return "field order violation"
	case ModelErrUnknownKind:
		return "unknown type kind"
	case ModelErrNotInstanceClass:
		return "instance query on non-class"
	default:
		return fmt.Sprintf("ModelErrorKind(%d)", k)
	}
}

// ModelError reports a structural impossibility. It is never recoverable.
type ModelError struct {
	Kind   ModelErrorKind
	Type   string   // subject type name
	Cycle  []string // for ModelErrCyclicHierarchy
	Detail string
}

func (e *ModelError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ModelErrCyclicHierarchy:
		if len(e.Cycle) > 0 {
			return fmt.Sprintf("cyclic hierarchy at %s (cycle: %s)", e.Type, strings.Join(e.Cycle, " -> "))
		}
		return fmt.Sprintf("cyclic hierarchy at %s", e.Type)
	case ModelErrArrayCaller:
		return fmt.Sprintf("caller type %s must not be an array", e.Type)
	case ModelErrArrayFinalizerQuery:
		return fmt.Sprintf("finalizable-subclass query on array type %s", e.Type)
	case ModelErrNotInterface:
		return fmt.Sprintf("cannot query single implementor of non-interface type %s", e.Type)
	case ModelErrInterfaceImplementor:
		return fmt.Sprintf("interface %s reported as implementor (%s)", e.Type, e.Detail)
	case ModelErrFieldOrder:
		return fmt.Sprintf("field offsets of %s not strictly increasing: %s", e.Type, e.Detail)
	case ModelErrUnknownKind:
		return fmt.Sprintf("type %s has unknown kind %s", e.Type, e.Detail)
	case ModelErrNotInstanceClass:
		return fmt.Sprintf("%s requires an instance class, got %s", e.Detail, e.Type)
	default:
		return fmt.Sprintf("modeling error kind=%d type=%s", e.Kind, e.Type)
	}
}

// Is makes errors.Is(err, ErrModel) hold for every ModelError.
func (e *ModelError) Is(target error) bool {
	return target == ErrModel
}
