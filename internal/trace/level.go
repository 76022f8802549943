package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff    Level = iota // no tracing
	LevelError               // keep events only for failure dumps
	LevelQuery               // driver and query boundaries
	LevelDetail              // cache population
	LevelDebug               // provider round trips
)

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelQuery:
		return "query"
	case LevelDetail:
		return "detail"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "query":
		return LevelQuery, nil
	case "detail":
		return LevelDetail, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|query|detail|debug)", s)
	}
}

// ShouldEmit reports whether events of scope pass this level.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelQuery:
		return scope <= ScopeQuery
	case LevelDetail:
		return scope <= ScopeCache
	case LevelDebug:
		return true
	default:
		return false
	}
}

// retains reports whether a ring at this level keeps events of scope.
// At LevelError the ring records query spans so a failure has context.
func (l Level) retains(scope Scope) bool {
	if l == LevelError {
		return scope <= ScopeQuery
	}
	return l.ShouldEmit(scope)
}
