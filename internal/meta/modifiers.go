package meta

import (
	"fmt"
	"strings"
)

// Modifiers is the access/kind flag set of a type, field or method.
// Bit values follow the class-file access flags.
type Modifiers uint16

const (
	ModPublic    Modifiers = 0x0001
	ModPrivate   Modifiers = 0x0002
	ModProtected Modifiers = 0x0004
	ModStatic    Modifiers = 0x0008
	ModFinal     Modifiers = 0x0010
	ModInterface Modifiers = 0x0200
	ModAbstract  Modifiers = 0x0400
)

// ModAccess covers the visibility bits.
const ModAccess = ModPublic | ModPrivate | ModProtected

var modifierNames = []struct {
	mod  Modifiers
	name string
}{
	{ModPublic, "public"},
	{ModPrivate, "private"},
	{ModProtected, "protected"},
	{ModStatic, "static"},
	{ModFinal, "final"},
	{ModInterface, "interface"},
	{ModAbstract, "abstract"},
}

// Has reports whether every bit of m2 is set.
func (m Modifiers) Has(m2 Modifiers) bool { return m&m2 == m2 }

func (m Modifiers) IsPublic() bool    { return m.Has(ModPublic) }
func (m Modifiers) IsPrivate() bool   { return m.Has(ModPrivate) }
func (m Modifiers) IsProtected() bool { return m.Has(ModProtected) }
func (m Modifiers) IsStatic() bool    { return m.Has(ModStatic) }
func (m Modifiers) IsFinal() bool     { return m.Has(ModFinal) }
func (m Modifiers) IsAbstract() bool  { return m.Has(ModAbstract) }

func (m Modifiers) String() string {
	if m == 0 {
		return ""
	}
	parts := make([]string, 0, 4)
	for _, mn := range modifierNames {
		if m.Has(mn.mod) {
			parts = append(parts, mn.name)
		}
	}
	return strings.Join(parts, " ")
}

// ParseModifiers converts manifest flag names into a Modifiers set.
func ParseModifiers(flags []string) (Modifiers, error) {
	var m Modifiers
	for _, f := range flags {
		name := strings.ToLower(strings.TrimSpace(f))
		found := false
		for _, mn := range modifierNames {
			if mn.name == name {
				m |= mn.mod
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown modifier %q", f)
		}
	}
	return m, nil
}
