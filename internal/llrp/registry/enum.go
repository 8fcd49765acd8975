package registry

import (
	"fmt"

	"github.com/kulaginds/llrp/internal/llrp/schema"
)

// NameOf returns the name bound to value in e, or the synthetic
// "UnknownEnum=<n>" sentinel if value is not a member (spec §4.3 — this
// accessor never fails).
func NameOf(e *schema.EnumDef, value int) string {
	for _, c := range e.Choices {
		if c.Value == value {
			return c.Name
		}
	}
	return fmt.Sprintf("UnknownEnum=%d", value)
}

// ValueOf returns the value bound to name in e.
func ValueOf(e *schema.EnumDef, name string) (int, bool) {
	for _, c := range e.Choices {
		if c.Name == name {
			return c.Value, true
		}
	}
	return 0, false
}

// IsMember reports whether value is a member of e. A two-valued enum
// receiving a bool-shaped value (0 or 1) is treated as a member test against
// the coerced integer, matching pyllrp's handling of boolean enum fields.
func IsMember(e *schema.EnumDef, value int) bool {
	for _, c := range e.Choices {
		if c.Value == value {
			return true
		}
	}
	return false
}

// CoerceBool maps a boolean to its 0/1 integer form for lookup against a
// two-valued enum (spec §4.3).
func CoerceBool(b bool) int {
	if b {
		return 1
	}
	return 0
}
