// Package constraint provides primitive validators for record fields.
//
// This package contains:
//   - Violation: descriptor returned by every failed check
//   - LengthBetween, CountBetween, Range, AtLeast: size and bound checks
//   - EnumOf, Pattern: membership and regex checks
//   - IsISOTimestamp, IsUUID, IsURI: format checks
//
// Every check returns nil when the value is acceptable. Checks never perform I/O.
package constraint

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Constraint names reported in Violation.Constraint.
const (
	NameLengthBetween = "lengthBetween"
	NameCountBetween  = "countBetween"
	NameRange         = "range"
	NameEnumOf        = "enumOf"
	NamePattern       = "pattern"
	NameISOTimestamp  = "isIsoTimestamp"
	NameUUID          = "isUuid"
	NameURI           = "isUri"
)

// Violation describes a single failed constraint.
type Violation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Expected   string `json:"expected"`
	Actual     string `json:"actual"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s expected %s, got %s", v.Field, v.Constraint, v.Expected, v.Actual)
}

var formats = validator.New()

// LengthBetween checks the rune length of s.
func LengthBetween(field, s string, min, max int) *Violation {
	n := utf8.RuneCountInString(s)
	if n >= min && n <= max {
		return nil
	}
	return &Violation{
		Field:      field,
		Constraint: NameLengthBetween,
		Expected:   fmt.Sprintf("%d..%d chars", min, max),
		Actual:     fmt.Sprintf("%d chars", n),
	}
}

// NonEmpty checks that s has at least one non-whitespace character.
func NonEmpty(field, s string) *Violation {
	if strings.TrimSpace(s) != "" {
		return nil
	}
	return &Violation{
		Field:      field,
		Constraint: NameLengthBetween,
		Expected:   ">=1 non-blank chars",
		Actual:     fmt.Sprintf("%q", s),
	}
}

// CountBetween checks a collection size.
func CountBetween(field string, n, min, max int) *Violation {
	if n >= min && n <= max {
		return nil
	}
	return &Violation{
		Field:      field,
		Constraint: NameCountBetween,
		Expected:   fmt.Sprintf("%d..%d items", min, max),
		Actual:     fmt.Sprintf("%d items", n),
	}
}

// Number is the set of numeric kinds Range accepts.
type Number interface {
	~int | ~int32 | ~int64 | ~float64
}

// Range checks min <= v <= max.
func Range[T Number](field string, v, min, max T) *Violation {
	if v >= min && v <= max {
		return nil
	}
	return &Violation{
		Field:      field,
		Constraint: NameRange,
		Expected:   fmt.Sprintf("%v..%v", min, max),
		Actual:     fmt.Sprintf("%v", v),
	}
}

// AtLeast checks v >= min with no upper bound.
func AtLeast[T Number](field string, v, min T) *Violation {
	if v >= min {
		return nil
	}
	return &Violation{
		Field:      field,
		Constraint: NameRange,
		Expected:   fmt.Sprintf(">=%v", min),
		Actual:     fmt.Sprintf("%v", v),
	}
}

// EnumOf checks membership in set.
func EnumOf[T ~string](field string, v T, set []T) *Violation {
	for _, s := range set {
		if v == s {
			return nil
		}
	}
	names := make([]string, len(set))
	for i, s := range set {
		names[i] = string(s)
	}
	return &Violation{
		Field:      field,
		Constraint: NameEnumOf,
		Expected:   strings.Join(names, "|"),
		Actual:     fmt.Sprintf("%q", string(v)),
	}
}

// Pattern checks s against re.
func Pattern(field, s string, re *regexp.Regexp) *Violation {
	if re.MatchString(s) {
		return nil
	}
	return &Violation{
		Field:      field,
		Constraint: NamePattern,
		Expected:   re.String(),
		Actual:     fmt.Sprintf("%q", s),
	}
}

// timestampLayouts are accepted in order. Values without an offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseISOTimestamp parses an ISO-8601 date-time.
func ParseISOTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q", s)
}

// IsISOTimestamp checks that s is an ISO-8601 date-time.
func IsISOTimestamp(field, s string) *Violation {
	if _, err := ParseISOTimestamp(s); err == nil {
		return nil
	}
	return &Violation{
		Field:      field,
		Constraint: NameISOTimestamp,
		Expected:   "ISO-8601 date-time",
		Actual:     fmt.Sprintf("%q", s),
	}
}

// IsUUID checks that s is a canonical lowercase UUID.
func IsUUID(field, s string) *Violation {
	if formats.Var(s, "required,uuid") == nil {
		return nil
	}
	return &Violation{
		Field:      field,
		Constraint: NameUUID,
		Expected:   "UUID",
		Actual:     fmt.Sprintf("%q", s),
	}
}

// IsURI checks that s parses as a request URI.
func IsURI(field, s string) *Violation {
	if formats.Var(s, "required,uri") == nil {
		return nil
	}
	return &Violation{
		Field:      field,
		Constraint: NameURI,
		Expected:   "URI",
		Actual:     fmt.Sprintf("%q", s),
	}
}

// Set accumulates violations in the order they are found.
type Set struct {
	items []Violation
}

// Add appends v when it is non-nil and reports whether it did.
func (s *Set) Add(v *Violation) bool {
	if v == nil {
		return false
	}
	s.items = append(s.items, *v)
	return true
}

// Merge appends every violation from vs.
func (s *Set) Merge(vs []Violation) {
	s.items = append(s.items, vs...)
}

// Len returns the number of collected violations.
func (s *Set) Len() int { return len(s.items) }

// Items returns the collected violations; never nil.
func (s *Set) Items() []Violation {
	if s.items == nil {
		return []Violation{}
	}
	return s.items
}
