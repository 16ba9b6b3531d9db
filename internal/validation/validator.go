// Package validation composes constraint checks into full-record validators.
//
// Every validator runs per-field checks first and reports all of them in one
// pass. Cross-field invariants run only when the record has no per-field
// violations, so a bad input is reported once and never doubled up as a
// derived violation. Collections validate every item.
package validation

import (
	"fmt"
	"time"

	"github.com/vietddude/skillgate/internal/validation/constraint"
)

// Cross-field constraint names.
const (
	ConstraintEngagementFormula = "engagementFormula"
	ConstraintConfidenceReview  = "confidenceReview"
	ConstraintCountMatches      = "countMatches"
	ConstraintOutputBound       = "outputWithinInput"
	ConstraintAllowedKeys       = "allowedKeys"
	ConstraintNotFuture         = "notFuture"
)

// MaxClockSkew is how far into the future a trend timestamp may be.
const MaxClockSkew = time.Minute

// Result is the outcome of validating one record.
type Result struct {
	Valid      bool                   `json:"valid"`
	Violations []constraint.Violation `json:"violations"`
}

// Fields returns the distinct offending field names in order.
func (r Result) Fields() []string {
	seen := make(map[string]bool, len(r.Violations))
	fields := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		if !seen[v.Field] {
			seen[v.Field] = true
			fields = append(fields, v.Field)
		}
	}
	return fields
}

// Summary renders the first violation and how many others follow.
func (r Result) Summary() string {
	if r.Valid {
		return ""
	}
	if len(r.Violations) == 1 {
		return r.Violations[0].String()
	}
	return fmt.Sprintf("%s (and %d more)", r.Violations[0].String(), len(r.Violations)-1)
}

func result(s *constraint.Set) Result {
	return Result{Valid: s.Len() == 0, Violations: s.Items()}
}

// Validator validates records against a clock.
type Validator struct {
	now func() time.Time
}

// New creates a validator using the wall clock.
func New() *Validator {
	return &Validator{now: time.Now}
}

// NewWithClock creates a validator with a fixed time source.
func NewWithClock(now func() time.Time) *Validator {
	return &Validator{now: now}
}

// Default is the wall-clock validator.
var Default = New()

func join(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

func index(field string, i int) string {
	return fmt.Sprintf("%s[%d]", field, i)
}
