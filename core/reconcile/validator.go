package reconcile

import (
	"regexp"

	"github.com/soptable/portal/core"
	"github.com/soptable/portal/core/user"
)

// Rejection reasons
const (
	ReasonMissingField     = "missing required field"
	ReasonInvalidEmail     = "invalid email format"
	ReasonNumberNotNumeric = "number must be numeric"
)

var emailShape = regexp.MustCompile(`^\S+@\S+\.\S+$`)

type ValidationResult struct {
	Valid  bool
	Reason string
	Index  int
	Email  string
}

// Validate checks c in a fixed order and stops at the first failure:
// required fields, email shape, then the numeric `number`.
func Validate(c user.Candidate, index int) ValidationResult {
	reject := func(reason string) ValidationResult {
		return ValidationResult{Reason: reason, Index: index, Email: c.Email.Value}
	}

	for _, f := range RequiredFields() {
		if c.Attr(f).IsEmpty() {
			return reject(ReasonMissingField)
		}
	}
	if !emailShape.MatchString(c.Email.Value) {
		return reject(ReasonInvalidEmail)
	}
	if !c.Number.IsEmpty() && !core.IsNumeric(c.Number.Value) {
		return reject(ReasonNumberNotNumeric)
	}
	return ValidationResult{Valid: true, Index: index, Email: c.Email.Value}
}
