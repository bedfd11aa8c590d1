package crud

import (
	"fmt"
	"strings"

	"github.com/koustreak/schemasql/internal/errs"
)

// Violation is one field that failed validation.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violation found in a payload. Nothing is
// written when it is returned. errs.IsValidation reports true for it.
type ValidationError struct {
	Table      string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Table, strings.Join(parts, "; "))
}

// Unwrap exposes the error kind to errs.KindOf.
func (e *ValidationError) Unwrap() error {
	return errs.Newf(errs.ErrKindValidation, "%d invalid field(s) in %s payload", len(e.Violations), e.Table)
}
