package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	cause := errors.New("boom")

	assert.Equal(t, "[not_found] schema missing", New(ErrKindNotFound, "schema missing").Error())
	assert.Equal(t, "[query_failed] exec failed: boom", Wrap(ErrKindQueryFailed, "exec failed", cause).Error())
	assert.Equal(t, "[reference] cannot resolve pet.json", Newf(ErrKindReference, "cannot resolve %s", "pet.json").Error())
}

func TestPredicates_TraverseChain(t *testing.T) {
	base := Wrap(ErrKindCyclicReference, "person -> pet -> person", nil)
	wrapped := fmt.Errorf("compile person: %w", base)

	assert.True(t, IsCyclicReference(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("plain")))
}

func TestWithStatement(t *testing.T) {
	err := Wrap(ErrKindQueryFailed, "exec failed", errors.New("syntax")).WithStatement("CREATE TABLE x ()")
	wrapped := fmt.Errorf("outer: %w", err)

	assert.Equal(t, "CREATE TABLE x ()", StatementOf(wrapped))
	assert.Empty(t, StatementOf(errors.New("plain")))

	var nilErr *Error
	assert.Nil(t, nilErr.WithStatement("ignored"))
}

func TestErrKind_String(t *testing.T) {
	tests := map[ErrKind]string{
		ErrKindSchemaLoad:       "schema_load",
		ErrKindValidation:       "validation",
		ErrKindConflict:         "conflict",
		ErrKindPermissionDenied: "permission_denied",
		ErrKind(99):             "unknown",
	}
	for kind, want := range tests {
		assert.Equal(t, want, kind.String())
	}
}
