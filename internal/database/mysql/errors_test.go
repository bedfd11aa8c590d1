package mysql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/koustreak/schemasql/internal/errs"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"canceled", context.Canceled, errs.ErrKindTimeout},
		{"no rows", sql.ErrNoRows, errs.ErrKindNotFound},
		{"duplicate", &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, errs.ErrKindConflict},
		{"fk parent", &gomysql.MySQLError{Number: 1451}, errs.ErrKindConflict},
		{"fk child", &gomysql.MySQLError{Number: 1452}, errs.ErrKindConflict},
		{"access denied", &gomysql.MySQLError{Number: 1045}, errs.ErrKindPermissionDenied},
		{"unknown db", &gomysql.MySQLError{Number: 1049}, errs.ErrKindConnectionFailed},
		{"syntax", &gomysql.MySQLError{Number: 1064}, errs.ErrKindQueryFailed},
		{"other server error", &gomysql.MySQLError{Number: 9999}, errs.ErrKindQueryFailed},
		{"network", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op")
			assert.Equal(t, tt.kind, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	assert.Nil(t, mapError(nil, "op"))
}

func TestMapErrorKeepsServerMessage(t *testing.T) {
	err := mapError(&gomysql.MySQLError{Number: 1146, Message: "Table 'x.pet' doesn't exist"}, "query failed")
	assert.Contains(t, err.Error(), "query failed: Table 'x.pet' doesn't exist")
}
