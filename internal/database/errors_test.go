package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestUniqueViolation(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		ok     bool
		column string
	}{
		{"nil", nil, false, ""},
		{"plain error", errors.New("boom"), false, ""},
		{"postgres mobile", &pq.Error{Code: "23505", Constraint: "users_mobile_key"}, true, "mobile"},
		{"postgres email index", fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "users_email_lower_key"}), true, "email"},
		{"postgres other code", &pq.Error{Code: "23503"}, false, ""},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.c' for key 'users.users_email_key'"}, true, "email"},
		{"mysql other", &mysql.MySQLError{Number: 1452}, false, ""},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			column, ok := UniqueViolation(tt.err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.column, column)
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, IsConnectionError(nil))
	assert.True(t, IsConnectionError(sql.ErrConnDone))
	assert.True(t, IsConnectionError(context.DeadlineExceeded))
	assert.True(t, IsConnectionError(errors.New("dial tcp: connection refused")))
	assert.False(t, IsConnectionError(errors.New("syntax error")))
}
