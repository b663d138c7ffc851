package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// IsConnectionError reports whether the provided error indicates the database
// connection is unavailable. It is intentionally broad so handlers can return
// a 503 response instead of treating these failures as bad requests.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "host is unreachable"),
		strings.Contains(msg, "network is unreachable"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "bad connection"),
		strings.Contains(msg, "database is closed"):
		return true
	}
	return false
}

// UniqueViolation reports whether err is a unique constraint violation from any of the
// supported drivers. column is the best guess at the offending column ("mobile",
// "email", ...) taken from the constraint name or driver message, or "" when unknown.
func UniqueViolation(err error) (column string, ok bool) {
	if err == nil {
		return "", false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return guessColumn(pqErr.Constraint + " " + pqErr.Detail), true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return guessColumn(myErr.Message), true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return guessColumn(liteErr.Error()), true
	}

	return "", false
}

var knownUniqueColumns = []string{"mobile", "email"}

func guessColumn(text string) string {
	text = strings.ToLower(text)
	for _, col := range knownUniqueColumns {
		if strings.Contains(text, col) {
			return col
		}
	}
	return ""
}
