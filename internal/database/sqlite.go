package database

import (
	"database/sql"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// sqliteDriver is go-sqlite3 with a Unicode LOWER. The built-in one only folds ASCII,
// which made searches for "École" miss rows that PostgreSQL and the memory store find.
const sqliteDriver = "sqlite3_itdesk"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", sqliteLower, true)
		},
	})
}

// LowerText is the lower-casing every store applies before comparing text: SQL LOWER()
// on the database side, this on the Go side.
func LowerText(s string) string {
	return cases.Lower(language.Und).String(s)
}

func sqliteLower(v any) any {
	switch s := v.(type) {
	case string:
		return LowerText(s)
	case []byte:
		if s == nil {
			return nil
		}
		return LowerText(string(s))
	default:
		return v
	}
}
