package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// QueryBuilder wraps sqlx with placeholder rebinding so repositories write every query
// with ? placeholders regardless of the driver.
type QueryBuilder struct {
	db         *sqlx.DB
	driverName string
}

// NewQueryBuilder wraps an existing *sql.DB opened with the given driver.
func NewQueryBuilder(db *sql.DB, driver string) (*QueryBuilder, error) {
	name, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	return &QueryBuilder{db: sqlx.NewDb(db, name), driverName: name}, nil
}

// NewQueryBuilderFromDB wraps a connection returned by Open.
func NewQueryBuilderFromDB(db *sqlx.DB) *QueryBuilder {
	return &QueryBuilder{db: db, driverName: db.DriverName()}
}

// DB returns the underlying sqlx.DB for advanced operations.
func (qb *QueryBuilder) DB() *sqlx.DB {
	return qb.db
}

func (qb *QueryBuilder) Driver() string {
	return qb.driverName
}

// Rebind converts a query with ? placeholders to the driver's format.
func (qb *QueryBuilder) Rebind(query string) string {
	return qb.db.Rebind(query)
}

// SelectContext executes a query with context and scans results into dest.
func (qb *QueryBuilder) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return qb.db.SelectContext(ctx, dest, qb.Rebind(query), args...)
}

// GetContext executes a query with context expecting a single row.
func (qb *QueryBuilder) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return qb.db.GetContext(ctx, dest, qb.Rebind(query), args...)
}

// ExecContext executes a query with context without returning rows.
func (qb *QueryBuilder) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return qb.db.ExecContext(ctx, qb.Rebind(query), args...)
}

// expandIn expands slice arguments for IN clauses and rebinds the result.
// "id IN (?)" with []int{1,2,3} becomes "id IN ($1, $2, $3)" on PostgreSQL.
func (qb *QueryBuilder) expandIn(query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return qb.Rebind(q), a, nil
}

// Execer is satisfied by both *sqlx.DB and *sqlx.Tx.
type Execer interface {
	sqlx.ExtContext
}

// InsertID runs an INSERT and returns the generated id. PostgreSQL gets a RETURNING
// clause; MySQL and SQLite report it through LastInsertId.
func (qb *QueryBuilder) InsertID(ctx context.Context, ex Execer, query string, args ...interface{}) (uint, error) {
	if ex == nil {
		ex = qb.db
	}
	if qb.driverName == DriverPostgres {
		var id uint
		row := ex.QueryRowxContext(ctx, qb.Rebind(query+" RETURNING id"), args...)
		if err := row.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := ex.ExecContext(ctx, qb.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return uint(id), nil
}

// WithTx runs fn in a transaction, rolling back when fn or the commit fails.
func (qb *QueryBuilder) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := qb.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CastText renders a column as text for substring matching.
func (qb *QueryBuilder) CastText(column string) string {
	if qb.driverName == DriverMySQL {
		return "CAST(" + column + " AS CHAR)"
	}
	return "CAST(" + column + " AS TEXT)"
}

// SelectBuilder provides a fluent interface for building SELECT queries safely.
type SelectBuilder struct {
	qb        *QueryBuilder
	columns   []string
	table     string
	joins     []string
	where     []string
	args      []interface{}
	orderBy   []string
	limit     int
	offset    int
	hasLimit  bool
	hasOffset bool
}

// NewSelect creates a new SelectBuilder.
func (qb *QueryBuilder) NewSelect(columns ...string) *SelectBuilder {
	return &SelectBuilder{
		qb:      qb,
		columns: columns,
	}
}

// From sets the table to select from.
func (sb *SelectBuilder) From(table string) *SelectBuilder {
	sb.table = table
	return sb
}

// Join adds a JOIN clause.
func (sb *SelectBuilder) Join(join string) *SelectBuilder {
	sb.joins = append(sb.joins, "JOIN "+join)
	return sb
}

// Where adds a WHERE condition with parameterized values.
func (sb *SelectBuilder) Where(condition string, args ...interface{}) *SelectBuilder {
	sb.where = append(sb.where, condition)
	sb.args = append(sb.args, args...)
	return sb
}

// WhereIn adds a WHERE IN condition.
func (sb *SelectBuilder) WhereIn(column string, values interface{}) *SelectBuilder {
	sb.where = append(sb.where, column+" IN (?)")
	sb.args = append(sb.args, values)
	return sb
}

// OrderBy adds ORDER BY columns.
func (sb *SelectBuilder) OrderBy(columns ...string) *SelectBuilder {
	sb.orderBy = append(sb.orderBy, columns...)
	return sb
}

// Limit sets the LIMIT clause.
func (sb *SelectBuilder) Limit(limit int) *SelectBuilder {
	sb.limit = limit
	sb.hasLimit = true
	return sb
}

// Offset sets the OFFSET clause.
func (sb *SelectBuilder) Offset(offset int) *SelectBuilder {
	sb.offset = offset
	sb.hasOffset = true
	return sb
}

// ToSQL builds the SQL query and returns it with arguments.
func (sb *SelectBuilder) ToSQL() (string, []interface{}, error) {
	if sb.table == "" {
		return "", nil, fmt.Errorf("table not specified")
	}

	var query strings.Builder
	query.WriteString("SELECT ")
	if len(sb.columns) == 0 {
		query.WriteString("*")
	} else {
		query.WriteString(strings.Join(sb.columns, ", "))
	}
	query.WriteString(" FROM ")
	query.WriteString(sb.table)

	for _, join := range sb.joins {
		query.WriteString(" ")
		query.WriteString(join)
	}

	allArgs := make([]interface{}, 0, len(sb.args)+2)
	allArgs = append(allArgs, sb.args...)

	if len(sb.where) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(sb.where, " AND "))
	}

	if len(sb.orderBy) > 0 {
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(sb.orderBy, ", "))
	}

	if sb.hasLimit {
		query.WriteString(" LIMIT ?")
		allArgs = append(allArgs, sb.limit)
	}

	if sb.hasOffset {
		query.WriteString(" OFFSET ?")
		allArgs = append(allArgs, sb.offset)
	}

	// Handle IN clause expansion
	q, args, err := sb.qb.expandIn(query.String(), allArgs...)
	if err != nil {
		return "", nil, err
	}

	return q, args, nil
}

// SelectContext executes the query with context and scans into dest.
func (sb *SelectBuilder) SelectContext(ctx context.Context, dest interface{}) error {
	query, args, err := sb.ToSQL()
	if err != nil {
		return err
	}
	return sb.qb.db.SelectContext(ctx, dest, query, args...)
}

// GetContext executes the query with context expecting a single row.
func (sb *SelectBuilder) GetContext(ctx context.Context, dest interface{}) error {
	query, args, err := sb.ToSQL()
	if err != nil {
		return err
	}
	return sb.qb.db.GetContext(ctx, dest, query, args...)
}
