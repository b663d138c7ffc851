package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/itdesk-io/itdesk/internal/database"
	"github.com/itdesk-io/itdesk/internal/models"
)

const userColumns = "id, mobile, email, first_name, last_name, password_hash, is_active, is_staff, is_superuser, date_joined, last_login"

// UserRepository is the SQL identity store. Group memberships live in user_groups.
type UserRepository struct {
	qb *database.QueryBuilder
}

func NewUserRepository(qb *database.QueryBuilder) *UserRepository {
	return &UserRepository{qb: qb}
}

// Create inserts the user and its groups in one transaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}
	return r.qb.WithTx(ctx, func(tx *sqlx.Tx) error {
		id, err := r.qb.InsertID(ctx, tx, `INSERT INTO users
			(mobile, email, first_name, last_name, password_hash, is_active, is_staff, is_superuser, date_joined, last_login)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.Mobile, user.Email, user.FirstName, user.LastName, user.PasswordHash,
			user.IsActive, user.IsStaff, user.IsSuperuser, user.DateJoined, user.LastLogin)
		if err != nil {
			return mapWriteError("create user", err)
		}
		user.ID = id
		return r.writeGroups(ctx, tx, user)
	})
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *UserRepository) GetByMobile(ctx context.Context, mobile string) (*models.User, error) {
	return r.getOne(ctx, "mobile = ?", mobile)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "LOWER(email) = LOWER(?)", email)
}

func (r *UserRepository) GetByMobileOrEmail(ctx context.Context, identifier string) (*models.User, error) {
	user, err := r.GetByMobile(ctx, identifier)
	if err == nil || !errors.Is(err, models.ErrNotFound) {
		return user, err
	}
	if !strings.Contains(identifier, "@") {
		return nil, err
	}
	return r.GetByEmail(ctx, identifier)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var user models.User
	err := r.qb.NewSelect(userColumns).From("users").Where(where, arg).GetContext(ctx, &user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %v: %w", arg, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := r.loadGroups(ctx, []*models.User{&user}); err != nil {
		return nil, err
	}
	return &user, nil
}

// Update rewrites the profile columns and replaces the group set.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return r.qb.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE users SET
			mobile = ?, email = ?, first_name = ?, last_name = ?, password_hash = ?,
			is_active = ?, is_staff = ?, is_superuser = ?, last_login = ?
			WHERE id = ?`),
			user.Mobile, user.Email, user.FirstName, user.LastName, user.PasswordHash,
			user.IsActive, user.IsStaff, user.IsSuperuser, user.LastLogin, user.ID)
		if err != nil {
			return mapWriteError("update user", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("user %d: %w", user.ID, models.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM user_groups WHERE user_id = ?"), user.ID); err != nil {
			return fmt.Errorf("failed to clear groups: %w", err)
		}
		return r.writeGroups(ctx, tx, user)
	})
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	if _, err := r.qb.ExecContext(ctx, "UPDATE users SET last_login = ? WHERE id = ?", at, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// List returns users ordered by id.
func (r *UserRepository) List(ctx context.Context, opts UserListOptions) ([]*models.User, error) {
	sb := r.qb.NewSelect(userColumns).From("users")
	if opts.Search != "" {
		pattern := likePattern(opts.Search)
		sb.Where(`(LOWER(mobile) LIKE ? ESCAPE '!' OR LOWER(COALESCE(email, '')) LIKE ? ESCAPE '!'
			OR LOWER(first_name) LIKE ? ESCAPE '!' OR LOWER(last_name) LIKE ? ESCAPE '!')`,
			pattern, pattern, pattern, pattern)
	}
	if opts.Group != "" {
		sb.Where("id IN (SELECT user_id FROM user_groups WHERE group_name = ?)", string(opts.Group))
	}
	if opts.ActiveOnly {
		sb.Where("is_active = ?", true)
	}
	sb.OrderBy("id ASC")
	if opts.Limit > 0 {
		sb.Limit(opts.Limit)
		if opts.Offset > 0 {
			sb.Offset(opts.Offset)
		}
	}

	var rows []models.User
	if err := sb.SelectContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]*models.User, len(rows))
	for i := range rows {
		users[i] = &rows[i]
	}
	if err := r.loadGroups(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) writeGroups(ctx context.Context, tx *sqlx.Tx, user *models.User) error {
	for _, g := range user.Groups {
		if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO user_groups (user_id, group_name) VALUES (?, ?)"), user.ID, string(g)); err != nil {
			return fmt.Errorf("failed to add user to %s: %w", g, err)
		}
	}
	return nil
}

type groupRow struct {
	UserID    uint   `db:"user_id"`
	GroupName string `db:"group_name"`
}

func (r *UserRepository) loadGroups(ctx context.Context, users []*models.User) error {
	if len(users) == 0 {
		return nil
	}
	byID := make(map[uint]*models.User, len(users))
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		u.Groups = nil
		byID[u.ID] = u
		ids = append(ids, u.ID)
	}

	var rows []groupRow
	err := r.qb.NewSelect("user_id", "group_name").
		From("user_groups").
		WhereIn("user_id", ids).
		OrderBy("group_name ASC").
		SelectContext(ctx, &rows)
	if err != nil {
		return fmt.Errorf("failed to load groups: %w", err)
	}
	for _, row := range rows {
		g, ok := models.ParseGroup(row.GroupName)
		if !ok {
			continue
		}
		if u := byID[row.UserID]; u != nil {
			u.AddGroup(g)
		}
	}
	return nil
}

// mapWriteError turns unique-index violations into conflicts.
func mapWriteError(op string, err error) error {
	if column, ok := database.UniqueViolation(err); ok {
		return models.NewConflict(column)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// likePattern lower-cases s and escapes LIKE wildcards with '!'.
func likePattern(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(database.LowerText(s)) + "%"
}
