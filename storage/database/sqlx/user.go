package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/visalms/lms/core/user"
)

var userColumns = []string{
	"id", "username", "email", "password_hash", "role", "is_active", "created_by", "created_at", "updated_at", "last_login",
}

type userRow struct {
	ID           string         `db:"id"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	PasswordHash []byte         `db:"password_hash"`
	Role         string         `db:"role"`
	IsActive     bool           `db:"is_active"`
	CreatedBy    sql.NullString `db:"created_by"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    sql.NullTime   `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Username:     usr.Username,
		Email:        usr.Email,
		PasswordHash: usr.PasswordHash,
		Role:         usr.Role,
		IsActive:     usr.IsActive,
		CreatedBy:    sql.NullString{String: usr.CreatedBy, Valid: usr.CreatedBy != ""},
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    sql.NullTime{Time: usr.LastLogin.UTC(), Valid: !usr.LastLogin.IsZero()},
	}
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		IsActive:     r.IsActive,
		CreatedBy:    r.CreatedBy.String,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

type UserRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*UserRepository)(nil)

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (repo *UserRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	q := psql.Select("COUNT(*)").From("users").Where(sq.Or{sq.Eq{"username": username}, sq.Eq{"email": email}})
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		q = q.Where(sq.NotEq{"id": ids})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	var count int
	if err = repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return err
	}
	if count > 0 {
		return user.ErrUserExists
	}
	return nil
}

func insertUser(ctx context.Context, db sqlx.ExecerContext, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	row := newUserRow(usr)
	query, args, err := psql.Insert("users").
		Columns(userColumns...).
		Values(row.ID, row.Username, row.Email, row.PasswordHash, row.Role, row.IsActive,
			row.CreatedBy, row.CreatedAt, row.UpdatedAt, row.LastLogin).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	if _, err = db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, err
	}
	return row.toUser(), nil
}

func (repo *UserRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	return insertUser(ctx, repo.db, usr)
}

// setupLockKey identifies the advisory lock serializing CreateFirstUser calls.
const setupLockKey = 7_310_001

// CreateFirstUser takes a transaction-scoped advisory lock so that concurrent
// setups cannot both see an empty users table.
func (repo *UserRepository) CreateFirstUser(ctx context.Context, usr user.User) (user.User, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", setupLockKey); err != nil {
		return user.User{}, errors.Wrap(err, "acquiring setup lock")
	}
	var exists bool
	if err = tx.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM users)"); err != nil {
		return user.User{}, err
	}
	if exists {
		return user.User{}, user.ErrSetupDone
	}

	if usr, err = insertUser(ctx, tx, usr); err != nil {
		return user.User{}, err
	}
	if err = tx.Commit(); err != nil {
		return user.User{}, errors.Wrap(err, "committing transaction")
	}
	return usr, nil
}

func (repo *UserRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	q := psql.Select(userColumns...).From("users").OrderBy("created_at DESC")
	if filter.IsActive != nil {
		q = q.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *UserRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := psql.Select(userColumns...).From("users").Limit(1)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.UsernameOrEmail != "":
		q = q.Where(sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}})
	default:
		return user.User{}, user.ErrNotFound
	}
	query, args, err := q.ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	var row userRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return row.toUser(), nil
}

func (repo *UserRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := newUserRow(usr)
	query, args, err := psql.Update("users").
		SetMap(map[string]interface{}{
			"username":      row.Username,
			"email":         row.Email,
			"password_hash": row.PasswordHash,
			"role":          row.Role,
			"is_active":     row.IsActive,
			"created_by":    row.CreatedBy,
			"updated_at":    row.UpdatedAt,
			"last_login":    row.LastLogin,
		}).
		Where(sq.Eq{"id": row.ID}).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return user.User{}, err
	} else if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.toUser(), nil
}

func (repo *UserRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users")
	return count, err
}
