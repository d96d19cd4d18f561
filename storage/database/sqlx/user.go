package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/temario/core"
	"github.com/trezcool/temario/core/user"
)

const userColumns = `id, name, username, email, role, organization_id, is_super, is_active,
	password_hash, created_at, updated_at, last_login`

var userOrderings = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"role":       "role",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID             string      `db:"id"`
	Name           null.String `db:"name"`
	Username       string      `db:"username"`
	Email          null.String `db:"email"`
	Role           string      `db:"role"`
	OrganizationID null.String `db:"organization_id"`
	IsSuper        bool        `db:"is_super"`
	IsActive       bool        `db:"is_active"`
	PasswordHash   null.String `db:"password_hash"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
	LastLogin      null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:             usr.ID,
		Name:           null.NewString(usr.Name, usr.Name != ""),
		Username:       usr.Username,
		Email:          null.NewString(usr.Email, usr.Email != ""),
		Role:           string(usr.Role),
		OrganizationID: null.NewString(usr.OrganizationID, usr.OrganizationID != ""),
		IsSuper:        usr.IsSuper,
		IsActive:       usr.IsActive,
		PasswordHash:   null.NewString(string(usr.PasswordHash), len(usr.PasswordHash) > 0),
		CreatedAt:      usr.CreatedAt.UTC(),
		UpdatedAt:      usr.UpdatedAt.UTC(),
		LastLogin:      null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (row userRow) user() user.User {
	usr := user.User{
		ID:             row.ID,
		Name:           row.Name.String,
		Username:       row.Username,
		Email:          row.Email.String,
		Role:           user.Role(row.Role),
		OrganizationID: row.OrganizationID.String,
		IsSuper:        row.IsSuper,
		IsActive:       row.IsActive,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
	if row.PasswordHash.Valid {
		usr.PasswordHash = []byte(row.PasswordHash.String)
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

// trapNoRowsErr maps "no rows" err to user.ErrNotFound
func (repo *userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	query := "SELECT username, email FROM users WHERE (username = ? OR email = ?)"
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		query += " AND id NOT IN (?)"
		args = append(args, ids)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}
	var found []struct {
		Username string      `db:"username"`
		Email    null.String `db:"email"`
	}
	if err = sqlx.SelectContext(ctx, repo.exec, &found, repo.exec.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, u := range found {
		if username != "" && u.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && u.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := toUserRow(usr)
	query := `INSERT INTO users (` + userColumns + `) VALUES (
		:id, :name, :username, :email, :role, :organization_id, :is_super, :is_active,
		:password_hash, :created_at, :updated_at, :last_login)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, query, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		row   userRow
		query string
		args  []interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		query = "SELECT " + userColumns + " FROM users WHERE id = ?"
		args = []interface{}{filter.ID}
	case filter.UsernameOrEmail != "":
		query = "SELECT " + userColumns + " FROM users WHERE username = ? OR email = ? LIMIT 1"
		args = []interface{}{filter.UsernameOrEmail, filter.UsernameOrEmail}
	default:
		return user.User{}, user.ErrNotFound
	}

	if err := sqlx.GetContext(ctx, repo.exec, &row, repo.exec.Rebind(query), args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return row.user(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + strings.ToLower(filter.Search) + "%"
			where = append(where, "(LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?)")
			args = append(args, val, val, val)
		}
		if len(filter.Roles) > 0 {
			roles := make([]string, 0, len(filter.Roles))
			for _, r := range filter.Roles {
				roles = append(roles, string(r))
			}
			where = append(where, "role IN (?)")
			args = append(args, roles)
		}
		switch {
		case filter.NoOrganization:
			where = append(where, "organization_id IS NULL")
		case filter.OrganizationID != "":
			where = append(where, "organization_id = ?")
			args = append(args, filter.OrganizationID)
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = ?")
			args = append(args, *filter.IsActive)
		}
	}

	query := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + core.OrderByClause(ordering, userOrderings, "created_at ASC")

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building users query")
	}
	var rows []userRow
	if err = sqlx.SelectContext(ctx, repo.exec, &rows, repo.exec.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := toUserRow(usr)
	query := `UPDATE users SET
		name = :name, username = :username, email = :email, role = :role,
		organization_id = :organization_id, is_super = :is_super, is_active = :is_active,
		password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.exec, query, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.user(), nil
}
