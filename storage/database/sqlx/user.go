package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/soptable/portal/core"
	"github.com/soptable/portal/core/user"
)

const userColumns = "id, name, email, password_hash, role, level, grade, class, number, " +
	"phone, subject, position, department, course, created_at, updated_at"

// orderable maps API ordering fields to columns.
var orderable = map[string]string{
	"id":         "id",
	"name":       "name",
	"email":      "email",
	"role":       "role",
	"grade":      "grade",
	"class":      "class",
	"number":     "number",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type userRow struct {
	ID           int         `db:"id"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	PasswordHash []byte      `db:"password_hash"`
	Role         string      `db:"role"`
	Level        null.String `db:"level"`
	Grade        null.String `db:"grade"`
	Class        null.String `db:"class"`
	Number       null.String `db:"number"`
	Phone        string      `db:"phone"`
	Subject      string      `db:"subject"`
	Position     string      `db:"position"`
	Department   string      `db:"department"`
	Course       string      `db:"course"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

func nullable(s string) null.String {
	return null.NewString(s, s != "")
}

func toRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		PasswordHash: usr.PasswordHash,
		Role:         usr.Role,
		Level:        nullable(usr.Level),
		Grade:        nullable(usr.Grade),
		Class:        nullable(usr.Class),
		Number:       nullable(usr.Number),
		Phone:        usr.Phone,
		Subject:      usr.Subject,
		Position:     usr.Position,
		Department:   usr.Department,
		Course:       usr.Course,
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
	}
}

func fromRow(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Role:         row.Role,
		Level:        row.Level.String,
		Grade:        row.Grade.String,
		Class:        row.Class.String,
		Number:       row.Number.String,
		Phone:        row.Phone,
		Subject:      row.Subject,
		Position:     row.Position,
		Department:   row.Department,
		Course:       row.Course,
		CreatedAt:    row.CreatedAt.Time.UTC(),
		UpdatedAt:    row.UpdatedAt.Time.UTC(),
	}
}

// trapNoRowsErr maps "no rows" to user.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps unique constraint violations (on email, the only unique column) to user.ErrEmailExists
func trapUniqueErr(err error, msg string) error {
	if isUniqueViolation(err) {
		return user.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error {
	q := "SELECT COUNT(*) FROM users WHERE email = ?"
	args := []interface{}{email}
	if len(excludedIDs) > 0 {
		var err error
		q, args, err = sqlx.In(q+" AND id NOT IN (?)", email, excludedIDs)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
	}

	var cnt int
	if err := repo.db.GetContext(ctx, &cnt, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if cnt > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func insertUser(ctx context.Context, exec core.DBExecutor, row userRow, withID bool) (int, error) {
	cols := "name, email, password_hash, role, level, grade, class, number, " +
		"phone, subject, position, department, course, created_at, updated_at"
	args := []interface{}{
		row.Name, row.Email, row.PasswordHash, row.Role, row.Level, row.Grade, row.Class, row.Number,
		row.Phone, row.Subject, row.Position, row.Department, row.Course, row.CreatedAt, row.UpdatedAt,
	}
	if withID {
		cols = "id, " + cols
		args = append([]interface{}{row.ID}, args...)
	}
	q := fmt.Sprintf("INSERT INTO users (%s) VALUES (%s) RETURNING id", cols, placeholders(len(args)))

	var id int
	if err := sqlx.GetContext(ctx, exec, &id, exec.Rebind(q), args...); err != nil {
		return 0, trapUniqueErr(err, "inserting user")
	}
	return id, nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	id, err := insertUser(ctx, repo.db, toRow(usr), false)
	if err != nil {
		return user.User{}, err
	}
	usr.ID = id
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter != nil {
		// users with Name, Email or Phone matching the search keyword
		if filter.Search != "" {
			val := "%" + strings.ToLower(filter.Search) + "%"
			where = append(where, "(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(phone) LIKE ?)")
			args = append(args, val, val, val)
		}
		if len(filter.Roles) > 0 {
			where = append(where, "role IN (?)")
			args = append(args, filter.Roles)
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, "created_at >= ?")
			args = append(args, filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, "created_at <= ?")
			args = append(args, filter.CreatedTo.UTC())
		}
	}

	q := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + core.OrderByClause(ordering, orderable, "created_at DESC") + ", id ASC"

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building users query")
	}

	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, fromRow(row))
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		row userRow
		err error
	)
	switch {
	case filter.ID != 0:
		err = repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), filter.ID)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT "+userColumns+" FROM users WHERE email = ?"), filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, trapNoRowsErr(err, "finding user")
	}
	return fromRow(row), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := toRow(usr)
	q := `UPDATE users SET name = ?, email = ?, role = ?, level = ?, grade = ?, class = ?, number = ?,
		phone = ?, subject = ?, position = ?, department = ?, course = ?, updated_at = ?`
	args := []interface{}{
		row.Name, row.Email, row.Role, row.Level, row.Grade, row.Class, row.Number,
		row.Phone, row.Subject, row.Position, row.Department, row.Course, row.UpdatedAt,
	}
	if len(row.PasswordHash) > 0 {
		q += ", password_hash = ?"
		args = append(args, row.PasswordHash)
	}
	q += " WHERE id = ?"
	args = append(args, row.ID)

	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return user.User{}, trapUniqueErr(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) UpdateUserFields(ctx context.Context, id int, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	sets := make([]string, 0, len(fields)+1)
	args := make([]interface{}, 0, len(fields)+2)
	// iterate ProfileFields so the column list is both whitelisted and stable
	for _, f := range user.ProfileFields {
		v, ok := fields[f]
		if !ok {
			continue
		}
		sets = append(sets, f+" = ?")
		switch f {
		case user.FieldLevel, user.FieldGrade, user.FieldClass, user.FieldNumber:
			args = append(args, nullable(v))
		default:
			args = append(args, v)
		}
	}
	if len(sets) != len(fields) {
		return user.ErrUnknownField
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	q := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return errors.Wrap(err, "updating user fields")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(n), nil
}

func (repo *userRepository) ReplaceAllUsers(ctx context.Context, users []user.User) error {
	pk := 0
	for _, usr := range users {
		if usr.ID > pk {
			pk = usr.ID
		}
	}

	return core.WithTx(ctx, repo.db, func(tx core.DBTransactor) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM users"); err != nil {
			return errors.Wrap(err, "clearing users")
		}
		for _, usr := range users {
			if usr.ID == 0 {
				pk++
				usr.ID = pk
			}
			if _, err := insertUser(ctx, tx, toRow(usr), true); err != nil {
				return err
			}
		}
		if tx.DriverName() == "postgres" {
			// explicit ids do not advance the serial sequence
			q := "SELECT setval(pg_get_serial_sequence('users', 'id'), GREATEST((SELECT COALESCE(MAX(id), 0) FROM users), 1))"
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return errors.Wrap(err, "resetting users sequence")
			}
		}
		return nil
	})
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
