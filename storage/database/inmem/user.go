package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/soptable/portal/core"
	"github.com/soptable/portal/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) findByEmail(email string) (*user.User, bool) {
	for _, u := range repo.db.table {
		if u.Email == email {
			return u, true
		}
	}
	return nil, false
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs ...int) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.findByEmail(email); ok && !isExcluded(usr.ID, excludedIDs) {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.findByEmail(usr.Email); ok {
		return user.User{}, user.ErrEmailExists
	}
	repo.db.pk++
	usr.ID = repo.db.pk
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0, len(repo.db.table))
	for _, usr := range repo.query() {
		if filter.Match(usr) {
			users = append(users, usr)
		}
	}
	sortUsers(users, ordering)
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != 0 {
		if usr, ok := repo.db.table[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		if usr, ok := repo.findByEmail(filter.Email); ok {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origUsr, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if other, ok := repo.findByEmail(usr.Email); ok && other.ID != usr.ID {
		return user.User{}, user.ErrEmailExists
	}
	if usr.PasswordHash == nil {
		usr.PasswordHash = origUsr.PasswordHash
	}
	usr.CreatedAt = origUsr.CreatedAt
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) UpdateUserFields(_ context.Context, id int, fields map[string]string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.table[id]
	if !ok {
		return user.ErrNotFound
	}
	updated := *usr
	for f, v := range fields {
		if !user.IsProfileField(f) {
			return user.ErrUnknownField
		}
		updated.SetAttr(f, v)
	}
	repo.db.table[id] = &updated
	return nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...int) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}

func (repo *userRepository) ReplaceAllUsers(_ context.Context, users []user.User) error {
	table := make(map[int]*user.User, len(users))
	emails := make(map[string]struct{}, len(users))

	repo.db.Lock()
	defer repo.db.Unlock()

	pk := 0
	for _, usr := range users {
		if usr.ID > pk {
			pk = usr.ID
		}
	}
	for _, usr := range users {
		usr := usr
		if _, dup := emails[usr.Email]; dup {
			return user.ErrEmailExists
		}
		emails[usr.Email] = struct{}{}
		if usr.ID == 0 {
			pk++
			usr.ID = pk
		}
		if _, dup := table[usr.ID]; dup {
			return core.NewValidationError(nil, core.FieldError{Field: "id", Error: "duplicate id"})
		}
		table[usr.ID] = &usr
	}
	// swap only once everything is valid
	repo.db.table = table
	repo.db.pk = pk
	return nil
}

func isExcluded(id int, excludedIDs []int) bool {
	for _, ex := range excludedIDs {
		if ex == id {
			return true
		}
	}
	return false
}

// sortUsers orders like the SQL repository: -created_at by default, then by ID.
func sortUsers(users []user.User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareUsers(users[i], users[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return users[i].ID < users[j].ID
	})
}

func compareUsers(a, b user.User, field string) int {
	switch field {
	case "id":
		return a.ID - b.ID
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case user.FieldEmail:
		return strings.Compare(a.Email, b.Email)
	}
	if user.IsProfileField(field) {
		return strings.Compare(a.Attr(field), b.Attr(field))
	}
	return 0
}
