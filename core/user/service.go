package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/soptable/portal/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownField       = errors.New("unknown user field")
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists when another user (not in excludedIDs) owns email.
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// UpdateUserFields sets the given profile fields only, leaving the others untouched.
		UpdateUserFields(ctx context.Context, id int, fields map[string]string) error
		DeleteUsersByID(ctx context.Context, ids ...int) (int, error)
		// ReplaceAllUsers deletes every user and inserts users, all or nothing.
		ReplaceAllUsers(ctx context.Context, users []User) error
	}

	Service struct {
		repo Repository
		now  func() time.Time
	}
)

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) CheckUniqueness(email string, excludedIDs ...int) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excludedIDs...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: FieldEmail, Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := svc.now()
	usr := User{
		Name:       nu.Name,
		Email:      nu.Email,
		Role:       nu.Role,
		Level:      nu.Level,
		Grade:      nu.Grade,
		Class:      nu.Class,
		Number:     nu.Number,
		Phone:      nu.Phone,
		Subject:    nu.Subject,
		Position:   nu.Position,
		Department: nu.Department,
		Course:     nu.Course,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	uu.apply(&usr)
	if uu.Password != nil {
		if err := usr.SetPassword(*uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = svc.now()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetPassword replaces the password of the user owning email.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return svc.updatePassword(ctx, usr, pwd)
}

func (svc *Service) updatePassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = svc.now()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *Service) Delete(ctx context.Context, ids ...int) (int, error) {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// Authenticate returns the user owning email when pwd matches its password.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

// Restore replaces every stored user with users in one transaction.
// Passwords are hashed; duplicate emails in the input abort the whole restore.
func (svc *Service) Restore(ctx context.Context, users []RestoreUser) error {
	now := svc.now()
	seen := make(map[string]int, len(users))
	toSave := make([]User, 0, len(users))
	for i, ru := range users {
		email := core.CleanString(ru.Email, true /* lower */)
		if j, dup := seen[email]; dup {
			return core.NewValidationError(errors.Errorf("duplicate email %q at entries %d and %d", email, j, i))
		}
		seen[email] = i

		usr := User{
			ID:         ru.ID,
			Name:       core.CleanString(ru.Name),
			Email:      email,
			Role:       NormalizeRole(ru.Role),
			Level:      ru.Level,
			Grade:      ru.Grade,
			Class:      ru.Class,
			Number:     ru.Number,
			Phone:      ru.Phone,
			Subject:    ru.Subject,
			Position:   ru.Position,
			Department: ru.Department,
			Course:     ru.Course,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := usr.SetPassword(ru.Password); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		toSave = append(toSave, usr)
	}
	return svc.repo.ReplaceAllUsers(ctx, toSave)
}

// Reconciliation gateway

// FindByEmail returns ErrNotFound when no user owns email.
func (svc *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	return svc.GetByEmail(ctx, email)
}

// InsertCandidate stores a new user built from c and returns its ID.
func (svc *Service) InsertCandidate(ctx context.Context, c Candidate) (int, error) {
	usr := c.NewUser()
	usr.Email = core.CleanString(usr.Email, true /* lower */)
	usr.CreatedAt = svc.now()
	usr.UpdatedAt = usr.CreatedAt
	if err := usr.SetPassword(c.Password.Value); err != nil {
		return 0, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return 0, err
	}
	return usr.ID, nil
}

// UpdateFields writes the changed profile fields of user id.
func (svc *Service) UpdateFields(ctx context.Context, id int, changes map[string]string) error {
	if len(changes) == 0 {
		return nil
	}
	for f := range changes {
		if !IsProfileField(f) {
			return errors.Wrap(ErrUnknownField, f)
		}
	}
	return svc.repo.UpdateUserFields(ctx, id, changes)
}
