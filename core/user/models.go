package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/soptable/portal/core"
)

// Roles
const (
	RoleStudent   = "student"
	RoleProfessor = "professor"
	RoleAdmin     = "admin"
	RoleSubAdmin  = "subadmin"
)

var (
	AllRoles = []string{RoleStudent, RoleProfessor, RoleAdmin, RoleSubAdmin}

	Roles = []Role{
		{Name: "Student", Label: "학생", Value: RoleStudent},
		{Name: "Professor", Label: "교사", Value: RoleProfessor},
		{Name: "Admin", Label: "관리자", Value: RoleAdmin},
		{Name: "Sub Admin", Label: "부관리자", Value: RoleSubAdmin},
	}

	roleAliases = map[string]string{
		"학생":        RoleStudent,
		"교사":        RoleProfessor,
		"교수":        RoleProfessor,
		"선생님":       RoleProfessor,
		"teacher":   RoleProfessor,
		"관리자":       RoleAdmin,
		"부관리자":      RoleSubAdmin,
		"sub admin": RoleSubAdmin,
	}
)

type Role struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Value string `json:"value"`
}

func IsRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// NormalizeRole maps a display label (e.g. "학생") to its role value.
// Values that are neither a role nor a known label are returned cleaned but otherwise untouched.
func NormalizeRole(role string) string {
	role = core.CleanString(role)
	if IsRole(role) {
		return role
	}
	if r, ok := roleAliases[role]; ok {
		return r
	}
	lower := core.CleanString(role, true /* lower */)
	if IsRole(lower) {
		return lower
	}
	if r, ok := roleAliases[lower]; ok {
		return r
	}
	return role
}

type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Level        string    `json:"level"`
	Grade        string    `json:"grade"`
	Class        string    `json:"class"`
	Number       string    `json:"number"`
	Phone        string    `json:"phone"`
	Subject      string    `json:"subject"`
	Position     string    `json:"position"`
	Department   string    `json:"department"`
	Course       string    `json:"course"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// PasswordCost is the bcrypt cost used by SetPassword. Tests lower it.
var PasswordCost = bcrypt.DefaultCost

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), PasswordCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSubAdmin
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	Role       string `json:"role" validate:"required,userrole"`
	Level      string `json:"level"`
	Grade      string `json:"grade"`
	Class      string `json:"class"`
	Number     string `json:"number" validate:"omitempty,numeric_value"`
	Phone      string `json:"phone"`
	Subject    string `json:"subject"`
	Position   string `json:"position"`
	Department string `json:"department"`
	Course     string `json:"course"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = NormalizeRole(nu.Role)
	nu.Number = core.CleanString(nu.Number)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Nil fields keep their stored value.
type UpdateUser struct {
	Name       *string `json:"name" validate:"omitempty,min=1"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Password   *string `json:"password" validate:"omitempty,min=1"`
	Role       *string `json:"role" validate:"omitempty,userrole"`
	Level      *string `json:"level"`
	Grade      *string `json:"grade"`
	Class      *string `json:"class"`
	Number     *string `json:"number" validate:"omitempty,numeric_value"`
	Phone      *string `json:"phone"`
	Subject    *string `json:"subject"`
	Position   *string `json:"position"`
	Department *string `json:"department"`
	Course     *string `json:"course"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc *Service) error {
	if uu.Name != nil {
		name := core.CleanString(*uu.Name)
		uu.Name = &name
	}
	if uu.Email != nil {
		email := core.CleanString(*uu.Email, true /* lower */)
		uu.Email = &email
	}
	if uu.Role != nil {
		role := NormalizeRole(*uu.Role)
		uu.Role = &role
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	if uu.Email != nil && *uu.Email != origUsr.Email {
		return svc.CheckUniqueness(*uu.Email, origUsr.ID)
	}
	return nil
}

// apply copies the supplied fields onto usr.
func (uu UpdateUser) apply(usr *User) {
	set := func(field string, v *string) {
		if v != nil {
			usr.SetAttr(field, *v)
		}
	}
	set(FieldName, uu.Name)
	set(FieldEmail, uu.Email)
	set(FieldRole, uu.Role)
	set(FieldLevel, uu.Level)
	set(FieldGrade, uu.Grade)
	set(FieldClass, uu.Class)
	set(FieldNumber, uu.Number)
	set(FieldPhone, uu.Phone)
	set(FieldSubject, uu.Subject)
	set(FieldPosition, uu.Position)
	set(FieldDepartment, uu.Department)
	set(FieldCourse, uu.Course)
}

// RestoreUser is one entry of a full user-table restore.
type RestoreUser struct {
	ID         int    `json:"id" validate:"gte=0"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	Role       string `json:"role" validate:"required"`
	Level      string `json:"level"`
	Grade      string `json:"grade"`
	Class      string `json:"class"`
	Number     string `json:"number"`
	Phone      string `json:"phone"`
	Subject    string `json:"subject"`
	Position   string `json:"position"`
	Department string `json:"department"`
	Course     string `json:"course"`
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Match applies the filter to a single user; repositories that cannot push it down use this.
// Search does a case-insensitive match on one of Name, Email or Phone.
func (qf *QueryFilter) Match(usr User) bool {
	if qf == nil || qf.IsEmpty() {
		return true
	}
	if qf.Search != "" {
		s := core.CleanString(qf.Search, true /* lower */)
		if !(containsFold(usr.Name, s) || containsFold(usr.Email, s) || containsFold(usr.Phone, s)) {
			return false
		}
	}
	if len(qf.Roles) > 0 {
		var found bool
		for _, r := range qf.Roles {
			if usr.Role == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !qf.CreatedFrom.IsZero() && usr.CreatedAt.Before(qf.CreatedFrom) {
		return false
	}
	if !qf.CreatedTo.IsZero() && usr.CreatedAt.After(qf.CreatedTo) {
		return false
	}
	return true
}

// GetFilter selects a single user by ID or by email.
type GetFilter struct {
	ID    int
	Email string
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
