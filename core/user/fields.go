package user

// Attribute names, as used in JSON payloads, spreadsheets and database columns.
const (
	FieldEmail      = "email"
	FieldPassword   = "password"
	FieldName       = "name"
	FieldRole       = "role"
	FieldGrade      = "grade"
	FieldClass      = "class"
	FieldNumber     = "number"
	FieldPhone      = "phone"
	FieldSubject    = "subject"
	FieldPosition   = "position"
	FieldDepartment = "department"
	FieldCourse     = "course"
	FieldLevel      = "level"
)

// ProfileFields are the free-form attributes a stored user carries besides email and password.
var ProfileFields = []string{
	FieldName, FieldRole, FieldGrade, FieldClass, FieldNumber, FieldPhone,
	FieldSubject, FieldPosition, FieldDepartment, FieldCourse, FieldLevel,
}

// IsProfileField reports whether name is one of ProfileFields.
func IsProfileField(name string) bool {
	for _, f := range ProfileFields {
		if f == name {
			return true
		}
	}
	return false
}

// Attr returns the stored value of a named attribute ("" for unknown names).
func (u User) Attr(field string) string {
	switch field {
	case FieldEmail:
		return u.Email
	case FieldName:
		return u.Name
	case FieldRole:
		return u.Role
	case FieldGrade:
		return u.Grade
	case FieldClass:
		return u.Class
	case FieldNumber:
		return u.Number
	case FieldPhone:
		return u.Phone
	case FieldSubject:
		return u.Subject
	case FieldPosition:
		return u.Position
	case FieldDepartment:
		return u.Department
	case FieldCourse:
		return u.Course
	case FieldLevel:
		return u.Level
	}
	return ""
}

// SetAttr sets a named profile attribute or the email. Unknown names are ignored.
func (u *User) SetAttr(field, value string) {
	switch field {
	case FieldEmail:
		u.Email = value
	case FieldName:
		u.Name = value
	case FieldRole:
		u.Role = value
	case FieldGrade:
		u.Grade = value
	case FieldClass:
		u.Class = value
	case FieldNumber:
		u.Number = value
	case FieldPhone:
		u.Phone = value
	case FieldSubject:
		u.Subject = value
	case FieldPosition:
		u.Position = value
	case FieldDepartment:
		u.Department = value
	case FieldCourse:
		u.Course = value
	case FieldLevel:
		u.Level = value
	}
}
