package user

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/soptable/portal/core"
)

var errUnsupportedValue = errors.New("expected a string, number or boolean")

// OptString is a free-form attribute that remembers whether it was supplied at all.
// JSON strings, numbers and booleans decode to their string form; null decodes to "" but counts as supplied.
type OptString struct {
	Value string
	Set   bool
}

// Opt returns a supplied OptString.
func Opt(s string) OptString { return OptString{Value: s, Set: true} }

// IsEmpty reports whether the attribute is absent or blank.
func (o OptString) IsEmpty() bool { return !o.Set || o.Value == "" }

func (o *OptString) UnmarshalJSON(data []byte) error {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}

	switch t := v.(type) {
	case nil:
		o.Value = ""
	case string:
		o.Value = t
	case json.Number:
		o.Value = formatNumber(t)
	case bool:
		o.Value = strconv.FormatBool(t)
	default:
		return errUnsupportedValue
	}
	o.Set = true
	return nil
}

func (o OptString) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// formatNumber renders a JSON number the way a spreadsheet cell displays it: 1 -> "1", 1.50 -> "1.5".
func formatNumber(n json.Number) string {
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Candidate is one row proposed for insertion or update by a batch upload.
// Any attribute may be missing: absent attributes are never compared nor written.
type Candidate struct {
	Email      OptString `json:"email"`
	Password   OptString `json:"password"`
	Name       OptString `json:"name"`
	Role       OptString `json:"role"`
	Grade      OptString `json:"grade"`
	Class      OptString `json:"class"`
	Number     OptString `json:"number"`
	Phone      OptString `json:"phone"`
	Subject    OptString `json:"subject"`
	Position   OptString `json:"position"`
	Department OptString `json:"department"`
	Course     OptString `json:"course"`
	Level      OptString `json:"level"`
}

// Attr returns the named attribute, absent for unknown names.
func (c Candidate) Attr(field string) OptString {
	if p := c.attrPtr(field); p != nil {
		return *p
	}
	return OptString{}
}

// SetAttr supplies the named attribute. Unknown names are ignored.
func (c *Candidate) SetAttr(field, value string) {
	if p := c.attrPtr(field); p != nil {
		*p = Opt(value)
	}
}

func (c *Candidate) attrPtr(field string) *OptString {
	switch field {
	case FieldEmail:
		return &c.Email
	case FieldPassword:
		return &c.Password
	case FieldName:
		return &c.Name
	case FieldRole:
		return &c.Role
	case FieldGrade:
		return &c.Grade
	case FieldClass:
		return &c.Class
	case FieldNumber:
		return &c.Number
	case FieldPhone:
		return &c.Phone
	case FieldSubject:
		return &c.Subject
	case FieldPosition:
		return &c.Position
	case FieldDepartment:
		return &c.Department
	case FieldCourse:
		return &c.Course
	case FieldLevel:
		return &c.Level
	}
	return nil
}

// Normalized returns a copy with the email trimmed and lowered, the reconciliation key form.
func (c Candidate) Normalized() Candidate {
	if c.Email.Set {
		c.Email.Value = core.CleanString(c.Email.Value, true /* lower */)
	}
	return c
}

// NewUser builds the User a Candidate stands for. The password is left to the caller to hash.
func (c Candidate) NewUser() User {
	usr := User{Email: c.Email.Value}
	for _, f := range ProfileFields {
		usr.SetAttr(f, c.Attr(f).Value)
	}
	return usr
}
