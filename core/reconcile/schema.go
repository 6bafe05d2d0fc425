// Package reconcile matches uploaded user rows against the user store by email and
// decides, row by row, whether to insert, update or skip them.
package reconcile

import "github.com/soptable/portal/core/user"

// FieldSpec describes how one candidate attribute takes part in reconciliation.
type FieldSpec struct {
	Name       string
	Required   bool // must be non-empty for the row to be accepted
	Reconciled bool // compared against, and written onto, an existing user
}

// Schema drives both validation and diffing. The password is required for new users
// but never reconciled: re-uploading a sheet does not reset passwords.
var Schema = []FieldSpec{
	{Name: user.FieldEmail, Required: true},
	{Name: user.FieldPassword, Required: true},
	{Name: user.FieldName, Required: true, Reconciled: true},
	{Name: user.FieldRole, Required: true, Reconciled: true},
	{Name: user.FieldGrade, Reconciled: true},
	{Name: user.FieldClass, Reconciled: true},
	{Name: user.FieldNumber, Reconciled: true},
	{Name: user.FieldPhone, Reconciled: true},
	{Name: user.FieldSubject, Reconciled: true},
	{Name: user.FieldPosition, Reconciled: true},
	{Name: user.FieldDepartment, Reconciled: true},
	{Name: user.FieldCourse, Reconciled: true},
	{Name: user.FieldLevel, Reconciled: true},
}

// RequiredFields returns the names of required fields, in schema order.
func RequiredFields() []string {
	return schemaFields(func(fs FieldSpec) bool { return fs.Required })
}

// ReconciledFields returns the names of reconciled fields, in schema order.
func ReconciledFields() []string {
	return schemaFields(func(fs FieldSpec) bool { return fs.Reconciled })
}

func schemaFields(keep func(FieldSpec) bool) []string {
	names := make([]string, 0, len(Schema))
	for _, fs := range Schema {
		if keep(fs) {
			names = append(names, fs.Name)
		}
	}
	return names
}
