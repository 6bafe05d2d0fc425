package sheetsvc

import (
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/soptable/portal/core/reconcile"
	"github.com/soptable/portal/core/user"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultSheet = "Sheet1"
	reasonLabel  = "오류"
)

var sampleRow = []string{
	"홍길동", "010-1234-5678", "hong@sample.com", "1234", "학생", "", "1", "2", "3", "", "", "", "",
}

// WriteTemplate writes the upload template: the standard header and one example row.
func WriteTemplate(w io.Writer) error {
	rows := [][]string{labels(UploadColumns), sampleRow}
	return writeWorkbook(w, "예시", rows)
}

// WriteUsers writes users with the export layout. Passwords are never exported.
func WriteUsers(w io.Writer, users []user.User) error {
	rows := make([][]string, 0, len(users)+1)
	rows = append(rows, labels(ExportColumns))
	for _, usr := range users {
		row := make([]string, 0, len(ExportColumns))
		for _, col := range ExportColumns {
			switch col.Field {
			case fieldID:
				row = append(row, strconv.Itoa(usr.ID))
			case user.FieldPassword:
				row = append(row, "")
			default:
				row = append(row, usr.Attr(col.Field))
			}
		}
		rows = append(rows, row)
	}
	return writeWorkbook(w, "users", rows)
}

// ErrorWorkbook writes the rows of sh that failed, as uploaded, with the failure reason appended.
func ErrorWorkbook(w io.Writer, sh *Sheet, errs []reconcile.RowError) error {
	header := append(append([]string{}, sh.Header...), reasonLabel)
	rows := make([][]string, 0, len(errs)+1)
	rows = append(rows, header)
	for _, e := range errs {
		if e.Idx < 0 || e.Idx >= len(sh.Rows) {
			continue
		}
		row := append(append([]string{}, sh.Rows[e.Idx].Cells...), e.Error)
		rows = append(rows, row)
	}
	return writeWorkbook(w, "errors", rows)
}

// WriteErrors writes one row per failed candidate: its index, submitted email and reason.
func WriteErrors(w io.Writer, errs []reconcile.RowError) error {
	rows := make([][]string, 0, len(errs)+1)
	rows = append(rows, []string{"idx", "email", reasonLabel})
	for _, e := range errs {
		rows = append(rows, []string{strconv.Itoa(e.Idx), e.Email, e.Error})
	}
	return writeWorkbook(w, "errors", rows)
}

// ErrorReport attaches WriteErrors output to batch report mails.
func ErrorReport() reconcile.ErrorReport {
	return reconcile.ErrorReport{Filename: "errors.xlsx", ContentType: ContentTypeXLSX, Write: WriteErrors}
}

func labels(cols []Column) []string {
	res := make([]string, 0, len(cols))
	for _, c := range cols {
		res = append(res, c.Label)
	}
	return res
}

func writeWorkbook(w io.Writer, sheetName string, rows [][]string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(defaultSheet, sheetName); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err = f.SetSheetRow(sheetName, cell, &values); err != nil {
			return errors.Wrapf(err, "writing row %d", i+1)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	if err = f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return errors.Wrap(err, "styling header")
	}

	if err = f.Write(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}
