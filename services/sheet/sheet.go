// Package sheetsvc reads user batches from spreadsheets and writes users back to them.
// Both .xlsx workbooks and .csv files are accepted; only the first sheet of a workbook is read.
package sheetsvc

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/soptable/portal/core/user"
)

const (
	FormatXLSX = ".xlsx"
	FormatCSV  = ".csv"

	fieldID = "id"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .xlsx or .csv")
	ErrNoHeader          = errors.New("the sheet has no header row")
	ErrNoEmailColumn     = errors.New("the sheet has no email column")
)

// headerAliases maps NFC-normalized, lowercased column labels to user fields.
var headerAliases = map[string]string{
	"일련번호": fieldID,
	"id":   fieldID,

	"이름":   user.FieldName,
	"name": user.FieldName,

	"휴대폰":   user.FieldPhone,
	"전화번호":  user.FieldPhone,
	"연락처":   user.FieldPhone,
	"phone": user.FieldPhone,

	"email":  user.FieldEmail,
	"이메일":    user.FieldEmail,
	"e-mail": user.FieldEmail,

	"password": user.FieldPassword,
	"비밀번호":     user.FieldPassword,

	"구분":   user.FieldRole,
	"역할":   user.FieldRole,
	"role": user.FieldRole,

	"직위":       user.FieldPosition,
	"position": user.FieldPosition,

	"학년":    user.FieldGrade,
	"grade": user.FieldGrade,

	"반":     user.FieldClass,
	"class": user.FieldClass,

	"번호":     user.FieldNumber,
	"number": user.FieldNumber,

	"권한":    user.FieldLevel,
	"level": user.FieldLevel,

	"과목":      user.FieldSubject,
	"subject": user.FieldSubject,

	"과정":     user.FieldCourse,
	"course": user.FieldCourse,

	"부서":         user.FieldDepartment,
	"department": user.FieldDepartment,
}

// Column is one header of the standard layout.
type Column struct {
	Label string
	Field string
}

// UploadColumns is the layout of the upload template.
var UploadColumns = []Column{
	{"이름", user.FieldName},
	{"휴대폰", user.FieldPhone},
	{"email", user.FieldEmail},
	{"password", user.FieldPassword},
	{"구분", user.FieldRole},
	{"직위", user.FieldPosition},
	{"학년", user.FieldGrade},
	{"반", user.FieldClass},
	{"번호", user.FieldNumber},
	{"권한", user.FieldLevel},
	{"과목", user.FieldSubject},
	{"과정", user.FieldCourse},
	{"부서", user.FieldDepartment},
}

// ExportColumns is the layout of a full user export.
var ExportColumns = append([]Column{{"일련번호", fieldID}}, UploadColumns...)

type (
	Row struct {
		Line      int      // 1-based line in the sheet
		Cells     []string // raw cells, aligned on Sheet.Header
		Candidate user.Candidate
	}

	Sheet struct {
		Header   []string
		Fields   []string // field of each header cell, "" when ignored
		Rows     []Row
		Warnings []string
	}
)

// NormalizeHeader maps a column label to its user field, "" when unknown.
func NormalizeHeader(label string) string {
	key := strings.ToLower(norm.NFC.String(strings.TrimSpace(label)))
	key = strings.Join(strings.Fields(key), " ")
	return headerAliases[key]
}

// Parse reads a batch from r. The format is picked from filename's extension.
func Parse(r io.Reader, filename string) (*Sheet, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(path.Ext(filename)) {
	case FormatXLSX:
		records, err = readXLSX(r)
	case FormatCSV:
		records, err = readCSV(r)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return build(records)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "reading workbook rows")
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")) // excel writes a BOM

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parsing csv")
	}
	return records, nil
}

func build(records [][]string) (*Sheet, error) {
	headerIdx := -1
	for i, rec := range records {
		if !isBlank(rec) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, ErrNoHeader
	}

	sh := &Sheet{Header: records[headerIdx]}
	sh.Fields = make([]string, len(sh.Header))
	seen := make(map[string]bool, len(sh.Header))
	var hasEmail bool
	for i, label := range sh.Header {
		field := NormalizeHeader(label)
		switch {
		case strings.TrimSpace(label) == "":
			continue
		case field == "":
			sh.Warnings = append(sh.Warnings, fmt.Sprintf("unknown column %q ignored", label))
			continue
		case seen[field]:
			sh.Warnings = append(sh.Warnings, fmt.Sprintf("duplicate column %q ignored", label))
			continue
		}
		seen[field] = true
		sh.Fields[i] = field
		hasEmail = hasEmail || field == user.FieldEmail
	}
	if !hasEmail {
		return nil, ErrNoEmailColumn
	}

	for i := headerIdx + 1; i < len(records); i++ {
		rec := records[i]
		if isBlank(rec) {
			continue
		}
		row := Row{Line: i + 1, Cells: make([]string, len(sh.Header))}
		copy(row.Cells, rec)
		for col, field := range sh.Fields {
			if field == "" || field == fieldID || col >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[col])
			if v == "" {
				continue // an empty cell leaves the attribute untouched
			}
			if field == user.FieldRole {
				v = user.NormalizeRole(v)
			}
			row.Candidate.SetAttr(field, v)
		}
		sh.Rows = append(sh.Rows, row)
	}
	return sh, nil
}

// Candidates returns the parsed rows in sheet order.
func (sh *Sheet) Candidates() []user.Candidate {
	cs := make([]user.Candidate, 0, len(sh.Rows))
	for _, r := range sh.Rows {
		cs = append(cs, r.Candidate)
	}
	return cs
}

// Line returns the sheet line of the idx-th candidate, 0 when out of range.
func (sh *Sheet) Line(idx int) int {
	if idx < 0 || idx >= len(sh.Rows) {
		return 0
	}
	return sh.Rows[idx].Line
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
