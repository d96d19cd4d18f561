package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/temario/core"
	"github.com/trezcool/temario/core/user"
)

const defaultImportSheet = "Sheet1"

// import columns, the first row is a header
const (
	colName = iota
	colUsername
	colEmail
	colRole
	colOrganization
	colPassword
)

type importResult struct {
	Processed int
	Created   int
	Errors    []string
}

func (res *importResult) print(w io.Writer) {
	fmt.Fprintf(w, "processed: %d, created: %d, failed: %d\n", res.Processed, res.Created, len(res.Errors))
	for _, e := range res.Errors {
		fmt.Fprintln(w, "  "+e)
	}
}

// importUsers creates one user per spreadsheet row: name, username, email, role, organization, password.
// Invalid rows are reported and skipped.
func (cli *commandLine) importUsers(path, sheet string) (*importResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %q", sheet)
	}

	res := &importResult{Errors: make([]string, 0)}
	for i, row := range rows {
		if i == 0 || isBlankRow(row) { // header
			continue
		}
		res.Processed++

		if err = cli.importUser(row); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %s", i+1, cli.describe(err)))
			continue
		}
		res.Created++
	}
	return res, nil
}

func (cli *commandLine) importUser(row []string) error {
	pwd := cell(row, colPassword)
	nu := user.NewUser{
		Name:            cell(row, colName),
		Username:        cell(row, colUsername),
		Email:           cell(row, colEmail),
		Role:            user.Role(cell(row, colRole)),
		OrganizationID:  cell(row, colOrganization),
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err := nu.Validate(cli.validate, cli.usrSvc); err != nil {
		return err
	}
	_, err := cli.usrSvc.Create(nu)
	return err
}

// describe flattens validation errors into "field: message" pairs.
func (cli *commandLine) describe(err error) string {
	var fldErrs map[string]string
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		fldErrs = core.TranslateErrors(e, cli.translator)
	case *core.ValidationError:
		fldErrs = make(map[string]string, len(e.Fields))
		for _, f := range e.Fields {
			fldErrs[f.Field] = f.Error
		}
	default:
		return err.Error()
	}

	parts := make([]string, 0, len(fldErrs))
	for fld, msg := range fldErrs {
		parts = append(parts, fld+": "+msg)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func cell(row []string, col int) string {
	if col < len(row) {
		return strings.TrimSpace(row[col])
	}
	return ""
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
