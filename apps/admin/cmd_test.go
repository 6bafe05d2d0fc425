package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soptable/portal/core"
	"github.com/soptable/portal/core/reconcile"
	"github.com/soptable/portal/core/user"
	sheetsvc "github.com/soptable/portal/services/sheet"
	sqlxrepos "github.com/soptable/portal/storage/database/sqlx"
	"github.com/soptable/portal/testutil"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	testutil.FastPasswords()

	// set up DB & repos
	db := testutil.OpenDB(t)
	usrRepo = sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	return &commandLine{
		db:       db,
		usrSvc:   usrSvc,
		engine:   reconcile.NewEngine(usrSvc),
		validate: validate,
		maxRows:  10,
	}
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(_ context.Context, db *sql.DB, engine, command string, args ...string) error {
		if db == nil || engine != "sqlite3" {
			return fmt.Errorf("unexpected database %v (%s)", db, engine)
		}
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErrStr: "requires at least 1 arg(s), only received 0"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(context.Background(), tt.args, new(bytes.Buffer)))
		})
	}
}

func Test_commandLine_migrateReal(t *testing.T) {
	cli := setup(t)

	var out bytes.Buffer
	require.NoError(t, cli.run(context.Background(), []string{"migrate", "version"}, &out))
	require.NoError(t, cli.run(context.Background(), []string{"migrate", "up"}, &out))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "User", "awe@test.cd", "mdr", user.RoleStudent)

	tests := []struct {
		cliTest
		pwd string
	}{
		{cliTest: cliTest{name: "no command"}},
		{cliTest: cliTest{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol" for "admin"`}},
		{cliTest: cliTest{name: "no args", args: []string{"resetpassword"}, wantErrStr: "accepts 1 arg(s), received 0"}},
		{cliTest: cliTest{name: "no password", args: []string{"resetpassword", "awe@test.cd"}, wantErr: errEmptyPassword}},
		{cliTest: cliTest{name: "user not found", args: []string{"resetpassword", "lol@test.cd"}, wantErr: user.ErrNotFound}, pwd: "lol"},
		{cliTest: cliTest{name: "reset", args: []string{"resetpassword", " AWE@test.cd"}}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			tt.check(t, cli.run(context.Background(), tt.args, new(bytes.Buffer)))
		})
	}

	refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	existing := testutil.CreateUser(t, usrRepo, "Lee", "lee@test.cd", "mdr", user.RoleProfessor)

	t.Run("invalid email", func(t *testing.T) {
		mockPassword(t, "s3cret!x")
		err := cli.run(context.Background(), []string{"adduser", "--email", "root"}, new(bytes.Buffer))
		assert.Error(t, err)
	})

	t.Run("missing email", func(t *testing.T) {
		mockPassword(t, "s3cret!x")
		err := cli.run(context.Background(), []string{"adduser"}, new(bytes.Buffer))
		assert.EqualError(t, err, `required flag(s) "email" not set`)
	})

	t.Run("create", func(t *testing.T) {
		mockPassword(t, "s3cret!x")
		var out bytes.Buffer
		require.NoError(t, cli.run(context.Background(), []string{"adduser", "--name", "Root", "--email", "Root@test.cd"}, &out))
		assert.Contains(t, out.String(), "created user")

		usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Email: "root@test.cd"})
		require.NoError(t, err)
		assert.Equal(t, user.RoleAdmin, usr.Role)
		assert.NoError(t, usr.CheckPassword("s3cret!x"))
	})

	t.Run("update", func(t *testing.T) {
		mockPassword(t, "n3wpass!")
		var out bytes.Buffer
		require.NoError(t, cli.run(context.Background(), []string{"adduser", "--email", "lee@test.cd", "--role", "subadmin"}, &out))
		assert.Contains(t, out.String(), fmt.Sprintf("updated user %d", existing.ID))

		usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: existing.ID})
		require.NoError(t, err)
		assert.Equal(t, user.RoleSubAdmin, usr.Role)
		assert.Equal(t, "Lee", usr.Name)
		assert.NoError(t, usr.CheckPassword("n3wpass!"))
	})
}

func Test_commandLine_import(t *testing.T) {
	cli := setup(t)
	testutil.CreateUser(t, usrRepo, "Kim", "kim@test.cd", "mdr", user.RoleStudent)

	dir := t.TempDir()
	sheet := filepath.Join(dir, "users.csv")
	require.NoError(t, os.WriteFile(sheet, []byte(strings.Join([]string{
		"이름,email,password,구분,번호,비고",
		"Kim,kim@test.cd,pw,학생,7,",
		"New,new@test.cd,pw,교사,,",
		"Bad,bad,pw,학생,,",
		"Kim,kim@test.cd,pw,학생,7,",
	}, "\n")), 0o644))

	t.Run("missing file", func(t *testing.T) {
		err := cli.run(context.Background(), []string{"import", filepath.Join(dir, "nope.csv")}, new(bytes.Buffer))
		assert.Error(t, err)
	})

	t.Run("text summary", func(t *testing.T) {
		errorsOut := filepath.Join(dir, "errors.xlsx")
		var out bytes.Buffer
		require.NoError(t, cli.run(context.Background(), []string{"import", sheet, "--errors-out", errorsOut}, &out))

		assert.Equal(t, strings.Join([]string{
			`warning: unknown column "비고" ignored`,
			"line 4 <bad>: invalid email format",
			"inserted: 1, updated: 1, skipped: 1, errors: 1",
			"",
		}, "\n"), out.String())

		f, err := os.Open(errorsOut)
		require.NoError(t, err)
		defer f.Close()
		sh, err := sheetsvc.Parse(f, errorsOut)
		require.NoError(t, err)
		require.Len(t, sh.Rows, 1)
		assert.Equal(t, "bad", sh.Rows[0].Candidate.Email.Value)
		assert.Equal(t, "invalid email format", sh.Rows[0].Cells[len(sh.Rows[0].Cells)-1])
	})

	t.Run("json summary", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, cli.run(context.Background(), []string{"import", sheet, "--json"}, &out))

		var sum reconcile.Summary
		require.NoError(t, json.Unmarshal(out.Bytes(), &sum))
		assert.Equal(t, 3, sum.Skipped)
		require.Len(t, sum.Results, 4)
		assert.Equal(t, reconcile.DecisionError, sum.Results[2].Decision)
	})
}
