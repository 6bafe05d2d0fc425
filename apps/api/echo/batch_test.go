package echoapi_test

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soptable/portal/core/user"
	sheetsvc "github.com/soptable/portal/services/sheet"
)

const mixedBatch = `{"users": [
	{"email": "new@x.io", "password": "pw1234", "name": "New", "role": "student"},
	{"email": "KIM@x.io", "password": "pw", "name": "Kim", "role": "student", "grade": 2},
	{"email": "lee@x.io", "password": "x", "name": "Lee", "role": "professor"},
	{"email": "Bad-Email", "password": "x", "name": "B", "role": "student"},
	{"email": "c@x.io", "password": "x", "name": "C", "role": "student", "number": "abc"}
]}`

func Test_batchApi_upsertShape(t *testing.T) {
	app := setup(t)

	runHttpTests(t, app, []httpTest{
		{
			name:     "invalid json",
			method:   http.MethodPost,
			path:     "/api/users/batch-upsert",
			body:     []byte(`{"users": [`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing users",
			method:   http.MethodPost,
			path:     "/api/users/batch-upsert",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "users is required"}),
		},
		{
			name:     "users not an array",
			method:   http.MethodPost,
			path:     "/api/users/batch-upsert",
			body:     []byte(`{"users": {"email": "a@x.io"}}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "users must be an array"}),
		},
		{
			name:     "empty users",
			method:   http.MethodPost,
			path:     "/api/users/batch-upsert",
			body:     []byte(`{"users": []}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "users must not be empty"}),
		},
		{
			name:     "too many users",
			method:   http.MethodPost,
			path:     "/api/users/batch-upsert",
			body:     []byte(`{"users": [{}, {}, {}, {}, {}, {}]}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "too many users: 6 (max 5)"}),
		},
		{
			name:     "element that is not an object",
			method:   http.MethodPost,
			path:     "/api/users/batch-upsert",
			body:     []byte(`{"users": [1]}`),
			wantCode: http.StatusOK,
			wantData: []byte(`{"inserted": 0, "updated": 0, "skipped": 0, "errors": [
				{"idx": 0, "email": "", "error": "missing required field"}
			]}`),
		},
	})
}

func Test_batchApi_upsert(t *testing.T) {
	tests := []httpTest{
		{
			name:     "summary",
			path:     "/api/users/batch-upsert",
			wantCode: http.StatusOK,
			wantData: []byte(`{"inserted": 1, "updated": 1, "skipped": 1, "errors": [
				{"idx": 3, "email": "Bad-Email", "error": "invalid email format"},
				{"idx": 4, "email": "c@x.io", "error": "number must be numeric"}
			]}`),
		},
		{
			name:     "verbose",
			path:     "/api/users/batch-upsert?verbose=true",
			wantCode: http.StatusOK,
			wantData: []byte(`{"inserted": 1, "updated": 1, "skipped": 1, "errors": [
				{"idx": 3, "email": "Bad-Email", "error": "invalid email format"},
				{"idx": 4, "email": "c@x.io", "error": "number must be numeric"}
			], "results": [
				{"idx": 0, "email": "new@x.io", "decision": "inserted"},
				{"idx": 1, "email": "KIM@x.io", "decision": "updated", "changed": ["grade"]},
				{"idx": 2, "email": "lee@x.io", "decision": "skipped"},
				{"idx": 3, "email": "Bad-Email", "decision": "error", "reason": "invalid email format"},
				{"idx": 4, "email": "c@x.io", "decision": "error", "reason": "number must be numeric"}
			]}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setup(t)
			app.createUser(t, "Kim", "kim@x.io", user.RoleStudent)
			app.createUser(t, "Lee", "lee@x.io", user.RoleProfessor)

			req, rec := newRequest(http.MethodPost, tt.path, []byte(mixedBatch))
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)

			kim, err := app.usrRepo.GetUser(req.Context(), user.GetFilter{Email: "kim@x.io"})
			require.NoError(t, err)
			assert.Equal(t, "2", kim.Grade)
			assert.NoError(t, kim.CheckPassword("pass1234"), "passwords are not reconciled")

			inserted, err := app.usrRepo.GetUser(req.Context(), user.GetFilter{Email: "new@x.io"})
			require.NoError(t, err)
			assert.NoError(t, inserted.CheckPassword("pw1234"))

			_, err = app.usrRepo.GetUser(req.Context(), user.GetFilter{Email: "c@x.io"})
			assert.ErrorIs(t, err, user.ErrNotFound)
		})
	}
}

func Test_batchApi_upload(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Kim", "kim@x.io", user.RoleStudent)

	csv := strings.Join([]string{
		"이름,email,password,구분,학년,memo",
		"Kim,KIM@x.io,pw,학생,3,",
		"New,new@x.io,pw1234,교사,,hello",
		"Bad,,,,,",
	}, "\n")

	t.Run("csv", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/api/users/batch-upsert/upload", "users.csv", []byte(csv))
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: []byte(`{"inserted": 1, "updated": 1, "skipped": 0,
				"errors": [{"idx": 2, "row": 4, "email": "", "error": "missing required field"}],
				"warnings": ["unknown column \"memo\" ignored"]
			}`),
		}, rec)

		inserted, err := app.usrRepo.GetUser(req.Context(), user.GetFilter{Email: "new@x.io"})
		require.NoError(t, err)
		assert.Equal(t, user.RoleProfessor, inserted.Role)
		assert.Empty(t, inserted.Grade)
	})

	t.Run("unsupported format", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/api/users/batch-upsert/upload", "users.txt", []byte(csv))
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"file": "unsupported file format, expected .xlsx or .csv"}`),
		}, rec)
	})

	t.Run("header only", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/api/users/batch-upsert/upload", "users.csv", []byte("email,password\n"))
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "users must not be empty"}),
		}, rec)
	})

	t.Run("missing file", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/users/batch-upsert/upload")
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"file": "file is required"}`),
		}, rec)
	})
}

func Test_batchApi_files(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Kim", "kim@x.io", user.RoleStudent)
	app.createUser(t, "Lee", "lee@x.io", user.RoleProfessor)

	t.Run("template", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/users/batch-upsert/template")
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, sheetsvc.ContentTypeXLSX, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "user_upload_template.xlsx")

		sh, err := sheetsvc.Parse(bytes.NewReader(rec.Body.Bytes()), "template.xlsx")
		require.NoError(t, err)
		assert.Empty(t, sh.Warnings)
	})

	t.Run("export", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/users/export")
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		sh, err := sheetsvc.Parse(bytes.NewReader(rec.Body.Bytes()), "users.xlsx")
		require.NoError(t, err)
		require.Len(t, sh.Rows, 2)
		assert.Equal(t, "kim@x.io", sh.Rows[0].Candidate.Email.Value)
		assert.Equal(t, user.RoleProfessor, sh.Rows[1].Candidate.Role.Value)
	})
}

func Test_batchApi_restore(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Kim", "kim@x.io", user.RoleStudent)

	runHttpTests(t, app, []httpTest{
		{
			name:     "invalid json",
			method:   http.MethodPost,
			path:     "/api/users/restore",
			body:     []byte(`[{"name": `),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "object instead of a list",
			method:   http.MethodPost,
			path:     "/api/users/restore",
			body:     []byte(`{"name": "Park"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "empty",
			method:   http.MethodPost,
			path:     "/api/users/restore",
			body:     []byte(`[]`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "users must not be empty"}),
		},
		{
			name:     "invalid entry",
			method:   http.MethodPost,
			path:     "/api/users/restore",
			body:     []byte(`[{"id": 3, "name": "Park", "email": "park", "password": "pw", "role": "student"}]`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "email must be a valid email address"}`),
		},
		{
			name:   "duplicate emails",
			method: http.MethodPost,
			path:   "/api/users/restore",
			body: []byte(`[
				{"name": "Park", "email": "park@x.io", "password": "pw", "role": "student"},
				{"name": "Park 2", "email": "PARK@x.io", "password": "pw", "role": "student"}
			]`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: `duplicate email "park@x.io" at entries 0 and 1`}),
		},
		{
			name:     "valid",
			method:   http.MethodPost,
			path:     "/api/users/restore",
			body:     []byte(`[{"id": 10, "name": "Park", "email": "park@x.io", "password": "pw", "role": "학생"}]`),
			wantCode: http.StatusOK,
			wantData: []byte(`{"restored": 1}`),
		},
	})

	users, err := app.usrRepo.QueryUsers(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 10, users[0].ID)
	assert.Equal(t, user.RoleStudent, users[0].Role)
}
