package echoapi_test

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soptable/portal/core/user"
)

func Test_userApi_create(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Lee", "lee@x.io", user.RoleProfessor)

	runHttpTests(t, app, []httpTest{
		{
			name:     "invalid data",
			method:   http.MethodPost,
			path:     "/api/users",
			body:     []byte(`{"name":" ","email":"bad","password":"x","role":"boss"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"name": "this field is required",
				"email": "email must be a valid email address",
				"password": "password must contain at least 4 characters",
				"role": "role must be one of student, professor, admin, subadmin"
			}`),
		},
		{
			name:     "password too similar",
			method:   http.MethodPost,
			path:     "/api/users",
			body:     []byte(`{"name":"Kim","email":"minji@x.io","password":"minji1","role":"student"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"password": "password cannot be similar to user attributes"}`),
		},
		{
			name:     "duplicate email",
			method:   http.MethodPost,
			path:     "/api/users",
			body:     []byte(`{"name":"Lee 2","email":" LEE@x.io","password":"secret99","role":"student"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "a user with this email already exists"}`),
		},
	})

	t.Run("valid data", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/users",
			[]byte(`{"name":"Kim","email":"Kim@X.io","password":"secret99","role":"학생","grade":"2","number":"07"}`))
		app.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.NotZero(t, got.ID)
		assert.Equal(t, "kim@x.io", got.Email)
		assert.Equal(t, user.RoleStudent, got.Role)
		assert.Equal(t, "07", got.Number)
		assert.NotContains(t, rec.Body.String(), "password")

		stored, err := app.usrRepo.GetUser(req.Context(), user.GetFilter{ID: got.ID})
		require.NoError(t, err)
		assert.NoError(t, stored.CheckPassword("secret99"))
	})
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Kim", "kim@x.io", user.RoleAdmin)

	runHttpTests(t, app, []httpTest{
		{
			name:     "missing password",
			method:   http.MethodPost,
			path:     "/api/login",
			body:     []byte(`{"email":"kim@x.io"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"password": "this field is required"}`),
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/api/login",
			body:     []byte(`{"email":"kim@x.io","password":"nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name:     "unknown email",
			method:   http.MethodPost,
			path:     "/api/login",
			body:     []byte(`{"email":"who@x.io","password":"pass1234"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name:     "valid credentials",
			method:   http.MethodPost,
			path:     "/api/login",
			body:     []byte(`{"email":" KIM@x.io ","password":"pass1234"}`),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, usr),
		},
	})
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)
	kim := app.createUser(t, "Kim Minji", "kim@x.io", user.RoleStudent)
	lee := app.createUser(t, "Lee", "lee@x.io", user.RoleProfessor)
	park := app.createUser(t, "Park", "park@x.io", user.RoleStudent)

	path := func(v url.Values) string { return "/api/users?" + v.Encode() }

	runHttpTests(t, app, []httpTest{
		{
			name:     "ordering by name",
			method:   http.MethodGet,
			path:     path(url.Values{"ordering": {"name"}}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []user.User{kim, lee, park}),
		},
		{
			name:     "search",
			method:   http.MethodGet,
			path:     path(url.Values{"search": {"MINJI"}}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []user.User{kim}),
		},
		{
			name:     "roles",
			method:   http.MethodGet,
			path:     path(url.Values{"role": {user.RoleStudent}, "ordering": {"-name"}}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []user.User{park, kim}),
		},
		{
			name:     "no match",
			method:   http.MethodGet,
			path:     path(url.Values{"search": {"nobody"}}),
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
		{
			name:     "roles list",
			method:   http.MethodGet,
			path:     "/api/users/roles",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, user.Roles),
		},
	})
}

func Test_userApi_detail(t *testing.T) {
	app := setup(t)
	kim := app.createUser(t, "Kim", "kim@x.io", user.RoleStudent)
	lee := app.createUser(t, "Lee", "lee@x.io", user.RoleStudent)

	notFound := marchallObj(t, httpErr{Error: "not found"})
	runHttpTests(t, app, []httpTest{
		{name: "retrieve", method: http.MethodGet, path: "/api/users/" + itoa(kim.ID), wantCode: http.StatusOK, wantData: marchallObj(t, kim)},
		{name: "unknown id", method: http.MethodGet, path: "/api/users/999", wantCode: http.StatusNotFound, wantData: notFound},
		{name: "malformed id", method: http.MethodGet, path: "/api/users/abc", wantCode: http.StatusNotFound, wantData: notFound},
		{
			name:     "update to a taken email",
			method:   http.MethodPut,
			path:     "/api/users/" + itoa(lee.ID),
			body:     []byte(`{"email":"kim@x.io"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "a user with this email already exists"}`),
		},
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newRequest(http.MethodPut, "/api/users/"+itoa(kim.ID), []byte(`{"name":"Kim Minji","grade":"3","password":"newpass9"}`))
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		stored, err := app.usrRepo.GetUser(req.Context(), user.GetFilter{ID: kim.ID})
		require.NoError(t, err)
		assert.Equal(t, "Kim Minji", stored.Name)
		assert.Equal(t, "3", stored.Grade)
		assert.Equal(t, "kim@x.io", stored.Email, "absent fields are kept")
		assert.NoError(t, stored.CheckPassword("newpass9"))
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newRequest(http.MethodDelete, "/api/users/"+itoa(kim.ID))
		app.serve(req, rec)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newRequest(http.MethodDelete, "/api/users?id="+itoa(lee.ID)+"&id=999")
		app.serve(req, rec)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		users, err := app.usrRepo.QueryUsers(req.Context(), nil, nil)
		require.NoError(t, err)
		assert.Empty(t, users)
	})
}
