package echoapi_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soptable/portal/core/settings"
)

func Test_settingsApi_roleMenu(t *testing.T) {
	app := setup(t)
	defaults, err := settings.DefaultRoleMenu()
	require.NoError(t, err)

	saved := settings.RoleMenu{"student": {"excel": {"upload": true, "download": false}}}

	runHttpTests(t, app, []httpTest{
		{
			name:     "defaults",
			method:   http.MethodGet,
			path:     "/api/role-menu",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, defaults),
		},
		{
			name:     "empty matrix",
			method:   http.MethodPost,
			path:     "/api/role-menu",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "role menu must not be empty"}),
		},
		{
			name:     "save",
			method:   http.MethodPost,
			path:     "/api/role-menu",
			body:     marchallObj(t, saved),
			wantCode: http.StatusOK,
			wantData: []byte(`{"changes": [
				{"role": "student", "menu": "excel", "key": "upload", "before": false, "after": true}
			]}`),
		},
		{
			name:     "saved matrix",
			method:   http.MethodGet,
			path:     "/api/role-menu",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, saved),
		},
		{
			name:     "save unchanged",
			method:   http.MethodPost,
			path:     "/api/role-menu",
			body:     marchallObj(t, saved),
			wantCode: http.StatusOK,
			wantData: []byte(`{"changes": []}`),
		},
	})

	t.Run("log", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/role-menu/log?limit=10")
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var entries []settings.LogEntry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, []settings.Change{{Role: "student", Menu: "excel", Key: "upload", After: true}}, entries[0].Changes)
	})
}

func Test_settingsApi_titles(t *testing.T) {
	app := setup(t)

	runHttpTests(t, app, []httpTest{
		{
			name:     "default",
			method:   http.MethodGet,
			path:     "/api/plan-title",
			wantCode: http.StatusOK,
			wantData: []byte(`{"title": "수업 계획표"}`),
		},
		{
			name:     "markup is stripped",
			method:   http.MethodPost,
			path:     "/api/survey-title",
			body:     []byte(`{"title": " <b>Spring</b> survey "}`),
			wantCode: http.StatusOK,
			wantData: []byte(`{"title": "Spring survey"}`),
		},
		{
			name:     "renamed",
			method:   http.MethodGet,
			path:     "/api/survey-title",
			wantCode: http.StatusOK,
			wantData: []byte(`{"title": "Spring survey"}`),
		},
		{
			name:     "empty title",
			method:   http.MethodPost,
			path:     "/api/timetable-title",
			body:     []byte(`{"title": "<script>alert(1)</script>"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title": "this field is required"}`),
		},
		{
			name:     "unknown page",
			method:   http.MethodGet,
			path:     "/api/menu-title",
			wantCode: http.StatusNotFound,
		},
	})
}
