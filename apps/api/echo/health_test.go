package echoapi_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soptable/portal/testutil"
)

func Test_healthApi(t *testing.T) {
	t.Run("no database", func(t *testing.T) {
		app := setup(t)
		req, rec := newRequest(http.MethodGet, "/api/test-db")
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusServiceUnavailable,
			wantData: marchallObj(t, httpErr{Error: "no database configured"}),
		}, rec)
	})

	t.Run("database up", func(t *testing.T) {
		app := setup(t, testutil.OpenDB(t))
		req, rec := newRequest(http.MethodGet, "/api/test-db")
		app.serve(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	})
}

func Test_metrics(t *testing.T) {
	app := setup(t)

	req, rec := newRequest(http.MethodPost, "/api/users/batch-upsert",
		[]byte(`{"users": [{"email": "a@x.io", "password": "pw", "name": "A", "role": "student"}]}`))
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)

	req, rec = newRequest(http.MethodGet, "/metrics")
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `soptable_batch_upsert_outcomes_total{decision="inserted"} 1`)
	assert.True(t, strings.Contains(body, "soptable_batch_upsert_duration_seconds"))
}
