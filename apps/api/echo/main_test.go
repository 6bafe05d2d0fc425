package echoapi_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	. "github.com/soptable/portal/apps/api/echo"
	"github.com/soptable/portal/core"
	"github.com/soptable/portal/core/reconcile"
	"github.com/soptable/portal/core/settings"
	"github.com/soptable/portal/core/user"
	logsvc "github.com/soptable/portal/services/logger"
	inmemdb "github.com/soptable/portal/storage/database/inmem"
	"github.com/soptable/portal/testutil"
)

const testMaxRows = 5

type testApp struct {
	server  *Server
	usrRepo user.Repository
}

func setup(t *testing.T, db ...core.DB) *testApp {
	t.Helper()
	testutil.FastPasswords()

	conf := &core.Config{AppName: "SopTable", Env: "test", TestMode: true}
	conf.Batch.MaxRows = testMaxRows

	store := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(store)
	usrSvc := user.NewService(usrRepo)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	reg := prometheus.NewRegistry()
	engine := reconcile.NewEngine(usrSvc, reconcile.WithLogger(logger), reconcile.WithMetrics(reconcile.NewMetrics(reg)))

	deps := ServerDeps{
		Conf:        conf,
		Logger:      logger,
		UserSvc:     usrSvc,
		SettingsSvc: settings.NewService(inmemdb.NewSettingsRepository(store)),
		Engine:      engine,
		Validate:    validate,
		Translator:  translator,
		Gatherer:    reg,
	}
	if len(db) > 0 {
		deps.DB = db[0]
	}
	return &testApp{server: NewServer(deps), usrRepo: usrRepo}
}

func (app *testApp) createUser(t *testing.T, name, email, role string) user.User {
	return testutil.CreateUser(t, app.usrRepo, name, email, "pass1234", role)
}

func (app *testApp) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	app.server.ServeHTTP(rec, req)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func newUploadRequest(t *testing.T, path, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("newUploadRequest(): %v", err)
	}
	_, _ = part.Write(content)
	if err = w.Close(); err != nil {
		t.Fatalf("newUploadRequest(): %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, httptest.NewRecorder()
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHttpTests(t *testing.T, app *testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func itoa(i int) string { return strconv.Itoa(i) }
