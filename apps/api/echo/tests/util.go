package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	echoapi "github.com/visalms/lms/apps/api/echo"
	"github.com/visalms/lms/core"
	"github.com/visalms/lms/core/followup"
	"github.com/visalms/lms/core/lead"
	"github.com/visalms/lms/core/settings"
	"github.com/visalms/lms/core/user"
	logsvc "github.com/visalms/lms/services/logger"
	"github.com/visalms/lms/storage/database"
	"github.com/visalms/lms/tests"
)

type testApp struct {
	*echoapi.Server
	conf  *core.Config
	repos *database.Repositories
}

func newTestConfig() *core.Config {
	return &core.Config{
		Env:       core.EnvTest,
		AppName:   "LMS",
		TestMode:  true,
		SecretKey: "test-secret",
		Server:    core.ServerConfig{DisableReqLogs: true},
		Auth: core.AuthConfig{
			CookieName:     "auth-token",
			TokenLifetime:  7 * 24 * time.Hour,
			LoginRateLimit: 100,
			LoginRateBurst: 100,
		},
	}
}

func setup(t *testing.T, configure ...func(conf *core.Config)) *testApp {
	conf := newTestConfig()
	for _, fn := range configure {
		fn(conf)
	}

	// set up DB & repos
	repos := testutil.OpenRepositories(t)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)

	// set up server
	srv := echoapi.NewServer(&echoapi.Options{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		UserSvc:     user.NewService(repos.Users),
		LeadSvc:     lead.NewService(repos.Leads, repos.Followups),
		FollowupSvc: followup.NewService(repos.Followups, repos.Leads),
		SettingsSvc: settings.NewService(repos.Settings),
	})
	return &testApp{Server: srv, conf: conf, repos: repos}
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (app *testApp) newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: app.conf.Auth.CookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	return req, rec
}

// serve runs the request described by tt.
func (app *testApp) serve(tt httpTest) *httptest.ResponseRecorder {
	req, rec := app.newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(echoapi.NewClaims(usr, app.conf), app.conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (app *testApp) runTests(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.serve(tt))
		})
	}
}

func newCtx() context.Context {
	return context.Background()
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func errResp(t *testing.T, msg string) []byte {
	return marchallObj(t, jsonObj{"success": false, "error": msg})
}

func dataResp(t *testing.T, data interface{}, message ...string) []byte {
	resp := echoapi.DataResponse{Success: true, Data: data}
	if len(message) > 0 {
		resp.Message = message[0]
	}
	return marchallObj(t, resp)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
}

// checkCodeAndData compares the status code, and the body when tt.wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, "body: %s", rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

type jsonObj = map[string]interface{}
