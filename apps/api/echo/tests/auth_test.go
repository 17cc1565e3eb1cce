package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/visalms/lms/apps/api/echo"
	"github.com/visalms/lms/core"
	"github.com/visalms/lms/core/user"
	"github.com/visalms/lms/tests"
)

func Test_authApi_login(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.repos.Users, "admin", "admin@test.cd", "s3cr3t!!", user.RoleAdmin, true)
	testutil.CreateUser(t, app.repos.Users, "ghost", "ghost@test.cd", "s3cr3t!!", user.RoleStaff, false)

	invalidCreds := errResp(t, "Invalid credentials")
	tests := []httpTest{
		{
			name: "missing password", body: []byte(`{"username": "admin"}`),
			wantCode: http.StatusBadRequest, wantData: errResp(t, "Username and password are required"),
		},
		{
			name: "blank username", body: []byte(`{"username": "  ", "password": "s3cr3t!!"}`),
			wantCode: http.StatusBadRequest, wantData: errResp(t, "Username and password are required"),
		},
		{
			name: "unknown user", body: []byte(`{"username": "nobody", "password": "s3cr3t!!"}`),
			wantCode: http.StatusUnauthorized, wantData: invalidCreds,
		},
		{
			name: "wrong password", body: []byte(`{"username": "admin", "password": "nope!!!!"}`),
			wantCode: http.StatusUnauthorized, wantData: invalidCreds,
		},
		{
			name: "inactive user", body: []byte(`{"username": "ghost", "password": "s3cr3t!!"}`),
			wantCode: http.StatusUnauthorized, wantData: invalidCreds,
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/auth/login"
	}
	app.runTests(t, tests)

	for _, uname := range []string{"admin", "ADMIN@test.cd"} {
		t.Run("login as "+uname, func(t *testing.T) {
			rec := app.serve(httpTest{
				method: http.MethodPost,
				path:   "/api/auth/login",
				body:   []byte(`{"username": "` + uname + `", "password": "s3cr3t!!"}`),
			})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp echoapi.LoginResponse
			decode(t, rec, &resp)
			assert.Equal(t, admin.ID, resp.User.ID)
			assert.False(t, resp.User.LastLogin.IsZero(), "lastLogin must be set")

			claims := new(echoapi.Claims)
			_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(app.conf.SecretKey), nil
			})
			require.NoError(t, err)
			assert.Equal(t, admin.ID, claims.Subject)
			assert.Equal(t, user.RoleAdmin, claims.Role)
			assert.Equal(t, "LMS", claims.Issuer)

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			c := cookies[0]
			assert.Equal(t, "auth-token", c.Name)
			assert.Equal(t, resp.Token, c.Value)
			assert.True(t, c.HttpOnly)
			assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
			assert.False(t, c.Secure, "no secure cookies in TEST")
			assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), c.MaxAge)
		})
	}
}

func Test_authApi_login_rateLimited(t *testing.T) {
	app := setup(t, func(conf *core.Config) {
		conf.Auth.LoginRateLimit = 0.001
		conf.Auth.LoginRateBurst = 3
	})

	tt := httpTest{method: http.MethodPost, path: "/api/auth/login", body: []byte(`{"username": "a", "password": "b"}`)}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, app.serve(tt).Code)
	}
	tt.wantCode = http.StatusTooManyRequests
	tt.wantData = errResp(t, "Too many login attempts, please try again later")
	checkCodeAndData(t, tt, app.serve(tt))
}

func Test_authApi_login_rateLimitedIgnoresForwardedHeaders(t *testing.T) {
	app := setup(t, func(conf *core.Config) {
		conf.Auth.LoginRateLimit = 0.001
		conf.Auth.LoginRateBurst = 1
	})

	login := func(forwardedFor string) int {
		req, rec := app.newAuthRequest(http.MethodPost, "/api/auth/login", "", []byte(`{"username": "a", "password": "b"}`))
		req.Header.Set(echo.HeaderXForwardedFor, forwardedFor)
		req.Header.Set(echo.HeaderXRealIP, forwardedFor)
		app.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, login("203.0.113.1"))
	for i := 2; i < 6; i++ {
		assert.Equal(t, http.StatusTooManyRequests, login(fmt.Sprintf("203.0.113.%d", i)))
	}
}

func Test_authApi_login_rateLimitedBehindProxy(t *testing.T) {
	app := setup(t, func(conf *core.Config) {
		conf.Server.TrustProxy = true
		conf.Auth.LoginRateLimit = 0.001
		conf.Auth.LoginRateBurst = 1
	})

	login := func(forwardedFor string) int {
		req, rec := app.newAuthRequest(http.MethodPost, "/api/auth/login", "", []byte(`{"username": "a", "password": "b"}`))
		req.Header.Set(echo.HeaderXForwardedFor, forwardedFor)
		app.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, login("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, login("203.0.113.1"))
	assert.Equal(t, http.StatusUnauthorized, login("203.0.113.2"))
}

func Test_authApi_logout(t *testing.T) {
	app := setup(t)

	rec := app.serve(httpTest{method: http.MethodPost, path: "/api/auth/logout"})
	checkCodeAndData(t, httpTest{wantData: []byte(`{"message": "Logged out successfully"}`)}, rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth-token", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge) // parsed from Max-Age=0
}

func Test_authApi_me(t *testing.T) {
	app := setup(t)

	staff := testutil.CreateUser(t, app.repos.Users, "staff", "staff@test.cd", "s3cr3t!!", user.RoleStaff, true)
	ghost := testutil.CreateUser(t, app.repos.Users, "ghost", "ghost@test.cd", "s3cr3t!!", user.RoleStaff, false)

	expiredClaims := echoapi.NewClaims(staff, app.conf)
	expiredClaims.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	expired, err := echoapi.GenerateToken(expiredClaims, app.conf.SecretKey)
	require.NoError(t, err)

	forged, err := echoapi.GenerateToken(echoapi.NewClaims(staff, app.conf), "not-the-secret")
	require.NoError(t, err)

	app.runTests(t, []httpTest{
		{name: "no token", path: "/api/auth/me", wantCode: http.StatusUnauthorized, wantData: errResp(t, "No token provided")},
		{name: "garbage token", path: "/api/auth/me", token: "garbage", wantCode: http.StatusUnauthorized, wantData: errResp(t, "Invalid token")},
		{name: "expired token", path: "/api/auth/me", token: expired, wantCode: http.StatusUnauthorized, wantData: errResp(t, "Invalid token")},
		{name: "forged token", path: "/api/auth/me", token: forged, wantCode: http.StatusUnauthorized, wantData: errResp(t, "Invalid token")},
		{
			name: "inactive user", path: "/api/auth/me", token: app.getToken(t, ghost),
			wantCode: http.StatusUnauthorized, wantData: errResp(t, "User not found or inactive"),
		},
		{
			name: "unknown user", path: "/api/auth/me", token: app.getToken(t, user.User{ID: "d7c0a0c6-1b0e-4c55-9d5b-0f7a1c5f0a11", Role: user.RoleAdmin}),
			wantCode: http.StatusUnauthorized, wantData: errResp(t, "User not found or inactive"),
		},
		{
			name: "ok", path: "/api/auth/me", token: app.getToken(t, staff),
			wantData: marchallObj(t, jsonObj{"user": staff, "permissions": staff.Permissions()}),
		},
	})
}

func TestSessionMiddleware(t *testing.T) {
	app := setup(t)

	support := testutil.CreateUser(t, app.repos.Users, "support", "support@test.cd", "s3cr3t!!", user.RoleCustomerSupport, true)
	token := app.getToken(t, support)
	forbidden := errResp(t, "permission denied")

	app.runTests(t, []httpTest{
		{name: "home is public", path: "/", wantCode: http.StatusOK},
		{name: "metrics are public", path: "/metrics", wantCode: http.StatusOK},
		{name: "setup is public", path: "/api/setup", wantData: []byte(`{"setupRequired": false, "userCount": 1}`)},
		{name: "no token", path: "/api/leads", wantCode: http.StatusUnauthorized, wantData: errResp(t, "Unauthorized")},
		{name: "bad token", path: "/api/leads", token: "garbage", wantCode: http.StatusUnauthorized, wantData: errResp(t, "Unauthorized")},
		{name: "unknown api route", path: "/api/nope", wantCode: http.StatusUnauthorized, wantData: errResp(t, "Unauthorized")},
		{name: "unknown api route with session", path: "/api/nope", token: token, wantCode: http.StatusNotFound},
		{name: "pipeline granted", path: "/api/leads/pipeline", token: token},
		{name: "followups granted", path: "/api/followups", token: token},
		{name: "settings read by any session", path: "/api/settings", token: token},
		{name: "add-leads denied", method: http.MethodPost, path: "/api/leads", token: token, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "dashboard denied", path: "/api/dashboard/stats", token: token, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "settings update denied", method: http.MethodPut, path: "/api/settings", token: token, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "users denied", path: "/api/users", token: token, wantCode: http.StatusForbidden, wantData: forbidden},
	})
}
