package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visalms/lms/core/user"
	"github.com/visalms/lms/tests"
)

type userResponse struct {
	Message string    `json:"message"`
	User    user.User `json:"user"`
}

type listedUser struct {
	user.User
	CreatedBy *user.CreatorSummary `json:"createdBy,omitempty"`
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)

	now := time.Now().UTC()
	admin := testutil.CreateUser(t, app.repos.Users, "admin", "admin@test.cd", "s3cr3t!!", user.RoleAdmin, true, now.Add(-time.Hour))
	staff := testutil.CreateUser(t, app.repos.Users, "staff", "staff@test.cd", "s3cr3t!!", user.RoleStaff, true, now)
	ghost := testutil.CreateUser(t, app.repos.Users, "ghost", "ghost@test.cd", "s3cr3t!!", user.RoleStaff, false, now.Add(time.Hour))
	token := app.getToken(t, admin)

	var err error
	staff.CreatedBy = admin.ID
	staff, err = app.repos.Users.UpdateUser(newCtx(), staff)
	require.NoError(t, err)
	admin.CreatedBy = ghost.ID
	admin, err = app.repos.Users.UpdateUser(newCtx(), admin)
	require.NoError(t, err)

	app.runTests(t, []httpTest{
		{
			name: "active users, newest first, with their creator", path: "/api/users", token: token,
			wantData: marchallObj(t, jsonObj{"users": []listedUser{
				{User: staff, CreatedBy: &user.CreatorSummary{ID: admin.ID, Username: "admin"}},
				{User: admin, CreatedBy: &user.CreatorSummary{ID: ghost.ID, Username: "ghost"}},
			}}),
		},
		{name: "retrieve", path: "/api/users/" + staff.ID, token: token, wantData: marchallObj(t, jsonObj{"user": staff})},
		{name: "retrieve (not found)", path: "/api/users/" + missingID, token: token, wantCode: http.StatusNotFound, wantData: errResp(t, "User not found")},
		{name: "roles", path: "/api/users/roles", token: token, wantData: marchallObj(t, jsonObj{"roles": user.Roles})},
		{
			name: "staff cannot manage users", path: "/api/users", token: app.getToken(t, staff),
			wantCode: http.StatusForbidden, wantData: errResp(t, "permission denied"),
		},
	})
}

func Test_userApi_create(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.repos.Users, "admin", "admin@test.cd", "s3cr3t!!", user.RoleAdmin, true)
	subAdmin := testutil.CreateUser(t, app.repos.Users, "subadmin", "subadmin@test.cd", "s3cr3t!!", user.RoleSubAdmin, true)
	token := app.getToken(t, admin)

	t.Run("ok", func(t *testing.T) {
		rec := app.serve(httpTest{
			method: http.MethodPost, path: "/api/users", token: token,
			body: []byte(`{"username": "NewStaff", "email": "new@test.cd", "password": "lubumbashi", "role": "staff"}`),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp userResponse
		decode(t, rec, &resp)
		usr := resp.User
		assert.Equal(t, "newstaff", usr.Username)
		assert.Equal(t, user.RoleStaff, usr.Role)
		assert.True(t, usr.IsActive)
		assert.Equal(t, admin.ID, usr.CreatedBy)
		assert.NotContains(t, rec.Body.String(), "password")
	})

	tests := []struct {
		name      string
		token     string
		body      string
		wantField string
		wantError string
	}{
		{
			name: "duplicate", token: token,
			body:      `{"username": "admin", "email": "other@test.cd", "password": "lubumbashi", "role": "staff"}`,
			wantError: "User with this email or username already exists",
		},
		{
			name: "invalid role", token: token,
			body:      `{"username": "someone", "email": "someone@test.cd", "password": "lubumbashi", "role": "king"}`,
			wantField: "role", wantError: "Please select a valid role",
		},
		{
			name: "password too similar", token: token,
			body:      `{"username": "someone", "email": "someone@test.cd", "password": "someone1", "role": "staff"}`,
			wantField: "password", wantError: "password cannot be similar to the username or email",
		},
		{
			name: "role above the actor's", token: app.getToken(t, subAdmin),
			body:      `{"username": "boss", "email": "boss@test.cd", "password": "lubumbashi", "role": "admin"}`,
			wantField: "role", wantError: "not enough rights to set this role",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.serve(httpTest{method: http.MethodPost, path: "/api/users", token: tt.token, body: []byte(tt.body)})
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var resp errorResponse
			decode(t, rec, &resp)
			if tt.wantField == "" {
				assert.Equal(t, tt.wantError, resp.Error)
				return
			}
			assert.Equal(t, tt.wantError, resp.Fields[tt.wantField])
		})
	}
}

func Test_userApi_updateAndDestroy(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.repos.Users, "admin", "admin@test.cd", "s3cr3t!!", user.RoleAdmin, true)
	manager := testutil.CreateUser(t, app.repos.Users, "manager", "manager@test.cd", "s3cr3t!!", user.RoleManager, true)
	staff := testutil.CreateUser(t, app.repos.Users, "staff", "staff@test.cd", "s3cr3t!!", user.RoleStaff, true)
	token := app.getToken(t, admin)

	t.Run("update", func(t *testing.T) {
		rec := app.serve(httpTest{
			method: http.MethodPut, path: "/api/users/" + staff.ID, token: token,
			body: []byte(`{"email": "Staff.New@test.cd", "role": "manager"}`),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp userResponse
		decode(t, rec, &resp)
		assert.Equal(t, "staff", resp.User.Username, "blank fields keep their value")
		assert.Equal(t, "staff.new@test.cd", resp.User.Email)
		assert.Equal(t, user.RoleManager, resp.User.Role)
	})

	app.runTests(t, []httpTest{
		{
			name: "update (taken username)", method: http.MethodPut, path: "/api/users/" + staff.ID, token: token,
			body: []byte(`{"username": "manager"}`), wantCode: http.StatusBadRequest,
			wantData: errResp(t, "User with this email or username already exists"),
		},
		{
			name: "self deactivation", method: http.MethodPut, path: "/api/users/" + admin.ID, token: token,
			body: []byte(`{"isActive": false}`), wantCode: http.StatusForbidden, wantData: errResp(t, "permission denied"),
		},
		{
			name: "self delete", method: http.MethodDelete, path: "/api/users/" + admin.ID, token: token,
			wantCode: http.StatusForbidden, wantData: errResp(t, "permission denied"),
		},
		{
			name: "delete (not found)", method: http.MethodDelete, path: "/api/users/" + missingID, token: token,
			wantCode: http.StatusNotFound, wantData: errResp(t, "User not found"),
		},
	})

	t.Run("delete is a soft delete", func(t *testing.T) {
		rec := app.serve(httpTest{method: http.MethodDelete, path: "/api/users/" + manager.ID, token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp userResponse
		decode(t, rec, &resp)
		assert.Equal(t, "User deleted successfully", resp.Message)
		assert.False(t, resp.User.IsActive)

		stored, err := app.repos.Users.GetUser(newCtx(), user.GetFilter{ID: manager.ID})
		require.NoError(t, err)
		assert.False(t, stored.IsActive)

		// the deactivated user's session is rejected
		checkCodeAndData(t,
			httpTest{wantCode: http.StatusUnauthorized, wantData: errResp(t, "User not found or inactive")},
			app.serve(httpTest{path: "/api/leads", token: app.getToken(t, manager)}),
		)
	})
}
