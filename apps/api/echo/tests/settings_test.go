package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visalms/lms/core/settings"
	"github.com/visalms/lms/core/user"
	"github.com/visalms/lms/tests"
)

type settingsResponse struct {
	Success bool              `json:"success"`
	Data    settings.Settings `json:"data"`
}

func Test_settingsApi(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.repos.Users, "admin", "admin@test.cd", "s3cr3t!!", user.RoleAdmin, true)
	staff := testutil.CreateUser(t, app.repos.Users, "staff", "staff@test.cd", "s3cr3t!!", user.RoleStaff, true)
	adminToken := app.getToken(t, admin)

	var created settings.Settings
	t.Run("defaults are created on first read", func(t *testing.T) {
		rec := app.serve(httpTest{path: "/api/settings", token: app.getToken(t, staff)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp settingsResponse
		decode(t, rec, &resp)
		created = resp.Data
		assert.True(t, created.NotificationPreferences.EmailNotifications)
		assert.False(t, created.Appearance.DarkMode)
		assert.Empty(t, created.CompanyName)
		assert.False(t, created.CreatedAt.IsZero())

		_, err := app.repos.Settings.GetSettings(newCtx())
		assert.NoError(t, err, "defaults must be persisted")
	})

	t.Run("update", func(t *testing.T) {
		rec := app.serve(httpTest{
			method: http.MethodPut, path: "/api/settings", token: adminToken,
			body: []byte(`{
				"companyName": " Visa Co ", "contactEmail": "Hello@VisaCo.cd", "phone": "+243",
				"notificationPreferences": {"emailNotifications": false, "notificationEmail": "alerts@visaco.cd"},
				"appearance": {"darkMode": true}
			}`),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp settingsResponse
		decode(t, rec, &resp)
		s := resp.Data
		assert.Equal(t, "Visa Co", s.CompanyName)
		assert.Equal(t, "hello@visaco.cd", s.ContactEmail)
		assert.False(t, s.NotificationPreferences.EmailNotifications)
		assert.Equal(t, "alerts@visaco.cd", s.NotificationPreferences.NotificationEmail)
		assert.True(t, s.Appearance.DarkMode)
		assert.True(t, created.CreatedAt.Equal(s.CreatedAt), "createdAt must be kept")
	})

	t.Run("missing booleans take their defaults", func(t *testing.T) {
		rec := app.serve(httpTest{method: http.MethodPut, path: "/api/settings", token: adminToken, body: []byte(`{"companyName": "Visa Co"}`)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp settingsResponse
		decode(t, rec, &resp)
		assert.True(t, resp.Data.NotificationPreferences.EmailNotifications)
		assert.False(t, resp.Data.Appearance.DarkMode)
		assert.Empty(t, resp.Data.ContactEmail)
	})

	t.Run("invalid email", func(t *testing.T) {
		rec := app.serve(httpTest{method: http.MethodPut, path: "/api/settings", token: adminToken, body: []byte(`{"contactEmail": "nope"}`)})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorResponse
		decode(t, rec, &resp)
		assert.Equal(t, "Please enter a valid email address", resp.Fields["contactEmail"])
	})
}
