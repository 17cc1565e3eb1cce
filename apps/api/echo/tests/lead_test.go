package tests

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visalms/lms/core/followup"
	"github.com/visalms/lms/core/lead"
	"github.com/visalms/lms/core/user"
	"github.com/visalms/lms/tests"
)

const missingID = "5b0f6c1e-8d3a-4f55-9a43-2c1d3e4f5a6b"

type leadResponse struct {
	Success bool      `json:"success"`
	Data    lead.Lead `json:"data"`
}

type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

func Test_leadApi_create(t *testing.T) {
	app := setup(t)

	staff := testutil.CreateUser(t, app.repos.Users, "staff", "staff@test.cd", "s3cr3t!!", user.RoleStaff, true)
	token := app.getToken(t, staff)
	testutil.CreateLead(t, app.repos.Leads, "Taken", "taken@test.cd", lead.StatusNew)

	t.Run("ok", func(t *testing.T) {
		rec := app.serve(httpTest{
			method: http.MethodPost, path: "/api/leads", token: token,
			body: []byte(`{
				"name": "  Jane Doe ", "email": "Jane@Test.cd", "phone": "+243 810 000 001",
				"visaType": "Student", "destinationCountry": "Canada", "city": "Kinshasa",
				"status": "Converted", "notes": "prefers mornings"
			}`),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp leadResponse
		decode(t, rec, &resp)
		assert.True(t, resp.Success)
		l := resp.Data
		assert.NotEmpty(t, l.ID)
		assert.Equal(t, "Jane Doe", l.Name)
		assert.Equal(t, "jane@test.cd", l.Email)
		assert.Equal(t, "Kinshasa", l.City)
		assert.Equal(t, lead.StatusNew, l.Status, "new leads always start as New")
		assert.Equal(t, "prefers mornings", l.Notes)

		stored, err := app.repos.Leads.GetLead(newCtx(), l.ID)
		require.NoError(t, err)
		assert.Equal(t, l.Email, stored.Email)
	})

	t.Run("duplicate email", func(t *testing.T) {
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: errResp(t, "Email already exists")}, app.serve(httpTest{
			method: http.MethodPost, path: "/api/leads", token: token,
			body: []byte(`{"name": "Dup", "email": "TAKEN@test.cd", "phone": "1", "visaType": "Work", "destinationCountry": "France"}`),
		}))
	})

	t.Run("validation", func(t *testing.T) {
		rec := app.serve(httpTest{
			method: http.MethodPost, path: "/api/leads", token: token,
			body: []byte(`{"email": "not-an-email", "phone": "1", "visaType": "Space", "destinationCountry": "France"}`),
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorResponse
		decode(t, rec, &resp)
		assert.False(t, resp.Success)
		assert.Equal(t, "name: this field is required", resp.Error)
		assert.Equal(t, "this field is required", resp.Fields["name"])
		assert.Equal(t, "Please enter a valid email address", resp.Fields["email"])
		assert.Contains(t, resp.Fields, "visaType")
	})

	t.Run("invalid body", func(t *testing.T) {
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: errResp(t, "Invalid request body")}, app.serve(httpTest{
			method: http.MethodPost, path: "/api/leads", token: token, body: []byte(`{"name": `),
		}))
	})
}

func Test_leadApi_query(t *testing.T) {
	app := setup(t)

	support := testutil.CreateUser(t, app.repos.Users, "support", "support@test.cd", "s3cr3t!!", user.RoleCustomerSupport, true)
	token := app.getToken(t, support)

	now := time.Now().UTC()
	jane := testutil.CreateLead(t, app.repos.Leads, "Jane Doe", "jane@test.cd", lead.StatusNew, now.Add(-2*time.Hour))
	john := testutil.CreateLead(t, app.repos.Leads, "John Roe", "john@test.cd", lead.StatusContacted, now.Add(-time.Hour))
	zed := testutil.CreateLead(t, app.repos.Leads, "Zed", "zed@test.cd", lead.StatusConverted, now)

	path := func(params ...string) string {
		v := make(url.Values)
		for i := 0; i+1 < len(params); i += 2 {
			v.Add(params[i], params[i+1])
		}
		return "/api/leads?" + v.Encode()
	}
	empty := dataResp(t, []lead.Lead{})

	tests := []httpTest{
		{name: "all, newest first", path: "/api/leads", wantData: dataResp(t, []lead.Lead{zed, john, jane})},
		{name: "search (unknown)", path: path("search", "lol"), wantData: empty},
		{name: "search name", path: path("search", "ROE"), wantData: dataResp(t, []lead.Lead{john})},
		{name: "search email", path: path("search", "zed@"), wantData: dataResp(t, []lead.Lead{zed})},
		{name: "status", path: path("status", lead.StatusNew), wantData: dataResp(t, []lead.Lead{jane})},
		{name: "status=all", path: path("status", "all"), wantData: dataResp(t, []lead.Lead{zed, john, jane})},
		{name: "visa_type", path: path("visa_type", lead.VisaWork), wantData: empty},
		{name: "country", path: path("country", "Canada"), wantData: dataResp(t, []lead.Lead{zed, john, jane})},
		{name: "ordering", path: path("ordering", "name"), wantData: dataResp(t, []lead.Lead{jane, john, zed})},
		{name: "ordering desc", path: path("ordering", "-name"), wantData: dataResp(t, []lead.Lead{zed, john, jane})},
		{name: "invalid ordering", path: path("ordering", "password"), wantCode: http.StatusBadRequest},
	}
	for i := range tests {
		tests[i].token = token
	}
	app.runTests(t, tests)
}

func Test_leadApi_retrieve(t *testing.T) {
	app := setup(t)

	staff := testutil.CreateUser(t, app.repos.Users, "staff", "staff@test.cd", "s3cr3t!!", user.RoleStaff, true)
	token := app.getToken(t, staff)
	jane := testutil.CreateLead(t, app.repos.Leads, "Jane Doe", "jane@test.cd", lead.StatusNew)

	app.runTests(t, []httpTest{
		{name: "invalid id", path: "/api/leads/123", token: token, wantCode: http.StatusBadRequest, wantData: errResp(t, "Invalid lead ID")},
		{name: "not found", path: "/api/leads/" + missingID, token: token, wantCode: http.StatusNotFound, wantData: errResp(t, "Lead not found")},
		{name: "ok", path: "/api/leads/" + jane.ID, token: token, wantData: dataResp(t, jane)},
	})
}

func Test_leadApi_update(t *testing.T) {
	app := setup(t)

	staff := testutil.CreateUser(t, app.repos.Users, "staff", "staff@test.cd", "s3cr3t!!", user.RoleStaff, true)
	token := app.getToken(t, staff)
	jane := testutil.CreateLead(t, app.repos.Leads, "Jane Doe", "jane@test.cd", lead.StatusNew)
	testutil.CreateLead(t, app.repos.Leads, "John Roe", "john@test.cd", lead.StatusNew)

	update := func(t *testing.T, id string, body string) *leadResponse {
		rec := app.serve(httpTest{method: http.MethodPut, path: "/api/leads/" + id, token: token, body: []byte(body)})
		if rec.Code != http.StatusOK {
			return nil
		}
		var resp leadResponse
		decode(t, rec, &resp)
		return &resp
	}

	t.Run("status only", func(t *testing.T) {
		resp := update(t, jane.ID, `{"status": "Interested"}`)
		require.NotNil(t, resp)
		assert.Equal(t, lead.StatusInterested, resp.Data.Status)
		assert.Equal(t, jane.Name, resp.Data.Name)
		assert.True(t, resp.Data.UpdatedAt.After(jane.UpdatedAt) || resp.Data.UpdatedAt.Equal(jane.UpdatedAt))
	})

	t.Run("invalid status", func(t *testing.T) {
		rec := app.serve(httpTest{method: http.MethodPut, path: "/api/leads/" + jane.ID, token: token, body: []byte(`{"status": "Won"}`)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("full update requires the lead fields", func(t *testing.T) {
		rec := app.serve(httpTest{
			method: http.MethodPut, path: "/api/leads/" + jane.ID, token: token,
			body: []byte(`{"status": "Lost", "notes": "gone"}`),
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errorResponse
		decode(t, rec, &resp)
		assert.Contains(t, resp.Fields, "name")
		assert.Contains(t, resp.Fields, "email")
	})

	t.Run("full update", func(t *testing.T) {
		resp := update(t, jane.ID, `{
			"name": "Jane D.", "email": "JANE.D@test.cd", "phone": "+1 555", "visaType": "Work",
			"destinationCountry": "Germany", "status": "Contacted"
		}`)
		require.NotNil(t, resp)
		l := resp.Data
		assert.Equal(t, "Jane D.", l.Name)
		assert.Equal(t, "jane.d@test.cd", l.Email)
		assert.Equal(t, lead.VisaWork, l.VisaType)
		assert.Equal(t, "Germany", l.DestinationCountry)
		assert.Equal(t, lead.StatusContacted, l.Status)
	})

	app.runTests(t, []httpTest{
		{
			name: "email taken", method: http.MethodPut, path: "/api/leads/" + jane.ID, token: token,
			body:     []byte(`{"name": "Jane", "email": "john@test.cd", "phone": "1", "visaType": "Work", "destinationCountry": "Germany"}`),
			wantCode: http.StatusConflict, wantData: errResp(t, "Email already exists"),
		},
		{
			name: "invalid id", method: http.MethodPut, path: "/api/leads/nope", token: token, body: []byte(`{"status": "Lost"}`),
			wantCode: http.StatusBadRequest, wantData: errResp(t, "Invalid lead ID"),
		},
		{
			name: "not found", method: http.MethodPut, path: "/api/leads/" + missingID, token: token, body: []byte(`{"status": "Lost"}`),
			wantCode: http.StatusNotFound, wantData: errResp(t, "Lead not found"),
		},
	})
}

func Test_leadApi_destroy(t *testing.T) {
	app := setup(t)

	staff := testutil.CreateUser(t, app.repos.Users, "staff", "staff@test.cd", "s3cr3t!!", user.RoleStaff, true)
	support := testutil.CreateUser(t, app.repos.Users, "support", "support@test.cd", "s3cr3t!!", user.RoleCustomerSupport, true)
	token := app.getToken(t, staff)

	now := time.Now().UTC()
	jane := testutil.CreateLead(t, app.repos.Leads, "Jane Doe", "jane@test.cd", lead.StatusNew)
	john := testutil.CreateLead(t, app.repos.Leads, "John Roe", "john@test.cd", lead.StatusNew)
	testutil.CreateFollowup(t, app.repos.Followups, jane.ID, "Call", lead.StatusNew, now)
	testutil.CreateFollowup(t, app.repos.Followups, jane.ID, "Email", lead.StatusNew, now.Add(time.Hour))
	kept := testutil.CreateFollowup(t, app.repos.Followups, john.ID, "Visit", lead.StatusNew, now)

	app.runTests(t, []httpTest{
		{
			name: "permission denied", method: http.MethodDelete, path: "/api/leads/" + jane.ID, token: app.getToken(t, support),
			wantCode: http.StatusForbidden, wantData: errResp(t, "permission denied"),
		},
		{
			name: "ok", method: http.MethodDelete, path: "/api/leads/" + jane.ID, token: token,
			wantData: dataResp(t, lead.DeleteResult{ID: jane.ID, Name: jane.Name, DeletedFollowups: 2}, "Lead and associated followups deleted successfully"),
		},
		{
			name: "already deleted", method: http.MethodDelete, path: "/api/leads/" + jane.ID, token: token,
			wantCode: http.StatusNotFound, wantData: errResp(t, "Lead not found"),
		},
	})

	followups, err := app.repos.Followups.QueryFollowups(newCtx(), followup.QueryFilter{})
	require.NoError(t, err)
	if assert.Len(t, followups, 1) {
		assert.Equal(t, kept.ID, followups[0].ID)
	}
}

func Test_leadApi_pipelineAndStats(t *testing.T) {
	app := setup(t)

	manager := testutil.CreateUser(t, app.repos.Users, "manager", "manager@test.cd", "s3cr3t!!", user.RoleManager, true)
	token := app.getToken(t, manager)

	now := time.Now().UTC()
	jane := testutil.CreateLead(t, app.repos.Leads, "Jane", "jane@test.cd", lead.StatusNew, now.Add(-time.Hour))
	john := testutil.CreateLead(t, app.repos.Leads, "John", "john@test.cd", lead.StatusConverted, now)
	old := testutil.CreateLead(t, app.repos.Leads, "Old", "old@test.cd", lead.StatusNew, now.AddDate(0, 0, -45))
	testutil.CreateFollowup(t, app.repos.Followups, jane.ID, "Call", lead.StatusNew, now)

	t.Run("pipeline", func(t *testing.T) {
		want := []lead.PipelineStage{
			{Status: lead.StatusNew, Count: 2, Leads: []lead.Lead{jane, old}},
			{Status: lead.StatusContacted, Count: 0, Leads: []lead.Lead{}},
			{Status: lead.StatusInterested, Count: 0, Leads: []lead.Lead{}},
			{Status: lead.StatusConverted, Count: 1, Leads: []lead.Lead{john}},
			{Status: lead.StatusLost, Count: 0, Leads: []lead.Lead{}},
		}
		checkCodeAndData(t, httpTest{wantData: dataResp(t, want)}, app.serve(httpTest{path: "/api/leads/pipeline", token: token}))
	})

	t.Run("stats", func(t *testing.T) {
		rec := app.serve(httpTest{path: "/api/dashboard/stats", token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Data lead.Stats `json:"data"`
		}
		decode(t, rec, &resp)
		stats := resp.Data
		assert.Equal(t, 3, stats.TotalLeads)
		assert.Equal(t, 1, stats.TotalFollowups)
		assert.Equal(t, 2, stats.RecentLeads)
		assert.Equal(t, 1, stats.ConvertedLeads)
		assert.Equal(t, 33, stats.ConversionRate)
		assert.Equal(t, []lead.StatusCount{
			{Status: lead.StatusNew, Count: 2},
			{Status: lead.StatusConverted, Count: 1},
		}, stats.StatusDistribution)
		assert.Len(t, stats.ChartData, 6)
	})
}
