package boltrepos

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visalms/lms/core"
	"github.com/visalms/lms/core/followup"
	"github.com/visalms/lms/core/lead"
	"github.com/visalms/lms/core/settings"
	"github.com/visalms/lms/core/user"
)

func newTestClient(t *testing.T) *Client {
	c := NewClient(filepath.Join(t.TempDir(), "lms-test.db"))
	require.NoError(t, c.Open(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func createLead(t *testing.T, c *Client, name, email, status string, createdAt time.Time) lead.Lead {
	l, err := c.LeadsRepo.CreateLead(context.Background(), lead.Lead{
		Name:               name,
		Email:              email,
		Phone:              "+243 81 000",
		VisaType:           lead.VisaStudent,
		DestinationCountry: "Canada",
		Status:             status,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	})
	require.NoError(t, err)
	return l
}

func createFollowup(t *testing.T, c *Client, leadID string, next time.Time) followup.Followup {
	f, err := c.FollowupsRepo.CreateFollowup(context.Background(), followup.Followup{
		LeadID:              leadID,
		Title:               "Call",
		NextFollowupDate:    next,
		CommunicationMethod: "Phone",
		Priority:            followup.PriorityLow,
		Status:              lead.StatusNew,
	})
	require.NoError(t, err)
	return f
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	repo := c.UsersRepo

	now := time.Now().UTC()
	usr := user.User{Username: "awe", Email: "awe@test.cd", Role: user.RoleStaff, IsActive: true, CreatedAt: now}
	require.NoError(t, usr.SetPassword("s3cr3t!!"))
	usr, err := repo.CreateFirstUser(ctx, usr)
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)

	_, err = repo.CreateFirstUser(ctx, user.User{Username: "second", Email: "second@test.cd"})
	assert.Equal(t, user.ErrSetupDone, err)

	_, err = repo.CreateUser(ctx, user.User{Username: "other", Email: "awe@test.cd"})
	assert.Equal(t, user.ErrUserExists, err)
	assert.Equal(t, user.ErrUserExists, repo.CheckUniqueness(ctx, "awe", "new@test.cd"))
	assert.NoError(t, repo.CheckUniqueness(ctx, "awe", "awe@test.cd", usr))

	got, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "awe@test.cd"})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.NoError(t, got.CheckPassword("s3cr3t!!"), "password hash must be persisted")

	// rename: the old username is released
	got.Username = "awesome"
	_, err = repo.UpdateUser(ctx, got)
	require.NoError(t, err)
	_, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "awe"})
	assert.Equal(t, user.ErrNotFound, err)
	_, err = repo.CreateUser(ctx, user.User{Username: "awe", Email: "awe2@test.cd", IsActive: true, CreatedAt: now.Add(time.Hour)})
	assert.NoError(t, err)

	got.IsActive = false
	_, err = repo.UpdateUser(ctx, got)
	require.NoError(t, err)

	active := true
	users, err := repo.QueryUsers(ctx, user.QueryFilter{IsActive: &active})
	require.NoError(t, err)
	if assert.Len(t, users, 1) {
		assert.Equal(t, "awe", users[0].Username)
	}

	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = repo.GetUser(ctx, user.GetFilter{ID: "nope"})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestLeadRepository(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	repo := c.LeadsRepo

	now := time.Now().UTC()
	jane := createLead(t, c, "Jane Doe", "jane@test.cd", lead.StatusNew, now.Add(-2*time.Hour))
	john := createLead(t, c, "John Roe", "john@test.cd", lead.StatusContacted, now.Add(-time.Hour))
	zed := createLead(t, c, "Zed", "zed@test.cd", lead.StatusNew, now)

	_, err := repo.CreateLead(ctx, lead.Lead{Name: "Dup", Email: "jane@test.cd"})
	assert.Equal(t, lead.ErrEmailExists, err)

	tests := []struct {
		name     string
		filter   lead.QueryFilter
		ordering []core.DBOrdering
		want     []lead.Lead
	}{
		{name: "all, newest first", want: []lead.Lead{zed, john, jane}},
		{name: "search is case insensitive", filter: lead.QueryFilter{Search: "ROE"}, want: []lead.Lead{john}},
		{name: "search phone", filter: lead.QueryFilter{Search: "81 0"}, want: []lead.Lead{zed, john, jane}},
		{name: "status", filter: lead.QueryFilter{Status: lead.StatusNew}, want: []lead.Lead{zed, jane}},
		{name: "country", filter: lead.QueryFilter{Country: "Mars"}, want: []lead.Lead{}},
		{
			name: "ordering", ordering: []core.DBOrdering{{Field: "status", Ascending: true}, {Field: "name", Ascending: false}},
			want: []lead.Lead{john, zed, jane},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leads, err := repo.QueryLeads(ctx, tt.filter, tt.ordering...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, leads)
		})
	}

	// email change releases the old email & guards the new one
	jane.Email = "john@test.cd"
	_, err = repo.UpdateLead(ctx, jane)
	assert.Equal(t, lead.ErrEmailExists, err)
	jane.Email = "jane.doe@test.cd"
	_, err = repo.UpdateLead(ctx, jane)
	require.NoError(t, err)
	_, err = repo.CreateLead(ctx, lead.Lead{Name: "New Jane", Email: "jane@test.cd"})
	assert.NoError(t, err)

	_, err = repo.GetLead(ctx, "missing")
	assert.Equal(t, lead.ErrNotFound, err)
}

func TestLeadRepository_DeleteLead_cascades(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	now := time.Now().UTC()
	doomed := createLead(t, c, "Doomed", "doomed@test.cd", lead.StatusNew, now)
	kept := createLead(t, c, "Kept", "kept@test.cd", lead.StatusNew, now)
	createFollowup(t, c, doomed.ID, now)
	createFollowup(t, c, doomed.ID, now.Add(time.Hour))
	keptFollowup := createFollowup(t, c, kept.ID, now)

	deleted, err := c.LeadsRepo.DeleteLead(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	followups, err := c.FollowupsRepo.QueryFollowups(ctx, followup.QueryFilter{})
	require.NoError(t, err)
	if assert.Len(t, followups, 1) {
		assert.Equal(t, keptFollowup.ID, followups[0].ID)
	}

	_, err = c.LeadsRepo.GetLead(ctx, doomed.ID)
	assert.Equal(t, lead.ErrNotFound, err)
	_, err = c.LeadsRepo.DeleteLead(ctx, doomed.ID)
	assert.Equal(t, lead.ErrNotFound, err)

	// the email is free again
	createLead(t, c, "Reborn", "doomed@test.cd", lead.StatusNew, now)
}

func TestFollowupRepository(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	repo := c.FollowupsRepo

	now := time.Now().UTC().Truncate(time.Second)
	l1 := createLead(t, c, "Jane", "jane@test.cd", lead.StatusNew, now)
	l2 := createLead(t, c, "John", "john@test.cd", lead.StatusNew, now)
	later := createFollowup(t, c, l1.ID, now.Add(48*time.Hour))
	sooner := createFollowup(t, c, l2.ID, now.Add(time.Hour))
	soonest := createFollowup(t, c, l1.ID, now)

	_, err := repo.CreateFollowup(ctx, followup.Followup{LeadID: "missing"})
	assert.Equal(t, lead.ErrNotFound, err)

	followups, err := repo.QueryFollowups(ctx, followup.QueryFilter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(followups))
	for _, f := range followups {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{soonest.ID, sooner.ID, later.ID}, ids)
	if assert.NotNil(t, followups[0].Lead) {
		assert.Equal(t, followup.LeadSummary{ID: l1.ID, Name: "Jane", Email: "jane@test.cd", Phone: l1.Phone}, *followups[0].Lead)
	}

	followups, err = repo.QueryFollowups(ctx, followup.QueryFilter{LeadID: l2.ID})
	require.NoError(t, err)
	assert.Len(t, followups, 1)

	// follow-ups already at the target status are counted and touched too
	later.Status = lead.StatusInterested
	_, err = repo.UpdateFollowup(ctx, later)
	require.NoError(t, err)
	touched := now.Add(time.Minute)
	modified, err := repo.UpdateStatusForLead(ctx, l1.ID, lead.StatusInterested, touched)
	require.NoError(t, err)
	assert.Equal(t, 2, modified)

	got, err := repo.GetFollowup(ctx, soonest.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.StatusInterested, got.Status)
	got, err = repo.GetFollowup(ctx, later.ID)
	require.NoError(t, err)
	assert.True(t, touched.Equal(got.UpdatedAt), "updatedAt must be refreshed")

	count, err := repo.CountFollowups(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, repo.DeleteFollowup(ctx, soonest.ID))
	assert.Equal(t, followup.ErrNotFound, repo.DeleteFollowup(ctx, soonest.ID))
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	repo := c.SettingsRepo

	_, err := repo.GetSettings(ctx)
	assert.Equal(t, settings.ErrNotFound, err)

	s := settings.Defaults()
	s.CompanyName = "Visa Co"
	_, err = repo.SaveSettings(ctx, s)
	require.NoError(t, err)

	got, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}
