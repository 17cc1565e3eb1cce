package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/visalms/lms/core/followup"
	"github.com/visalms/lms/core/lead"
	"github.com/visalms/lms/core/user"
	"github.com/visalms/lms/storage/database"
)

// OpenRepositories returns bolt backed repositories in a temp dir, closed on test cleanup.
func OpenRepositories(t *testing.T) *database.Repositories {
	repos, err := database.OpenBolt(context.Background(), filepath.Join(t.TempDir(), "lms-test.db"))
	if err != nil {
		t.Fatalf("OpenRepositories() failed: %v", err)
	}
	t.Cleanup(func() { _ = repos.Close() })
	return repos
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateLead(
	t *testing.T,
	repo lead.Repository,
	name, email, status string,
	createdAt ...time.Time,
) lead.Lead {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	l, err := repo.CreateLead(context.Background(), lead.Lead{
		Name:               name,
		Email:              email,
		Phone:              "+243 810 000 000",
		VisaType:           lead.VisaStudent,
		DestinationCountry: "Canada",
		Status:             status,
		CreatedAt:          tstamp,
		UpdatedAt:          tstamp,
	})
	if err != nil {
		t.Fatalf("CreateLead() failed: %v", err)
	}
	return l
}

func CreateFollowup(
	t *testing.T,
	repo followup.Repository,
	leadID, title, status string,
	next time.Time,
) followup.Followup {
	now := time.Now().UTC()
	f, err := repo.CreateFollowup(context.Background(), followup.Followup{
		LeadID:              leadID,
		Title:               title,
		NextFollowupDate:    next.UTC(),
		CommunicationMethod: "Phone",
		Priority:            followup.PriorityMedium,
		Status:              status,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		t.Fatalf("CreateFollowup() failed: %v", err)
	}
	return f
}
