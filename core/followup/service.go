package followup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/visalms/lms/core"
	"github.com/visalms/lms/core/lead"
)

var (
	// errors
	ErrNotFound  = errors.New("Followup not found")
	ErrInvalidID = errors.New("Invalid followup ID")
)

type (
	Repository interface {
		CreateFollowup(ctx context.Context, f Followup) (Followup, error)
		// QueryFollowups returns the follow-ups matching filter, soonest nextFollowupDate first,
		// each carrying its LeadSummary.
		QueryFollowups(ctx context.Context, filter QueryFilter) ([]Followup, error)
		GetFollowup(ctx context.Context, id string) (Followup, error)
		UpdateFollowup(ctx context.Context, f Followup) (Followup, error)
		DeleteFollowup(ctx context.Context, id string) error
		// UpdateStatusForLead sets status (and updatedAt) on every follow-up of the lead
		// and returns how many were modified.
		UpdateStatusForLead(ctx context.Context, leadID, status string, updatedAt time.Time) (int, error)
		CountFollowups(ctx context.Context) (int, error)
	}

	// LeadGetter finds the Lead a Followup is scheduled against.
	LeadGetter interface {
		GetLead(ctx context.Context, id string) (lead.Lead, error)
	}

	Service interface {
		Create(ctx context.Context, nf NewFollowup) (Followup, error)
		Query(ctx context.Context, filter QueryFilter) ([]Followup, error)
		GetByID(ctx context.Context, id string) (Followup, error)
		Update(ctx context.Context, id string, nf NewFollowup) (Followup, error)
		Delete(ctx context.Context, id string) error
		UpdateStatusForLead(ctx context.Context, us UpdateStatus) (UpdateStatusResult, error)
	}

	service struct {
		repo    Repository
		leads   LeadGetter
		nowFunc func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, leads LeadGetter) Service {
	return &service{repo: repo, leads: leads, nowFunc: time.Now}
}

func (svc *service) now() time.Time {
	return svc.nowFunc().UTC()
}

func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}

// getLead returns the summary of the Lead referenced by leadID, or a validation error on leadId.
func (svc *service) getLead(ctx context.Context, leadID string) (*LeadSummary, error) {
	if err := lead.ValidateID(leadID); err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "leadId", Error: err.Error()})
	}
	l, err := svc.leads.GetLead(ctx, leadID)
	if err != nil {
		if err == lead.ErrNotFound {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "leadId", Error: err.Error()})
		}
		return nil, pkgerrors.Wrap(err, "finding lead")
	}
	return &LeadSummary{ID: l.ID, Name: l.Name, Email: l.Email, Phone: l.Phone}, nil
}

func (svc *service) Create(ctx context.Context, nf NewFollowup) (Followup, error) {
	summary, err := svc.getLead(ctx, nf.LeadID)
	if err != nil {
		return Followup{}, err
	}

	now := svc.now()
	f := Followup{
		ID:                  uuid.NewString(),
		LeadID:              nf.LeadID,
		Title:               nf.Title,
		NextFollowupDate:    nf.NextDate(),
		CommunicationMethod: nf.CommunicationMethod,
		Priority:            nf.Priority,
		Status:              nf.Status,
		Notes:               nf.Notes,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	f, err = svc.repo.CreateFollowup(ctx, f)
	if err != nil {
		return Followup{}, pkgerrors.Wrap(err, "creating followup")
	}
	f.Lead = summary
	return f, nil
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Followup, error) {
	filter.LeadID = core.CleanString(filter.LeadID)
	if filter.LeadID != "" {
		if err := lead.ValidateID(filter.LeadID); err != nil {
			return []Followup{}, nil
		}
	}
	followups, err := svc.repo.QueryFollowups(ctx, filter)
	return followups, pkgerrors.Wrap(err, "querying followups")
}

func (svc *service) GetByID(ctx context.Context, id string) (Followup, error) {
	if err := ValidateID(id); err != nil {
		return Followup{}, err
	}
	return svc.repo.GetFollowup(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, nf NewFollowup) (Followup, error) {
	f, err := svc.GetByID(ctx, id)
	if err != nil {
		return Followup{}, err
	}
	summary, err := svc.getLead(ctx, nf.LeadID)
	if err != nil {
		return Followup{}, err
	}

	f.LeadID = nf.LeadID
	f.Title = nf.Title
	f.NextFollowupDate = nf.NextDate()
	f.CommunicationMethod = nf.CommunicationMethod
	f.Priority = nf.Priority
	f.Status = nf.Status
	f.Notes = nf.Notes
	f.UpdatedAt = svc.now()

	f, err = svc.repo.UpdateFollowup(ctx, f)
	if err != nil {
		return Followup{}, pkgerrors.Wrap(err, "updating followup")
	}
	f.Lead = summary
	return f, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	return svc.repo.DeleteFollowup(ctx, id)
}

func (svc *service) UpdateStatusForLead(ctx context.Context, us UpdateStatus) (UpdateStatusResult, error) {
	if err := lead.ValidateID(us.LeadID); err != nil {
		return UpdateStatusResult{}, core.NewValidationError(nil, core.FieldError{Field: "leadId", Error: err.Error()})
	}
	count, err := svc.repo.UpdateStatusForLead(ctx, us.LeadID, us.Status, svc.now())
	if err != nil {
		return UpdateStatusResult{}, pkgerrors.Wrap(err, "updating followup statuses")
	}
	return UpdateStatusResult{LeadID: us.LeadID, Status: us.Status, ModifiedCount: count}, nil
}
