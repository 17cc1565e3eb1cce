package lead

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/visalms/lms/core"
)

var (
	// errors
	ErrNotFound    = errors.New("Lead not found")
	ErrInvalidID   = errors.New("Invalid lead ID")
	ErrEmailExists = errors.New("Email already exists")

	errInvalidOrdering = "invalid ordering field"
)

type (
	Repository interface {
		CreateLead(ctx context.Context, l Lead) (Lead, error)
		// QueryLeads returns the leads matching filter, ordered by ordering (newest first by default).
		QueryLeads(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Lead, error)
		GetLead(ctx context.Context, id string) (Lead, error)
		UpdateLead(ctx context.Context, l Lead) (Lead, error)
		// DeleteLead deletes the lead and all its follow-ups in a single transaction,
		// returning the number of deleted follow-ups.
		DeleteLead(ctx context.Context, id string) (int, error)
	}

	// FollowupCounter counts all the follow-ups; used by the dashboard stats.
	FollowupCounter interface {
		CountFollowups(ctx context.Context) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nl NewLead) (Lead, error)
		Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Lead, error)
		GetByID(ctx context.Context, id string) (Lead, error)
		Update(ctx context.Context, id string, ul UpdateLead) (Lead, error)
		Delete(ctx context.Context, id string) (DeleteResult, error)
		Pipeline(ctx context.Context) ([]PipelineStage, error)
		Stats(ctx context.Context) (Stats, error)
	}

	service struct {
		repo      Repository
		followups FollowupCounter
		nowFunc   func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, followups FollowupCounter) Service {
	return &service{repo: repo, followups: followups, nowFunc: time.Now}
}

func (svc *service) now() time.Time {
	return svc.nowFunc().UTC()
}

// ValidateID returns ErrInvalidID unless id is a well formed lead ID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}

func checkOrdering(ordering []core.DBOrdering) error {
	for _, ord := range ordering {
		valid := false
		for _, f := range OrderingFields {
			if ord.Field == f {
				valid = true
				break
			}
		}
		if !valid {
			return core.NewValidationError(nil, core.FieldError{Field: "ordering", Error: errInvalidOrdering + ": " + ord.Field})
		}
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nl NewLead) (Lead, error) {
	now := svc.now()
	l := Lead{
		ID:                 uuid.NewString(),
		Name:               nl.Name,
		Email:              nl.Email,
		Phone:              nl.Phone,
		VisaType:           nl.VisaType,
		DestinationCountry: nl.DestinationCountry,
		City:               nl.City,
		State:              nl.State,
		Country:            nl.Country,
		Status:             StatusNew,
		Notes:              nl.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	l, err := svc.repo.CreateLead(ctx, l)
	if err == ErrEmailExists {
		return Lead{}, core.NewConflictError(err)
	}
	return l, pkgerrors.Wrap(err, "creating lead")
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Lead, error) {
	if err := checkOrdering(ordering); err != nil {
		return nil, err
	}
	filter.Clean()
	leads, err := svc.repo.QueryLeads(ctx, filter, ordering...)
	return leads, pkgerrors.Wrap(err, "querying leads")
}

func (svc *service) GetByID(ctx context.Context, id string) (Lead, error) {
	if err := ValidateID(id); err != nil {
		return Lead{}, err
	}
	return svc.repo.GetLead(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, ul UpdateLead) (Lead, error) {
	l, err := svc.GetByID(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	ul.apply(&l)
	l.UpdatedAt = svc.now()

	l, err = svc.repo.UpdateLead(ctx, l)
	if err == ErrEmailExists {
		return Lead{}, core.NewConflictError(err)
	}
	return l, err
}

func (svc *service) Delete(ctx context.Context, id string) (DeleteResult, error) {
	l, err := svc.GetByID(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	count, err := svc.repo.DeleteLead(ctx, l.ID)
	if err != nil {
		return DeleteResult{}, pkgerrors.Wrap(err, "deleting lead")
	}
	return DeleteResult{ID: l.ID, Name: l.Name, DeletedFollowups: count}, nil
}
