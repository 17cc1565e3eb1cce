package followup

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/visalms/lms/core"
)

// Priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

var (
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}

	// accepted nextFollowupDate layouts
	dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

	errInvalidDate = "invalid date, expected YYYY-MM-DD or an RFC 3339 timestamp"
)

// LeadSummary is the subset of a Lead carried by its follow-ups.
type LeadSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Followup struct {
	ID                  string       `json:"id"`
	LeadID              string       `json:"leadId"`
	Lead                *LeadSummary `json:"lead,omitempty"`
	Title               string       `json:"title"`
	NextFollowupDate    time.Time    `json:"nextFollowupDate"` // UTC
	CommunicationMethod string       `json:"communicationMethod"`
	Priority            string       `json:"priority"`
	Status              string       `json:"status"`
	Notes               string       `json:"notes"`
	CreatedAt           time.Time    `json:"createdAt"` // UTC
	UpdatedAt           time.Time    `json:"updatedAt"` // UTC
}

// NewFollowup contains the information needed to create a Followup, or to fully replace one.
type NewFollowup struct {
	LeadID              string `json:"leadId" validate:"required"`
	Title               string `json:"title" validate:"required,max=200"`
	NextFollowupDate    string `json:"nextFollowupDate" validate:"required"`
	CommunicationMethod string `json:"communicationMethod" validate:"required,max=50"`
	Priority            string `json:"priority" validate:"required,oneof=low medium high"`
	Status              string `json:"status" validate:"required,oneof=New Contacted Interested Converted Lost"`
	Notes               string `json:"notes" validate:"max=1000"`

	nextDate time.Time
}

func (nf *NewFollowup) Validate(validate *validator.Validate) error {
	nf.LeadID = core.CleanString(nf.LeadID)
	nf.Title = core.CleanString(nf.Title)
	nf.NextFollowupDate = core.CleanString(nf.NextFollowupDate)
	nf.CommunicationMethod = core.CleanString(nf.CommunicationMethod)
	nf.Priority = core.CleanString(nf.Priority, true /* lower */)
	nf.Status = core.CleanString(nf.Status)
	nf.Notes = core.CleanString(nf.Notes)

	if err := validate.Struct(nf); err != nil {
		return err
	}
	date, ok := parseDate(nf.NextFollowupDate)
	if !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "nextFollowupDate", Error: errInvalidDate})
	}
	nf.nextDate = date
	return nil
}

// NextDate returns the parsed NextFollowupDate; only meaningful after a successful Validate.
func (nf *NewFollowup) NextDate() time.Time {
	return nf.nextDate
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// UpdateStatus sets the status of every Followup of a Lead.
type UpdateStatus struct {
	LeadID string `json:"leadId" validate:"required"`
	Status string `json:"status" validate:"required,oneof=New Contacted Interested Converted Lost"`
}

func (us *UpdateStatus) Validate(validate *validator.Validate) error {
	us.LeadID = core.CleanString(us.LeadID)
	us.Status = core.CleanString(us.Status)
	return validate.Struct(us)
}

type UpdateStatusResult struct {
	LeadID        string `json:"leadId"`
	Status        string `json:"status"`
	ModifiedCount int    `json:"modifiedCount"`
}

type QueryFilter struct {
	LeadID string `query:"lead_id"`
}
