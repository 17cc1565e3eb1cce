package lead

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/visalms/lms/core"
)

// Statuses, in pipeline order.
const (
	StatusNew        = "New"
	StatusContacted  = "Contacted"
	StatusInterested = "Interested"
	StatusConverted  = "Converted"
	StatusLost       = "Lost"
)

// Visa types
const (
	VisaStudent  = "Student"
	VisaWork     = "Work"
	VisaTourist  = "Tourist"
	VisaBusiness = "Business"
	VisaFamily   = "Family"
	VisaOther    = "Other"
)

var (
	Statuses  = []string{StatusNew, StatusContacted, StatusInterested, StatusConverted, StatusLost}
	VisaTypes = []string{VisaStudent, VisaWork, VisaTourist, VisaBusiness, VisaFamily, VisaOther}

	// OrderingFields are the fields leads may be ordered by.
	OrderingFields = []string{"name", "email", "status", "visaType", "destinationCountry", "createdAt", "updatedAt"}
)

func IsValidStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

type Lead struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	VisaType           string    `json:"visaType"`
	DestinationCountry string    `json:"destinationCountry"`
	City               string    `json:"city,omitempty"`
	State              string    `json:"state,omitempty"`
	Country            string    `json:"country,omitempty"`
	Status             string    `json:"status"`
	Notes              string    `json:"notes"`
	CreatedAt          time.Time `json:"createdAt"` // UTC
	UpdatedAt          time.Time `json:"updatedAt"` // UTC
}

// NewLead contains information needed to create a new Lead.
type NewLead struct {
	Name               string `json:"name" validate:"required,max=100"`
	Email              string `json:"email" validate:"required,email"`
	Phone              string `json:"phone" validate:"required,max=20"`
	VisaType           string `json:"visaType" validate:"required,oneof=Student Work Tourist Business Family Other"`
	DestinationCountry string `json:"destinationCountry" validate:"required,max=50"`
	City               string `json:"city" validate:"max=50"`
	State              string `json:"state" validate:"max=50"`
	Country            string `json:"country" validate:"max=50"`
	Notes              string `json:"notes" validate:"max=1000"`
}

func (nl *NewLead) clean() {
	nl.Name = core.CleanString(nl.Name)
	nl.Email = core.CleanString(nl.Email, true /* lower */)
	nl.Phone = core.CleanString(nl.Phone)
	nl.VisaType = core.CleanString(nl.VisaType)
	nl.DestinationCountry = core.CleanString(nl.DestinationCountry)
	nl.City = core.CleanString(nl.City)
	nl.State = core.CleanString(nl.State)
	nl.Country = core.CleanString(nl.Country)
}

func (nl *NewLead) Validate(validate *validator.Validate) error {
	nl.clean()
	return validate.Struct(nl)
}

// UpdateLead defines what information may be provided to modify an existing Lead.
// A body carrying only Status is a status-only update; any other body replaces the lead's fields
// and must satisfy the same rules as NewLead. Omitted optional fields keep their current value.
type UpdateLead struct {
	Name               *string `json:"name"`
	Email              *string `json:"email"`
	Phone              *string `json:"phone"`
	VisaType           *string `json:"visaType"`
	DestinationCountry *string `json:"destinationCountry"`
	City               *string `json:"city"`
	State              *string `json:"state"`
	Country            *string `json:"country"`
	Status             *string `json:"status" validate:"omitempty,oneof=New Contacted Interested Converted Lost"`
	Notes              *string `json:"notes"`
}

func (ul *UpdateLead) IsStatusOnly() bool {
	return ul.Status != nil &&
		ul.Name == nil && ul.Email == nil && ul.Phone == nil && ul.VisaType == nil &&
		ul.DestinationCountry == nil && ul.City == nil && ul.State == nil && ul.Country == nil && ul.Notes == nil
}

// fields returns the full-update fields as a NewLead.
func (ul *UpdateLead) fields() NewLead {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return NewLead{
		Name:               deref(ul.Name),
		Email:              deref(ul.Email),
		Phone:              deref(ul.Phone),
		VisaType:           deref(ul.VisaType),
		DestinationCountry: deref(ul.DestinationCountry),
		City:               deref(ul.City),
		State:              deref(ul.State),
		Country:            deref(ul.Country),
		Notes:              deref(ul.Notes),
	}
}

func (ul *UpdateLead) Validate(validate *validator.Validate) error {
	if ul.Status != nil {
		status := core.CleanString(*ul.Status)
		ul.Status = &status
	}
	if err := validate.Struct(ul); err != nil {
		return err
	}
	if ul.IsStatusOnly() {
		return nil
	}

	nl := ul.fields()
	if err := nl.Validate(validate); err != nil {
		return err
	}
	ul.Name, ul.Email, ul.Phone = &nl.Name, &nl.Email, &nl.Phone
	ul.VisaType, ul.DestinationCountry = &nl.VisaType, &nl.DestinationCountry
	if ul.City != nil {
		ul.City = &nl.City
	}
	if ul.State != nil {
		ul.State = &nl.State
	}
	if ul.Country != nil {
		ul.Country = &nl.Country
	}
	return nil
}

// apply copies the update onto l.
func (ul *UpdateLead) apply(l *Lead) {
	if ul.Status != nil {
		l.Status = *ul.Status
	}
	if ul.IsStatusOnly() {
		return
	}

	l.Name = *ul.Name
	l.Email = *ul.Email
	l.Phone = *ul.Phone
	l.VisaType = *ul.VisaType
	l.DestinationCountry = *ul.DestinationCountry
	if ul.City != nil {
		l.City = *ul.City
	}
	if ul.State != nil {
		l.State = *ul.State
	}
	if ul.Country != nil {
		l.Country = *ul.Country
	}
	if ul.Notes != nil {
		l.Notes = *ul.Notes
	} else {
		l.Notes = ""
	}
}

type QueryFilter struct {
	Search   string `query:"search"`
	Status   string `query:"status"`
	VisaType string `query:"visa_type"`
	Country  string `query:"country"` // destination country
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status)
	qf.VisaType = core.CleanString(qf.VisaType)
	qf.Country = core.CleanString(qf.Country)
	if qf.Status == "all" {
		qf.Status = ""
	}
	if qf.VisaType == "all" {
		qf.VisaType = ""
	}
	if qf.Country == "all" {
		qf.Country = ""
	}
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.VisaType == "" && qf.Country == ""
}

// DeleteResult describes a deleted Lead.
type DeleteResult struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	DeletedFollowups int    `json:"deletedFollowups"`
}

type PipelineStage struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Leads  []Lead `json:"leads"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type MonthCount struct {
	Name  string `json:"name"`
	Year  int    `json:"year"`
	Leads int    `json:"leads"`
}

type Stats struct {
	TotalLeads         int           `json:"totalLeads"`
	TotalFollowups     int           `json:"totalFollowups"`
	RecentLeads        int           `json:"recentLeads"`
	ConvertedLeads     int           `json:"convertedLeads"`
	ConversionRate     int           `json:"conversionRate"`
	StatusDistribution []StatusCount `json:"statusDistribution"`
	ChartData          []MonthCount  `json:"chartData"`
}
