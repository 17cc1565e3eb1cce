package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/visalms/lms/core"
	"github.com/visalms/lms/core/lead"
)

var (
	leadColumns = []string{
		"id", "name", "email", "phone", "visa_type", "destination_country", "city", "state", "country",
		"status", "notes", "created_at", "updated_at",
	}

	// ordering field -> column
	leadOrderColumns = map[string]string{
		"name":               "name",
		"email":              "email",
		"status":             "status",
		"visaType":           "visa_type",
		"destinationCountry": "destination_country",
		"createdAt":          "created_at",
		"updatedAt":          "updated_at",
	}
)

type leadRow struct {
	ID                 string    `db:"id"`
	Name               string    `db:"name"`
	Email              string    `db:"email"`
	Phone              string    `db:"phone"`
	VisaType           string    `db:"visa_type"`
	DestinationCountry string    `db:"destination_country"`
	City               string    `db:"city"`
	State              string    `db:"state"`
	Country            string    `db:"country"`
	Status             string    `db:"status"`
	Notes              string    `db:"notes"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r leadRow) toLead() lead.Lead {
	return lead.Lead{
		ID:                 r.ID,
		Name:               r.Name,
		Email:              r.Email,
		Phone:              r.Phone,
		VisaType:           r.VisaType,
		DestinationCountry: r.DestinationCountry,
		City:               r.City,
		State:              r.State,
		Country:            r.Country,
		Status:             r.Status,
		Notes:              r.Notes,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}

func leadValues(l lead.Lead) map[string]interface{} {
	return map[string]interface{}{
		"id":                  l.ID,
		"name":                l.Name,
		"email":               l.Email,
		"phone":               l.Phone,
		"visa_type":           l.VisaType,
		"destination_country": l.DestinationCountry,
		"city":                l.City,
		"state":               l.State,
		"country":             l.Country,
		"status":              l.Status,
		"notes":               l.Notes,
		"created_at":          l.CreatedAt.UTC(),
		"updated_at":          l.UpdatedAt.UTC(),
	}
}

// leadsQuery builds the SELECT matching filter, ordered by ordering (newest first by default).
func leadsQuery(filter lead.QueryFilter, ordering ...core.DBOrdering) sq.SelectBuilder {
	q := psql.Select(leadColumns...).From("leads")
	if filter.Search != "" {
		pattern := contains(filter.Search)
		q = q.Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"email": pattern},
			sq.ILike{"destination_country": pattern},
			sq.Like{"phone": pattern},
		})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	if filter.VisaType != "" {
		q = q.Where(sq.Eq{"visa_type": filter.VisaType})
	}
	if filter.Country != "" {
		q = q.Where(sq.Eq{"destination_country": filter.Country})
	}
	return q.OrderBy(orderBy(ordering, leadOrderColumns, "created_at DESC")...)
}

type LeadRepository struct {
	db *sqlx.DB
}

var _ lead.Repository = (*LeadRepository)(nil)

func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

func (repo *LeadRepository) CreateLead(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	query, args, err := psql.Insert("leads").SetMap(leadValues(l)).ToSql()
	if err != nil {
		return lead.Lead{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return lead.Lead{}, lead.ErrEmailExists
		}
		return lead.Lead{}, err
	}
	return l, nil
}

func (repo *LeadRepository) QueryLeads(ctx context.Context, filter lead.QueryFilter, ordering ...core.DBOrdering) ([]lead.Lead, error) {
	query, args, err := leadsQuery(filter, ordering...).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []leadRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	leads := make([]lead.Lead, 0, len(rows))
	for _, r := range rows {
		leads = append(leads, r.toLead())
	}
	return leads, nil
}

func (repo *LeadRepository) GetLead(ctx context.Context, id string) (lead.Lead, error) {
	if _, err := uuid.Parse(id); err != nil {
		return lead.Lead{}, lead.ErrNotFound
	}
	query, args, err := psql.Select(leadColumns...).From("leads").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return lead.Lead{}, errors.Wrap(err, "building query")
	}

	var row leadRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return lead.Lead{}, lead.ErrNotFound
		}
		return lead.Lead{}, err
	}
	return row.toLead(), nil
}

func (repo *LeadRepository) UpdateLead(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	values := leadValues(l)
	delete(values, "id")
	delete(values, "created_at")
	query, args, err := psql.Update("leads").SetMap(values).Where(sq.Eq{"id": l.ID}).ToSql()
	if err != nil {
		return lead.Lead{}, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return lead.Lead{}, lead.ErrEmailExists
		}
		return lead.Lead{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return lead.Lead{}, err
	} else if n == 0 {
		return lead.Lead{}, lead.ErrNotFound
	}
	return l, nil
}

// DeleteLead deletes the lead's follow-ups then the lead, in one transaction.
func (repo *LeadRepository) DeleteLead(ctx context.Context, id string) (int, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM followups WHERE lead_id = $1", id)
	if err != nil {
		return 0, errors.Wrap(err, "deleting followups")
	}
	followups, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	res, err = tx.ExecContext(ctx, "DELETE FROM leads WHERE id = $1", id)
	if err != nil {
		return 0, errors.Wrap(err, "deleting lead")
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, lead.ErrNotFound
	}

	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing transaction")
	}
	return int(followups), nil
}
