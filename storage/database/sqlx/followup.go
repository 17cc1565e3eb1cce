package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/visalms/lms/core/followup"
	"github.com/visalms/lms/core/lead"
)

var followupColumns = []string{
	"f.id", "f.lead_id", "f.title", "f.next_followup_date", "f.communication_method", "f.priority", "f.status",
	"f.notes", "f.created_at", "f.updated_at",
	"l.name AS lead_name", "l.email AS lead_email", "l.phone AS lead_phone",
}

type followupRow struct {
	ID                  string    `db:"id"`
	LeadID              string    `db:"lead_id"`
	Title               string    `db:"title"`
	NextFollowupDate    time.Time `db:"next_followup_date"`
	CommunicationMethod string    `db:"communication_method"`
	Priority            string    `db:"priority"`
	Status              string    `db:"status"`
	Notes               string    `db:"notes"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
	LeadName            string    `db:"lead_name"`
	LeadEmail           string    `db:"lead_email"`
	LeadPhone           string    `db:"lead_phone"`
}

func (r followupRow) toFollowup() followup.Followup {
	return followup.Followup{
		ID:     r.ID,
		LeadID: r.LeadID,
		Lead: &followup.LeadSummary{
			ID:    r.LeadID,
			Name:  r.LeadName,
			Email: r.LeadEmail,
			Phone: r.LeadPhone,
		},
		Title:               r.Title,
		NextFollowupDate:    r.NextFollowupDate.UTC(),
		CommunicationMethod: r.CommunicationMethod,
		Priority:            r.Priority,
		Status:              r.Status,
		Notes:               r.Notes,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
}

func followupValues(f followup.Followup) map[string]interface{} {
	return map[string]interface{}{
		"id":                   f.ID,
		"lead_id":              f.LeadID,
		"title":                f.Title,
		"next_followup_date":   f.NextFollowupDate.UTC(),
		"communication_method": f.CommunicationMethod,
		"priority":             f.Priority,
		"status":               f.Status,
		"notes":                f.Notes,
		"created_at":           f.CreatedAt.UTC(),
		"updated_at":           f.UpdatedAt.UTC(),
	}
}

// followupsQuery builds the SELECT of the follow-ups (joined with their lead) matching filter,
// soonest first.
func followupsQuery(filter followup.QueryFilter) sq.SelectBuilder {
	q := psql.Select(followupColumns...).
		From("followups f").
		Join("leads l ON l.id = f.lead_id").
		OrderBy("f.next_followup_date ASC", "f.created_at ASC")
	if filter.LeadID != "" {
		q = q.Where(sq.Eq{"f.lead_id": filter.LeadID})
	}
	return q
}

type FollowupRepository struct {
	db *sqlx.DB
}

var _ followup.Repository = (*FollowupRepository)(nil)

func NewFollowupRepository(db *sqlx.DB) *FollowupRepository {
	return &FollowupRepository{db: db}
}

func (repo *FollowupRepository) CreateFollowup(ctx context.Context, f followup.Followup) (followup.Followup, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	query, args, err := psql.Insert("followups").SetMap(followupValues(f)).ToSql()
	if err != nil {
		return followup.Followup{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return followup.Followup{}, lead.ErrNotFound
		}
		return followup.Followup{}, err
	}
	return f, nil
}

func (repo *FollowupRepository) QueryFollowups(ctx context.Context, filter followup.QueryFilter) ([]followup.Followup, error) {
	query, args, err := followupsQuery(filter).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []followupRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	followups := make([]followup.Followup, 0, len(rows))
	for _, r := range rows {
		followups = append(followups, r.toFollowup())
	}
	return followups, nil
}

func (repo *FollowupRepository) GetFollowup(ctx context.Context, id string) (followup.Followup, error) {
	if _, err := uuid.Parse(id); err != nil {
		return followup.Followup{}, followup.ErrNotFound
	}
	query, args, err := psql.Select(followupColumns...).
		From("followups f").
		Join("leads l ON l.id = f.lead_id").
		Where(sq.Eq{"f.id": id}).
		ToSql()
	if err != nil {
		return followup.Followup{}, errors.Wrap(err, "building query")
	}

	var row followupRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return followup.Followup{}, followup.ErrNotFound
		}
		return followup.Followup{}, err
	}
	return row.toFollowup(), nil
}

func (repo *FollowupRepository) UpdateFollowup(ctx context.Context, f followup.Followup) (followup.Followup, error) {
	values := followupValues(f)
	delete(values, "id")
	delete(values, "created_at")
	query, args, err := psql.Update("followups").SetMap(values).Where(sq.Eq{"id": f.ID}).ToSql()
	if err != nil {
		return followup.Followup{}, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return followup.Followup{}, lead.ErrNotFound
		}
		return followup.Followup{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return followup.Followup{}, err
	} else if n == 0 {
		return followup.Followup{}, followup.ErrNotFound
	}
	return f, nil
}

func (repo *FollowupRepository) DeleteFollowup(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM followups WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return followup.ErrNotFound
	}
	return nil
}

func (repo *FollowupRepository) UpdateStatusForLead(ctx context.Context, leadID, status string, updatedAt time.Time) (int, error) {
	query, args, err := psql.Update("followups").
		Set("status", status).
		Set("updated_at", updatedAt.UTC()).
		Where(sq.Eq{"lead_id": leadID}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (repo *FollowupRepository) CountFollowups(ctx context.Context) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM followups")
	return count, err
}
