package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/visalms/lms/core/settings"
)

const settingsID = 1

type settingsRow struct {
	CompanyName        string    `db:"company_name"`
	ContactEmail       string    `db:"contact_email"`
	Phone              string    `db:"phone"`
	EmailNotifications bool      `db:"email_notifications"`
	NotificationEmail  string    `db:"notification_email"`
	DarkMode           bool      `db:"dark_mode"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r settingsRow) toSettings() settings.Settings {
	return settings.Settings{
		CompanyName:  r.CompanyName,
		ContactEmail: r.ContactEmail,
		Phone:        r.Phone,
		NotificationPreferences: settings.NotificationPreferences{
			EmailNotifications: r.EmailNotifications,
			NotificationEmail:  r.NotificationEmail,
		},
		Appearance: settings.Appearance{DarkMode: r.DarkMode},
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type SettingsRepository struct {
	db *sqlx.DB
}

var _ settings.Repository = (*SettingsRepository)(nil)

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (repo *SettingsRepository) GetSettings(ctx context.Context) (settings.Settings, error) {
	query, args, err := psql.Select(
		"company_name", "contact_email", "phone", "email_notifications", "notification_email", "dark_mode",
		"created_at", "updated_at",
	).From("settings").Where("id = ?", settingsID).ToSql()
	if err != nil {
		return settings.Settings{}, errors.Wrap(err, "building query")
	}

	var row settingsRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return settings.Settings{}, settings.ErrNotFound
		}
		return settings.Settings{}, err
	}
	return row.toSettings(), nil
}

// SaveSettings upserts the singleton settings row.
func (repo *SettingsRepository) SaveSettings(ctx context.Context, s settings.Settings) (settings.Settings, error) {
	query, args, err := psql.Insert("settings").
		Columns("id", "company_name", "contact_email", "phone", "email_notifications", "notification_email",
			"dark_mode", "created_at", "updated_at").
		Values(settingsID, s.CompanyName, s.ContactEmail, s.Phone, s.NotificationPreferences.EmailNotifications,
			s.NotificationPreferences.NotificationEmail, s.Appearance.DarkMode, s.CreatedAt.UTC(), s.UpdatedAt.UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			contact_email = EXCLUDED.contact_email,
			phone = EXCLUDED.phone,
			email_notifications = EXCLUDED.email_notifications,
			notification_email = EXCLUDED.notification_email,
			dark_mode = EXCLUDED.dark_mode,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return settings.Settings{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return settings.Settings{}, err
	}
	return s, nil
}
