package settings

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"

	"github.com/visalms/lms/core"
)

var ErrNotFound = errors.New("Settings not found")

type (
	NotificationPreferences struct {
		EmailNotifications bool   `json:"emailNotifications"`
		NotificationEmail  string `json:"notificationEmail"`
	}

	Appearance struct {
		DarkMode bool `json:"darkMode"`
	}

	// Settings is the application wide settings document; there is at most one.
	Settings struct {
		CompanyName             string                  `json:"companyName"`
		ContactEmail            string                  `json:"contactEmail"`
		Phone                   string                  `json:"phone"`
		NotificationPreferences NotificationPreferences `json:"notificationPreferences"`
		Appearance              Appearance              `json:"appearance"`
		CreatedAt               time.Time               `json:"createdAt"` // UTC
		UpdatedAt               time.Time               `json:"updatedAt"` // UTC
	}
)

// Defaults returns the settings used until the first update.
func Defaults() Settings {
	return Settings{
		NotificationPreferences: NotificationPreferences{EmailNotifications: true},
	}
}

// UpdateSettings replaces the Settings. Missing strings are cleared, missing booleans take their default.
type UpdateSettings struct {
	CompanyName             string `json:"companyName" validate:"max=100"`
	ContactEmail            string `json:"contactEmail" validate:"omitempty,email"`
	Phone                   string `json:"phone" validate:"max=20"`
	NotificationPreferences *struct {
		EmailNotifications *bool  `json:"emailNotifications"`
		NotificationEmail  string `json:"notificationEmail" validate:"omitempty,email"`
	} `json:"notificationPreferences"`
	Appearance *struct {
		DarkMode *bool `json:"darkMode"`
	} `json:"appearance"`
}

func (us *UpdateSettings) Validate(validate *validator.Validate) error {
	us.CompanyName = core.CleanString(us.CompanyName)
	us.ContactEmail = core.CleanString(us.ContactEmail, true /* lower */)
	us.Phone = core.CleanString(us.Phone)
	if np := us.NotificationPreferences; np != nil {
		np.NotificationEmail = core.CleanString(np.NotificationEmail, true /* lower */)
	}
	return validate.Struct(us)
}

func (us *UpdateSettings) apply(s *Settings) {
	defaults := Defaults()
	s.CompanyName = us.CompanyName
	s.ContactEmail = us.ContactEmail
	s.Phone = us.Phone
	s.NotificationPreferences = defaults.NotificationPreferences
	s.Appearance = defaults.Appearance

	if np := us.NotificationPreferences; np != nil {
		if np.EmailNotifications != nil {
			s.NotificationPreferences.EmailNotifications = *np.EmailNotifications
		}
		s.NotificationPreferences.NotificationEmail = np.NotificationEmail
	}
	if ap := us.Appearance; ap != nil && ap.DarkMode != nil {
		s.Appearance.DarkMode = *ap.DarkMode
	}
}

type (
	Repository interface {
		// GetSettings returns ErrNotFound until settings are first saved.
		GetSettings(ctx context.Context) (Settings, error)
		// SaveSettings creates or replaces the settings document.
		SaveSettings(ctx context.Context, s Settings) (Settings, error)
	}

	Service interface {
		Get(ctx context.Context) (Settings, error)
		Put(ctx context.Context, us UpdateSettings) (Settings, error)
	}

	service struct {
		repo    Repository
		nowFunc func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo, nowFunc: time.Now}
}

func (svc *service) now() time.Time {
	return svc.nowFunc().UTC()
}

// Get returns the settings, saving the defaults on first access.
func (svc *service) Get(ctx context.Context) (Settings, error) {
	s, err := svc.repo.GetSettings(ctx)
	if err == nil {
		return s, nil
	}
	if err != ErrNotFound {
		return Settings{}, pkgerrors.Wrap(err, "getting settings")
	}

	s = Defaults()
	s.CreatedAt = svc.now()
	s.UpdatedAt = s.CreatedAt
	s, err = svc.repo.SaveSettings(ctx, s)
	return s, pkgerrors.Wrap(err, "saving default settings")
}

func (svc *service) Put(ctx context.Context, us UpdateSettings) (Settings, error) {
	now := svc.now()
	s, err := svc.repo.GetSettings(ctx)
	if err == ErrNotFound {
		s = Defaults()
		s.CreatedAt = now
	} else if err != nil {
		return Settings{}, pkgerrors.Wrap(err, "getting settings")
	}

	us.apply(&s)
	s.UpdatedAt = now
	s, err = svc.repo.SaveSettings(ctx, s)
	return s, pkgerrors.Wrap(err, "saving settings")
}
