package user

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
	ErrNotFound   = errors.New("User not found")
	ErrUserExists = errors.New("User with this email or username already exists")
	ErrSetupDone  = errors.New("Users already exist. Setup is only allowed for initial installation.")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUserExists when username or email is taken by a user not in excludedUsers.
		CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// CreateFirstUser creates usr only if no User exists yet, else it returns ErrSetupDone.
		// The check and the insert are atomic.
		CreateFirstUser(ctx context.Context, usr User) (User, error)
		// QueryUsers returns users matching filter, newest first.
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		CountUsers(ctx context.Context) (int, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser, createdBy string) (User, error)
		Setup(ctx context.Context, sa SetupAdmin) (User, error)
		Count(ctx context.Context) (int, error)
		QueryActive(ctx context.Context) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		Deactivate(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
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

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, exclUsers...); err != nil {
		if err == ErrUserExists {
			return core.NewValidationError(err)
		}
		return pkgerrors.Wrap(err, "checking user uniqueness")
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser, createdBy string) (User, error) {
	now := svc.now()
	usr := User{
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err == ErrUserExists {
		return User{}, core.NewValidationError(err)
	}
	return usr, pkgerrors.Wrap(err, "creating user")
}

// Setup creates the first admin User; it fails with ErrSetupDone once any User exists.
func (svc *service) Setup(ctx context.Context, sa SetupAdmin) (User, error) {
	now := svc.now()
	usr := User{
		ID:        uuid.NewString(),
		Username:  sa.Username,
		Email:     sa.Email,
		Role:      RoleAdmin,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// the first admin is its own creator
	usr.CreatedBy = usr.ID
	if err := usr.SetPassword(sa.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateFirstUser(ctx, usr)
	switch err {
	case nil:
		return usr, nil
	case ErrSetupDone:
		return User{}, err
	case ErrUserExists:
		return User{}, core.NewValidationError(err)
	}
	return User{}, pkgerrors.Wrap(err, "creating first user")
}

func (svc *service) Count(ctx context.Context) (int, error) {
	count, err := svc.repo.CountUsers(ctx)
	return count, pkgerrors.Wrap(err, "counting users")
}

func (svc *service) QueryActive(ctx context.Context) ([]User, error) {
	active := true
	users, err := svc.repo.QueryUsers(ctx, QueryFilter{IsActive: &active})
	return users, pkgerrors.Wrap(err, "querying users")
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.Role = uu.Role
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	usr.UpdatedAt = svc.now()

	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err == ErrUserExists {
		return User{}, core.NewValidationError(err)
	}
	return usr, err
}

// Deactivate soft deletes the User.
func (svc *service) Deactivate(ctx context.Context, usr User) (User, error) {
	usr.IsActive = false
	usr.UpdatedAt = svc.now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = svc.now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, pkgerrors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = svc.now()
	return svc.repo.UpdateUser(ctx, usr)
}
