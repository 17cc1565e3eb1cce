package database

import (
	"context"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/visalms/lms/core"
	"github.com/visalms/lms/core/followup"
	"github.com/visalms/lms/core/lead"
	"github.com/visalms/lms/core/settings"
	"github.com/visalms/lms/core/user"
	boltrepos "github.com/visalms/lms/storage/database/bolt"
	sqlxrepos "github.com/visalms/lms/storage/database/sqlx"
)

// Engines
const (
	EnginePostgres = "postgres"
	EngineBolt     = "bolt"
)

// Repositories bundles the repositories of one storage engine.
type Repositories struct {
	Users     user.Repository
	Leads     lead.Repository
	Followups followup.Repository
	Settings  settings.Repository

	// SQL is the postgres handle; nil for other engines.
	SQL *sqlx.DB

	closeFunc func() error
}

func (r *Repositories) Close() error {
	if r.closeFunc == nil {
		return nil
	}
	return r.closeFunc()
}

// NewSQLRepositories returns the postgres repositories on db.
func NewSQLRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Users:     sqlxrepos.NewUserRepository(db),
		Leads:     sqlxrepos.NewLeadRepository(db),
		Followups: sqlxrepos.NewFollowupRepository(db),
		Settings:  sqlxrepos.NewSettingsRepository(db),
		SQL:       db,
		closeFunc: db.Close,
	}
}

// OpenBolt opens the bolt database at path and returns its repositories.
func OpenBolt(ctx context.Context, path string) (*Repositories, error) {
	client := boltrepos.NewClient(path)
	if err := client.Open(ctx); err != nil {
		return nil, err
	}
	return &Repositories{
		Users:     client.UsersRepo,
		Leads:     client.LeadsRepo,
		Followups: client.FollowupsRepo,
		Settings:  client.SettingsRepo,
		closeFunc: client.Close,
	}, nil
}

// OpenRepositories opens the configured storage engine. Postgres databases are created and migrated
// when migrate is true.
func OpenRepositories(ctx context.Context, conf *core.Config, migrate bool) (*Repositories, error) {
	switch conf.Database.Engine {
	case EngineBolt:
		path := conf.Database.BoltPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(conf.WorkDir, path)
		}
		repos, err := OpenBolt(ctx, path)
		return repos, errors.Wrap(err, "opening bolt database")

	case EnginePostgres:
		if migrate {
			if err := CreateIfNotExist(conf); err != nil {
				return nil, err
			}
		}
		db, err := Open(conf)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err = Migrate(db.DB); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return NewSQLRepositories(db), nil

	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}
