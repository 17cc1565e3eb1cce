package dig_container

import (
	"context"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/visalms/lms/apps/api/echo"
	"github.com/visalms/lms/core"
	"github.com/visalms/lms/core/followup"
	"github.com/visalms/lms/core/lead"
	"github.com/visalms/lms/core/settings"
	"github.com/visalms/lms/core/user"
	logsvc "github.com/visalms/lms/services/logger"
	"github.com/visalms/lms/storage/database"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type repositories struct {
	dig.Out
	Users     user.Repository
	Leads     lead.Repository
	Followups followup.Repository
	Settings  settings.Repository

	LeadGetter      followup.LeadGetter
	FollowupCounter lead.FollowupCounter
}

type serverParams struct {
	dig.In
	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Translator  ut.Translator
	UserSvc     user.Service
	LeadSvc     lead.Service
	FollowupSvc followup.Service
	SettingsSvc settings.Service
}

func newZapLogger(conf *core.Config) *zap.Logger {
	return logsvc.New(os.Stdout, conf.Debug)
}

func newRollbarLogger(zl *zap.Logger, conf *core.Config) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(conf.RollbarToken != "" && !conf.Debug)
	return logger
}

func newLogger(zl *zap.Logger, conf *core.Config) core.Logger {
	return newRollbarLogger(zl.Named("API"), conf)
}

func newDBLogger(zl *zap.Logger, conf *core.Config) core.Logger {
	return newRollbarLogger(zl.Named("DB"), conf)
}

func newDatabase(conf *core.Config, loggerParam DBLoggerParam) *database.Repositories {
	repos, err := database.OpenRepositories(context.Background(), conf, true /* migrate */)
	if err != nil {
		loggerParam.Logger.Fatal("setting up database", err)
	}
	return repos
}

func newRepositories(repos *database.Repositories) repositories {
	return repositories{
		Users:           repos.Users,
		Leads:           repos.Leads,
		Followups:       repos.Followups,
		Settings:        repos.Settings,
		LeadGetter:      repos.Leads,
		FollowupCounter: repos.Followups,
	}
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		UserSvc:     p.UserSvc,
		LeadSvc:     p.LeadSvc,
		FollowupSvc: p.FollowupSvc,
		SettingsSvc: p.SettingsSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDatabase))
	must(c.Provide(newRepositories))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(lead.NewService))
	must(c.Provide(followup.NewService))
	must(c.Provide(settings.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
