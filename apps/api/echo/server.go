package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/visalms/lms/core"
	"github.com/visalms/lms/core/followup"
	"github.com/visalms/lms/core/lead"
	"github.com/visalms/lms/core/settings"
	"github.com/visalms/lms/core/user"
)

type (
	Options struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc     user.Service
		LeadSvc     lead.Service
		FollowupSvc followup.Service
		SettingsSvc settings.Service
	}

	Server struct {
		opts     *Options
		app      *echo.Echo
		metrics  *httpMetrics
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(opts *Options) *Server {
	s := &Server{
		opts:     opts,
		app:      echo.New(),
		metrics:  newHTTPMetrics(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(s.metrics.middleware)
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.Secure())

	// ctx.RealIP() keys the login limiter; client headers are ignored unless a proxy sets them
	s.app.IPExtractor = echo.ExtractIPDirect()
	if conf.Server.TrustProxy {
		s.app.IPExtractor = echo.ExtractIPFromXFFHeader()
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/metrics", s.metrics.handler())

	api := s.app.Group("/api")
	session := sessionMiddleware(conf, s.opts.UserSvc, errUnauthorized, errUnauthorized)
	loginLimiter := rateLimitMiddleware(newIPRateLimiter(conf.Auth.LoginRateLimit, conf.Auth.LoginRateBurst))

	registerSetupAPI(api, s.opts.UserSvc, s.opts.Validate)
	registerAuthAPI(api, conf, s.opts.UserSvc, loginLimiter)
	registerUserAPI(api, session, s.opts.UserSvc, s.opts.Validate)
	registerLeadAPI(api, session, s.opts.LeadSvc, s.opts.Validate)
	registerFollowupAPI(api, session, s.opts.FollowupSvc, s.opts.Validate)
	registerSettingsAPI(api, session, s.opts.SettingsSvc, s.opts.Validate)

	// any other /api route requires a session
	api.Any("/*", func(ctx echo.Context) error { return echo.ErrNotFound }, session)
}

// Start listens on the configured address; failures are reported on Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	s.opts.Logger.Info("API listening on " + s.opts.Conf.Server.Address())
	if err := s.app.Start(s.opts.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- errors.Wrap(err, "starting server")
	}
}

// Errors receives the error that stopped the server, if any.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives OS interrupts and internal shutdown requests.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}
