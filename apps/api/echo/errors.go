package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/visalms/lms/core"
	"github.com/visalms/lms/core/followup"
	"github.com/visalms/lms/core/lead"
	"github.com/visalms/lms/core/settings"
	"github.com/visalms/lms/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	errNoToken            = echo.NewHTTPError(http.StatusUnauthorized, "No token provided")
	errInvalidToken       = echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	errInactiveUser       = echo.NewHTTPError(http.StatusUnauthorized, "User not found or inactive")
	errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	errMissingCredentials = echo.NewHTTPError(http.StatusBadRequest, "Username and password are required")
	errTooManyAttempts    = echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts, please try again later")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errInvalidBody        = echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
)

// errorResponse is the body of every error answer.
type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		resp := errorResponse{Success: false}

		cause := errors.Cause(err)
		switch cause {
		case lead.ErrNotFound, followup.ErrNotFound, user.ErrNotFound, settings.ErrNotFound:
			code = http.StatusNotFound
			resp.Error = cause.Error()
		case lead.ErrInvalidID, followup.ErrInvalidID, user.ErrSetupDone:
			code = http.StatusBadRequest
			resp.Error = cause.Error()
		}

		if code == 0 {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				if msg, ok := origErr.Message.(string); ok {
					resp.Error = msg
				} else {
					resp.Error = fmt.Sprint(origErr.Message)
				}
			case validator.ValidationErrors:
				resp.Fields = make(map[string]string, len(origErr))
				for i, vErr := range origErr {
					msg := vErr.Translate(translator)
					resp.Fields[vErr.Field()] = msg
					if i == 0 {
						resp.Error = vErr.Field() + ": " + msg
					}
				}
				code = http.StatusBadRequest
			case *core.ValidationError:
				if len(origErr.Fields) > 0 {
					resp.Fields = make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						resp.Fields[fErr.Field] = fErr.Error
					}
				}
				code = http.StatusBadRequest
				resp.Error = origErr.Error()
			case *core.ConflictError:
				code = http.StatusConflict
				resp.Error = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				resp.Error = msg

				var usr user.User
				if u, ok := ctx.Get(contextUserKey).(user.User); ok {
					usr = u
				} else if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Username = claims.Username
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				if ctx.Echo().Debug {
					resp.Error = err.Error()
				}

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
