package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/visalms/lms/core"
	"github.com/visalms/lms/core/user"
)

var (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}

// NewClaims returns the session claims of usr, valid for the configured token lifetime.
func NewClaims(usr user.User, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(conf.Auth.TokenLifetime).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: usr.Username,
		Role:     usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
		TokenLookup:   "cookie:" + conf.Auth.CookieName,
	}
}

// sessionMiddleware authenticates the request's token cookie and stores the (active) user in the context.
// missingErr answers requests without a token cookie, invalidErr those with a bad or expired token.
func sessionMiddleware(conf *core.Config, svc user.Service, missingErr, invalidErr error) echo.MiddlewareFunc {
	jwtMiddleware := middleware.JWTWithConfig(newJWTConfig(conf))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		handler := jwtMiddleware(func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return invalidErr
			}
			usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errInactiveUser
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.IsActive {
				return errInactiveUser
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		})

		return func(ctx echo.Context) error {
			if c, err := ctx.Cookie(conf.Auth.CookieName); err != nil || c.Value == "" {
				return missingErr
			}
			err := handler(ctx)
			if err != nil && ctx.Get(contextTokenKey) == nil {
				// rejected by the JWT middleware
				return invalidErr
			}
			return err
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

func newSessionCookie(conf *core.Config, token string) *http.Cookie {
	return &http.Cookie{
		Name:     conf.Auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(conf.Auth.TokenLifetime.Seconds()),
		HttpOnly: true,
		Secure:   conf.SecureCookies(),
		SameSite: http.SameSiteStrictMode,
	}
}

func expiredSessionCookie(conf *core.Config) *http.Cookie {
	c := newSessionCookie(conf, "")
	c.MaxAge = -1 // Max-Age=0
	return c
}

type authApi struct {
	conf *core.Config
	svc  user.Service
}

func registerAuthAPI(g *echo.Group, conf *core.Config, svc user.Service, limiter echo.MiddlewareFunc) {
	api := authApi{conf: conf, svc: svc}

	ag := g.Group("/auth")
	ag.POST("/login", api.login, limiter)
	ag.POST("/logout", api.logout)
	ag.GET("/me", api.me, sessionMiddleware(conf, svc, errNoToken, errInvalidToken))
}

type (
	LoginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	LoginResponse struct {
		User  user.User `json:"user"`
		Token string    `json:"token"`
	}

	messageResponse struct {
		Message string `json:"message"`
	}
)

// authenticate returns the active user matching the credentials.
func (api *authApi) authenticate(ctx echo.Context, uname, pwd string) (user.User, error) {
	usr, err := api.svc.GetByUsernameOrEmail(ctx.Request().Context(), uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errInvalidCredentials
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	if !usr.IsActive {
		return user.User{}, errInvalidCredentials
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errInvalidCredentials
	}
	usr, err = api.svc.SetLastLogin(ctx.Request().Context(), usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errInvalidBody
	}
	data.Username = core.CleanString(data.Username)
	if data.Username == "" || data.Password == "" {
		return errMissingCredentials
	}

	usr, err := api.authenticate(ctx, data.Username, data.Password)
	if err != nil {
		return err
	}
	token, err := GenerateToken(NewClaims(usr, api.conf), api.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	ctx.SetCookie(newSessionCookie(api.conf, token))
	return ctx.JSON(http.StatusOK, LoginResponse{User: usr, Token: token})
}

func (api *authApi) logout(ctx echo.Context) error {
	ctx.SetCookie(expiredSessionCookie(api.conf))
	return ctx.JSON(http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"user": usr, "permissions": usr.Permissions()})
}
