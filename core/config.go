package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDev  = "DEV"
	EnvTest = "TEST"
	EnvQA   = "QA"
	EnvProd = "PROD"
)

type (
	ServerConfig struct {
		Host            string
		Port            string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool

		// TrustProxy takes the client IP from X-Forwarded-For. Only enable it
		// behind a reverse proxy that overwrites the header.
		TrustProxy bool
	}

	AuthConfig struct {
		CookieName     string
		TokenLifetime  time.Duration
		LoginRateLimit float64 // requests per second, per client IP
		LoginRateBurst int
	}

	DatabaseConfig struct {
		Engine        string // postgres | bolt
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		BoltPath      string
	}

	Config struct {
		Env          string
		Build        string
		AppName      string
		Debug        bool
		TestMode     bool
		SecretKey    string
		RollbarToken string
		WorkDir      string

		Server   ServerConfig
		Auth     AuthConfig
		Database DatabaseConfig
	}
)

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// SecureCookies reports whether cookies must carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return !(c.Env == EnvDev || c.Env == EnvTest)
}

// NewConfig loads the configuration of the current ENV (DEV by default).
// Values are read from defaults, then config/.env.<env> (if present), then <ENV>_* environment variables.
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = EnvDev
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v, env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}
	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		AppName:      v.GetString("appName"),
		Debug:        v.GetBool("debug"),
		TestMode:     env == EnvTest,
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		WorkDir:      wd,
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetString("server.port"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
			TrustProxy:      v.GetBool("server.trustProxy"),
		},
		Auth: AuthConfig{
			CookieName:     v.GetString("auth.cookieName"),
			TokenLifetime:  v.GetDuration("auth.tokenLifetime"),
			LoginRateLimit: v.GetFloat64("auth.loginRateLimit"),
			LoginRateBurst: v.GetInt("auth.loginRateBurst"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			BoltPath:      v.GetString("database.boltPath"),
		},
	}
}

func setDefaults(v *viper.Viper, env string) {
	local := env == EnvDev || env == EnvTest

	v.SetDefault("build", "develop")
	v.SetDefault("debug", local)
	v.SetDefault("appName", "LMS")
	v.SetDefault("secretKey", "x9#v!q2l@8m$kz4&t7pw)hd^r0(eu5c=n3+ga6sj1yb*fo")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.trustProxy", false)

	v.SetDefault("auth.cookieName", "auth-token")
	v.SetDefault("auth.tokenLifetime", 7*24*time.Hour)
	v.SetDefault("auth.loginRateLimit", 1.0)
	v.SetDefault("auth.loginRateBurst", 5)

	engine := "postgres"
	if local {
		engine = "bolt"
	}
	v.SetDefault("database.engine", engine)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "lms")
	v.SetDefault("database.user", "lms")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", local)
	v.SetDefault("database.boltPath", fmt.Sprintf("lms-%s.db", strings.ToLower(env)))
}
