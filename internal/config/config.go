// Package config provides functionality for managing configuration options
// for the application using command-line flags, an optional JSON config
// file, a .env file and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported values of Options.DatabaseDriver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options holds the configuration values for the application.
type Options struct {
	// Address defines the server's listening address (ip:port).
	Address string

	// DatabaseDSN holds the database connection string. When empty the
	// catalog is served from the JSON feeds only.
	DatabaseDSN string

	// DatabaseDriver selects the SQL driver: "postgres" or "sqlite".
	DatabaseDriver string

	// PublicFeed and PrivateFeed are file paths or http(s) URLs of the
	// JSON arrays the in-memory store is loaded from.
	PublicFeed  string
	PrivateFeed string

	// ReloadInterval re-fetches the feeds periodically; zero disables it.
	ReloadInterval time.Duration

	// JWTSecret signs session tokens. A random secret is generated at
	// start-up when empty.
	JWTSecret string

	// SessionTTL is how long an idle session survives.
	SessionTTL time.Duration

	// LogLevel is the zap level name.
	LogLevel string

	// AllowedOrigins lists CORS origins; empty disables CORS headers.
	AllowedOrigins []string

	// LoginRateLimit is the number of login/unlock attempts allowed per
	// client IP per minute.
	LoginRateLimit int

	// BootstrapUser and BootstrapPasswordHash seed the credential table
	// when it is empty. The hash is a bcrypt hash.
	BootstrapUser         string
	BootstrapPasswordHash string

	// ScryptN is the scrypt cost used when sealing new private records.
	ScryptN int

	// TLSCert and TLSKey are PEM files; when both are set the server
	// listens with HTTPS.
	TLSCert string
	TLSKey  string

	// Config is the path to the Config file.
	Config string
}

// fileOptions is the JSON shape of the config file.
type fileOptions struct {
	Address               string   `json:"address"`
	DatabaseDSN           string   `json:"database_dsn"`
	DatabaseDriver        string   `json:"database_driver"`
	PublicFeed            string   `json:"public_feed"`
	PrivateFeed           string   `json:"private_feed"`
	ReloadInterval        string   `json:"reload_interval"`
	JWTSecret             string   `json:"jwt_secret"`
	SessionTTL            string   `json:"session_ttl"`
	LogLevel              string   `json:"log_level"`
	AllowedOrigins        []string `json:"allowed_origins"`
	LoginRateLimit        int      `json:"login_rate_limit"`
	BootstrapUser         string   `json:"bootstrap_user"`
	BootstrapPasswordHash string   `json:"bootstrap_password_hash"`
	ScryptN               int      `json:"scrypt_n"`
	TLSCert               string   `json:"tls_cert"`
	TLSKey                string   `json:"tls_key"`
}

// Parse loads .env, then parses the process flags, config file and
// environment. It exits the process on invalid configuration.
func Parse() *Options {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("error while reading .env file: %v", err)
	}

	options, err := Load(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("error while parsing config: %v", err)
	}
	return options
}

// Load builds Options from args, the config file they (or CONFIG) point
// to, and getenv. Later sources override earlier ones.
func Load(args []string, getenv func(string) string) (*Options, error) {
	options := &Options{}
	var origins string

	fset := flag.NewFlagSet("diecompare", flag.ContinueOnError)
	fset.StringVar(&options.Address, "a", "localhost:8080", "run on ip:port server")
	fset.StringVar(&options.DatabaseDSN, "d", "", "db address")
	fset.StringVar(&options.DatabaseDriver, "driver", DriverPostgres, "db driver: postgres or sqlite")
	fset.StringVar(&options.PublicFeed, "public", "", "public feed path or URL")
	fset.StringVar(&options.PrivateFeed, "private", "", "private feed path or URL")
	fset.DurationVar(&options.ReloadInterval, "reload", 0, "feed reload interval (0 disables)")
	fset.StringVar(&options.JWTSecret, "jwt-secret", "", "session token signing secret")
	fset.DurationVar(&options.SessionTTL, "session-ttl", 30*time.Minute, "idle session lifetime")
	fset.StringVar(&options.LogLevel, "l", "info", "log level")
	fset.StringVar(&origins, "origins", "", "comma-separated CORS origins")
	fset.IntVar(&options.LoginRateLimit, "login-rate", 10, "login attempts per IP per minute")
	fset.IntVar(&options.ScryptN, "scrypt-n", 1<<15, "scrypt cost for sealing")
	fset.StringVar(&options.TLSCert, "tls-cert", "", "TLS certificate PEM file")
	fset.StringVar(&options.TLSKey, "tls-key", "", "TLS private key PEM file")
	fset.StringVar(&options.Config, "config", "config.json", "path to config file")
	fset.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	options.AllowedOrigins = splitList(origins)

	// Override flags with environment variables if set
	if configPath := getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			var fo fileOptions
			if err := json.Unmarshal(data, &fo); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
			if err := fo.apply(options); err != nil {
				return nil, fmt.Errorf("config file: %w", err)
			}
		}
	}

	if err := applyEnv(options, getenv); err != nil {
		return nil, err
	}

	if err := options.validate(); err != nil {
		return nil, err
	}
	return options, nil
}

func (fo fileOptions) apply(o *Options) error {
	setString(&o.Address, fo.Address)
	setString(&o.DatabaseDSN, fo.DatabaseDSN)
	setString(&o.DatabaseDriver, fo.DatabaseDriver)
	setString(&o.PublicFeed, fo.PublicFeed)
	setString(&o.PrivateFeed, fo.PrivateFeed)
	setString(&o.JWTSecret, fo.JWTSecret)
	setString(&o.LogLevel, fo.LogLevel)
	setString(&o.BootstrapUser, fo.BootstrapUser)
	setString(&o.BootstrapPasswordHash, fo.BootstrapPasswordHash)
	setString(&o.TLSCert, fo.TLSCert)
	setString(&o.TLSKey, fo.TLSKey)
	if len(fo.AllowedOrigins) > 0 {
		o.AllowedOrigins = fo.AllowedOrigins
	}
	if fo.LoginRateLimit > 0 {
		o.LoginRateLimit = fo.LoginRateLimit
	}
	if fo.ScryptN > 0 {
		o.ScryptN = fo.ScryptN
	}
	if err := setDuration(&o.SessionTTL, "session_ttl", fo.SessionTTL); err != nil {
		return err
	}
	return setDuration(&o.ReloadInterval, "reload_interval", fo.ReloadInterval)
}

func applyEnv(o *Options, getenv func(string) string) error {
	setString(&o.Address, getenv("SERVER_ADDRESS"))
	setString(&o.DatabaseDSN, getenv("DATABASE_DSN"))
	setString(&o.DatabaseDriver, getenv("DATABASE_DRIVER"))
	setString(&o.PublicFeed, getenv("PUBLIC_FEED"))
	setString(&o.PrivateFeed, getenv("PRIVATE_FEED"))
	setString(&o.JWTSecret, getenv("JWT_SECRET"))
	setString(&o.LogLevel, getenv("LOG_LEVEL"))
	setString(&o.BootstrapUser, getenv("BOOTSTRAP_USER"))
	setString(&o.BootstrapPasswordHash, getenv("BOOTSTRAP_PASSWORD_HASH"))
	setString(&o.TLSCert, getenv("TLS_CERT"))
	setString(&o.TLSKey, getenv("TLS_KEY"))
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		o.AllowedOrigins = splitList(v)
	}
	if err := setInt(&o.LoginRateLimit, "LOGIN_RATE_LIMIT", getenv("LOGIN_RATE_LIMIT")); err != nil {
		return err
	}
	if err := setInt(&o.ScryptN, "SCRYPT_N", getenv("SCRYPT_N")); err != nil {
		return err
	}
	if err := setDuration(&o.SessionTTL, "SESSION_TTL", getenv("SESSION_TTL")); err != nil {
		return err
	}
	return setDuration(&o.ReloadInterval, "RELOAD_INTERVAL", getenv("RELOAD_INTERVAL"))
}

func (o *Options) validate() error {
	switch o.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", o.DatabaseDriver)
	}
	if o.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if o.ReloadInterval < 0 {
		return errors.New("reload interval must not be negative")
	}
	if (o.BootstrapUser == "") != (o.BootstrapPasswordHash == "") {
		return errors.New("bootstrap user and password hash must be set together")
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		return errors.New("tls cert and key must be set together")
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, name, v string) error {
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
