package config

import (
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type AppConfig struct {
	DBDriver   string          `yaml:"db_driver" env:"FLEETOPS_DB_DRIVER"`
	DBURL      string          `yaml:"db_url" env:"DATABASE_URL"`
	DBPath     string          `yaml:"db_path" env:"FLEETOPS_DB_PATH" env-default:"database.db"`
	ListenAddr string          `yaml:"listen_addr" env:"FLEETOPS_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	AppEnv     string          `yaml:"app_env" env:"FLEETOPS_APP_ENV"`
	LogLevel   string          `yaml:"log_level" env:"FLEETOPS_LOG_LEVEL" env-default:"info"`
	Schema     SchemaConfig    `yaml:"schema"`
	Bootstrap  BootstrapConfig `yaml:"bootstrap"`
	Security   SecurityConfig  `yaml:"security"`
}

type SchemaConfig struct {
	// SkipAutoMigrate disables the first-request migration gate; the operator
	// route and fix-db still work.
	SkipAutoMigrate  bool          `yaml:"skip_auto_migrate" env:"FLEETOPS_SCHEMA_SKIP_AUTO_MIGRATE"`
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"FLEETOPS_SCHEMA_STATEMENT_TIMEOUT" env-default:"30s"`
}

// BootstrapConfig describes the admin account seeded after the first migration pass.
// An empty password disables seeding.
type BootstrapConfig struct {
	AdminUsername string `yaml:"admin_username" env:"FLEETOPS_ADMIN_USERNAME" env-default:"admin"`
	AdminPassword string `yaml:"admin_password" env:"FLEETOPS_ADMIN_PASSWORD"`
}

type SecurityConfig struct {
	// DisableOperatorAuth opens the operator routes without credentials.
	DisableOperatorAuth bool     `yaml:"disable_operator_auth" env:"FLEETOPS_DISABLE_OPERATOR_AUTH"`
	TrustedProxies      []string `yaml:"trusted_proxies" env:"FLEETOPS_TRUSTED_PROXIES" env-separator:","`
}

// EffectiveDriver resolves the engine: an explicit driver wins, otherwise a
// postgres:// or postgresql:// DATABASE_URL selects PostgreSQL and anything else
// falls back to the SQLite file at DBPath.
func (c *AppConfig) EffectiveDriver() string {
	if c == nil {
		return DriverSQLite
	}
	switch strings.ToLower(strings.TrimSpace(c.DBDriver)) {
	case DriverPostgres, "postgresql", "pgx":
		return DriverPostgres
	case DriverSQLite, "sqlite3":
		return DriverSQLite
	}
	url := strings.ToLower(strings.TrimSpace(c.DBURL))
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// PostgresURL rewrites the legacy postgres:// scheme some hosting providers hand out.
func (c *AppConfig) PostgresURL() string {
	url := strings.TrimSpace(c.DBURL)
	if strings.HasPrefix(url, "postgres://") {
		return "postgresql://" + strings.TrimPrefix(url, "postgres://")
	}
	return url
}

// SQLitePath returns the database file, honouring a sqlite:/// DATABASE_URL.
func (c *AppConfig) SQLitePath() string {
	url := strings.TrimSpace(c.DBURL)
	if strings.HasPrefix(url, "sqlite:///") {
		if p := strings.TrimPrefix(url, "sqlite:///"); p != "" {
			return p
		}
	}
	return c.DBPath
}

func (c *AppConfig) IsDevelopment() bool {
	if c == nil {
		return false
	}
	env := strings.ToLower(strings.TrimSpace(c.AppEnv))
	return env == "dev" || env == "development" || env == "local"
}
