package models

import "github.com/zekurio/hearth/internal/util/static"

var DefaultConfig = Config{
	Discord: DiscordConfig{
		Token:      "",
		OwnerID:    "",
		GuildLimit: -1,
	},
	Database: DatabaseConfig{
		Driver: "postgres",
	},
	Postgres: PostgresConfig{
		Host: "localhost",
		Port: 5432,
	},
	SQLite: SQLiteConfig{
		Path: "hearth.db",
	},
	Permissions: PermissionRules{
		UserRules:  static.DefaultUserRules,
		AdminRules: static.DefaultAdminRules,
	},
	Autovoice: AutovoiceConfig{
		ReconcileSchedule: "0 */30 * * * *",
		ReconcileWorkers:  4,
		AlertCooldown:     60,
	},
	WebServer: WebServerConfig{
		Enabled: false,
		Addr:    ":8080",
	},
}

type DiscordConfig struct {
	Token      string
	OwnerID    string
	GuildLimit int
}

type DatabaseConfig struct {
	// Driver is either "postgres" or "sqlite"
	Driver string
}

type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type SQLiteConfig struct {
	Path string
}

type PermissionRules struct {
	UserRules  []string
	AdminRules []string
}

type AutovoiceConfig struct {
	// ReconcileSchedule is a cron spec including seconds,
	// an empty value disables periodic reconciliation
	ReconcileSchedule string
	ReconcileWorkers  int
	// AlertCooldown is the minimum time in seconds
	// between two alerts sent to the same guild
	AlertCooldown int
}

type WebServerConfig struct {
	Enabled bool
	Addr    string
}

type Config struct {
	Discord     DiscordConfig
	Database    DatabaseConfig
	Postgres    PostgresConfig
	SQLite      SQLiteConfig
	Permissions PermissionRules
	Autovoice   AutovoiceConfig
	WebServer   WebServerConfig
}
