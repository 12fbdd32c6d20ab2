package database

import (
	"fmt"
	"net/url"

	"coffeeshop/internal/config"
)

// PostgresDSN returns the key/value connection string used by GORM.
func PostgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
}

// MigrationURL returns the postgres:// URL golang-migrate expects.
func MigrationURL(cfg *config.Config) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     cfg.DBHost + ":" + cfg.DBPort,
		Path:     "/" + cfg.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.DBSSLMode),
	}
	return u.String()
}

// SQLiteDSN returns the SQLite file DSN with a busy timeout and foreign keys on.
func SQLiteDSN(cfg *config.Config) string {
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", cfg.DBSQLitePath, cfg.DBTimeout.Milliseconds())
}
