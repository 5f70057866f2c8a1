// Package database owns the relational connection, schema migration, and
// the idempotent dev seed.
package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/velprakashr08-max/Frutify/internal/config"
)

// Open connects to postgres, or to a local sqlite file when no
// DATABASE_URL is configured so dev setups need no running database.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if cfg.DatabaseURL == "" {
		return gorm.Open(sqlite.Open("frutify.db"), gormCfg)
	}
	return gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
}
