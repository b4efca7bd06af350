package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/prahari-health/prahari/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Open connects to Postgres and returns the database handle. The schema is
// managed separately by Migrate so tests can attach fakes instead.
func Open(cfg model.DatabaseConfig) (*gorm.DB, error) {
	logMode := logger.Warn
	if cfg.LogQueries {
		logMode = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access connection pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate creates or updates every table the pipeline persists to
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.MedicalSource{},
		&model.MedicalCondition{},
		&model.MedicalFact{},
		&model.ResponseValidation{},
		&model.EscalatedCase{},
		&model.Expert{},
		&model.Disclaimer{},
		&model.DisclaimerTracking{},
	)
}

// notFound maps gorm's sentinel to the pipeline's
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ErrNotFound
	}
	return err
}
