package config

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"alfredoptarigan/cv-copilot/internal/models"
)

func InitDatabase(cfg *Config, log *zap.SugaredLogger) (*gorm.DB, error) {
	dsn := cfg.GetDatabaseDSN()

	logLevel := logger.Silent
	if cfg.IsDevelopment() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	log.Info("✅ Database connected successfully")

	if err := db.AutoMigrate(&models.AnalysisResult{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	log.Info("✅ Database migration completed")

	return db, nil
}
