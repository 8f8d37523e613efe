package main

import (
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"masjidflow/models"
)

func initDB(cfg Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if cfg.DBAutoMigrate {
		// Migrate models individually so a failure on one doesn't block
		// the others.
		for _, model := range []interface{}{
			&models.User{},
			&models.OtpRequest{},
			&models.RefreshToken{},
		} {
			if err := db.AutoMigrate(model); err != nil {
				log.Warn("migration warning", zap.Error(err))
			}
		}
	}
	return db, nil
}
