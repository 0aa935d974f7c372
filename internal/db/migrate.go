package db

import (
	"predmarket/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Market{},
		&models.Position{},
		&models.BondRecord{},
		&models.DisputeSignal{},
		&models.Claim{},
		&models.Transfer{},
		&models.MarketEvent{},
		&models.Parameter{},
	)
}
