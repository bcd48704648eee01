package persistence

import (
	"github.com/vetpms/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// AutoMigrate creates every table the repositories use
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.FinancialActModel{},
		&models.AllocationModel{},
		&models.ClaimModel{},
		&models.ClaimItemModel{},
	)
}
