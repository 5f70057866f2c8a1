package database

import (
	"gorm.io/gorm"

	"github.com/velprakashr08-max/Frutify/internal/catalog"
	"github.com/velprakashr08-max/Frutify/internal/orders"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&catalog.Product{},
		&catalog.Review{},
		&orders.Order{},
	)
}
