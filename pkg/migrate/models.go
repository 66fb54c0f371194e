package migrate

import (
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
)

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.InventoryLogEntry{},
		&models.ReturnRequest{},
		&models.ReturnItem{},
		&models.ReturnAdminNote{},
		&models.CustomerNotification{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// AutoMigrate creates the schema from the gorm models. It backs SQLite
// development databases and the package tests.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}
