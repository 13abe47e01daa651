package db

import (
	"fmt"

	"github.com/cutekitten000/backlog/models"
	"github.com/cutekitten000/backlog/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the postgres connection and migrates the schema.
func InitDB(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	if err := Migrate(conn); err != nil {
		return nil, err
	}

	utils.Log.Info("Database connected and migrated")
	return conn, nil
}

// Migrate creates or updates every table the backend owns.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&models.User{}, &models.Game{}, &models.Dlc{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
