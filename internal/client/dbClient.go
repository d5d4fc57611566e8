package client

import (
	"log"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"storefront-backend/internal/model"
)

// InitDBClient opens the database named by the DSN: a MySQL URL in
// production, a sqlite file (or nothing, for local development)
// otherwise.
func InitDBClient(databaseURL string) *gorm.DB {
	var dialector gorm.Dialector
	switch {
	case databaseURL == "":
		dialector = sqlite.Open("storefront.db")
	case strings.HasPrefix(databaseURL, "file:") || strings.HasSuffix(databaseURL, ".db"):
		dialector = sqlite.Open(databaseURL)
	default:
		dialector = mysql.Open(databaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal(err)
	}

	// Connection pool (important for webhooks)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&model.Order{},
		&model.OrderLine{},
		&model.Payment{},
		&model.StoredEvent{},
	); err != nil {
		log.Fatal(err)
	}

	return db
}
