package client

import (
	"log"
	"time"

	"license-market/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func InitSqliteClient(databasePath string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal(err)
	}

	// Connection pool (important for gateway callbacks)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		log.Fatal(err)
	}

	return db
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.PaymentTransaction{},
		&model.Order{},
		&model.OrderLineItem{},
		&model.Tool{},
		&model.LicensePlan{},
		&model.LicenseAccount{},
		&model.RenewalLog{},
		&model.TokenReservation{},
		&model.SellerPackage{},
		&model.SellerSubscription{},
	)
}
