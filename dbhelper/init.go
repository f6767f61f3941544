package dbhelper

import (
	"fmt"
	"os"
	"time"

	"outfitapi/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func SetupDB() *gorm.DB {

	db, err := gorm.Open(postgres.Open(
		fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			getEnv("DB_USERNAME", ""),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_HOST", ""),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_NAME", ""),
		),
	), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		panic(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(300)
	sqlDB.SetConnMaxLifetime(time.Minute * 5)
	MigrateAll(db)

	return db
}

// SetupTestDB opens a private in-memory SQLite database with the full schema.
func SetupTestDB() *gorm.DB {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("R2_BUCKET_NAME", "test-bucket")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	// every pooled connection would get its own empty memory database
	sqlDB.SetMaxOpenConns(1)
	MigrateAll(db)
	return db
}

func MigrateAll(db *gorm.DB) {
	Migrate(db, &models.UserAccount{})
	Migrate(db, &models.UserPushToken{})
	Migrate(db, &models.UserPreferences{})
	Migrate(db, &models.PinterestConnection{})
	Migrate(db, &models.ClothingItem{})
	Migrate(db, &models.GeneratedOutfit{})
	Migrate(db, &models.GenerationCacheEntry{})
	Migrate(db, &models.OutfitLike{})
	Migrate(db, &models.OutfitComment{})
	Migrate(db, &models.UserFollow{})
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
