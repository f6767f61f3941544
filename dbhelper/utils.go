package dbhelper

import (
	"log"

	"outfitapi/models"

	"gorm.io/gorm"
)

func SetupCleaner(db *gorm.DB) func() {

	return func() {

		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.GenerationCacheEntry{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.OutfitComment{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.OutfitLike{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.GeneratedOutfit{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ClothingItem{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserFollow{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.PinterestConnection{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserPreferences{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserPushToken{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserAccount{})
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

func Migrate(db *gorm.DB, model interface{}) {
	err := db.AutoMigrate(model)
	if err != nil {
		log.Printf("Error while migrating %T", model)
		log.Fatal(err)
	}
}
