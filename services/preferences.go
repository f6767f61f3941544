package services

import (
	"context"
	"errors"

	"outfitapi/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPreferencesNotFound = errors.New("preferences not found")

type PreferenceStore struct {
	DB *gorm.DB
}

func (s *PreferenceStore) Get(ctx context.Context, userID uint) (*models.UserPreferences, error) {
	var prefs models.UserPreferences
	err := s.DB.WithContext(ctx).Where("user_account_id = ?", userID).First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPreferencesNotFound
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// Upsert replaces the user's preferences with in.
func (s *PreferenceStore) Upsert(ctx context.Context, userID uint, in models.PreferencesIn) (*models.UserPreferences, error) {
	prefs := models.UserPreferences{
		UserAccountID:    userID,
		BodyType:         in.BodyType,
		StylePreferences: models.NormalizeList(in.StylePreferences),
		FavoriteColors:   models.NormalizeList(in.FavoriteColors),
		Location:         in.Location,
		Gender:           in.Gender,
		SkinTone:         in.SkinTone,
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"body_type", "style_preferences", "favorite_colors", "location", "gender", "skin_tone", "updated_at",
		}),
	}).Create(&prefs).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// Location returns the saved location, "" when none.
func (s *PreferenceStore) Location(ctx context.Context, userID uint) (string, error) {
	prefs, err := s.Get(ctx, userID)
	if errors.Is(err, ErrPreferencesNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if prefs.Location == nil {
		return "", nil
	}
	return *prefs.Location, nil
}
