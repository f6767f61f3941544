package outfit

import (
	"context"
	"log"

	"outfitapi/models"
	"outfitapi/services"
)

// PreferenceSource returns the stored style preferences of a user.
type PreferenceSource interface {
	Preferences(ctx context.Context, userID uint) (*models.StylePreferences, error)
}

type PreferenceSourceFunc func(ctx context.Context, userID uint) (*models.StylePreferences, error)

func (f PreferenceSourceFunc) Preferences(ctx context.Context, userID uint) (*models.StylePreferences, error) {
	return f(ctx, userID)
}

// LoadPreferences is best effort: a missing source or any failure means
// generation continues without preferences.
func LoadPreferences(ctx context.Context, src PreferenceSource, userID uint) *models.StylePreferences {
	if src == nil {
		return nil
	}
	prefs, err := src.Preferences(ctx, userID)
	if err != nil {
		log.Printf("[Generator] preferences unavailable for user %d, continuing without: %v", userID, err)
		return nil
	}
	if prefs.IsEmpty() {
		return nil
	}
	return prefs
}

// StorePreferenceSource reads preferences from the database.
type StorePreferenceSource struct {
	Store *services.PreferenceStore
}

func (s StorePreferenceSource) Preferences(ctx context.Context, userID uint) (*models.StylePreferences, error) {
	prefs, err := s.Store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return prefs.Snapshot(), nil
}
