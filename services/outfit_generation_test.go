package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"outfitapi/dbhelper"
	"outfitapi/models"
	"outfitapi/services"
	"outfitapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGenerateFreshThenCached(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	shirt := test.FakeClothing(db, user.ID, "white shirt", "top", "white")
	test.FakeClothing(db, user.ID, "navy chinos", "bottom", "navy")
	composer := &test.ComposerMock{}
	svc := services.NewOutfitGenerationService(db, composer)

	in := models.GenerationRequestIn{Prompt: "business meeting outfit", RequestID: "req-1"}
	first, err := svc.Generate(context.Background(), user.ID, in)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "Smart Casual Look", first.Outfit.Title)
	assert.Len(t, first.RecommendedClothes, 2)
	assert.Equal(t, shirt.ImageURL, first.Outfit.ImageURL)
	require.NotNil(t, first.Outfit.RequestID)
	assert.Equal(t, "req-1", *first.Outfit.RequestID)

	var analysis models.OutfitAnalysis
	require.NoError(t, json.Unmarshal(first.Outfit.AIAnalysis, &analysis))
	assert.NotEmpty(t, analysis.ColorScheme)

	in.RequestID = "req-2"
	second, err := svc.Generate(context.Background(), user.ID, in)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Outfit.ID, second.Outfit.ID)
	assert.Equal(t, 1, composer.Calls)

	var entry models.GenerationCacheEntry
	require.NoError(t, db.Where("outfit_id = ?", first.Outfit.ID).First(&entry).Error)
	assert.Equal(t, 1, entry.HitCount)
	assert.Len(t, entry.Fingerprint, 64)
}

func TestGenerateDeduplicatesRequestID(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	test.FakeClothing(db, user.ID, "grey hoodie", "top", "grey")
	composer := &test.ComposerMock{}
	svc := services.NewOutfitGenerationService(db, composer)

	first, err := svc.Generate(context.Background(), user.ID, models.GenerationRequestIn{Prompt: "gym", RequestID: "same"})
	require.NoError(t, err)
	retried, err := svc.Generate(context.Background(), user.ID, models.GenerationRequestIn{Prompt: "a different prompt", RequestID: "same"})
	require.NoError(t, err)

	assert.True(t, retried.FromCache)
	assert.Equal(t, first.Outfit.ID, retried.Outfit.ID)
	assert.Equal(t, 1, composer.Calls)
	var count int64
	db.Model(&models.GeneratedOutfit{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestGenerateRequestIDIsPerOwner(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	other := test.FakeUserNamed(db, "Other", "other@example.com")
	test.FakeClothing(db, user.ID, "tee", "top", "white")
	test.FakeClothing(db, other.ID, "hoodie", "top", "grey")
	composer := &test.ComposerMock{}
	svc := services.NewOutfitGenerationService(db, composer)

	mine, err := svc.Generate(context.Background(), user.ID, models.GenerationRequestIn{Prompt: "gym", RequestID: "shared-key"})
	require.NoError(t, err)
	theirs, err := svc.Generate(context.Background(), other.ID, models.GenerationRequestIn{Prompt: "gym", RequestID: "shared-key"})
	require.NoError(t, err)

	assert.False(t, theirs.FromCache)
	assert.NotEqual(t, mine.Outfit.ID, theirs.Outfit.ID)
	assert.Equal(t, other.ID, theirs.Outfit.OwnerID)
	assert.Equal(t, 2, composer.Calls)
}

func TestGenerateExpiredCacheIsIgnored(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	test.FakeClothing(db, user.ID, "black dress", "dress", "black")
	composer := &test.ComposerMock{}
	svc := services.NewOutfitGenerationService(db, composer)
	now := time.Now()
	svc.Now = func() time.Time { return now }

	_, err := svc.Generate(context.Background(), user.ID, models.GenerationRequestIn{Prompt: "gala"})
	require.NoError(t, err)

	svc.Now = func() time.Time { return now.Add(svc.CacheTTL + time.Minute) }
	res, err := svc.Generate(context.Background(), user.ID, models.GenerationRequestIn{Prompt: "gala"})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 2, composer.Calls)

	// the fresh result replaces the expired entry
	svc.Now = func() time.Time { return now.Add(svc.CacheTTL + 2*time.Minute) }
	again, err := svc.Generate(context.Background(), user.ID, models.GenerationRequestIn{Prompt: "gala"})
	require.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, res.Outfit.ID, again.Outfit.ID)
	assert.Equal(t, 2, composer.Calls)

	var entries []models.GenerationCacheEntry
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, res.Outfit.ID, entries[0].OutfitID)
	assert.Equal(t, 1, entries[0].HitCount)
}

func TestGenerateEmptyWardrobe(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	other := test.FakeUserNamed(db, "Other", "other@example.com")
	foreign := test.FakeClothing(db, other.ID, "red scarf", "accessory", "red")
	svc := services.NewOutfitGenerationService(db, &test.ComposerMock{})

	_, err := svc.Generate(context.Background(), user.ID, models.GenerationRequestIn{Prompt: "anything"})
	assert.ErrorIs(t, err, services.ErrNoClothes)

	_, err = svc.Generate(context.Background(), user.ID, models.GenerationRequestIn{
		Prompt:        "anything",
		SelectedItems: []models.ClothingItemRef{{ID: foreign.ID}},
	})
	assert.ErrorIs(t, err, services.ErrNoClothes)
}

func TestGenerateDropsUnknownRecommendations(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	jeans := test.FakeClothing(db, user.ID, "jeans", "bottom", "blue")
	composer := &test.ComposerMock{Compose: func(in services.CompositionInput) (*services.Composition, error) {
		return &services.Composition{Title: "denim day", RecommendedClothingIDs: []uint{9999, jeans.ID, jeans.ID}}, nil
	}}
	svc := services.NewOutfitGenerationService(db, composer)

	res, err := svc.Generate(context.Background(), user.ID, models.GenerationRequestIn{Prompt: "denim"})
	require.NoError(t, err)
	assert.Equal(t, []uint{jeans.ID}, []uint(res.Outfit.RecommendedClothingIDs))

	composer.Compose = func(in services.CompositionInput) (*services.Composition, error) {
		return &services.Composition{Title: "ghost", RecommendedClothingIDs: []uint{9999}}, nil
	}
	_, err = svc.Generate(context.Background(), user.ID, models.GenerationRequestIn{Prompt: "ghost outfit"})
	assert.ErrorIs(t, err, services.ErrEmptyComposition)
}

func TestGenerateComposerErrorPassesThrough(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	test.FakeClothing(db, user.ID, "tee", "top", "green")
	overloaded := errors.New("Error 503, Message: The model is overloaded. Please try again later., Status: UNAVAILABLE")
	svc := services.NewOutfitGenerationService(db, &test.ComposerMock{Compose: func(services.CompositionInput) (*services.Composition, error) {
		return nil, overloaded
	}})

	_, err := svc.Generate(context.Background(), user.ID, models.GenerationRequestIn{Prompt: "tee"})
	assert.ErrorIs(t, err, overloaded)
	var count int64
	db.Model(&models.GeneratedOutfit{}).Count(&count)
	assert.Zero(t, count)
}

func TestDeleteOutfitCascades(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	other := test.FakeUserNamed(db, "Other", "other@example.com")
	test.FakeClothing(db, user.ID, "tee", "top", "green")
	svc := services.NewOutfitGenerationService(db, &test.ComposerMock{})

	res, err := svc.Generate(context.Background(), user.ID, models.GenerationRequestIn{Prompt: "tee"})
	require.NoError(t, err)
	outfitID := res.Outfit.ID
	db.Create(&models.OutfitLike{OutfitID: outfitID, UserAccountID: other.ID})
	db.Omit("UserAccount").Create(&models.OutfitComment{OutfitID: outfitID, UserAccountID: other.ID, Body: "nice"})

	assert.ErrorIs(t, services.DeleteOutfit(db, other.ID, outfitID), gorm.ErrRecordNotFound)
	require.NoError(t, services.DeleteOutfit(db, user.ID, outfitID))

	for _, model := range []interface{}{&models.GeneratedOutfit{}, &models.GenerationCacheEntry{}, &models.OutfitLike{}, &models.OutfitComment{}} {
		var count int64
		db.Model(model).Count(&count)
		assert.Zero(t, count)
	}
}

func TestFingerprint(t *testing.T) {
	wardrobe := []models.ClothingItem{{JsonModel: models.JsonModel{ID: 1}}, {JsonModel: models.JsonModel{ID: 2}}}
	a := services.Fingerprint(1, models.GenerationRequestIn{
		Prompt:        "Office  Day",
		SelectedItems: []models.ClothingItemRef{{ID: 2}, {ID: 1}},
	}, wardrobe)
	b := services.Fingerprint(1, models.GenerationRequestIn{
		Prompt:        "office day",
		SelectedItems: []models.ClothingItemRef{{ID: 1}, {ID: 2}},
	}, []models.ClothingItem{wardrobe[1], wardrobe[0]})
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, services.Fingerprint(2, models.GenerationRequestIn{Prompt: "office day"}, wardrobe))
	assert.NotEqual(t, a, services.Fingerprint(1, models.GenerationRequestIn{Prompt: "beach day"}, wardrobe))
}

func TestFormatTitle(t *testing.T) {
	assert.Equal(t, "Sharp Navy Suit", services.FormatTitle("  SHARP navy   suit "))
	assert.Equal(t, "Your Outfit", services.FormatTitle(""))
}

func TestEnvelope(t *testing.T) {
	res := &services.GenerationResult{Outfit: models.GeneratedOutfit{Title: "x"}, FromCache: true}
	env := res.Envelope()
	assert.True(t, env.Success)
	assert.True(t, env.Meta.FromCache)
	assert.NotNil(t, env.Data.RecommendedClothes)

	failed := services.FailureEnvelope(services.ErrNoClothes)
	assert.False(t, failed.Success)
	assert.Equal(t, services.ErrNoClothes.Error(), failed.Error)
}
