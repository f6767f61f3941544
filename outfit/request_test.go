package outfit

import (
	"strings"
	"testing"

	"outfitapi/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsEmptyPrompt(t *testing.T) {
	for _, prompt := range []string{"", "   ", "\n\t "} {
		_, err := Validate(RawInput{Prompt: prompt})
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "prompt", validationErr.Field)
	}
}

func TestValidateReturnsFirstViolation(t *testing.T) {
	_, err := Validate(RawInput{
		Prompt:   strings.Repeat("a", MaxPromptLength+1),
		Occasion: "funeral-party",
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "prompt", validationErr.Field)

	_, err = Validate(RawInput{Prompt: "ok", Occasion: "funeral-party"})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "occasion", validationErr.Field)
}

func TestValidateNormalizes(t *testing.T) {
	pins := make([]models.PinPreview, 15)
	req, err := Validate(RawInput{
		Prompt:   "  business meeting outfit ",
		Occasion: "Business",
		SelectedItems: []models.ClothingItemRef{
			{ID: 1, Category: "tops"}, {ID: 2}, {ID: 1, Category: "duplicate"},
		},
		PinterestContext: "  ",
		PinterestPins:    pins,
		Preferences:      &models.StylePreferences{FavoriteColors: models.StringList{" navy ", ""}},
	})
	require.NoError(t, err)
	assert.Equal(t, "business meeting outfit", req.Prompt)
	require.NotNil(t, req.Occasion)
	assert.Equal(t, "business", *req.Occasion)
	assert.Len(t, req.SelectedItems, 2)
	assert.Equal(t, "tops", req.SelectedItems[0].Category)
	assert.Nil(t, req.PinterestContext)
	assert.Len(t, req.PinterestPins, MaxPinterestPins)
	assert.Equal(t, models.StringList{"navy"}, req.Preferences.FavoriteColors)
}

func TestValidateLimits(t *testing.T) {
	items := make([]models.ClothingItemRef, 0, MaxSelectedItems+1)
	for i := 1; i <= MaxSelectedItems+1; i++ {
		items = append(items, models.ClothingItemRef{ID: uint(i)})
	}
	_, err := Validate(RawInput{Prompt: "x", SelectedItems: items})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "selected_items", validationErr.Field)

	_, err = Validate(RawInput{Prompt: "x", PinterestContext: strings.Repeat("é", MaxPinterestContextLength+1)})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "pinterest_context", validationErr.Field)

	_, err = Validate(RawInput{Prompt: strings.Repeat("é", MaxPromptLength)})
	assert.NoError(t, err)
}
