// Package outfit drives a single outfit generation from the client side:
// validation, best-effort personalization, the generation call with retries,
// the local result store and the user notification.
package outfit

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"outfitapi/models"
)

const (
	MaxPromptLength           = 1000
	MaxPinterestContextLength = 2000
	MaxSelectedItems          = 10
	MaxPinterestPins          = 10
)

// RawInput is what the user typed or picked before validation.
type RawInput struct {
	Prompt           string
	Occasion         string
	Weather          *models.WeatherSnapshot
	SelectedItems    []models.ClothingItemRef
	PinterestContext string
	PinterestPins    []models.PinPreview
	Preferences      *models.StylePreferences
}

// Request is a validated and normalized generation request.
type Request struct {
	Prompt           string
	Occasion         *string
	Weather          *models.WeatherSnapshot
	SelectedItems    []models.ClothingItemRef
	PinterestContext *string
	PinterestPins    []models.PinPreview
	Preferences      *models.StylePreferences
	// RequestID identifies the logical submission, retries reuse it.
	RequestID string
}

// Validate normalizes raw input or returns a *ValidationError for the first
// violated constraint.
func Validate(raw RawInput) (Request, error) {
	prompt := strings.TrimSpace(raw.Prompt)
	if prompt == "" {
		return Request{}, &ValidationError{Field: "prompt", Reason: "prompt is required"}
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return Request{}, &ValidationError{Field: "prompt", Reason: fmt.Sprintf("prompt must be at most %d characters", MaxPromptLength)}
	}
	req := Request{Prompt: prompt, Weather: raw.Weather}

	if occasion := strings.ToLower(strings.TrimSpace(raw.Occasion)); occasion != "" {
		if !models.IsKnownOccasion(occasion) {
			return Request{}, &ValidationError{Field: "occasion", Reason: fmt.Sprintf("unknown occasion %q", raw.Occasion)}
		}
		req.Occasion = &occasion
	}

	seen := make(map[uint]bool, len(raw.SelectedItems))
	for _, item := range raw.SelectedItems {
		if item.ID == 0 {
			return Request{}, &ValidationError{Field: "selected_items", Reason: "item id is required"}
		}
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		req.SelectedItems = append(req.SelectedItems, item)
	}
	if len(req.SelectedItems) > MaxSelectedItems {
		return Request{}, &ValidationError{Field: "selected_items", Reason: fmt.Sprintf("at most %d items can be selected", MaxSelectedItems)}
	}

	if pinterestContext := strings.TrimSpace(raw.PinterestContext); pinterestContext != "" {
		if utf8.RuneCountInString(pinterestContext) > MaxPinterestContextLength {
			return Request{}, &ValidationError{Field: "pinterest_context", Reason: fmt.Sprintf("pinterest context must be at most %d characters", MaxPinterestContextLength)}
		}
		req.PinterestContext = &pinterestContext
	}

	req.PinterestPins = raw.PinterestPins
	if len(req.PinterestPins) > MaxPinterestPins {
		req.PinterestPins = req.PinterestPins[:MaxPinterestPins]
	}

	if raw.Preferences != nil && !raw.Preferences.IsEmpty() {
		prefs := *raw.Preferences
		prefs.StylePreferences = models.NormalizeList(prefs.StylePreferences)
		prefs.FavoriteColors = models.NormalizeList(prefs.FavoriteColors)
		req.Preferences = &prefs
	}
	return req, nil
}

// Payload converts the request into the generation RPC body.
func (r Request) Payload() models.GenerationRequestIn {
	return models.GenerationRequestIn{
		Prompt:           r.Prompt,
		Occasion:         r.Occasion,
		Weather:          r.Weather,
		SelectedItems:    r.SelectedItems,
		PinterestContext: r.PinterestContext,
		PinterestPins:    r.PinterestPins,
		Preferences:      r.Preferences,
		RequestID:        r.RequestID,
	}
}
