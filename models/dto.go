package models

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

// StringList decodes either a JSON list of strings or a single comma separated string.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = NormalizeList(list)
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = NormalizeList(strings.Split(single, ","))
	return nil
}

// NormalizeList trims entries and drops empty ones.
func NormalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// StylePreferences is the snapshot of UserPreferences sent along with a generation request.
type StylePreferences struct {
	BodyType         *string    `json:"body_type,omitempty"`
	StylePreferences StringList `json:"style_preferences,omitempty"`
	FavoriteColors   StringList `json:"favorite_colors,omitempty"`
	Location         *string    `json:"location,omitempty"`
	Gender           *string    `json:"gender,omitempty"`
	SkinTone         *string    `json:"skin_tone,omitempty"`
}

func (p *StylePreferences) IsEmpty() bool {
	return p == nil || (p.BodyType == nil && len(p.StylePreferences) == 0 && len(p.FavoriteColors) == 0 &&
		p.Location == nil && p.Gender == nil && p.SkinTone == nil)
}

type UserPreferences struct {
	JsonModel
	UserAccountID    uint                        `gorm:"uniqueIndex" json:"-"`
	BodyType         *string                     `json:"body_type"`
	StylePreferences datatypes.JSONSlice[string] `json:"style_preferences"`
	FavoriteColors   datatypes.JSONSlice[string] `json:"favorite_colors"`
	Location         *string                     `json:"location"`
	Gender           *string                     `json:"gender"`
	SkinTone         *string                     `json:"skin_tone"`
}

func (p UserPreferences) Snapshot() *StylePreferences {
	return &StylePreferences{
		BodyType:         p.BodyType,
		StylePreferences: StringList(p.StylePreferences),
		FavoriteColors:   StringList(p.FavoriteColors),
		Location:         p.Location,
		Gender:           p.Gender,
		SkinTone:         p.SkinTone,
	}
}

type PreferencesIn struct {
	BodyType         *string    `json:"body_type" validate:"omitempty,max=50"`
	StylePreferences StringList `json:"style_preferences" validate:"max=20"`
	FavoriteColors   StringList `json:"favorite_colors" validate:"max=20"`
	Location         *string    `json:"location" validate:"omitempty,max=120"`
	Gender           *string    `json:"gender" validate:"omitempty,max=30"`
	SkinTone         *string    `json:"skin_tone" validate:"omitempty,max=30"`
}

type WeatherSnapshot struct {
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

type PinPreview struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Link        string `json:"link"`
}

type PinterestBoard struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PinCount    int    `json:"pin_count"`
}

// GenerationRequestIn is the body of the generation RPC.
type GenerationRequestIn struct {
	Prompt           string            `json:"prompt" validate:"required,max=1000"`
	Occasion         *string           `json:"occasion" validate:"omitempty,occasion"`
	Weather          *WeatherSnapshot  `json:"weather,omitempty"`
	SelectedItems    []ClothingItemRef `json:"selected_items,omitempty" validate:"max=10"`
	PinterestContext *string           `json:"pinterest_context,omitempty" validate:"omitempty,max=2000"`
	PinterestPins    []PinPreview      `json:"pinterest_pins,omitempty" validate:"max=20"`
	Preferences      *StylePreferences `json:"preferences,omitempty"`
	RequestID        string            `json:"request_id" validate:"omitempty,max=64"`
}

type GenerationData struct {
	Outfit             *GeneratedOutfit `json:"outfit"`
	RecommendedClothes []ClothingItem   `json:"recommended_clothes"`
}

type GenerationMeta struct {
	FromCache bool `json:"from_cache"`
}

type GenerationEnvelope struct {
	Success bool            `json:"success"`
	Data    *GenerationData `json:"data,omitempty"`
	Meta    *GenerationMeta `json:"meta,omitempty"`
	Error   string          `json:"error,omitempty"`
}
