package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator"
	"gorm.io/datatypes"
)

type PurchaseLink struct {
	StoreName string  `json:"store_name"`
	Price     *string `json:"price,omitempty"`
	URL       *string `json:"url,omitempty"`
}

// OutfitAnalysis is stored as JSON in GeneratedOutfit.AIAnalysis.
type OutfitAnalysis struct {
	Description  string   `json:"description"`
	StyleNotes   []string `json:"style_notes"`
	ColorScheme  string   `json:"color_scheme"`
	HarmonyScore float64  `json:"harmony_score"`
	WeatherNote  string   `json:"weather_note,omitempty"`
}

type GeneratedOutfit struct {
	JsonModel
	OwnerID                uint                              `gorm:"index;uniqueIndex:ux_owner_request,priority:1" json:"owner_id"`
	Owner                  UserAccount                       `json:"-"`
	Title                  string                            `json:"title"`
	Prompt                 string                            `gorm:"type:text" json:"prompt"`
	Mood                   *string                           `json:"mood"`
	Occasion               *string                           `json:"occasion"`
	ImageURL               *string                           `json:"image_url"`
	RecommendedClothingIDs datatypes.JSONSlice[uint]         `json:"recommended_clothing_ids"`
	AIAnalysis             datatypes.JSON                    `json:"ai_analysis"`
	PurchaseLinks          datatypes.JSONSlice[PurchaseLink] `json:"purchase_links"`
	IsPublic               bool                              `gorm:"default:false;index" json:"is_public"`
	LikesCount             int                               `gorm:"default:0" json:"likes_count"`
	CommentsCount          int                               `gorm:"default:0" json:"comments_count"`
	// client supplied id of the logical submission, retries reuse it
	RequestID             *string  `gorm:"uniqueIndex:ux_owner_request,priority:2" json:"request_id,omitempty"`
	Duration              *float64 `json:"duration"` // in seconds
	LLMModel              *string  `json:"llm_model"`
	LLMInputTokenCount    *int32   `json:"-"`
	LLMOutputTokenCount   *int32   `json:"-"`
	LLMTotalTokenCount    *int32   `json:"-"`
	LLMThoughtsTokenCount *int32   `json:"-"`
}

// GenerationCacheEntry maps a generation fingerprint to an outfit computed earlier.
type GenerationCacheEntry struct {
	JsonModel
	Fingerprint string          `gorm:"uniqueIndex;size:64" json:"fingerprint"`
	OwnerID     uint            `gorm:"index" json:"owner_id"`
	OutfitID    uint            `json:"outfit_id"`
	Outfit      GeneratedOutfit `json:"-"`
	HitCount    int             `gorm:"default:0" json:"hit_count"`
	ExpiresAt   time.Time       `gorm:"index" json:"expires_at"`
}

type OutfitLike struct {
	JsonModel
	OutfitID      uint `gorm:"uniqueIndex:ux_outfit_like" json:"outfit_id"`
	UserAccountID uint `gorm:"uniqueIndex:ux_outfit_like" json:"user_id"`
}

type OutfitComment struct {
	JsonModel
	OutfitID      uint        `gorm:"index" json:"outfit_id"`
	UserAccountID uint        `json:"user_id"`
	UserAccount   UserAccount `json:"-"`
	Body          string      `gorm:"type:text" json:"body"`
}

type UserFollow struct {
	JsonModel
	FollowerID uint `gorm:"uniqueIndex:ux_user_follow" json:"follower_id"`
	FolloweeID uint `gorm:"uniqueIndex:ux_user_follow;index" json:"followee_id"`
}

// Occasions accepted by the generator.
var Occasions = []string{
	"casual", "work", "business", "formal", "party",
	"date", "sport", "travel", "wedding", "outdoor",
}

func IsKnownOccasion(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, o := range Occasions {
		if o == value {
			return true
		}
	}
	return false
}

// ValidateOccasion accepts an empty value or one of Occasions.
func ValidateOccasion(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || IsKnownOccasion(value)
}
