package models

import "gorm.io/datatypes"

const (
	ProcessingIdle      = "idle"
	ProcessingPending   = "pending"
	ProcessingCompleted = "completed"
	ProcessingFailed    = "failed"
)

// ClothingCategories lists the wardrobe categories accepted on upload.
var ClothingCategories = []string{"top", "bottom", "shoes", "accessory", "outerwear", "dress"}

type ClothingItem struct {
	JsonModel
	Name                string         `json:"name"`
	Description         *string        `gorm:"type:text" json:"description"`
	Category            string         `gorm:"index" json:"category"` // top, bottom, shoes, accessory, outerwear, dress
	Color               string         `json:"color"`
	Brand               *string        `json:"brand"`
	Style               *string        `json:"style"`
	Owner               UserAccount    `json:"-"`
	OwnerID             uint           `gorm:"index" json:"owner_id"`
	ImageStatus         string         `json:"image_status"`      // draft, uploaded
	ProcessingStatus    string         `json:"processing_status"` // idle, pending, completed, failed
	ProcessRetryTimes   int            `json:"process_retry_times"`
	ProcessErrorMessage *string        `json:"process_error_message"`
	ImageURL            *string        `json:"image_url"`
	AIMetadata          datatypes.JSON `json:"ai_metadata"`
}

// ClothingAnalysis is what the vision model returns for a single item photo.
type ClothingAnalysis struct {
	Category    string   `json:"category"`
	Color       string   `json:"color"`
	ColorHex    string   `json:"color_hex"`
	Style       string   `json:"style"`
	Brand       string   `json:"brand"`
	Description string   `json:"description"`
	Seasons     []string `json:"seasons"`
}

type ClothingItemRef struct {
	ID       uint   `json:"id"`
	Category string `json:"category,omitempty"`
	Color    string `json:"color,omitempty"`
}
