package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"outfitapi/colorutil"
	"outfitapi/models"

	"github.com/getsentry/sentry-go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNoClothes        = errors.New("no clothes found in your wardrobe")
	ErrEmptyComposition = errors.New("the stylist could not compose an outfit from your wardrobe")
)

const (
	maxWardrobeItems = 200
	maxTitleLength   = 80
	maxPurchaseLinks = 3
)

type OutfitGenerator interface {
	Generate(ctx context.Context, userID uint, in models.GenerationRequestIn) (*GenerationResult, error)
}

type GenerationResult struct {
	Outfit             models.GeneratedOutfit
	RecommendedClothes []models.ClothingItem
	FromCache          bool
}

func (r *GenerationResult) Envelope() models.GenerationEnvelope {
	outfit := r.Outfit
	clothes := r.RecommendedClothes
	if clothes == nil {
		clothes = []models.ClothingItem{}
	}
	return models.GenerationEnvelope{
		Success: true,
		Data:    &models.GenerationData{Outfit: &outfit, RecommendedClothes: clothes},
		Meta:    &models.GenerationMeta{FromCache: r.FromCache},
	}
}

func FailureEnvelope(err error) models.GenerationEnvelope {
	return models.GenerationEnvelope{Success: false, Error: err.Error()}
}

// OutfitGenerationService composes outfits from a user's wardrobe. Results are
// cached by fingerprint and deduplicated by request id.
type OutfitGenerationService struct {
	DB       *gorm.DB
	Composer OutfitComposer
	CacheTTL time.Duration
	Now      func() time.Time
}

func NewOutfitGenerationService(db *gorm.DB, composer OutfitComposer) *OutfitGenerationService {
	ttlHours, err := strconv.Atoi(GetEnv("GENERATION_CACHE_TTL_HOURS", "24"))
	if err != nil || ttlHours <= 0 {
		ttlHours = 24
	}
	return &OutfitGenerationService{
		DB:       db,
		Composer: composer,
		CacheTTL: time.Duration(ttlHours) * time.Hour,
		Now:      time.Now,
	}
}

func (s *OutfitGenerationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *OutfitGenerationService) Generate(ctx context.Context, userID uint, in models.GenerationRequestIn) (*GenerationResult, error) {
	db := s.DB.WithContext(ctx)

	if in.RequestID != "" {
		existing, err := s.findByRequestID(db, userID, in.RequestID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			fmt.Printf("[Outfit: %d] request %s already served\n", existing.ID, in.RequestID)
			outfitGenerations.WithLabelValues("deduplicated").Inc()
			return s.resultFor(db, *existing, true)
		}
	}

	wardrobe, err := s.loadWardrobe(db, userID, in.SelectedItems)
	if err != nil {
		return nil, err
	}
	if len(wardrobe) == 0 {
		outfitGenerations.WithLabelValues("failed").Inc()
		return nil, ErrNoClothes
	}

	fingerprint := Fingerprint(userID, in, wardrobe)
	now := s.now()
	var entry models.GenerationCacheEntry
	r := db.Preload("Outfit").Where("fingerprint = ? and expires_at > ?", fingerprint, now).Limit(1).Find(&entry)
	if r.Error != nil {
		return nil, r.Error
	}
	if r.RowsAffected > 0 && entry.Outfit.ID != 0 {
		if err := db.Model(&models.GenerationCacheEntry{}).Where("id = ?", entry.ID).UpdateColumn("hit_count", gorm.Expr("hit_count + 1")).Error; err != nil {
			fmt.Printf("[Outfit: %d] could not count cache hit: %v\n", entry.Outfit.ID, err)
			sentry.CaptureException(err)
		}
		fmt.Printf("[Outfit: %d] served from cache for user %d\n", entry.Outfit.ID, userID)
		outfitGenerations.WithLabelValues("cached").Inc()
		return s.resultFor(db, entry.Outfit, true)
	}

	started := time.Now()
	composition, llmResponse, err := s.Composer.ComposeOutfit(ctx, CompositionInput{Request: in, Wardrobe: wardrobe})
	if err != nil {
		outfitGenerations.WithLabelValues("failed").Inc()
		return nil, err
	}
	if composition == nil || len(composition.RecommendedClothingIDs) == 0 {
		outfitGenerations.WithLabelValues("failed").Inc()
		return nil, ErrEmptyComposition
	}

	recommended := pickRecommended(wardrobe, composition.RecommendedClothingIDs)
	if len(recommended) == 0 {
		outfitGenerations.WithLabelValues("failed").Inc()
		return nil, ErrEmptyComposition
	}

	outfit := s.buildOutfit(userID, in, composition, recommended)
	elapsed := time.Since(started).Seconds()
	outfit.Duration = &elapsed
	if llmResponse != nil {
		outfit.LLMModel = StrPointer(llmResponse.Model)
		outfit.LLMInputTokenCount = Int32Pointer(llmResponse.InputTokenCount)
		outfit.LLMOutputTokenCount = Int32Pointer(llmResponse.OutputTokenCount)
		outfit.LLMThoughtsTokenCount = Int32Pointer(llmResponse.ThoughtsTokenCount)
		outfit.LLMTotalTokenCount = Int32Pointer(llmResponse.TotalTokenCount)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&outfit).Error; err != nil {
			return err
		}
		// an expired entry still holds the fingerprint until cleanup runs
		if err := tx.Where("fingerprint = ? and expires_at <= ?", fingerprint, now).Delete(&models.GenerationCacheEntry{}).Error; err != nil {
			return err
		}
		cacheEntry := models.GenerationCacheEntry{
			Fingerprint: fingerprint,
			OwnerID:     userID,
			OutfitID:    outfit.ID,
			ExpiresAt:   now.Add(s.CacheTTL),
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fingerprint"}},
			DoNothing: true,
		}).Create(&cacheEntry).Error
	})
	if err != nil {
		// a concurrent attempt of the same submission may have won the insert
		if in.RequestID != "" {
			if existing, findErr := s.findByRequestID(db, userID, in.RequestID); findErr == nil && existing != nil {
				outfitGenerations.WithLabelValues("deduplicated").Inc()
				return s.resultFor(db, *existing, true)
			}
		}
		outfitGenerations.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("saving outfit: %w", err)
	}

	outfitGenerations.WithLabelValues("fresh").Inc()
	outfitGenerationSeconds.Observe(elapsed)
	fmt.Printf("[Outfit: %d] generated for user %d in %.1fs\n", outfit.ID, userID, elapsed)
	return &GenerationResult{Outfit: outfit, RecommendedClothes: recommended}, nil
}

func (s *OutfitGenerationService) findByRequestID(db *gorm.DB, userID uint, requestID string) (*models.GeneratedOutfit, error) {
	var outfit models.GeneratedOutfit
	r := db.Where("owner_id = ? and request_id = ?", userID, requestID).Limit(1).Find(&outfit)
	if r.Error != nil {
		return nil, r.Error
	}
	if r.RowsAffected == 0 {
		return nil, nil
	}
	return &outfit, nil
}

func (s *OutfitGenerationService) loadWardrobe(db *gorm.DB, userID uint, selected []models.ClothingItemRef) ([]models.ClothingItem, error) {
	var items []models.ClothingItem
	query := db.Where("owner_id = ? and processing_status <> ?", userID, models.ProcessingFailed)
	if len(selected) > 0 {
		ids := make([]uint, 0, len(selected))
		for _, ref := range selected {
			ids = append(ids, ref.ID)
		}
		query = query.Where("id IN ?", ids)
	}
	if err := query.Order("id desc").Limit(maxWardrobeItems).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// resultFor loads the clothes an outfit recommends, keeping the outfit's order.
func (s *OutfitGenerationService) resultFor(db *gorm.DB, outfit models.GeneratedOutfit, fromCache bool) (*GenerationResult, error) {
	clothes := []models.ClothingItem{}
	if len(outfit.RecommendedClothingIDs) > 0 {
		var found []models.ClothingItem
		if err := db.Where("owner_id = ? and id IN ?", outfit.OwnerID, []uint(outfit.RecommendedClothingIDs)).Find(&found).Error; err != nil {
			return nil, err
		}
		clothes = pickRecommended(found, outfit.RecommendedClothingIDs)
	}
	return &GenerationResult{Outfit: outfit, RecommendedClothes: clothes, FromCache: fromCache}, nil
}

func pickRecommended(wardrobe []models.ClothingItem, ids []uint) []models.ClothingItem {
	byID := make(map[uint]models.ClothingItem, len(wardrobe))
	for _, item := range wardrobe {
		byID[item.ID] = item
	}
	picked := make([]models.ClothingItem, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		picked = append(picked, item)
	}
	return picked
}

var titleCaser = cases.Title(language.English)

// FormatTitle title-cases and shortens a generated title.
func FormatTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return "Your Outfit"
	}
	title = titleCaser.String(strings.ToLower(title))
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = strings.TrimSpace(string([]rune(title)[:maxTitleLength]))
	}
	return title
}

func (s *OutfitGenerationService) buildOutfit(userID uint, in models.GenerationRequestIn, composition *Composition, recommended []models.ClothingItem) models.GeneratedOutfit {
	ids := make([]uint, 0, len(recommended))
	colors := make([]string, 0, len(recommended))
	var imageURL *string
	for _, item := range recommended {
		ids = append(ids, item.ID)
		if item.Color != "" {
			colors = append(colors, item.Color)
		}
		if imageURL == nil && item.ImageURL != nil {
			imageURL = item.ImageURL
		}
	}
	harmony := colorutil.PaletteHarmony(colors)
	analysis, _ := json.Marshal(models.OutfitAnalysis{
		Description:  composition.Description,
		StyleNotes:   composition.StyleNotes,
		ColorScheme:  harmony.Scheme,
		HarmonyScore: math.Round(harmony.Score*100) / 100,
		WeatherNote:  composition.WeatherNote,
	})

	links := make([]models.PurchaseLink, 0, maxPurchaseLinks)
	for _, link := range composition.PurchaseLinks {
		if strings.TrimSpace(link.StoreName) == "" {
			continue
		}
		links = append(links, link)
		if len(links) == maxPurchaseLinks {
			break
		}
	}

	return models.GeneratedOutfit{
		OwnerID:                userID,
		Title:                  FormatTitle(composition.Title),
		Prompt:                 in.Prompt,
		Mood:                   StrPointer(strings.ToLower(strings.TrimSpace(composition.Mood))),
		Occasion:               in.Occasion,
		ImageURL:               imageURL,
		RecommendedClothingIDs: datatypes.JSONSlice[uint](ids),
		AIAnalysis:             datatypes.JSON(analysis),
		PurchaseLinks:          datatypes.JSONSlice[models.PurchaseLink](links),
		RequestID:              StrPointer(in.RequestID),
	}
}

type fingerprintInput struct {
	UserID      uint                     `json:"u"`
	Prompt      string                   `json:"p"`
	Occasion    string                   `json:"o,omitempty"`
	Weather     string                   `json:"w,omitempty"`
	Selected    []uint                   `json:"s,omitempty"`
	Wardrobe    []string                 `json:"wd"`
	Preferences *models.StylePreferences `json:"pr,omitempty"`
	Pinterest   string                   `json:"pi,omitempty"`
}

// Fingerprint identifies equivalent generation requests over the same
// wardrobe. Weather is bucketed by condition and whole degrees.
func Fingerprint(userID uint, in models.GenerationRequestIn, wardrobe []models.ClothingItem) string {
	input := fingerprintInput{
		UserID:      userID,
		Prompt:      strings.ToLower(strings.Join(strings.Fields(in.Prompt), " ")),
		Preferences: in.Preferences,
	}
	if in.Occasion != nil {
		input.Occasion = strings.ToLower(*in.Occasion)
	}
	if in.Weather != nil {
		input.Weather = fmt.Sprintf("%s:%d", strings.ToLower(in.Weather.Condition), int(math.Round(in.Weather.Temperature)))
	}
	if in.PinterestContext != nil {
		input.Pinterest = *in.PinterestContext
	}
	for _, ref := range in.SelectedItems {
		input.Selected = append(input.Selected, ref.ID)
	}
	slices.Sort(input.Selected)
	for _, item := range wardrobe {
		input.Wardrobe = append(input.Wardrobe, fmt.Sprintf("%d:%d", item.ID, item.UpdatedAt.Unix()))
	}
	slices.Sort(input.Wardrobe)

	raw, _ := json.Marshal(input)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// DeleteOutfit removes an owned outfit together with its cache rows, likes
// and comments. Returns gorm.ErrRecordNotFound when the user does not own it.
func DeleteOutfit(db *gorm.DB, ownerID, outfitID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		r := tx.Where("id = ? AND owner_id = ?", outfitID, ownerID).Delete(&models.GeneratedOutfit{})
		if r.Error != nil {
			return r.Error
		}
		if r.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		for _, model := range []interface{}{&models.GenerationCacheEntry{}, &models.OutfitLike{}, &models.OutfitComment{}} {
			if err := tx.Where("outfit_id = ?", outfitID).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
