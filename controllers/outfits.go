package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"outfitapi/models"
	"outfitapi/outfit"
	"outfitapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type OutfitResponse struct {
	models.GeneratedOutfit
	ImageUri *string `json:"image_uri,omitempty"`
}

type ShareOutfitIn struct {
	IsPublic *bool `json:"is_public" validate:"required"`
}

type OutfitsController struct {
	Generator services.OutfitGenerator
	URLCache  services.URLCacheServiceProvider
}

func (controller *OutfitsController) OutfitRoutes(g *echo.Group) {
	g.POST("/generate", controller.Generate)
	g.GET("/list", controller.ListOutfits)
	g.DELETE("/:id", controller.DeleteOutfit)
	g.PUT("/:id/share", controller.ShareOutfit)
}

// generationStatus maps a generation failure onto the HTTP status the
// clients classify again on their side.
func generationStatus(err error) int {
	if errors.Is(err, services.ErrNoClothes) {
		return http.StatusNotFound
	}
	category, reason := outfit.Classify(err)
	switch {
	case category == outfit.CategoryValidation:
		return http.StatusBadRequest
	case reason == outfit.ReasonOverloaded:
		return http.StatusServiceUnavailable
	case reason == outfit.ReasonRateLimit:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func (controller *OutfitsController) Generate(c echo.Context) error {
	if controller.Generator == nil {
		return c.JSON(http.StatusServiceUnavailable, services.FailureEnvelope(errors.New("the stylist service is unavailable")))
	}
	var req models.GenerationRequestIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, services.FailureEnvelope(errors.New("invalid request body")))
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.RequestID == "" {
		req.RequestID = c.Request().Header.Get("Idempotency-Key")
	}
	if err := c.Validate(&req); err != nil {
		message := err.Error()
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			message = fmt.Sprint(httpErr.Message)
		}
		return c.JSON(http.StatusBadRequest, services.FailureEnvelope(errors.New(message)))
	}

	user := c.Get("currentUser").(models.UserAccount)
	started := time.Now()
	res, err := controller.Generator.Generate(c.Request().Context(), user.ID, req)
	if err != nil {
		status := generationStatus(err)
		fmt.Printf("[Outfit] generation failed for user %d request %q: %v (status %d)\n", user.ID, req.RequestID, err, status)
		if status == http.StatusInternalServerError {
			sentry.CaptureException(fmt.Errorf("[Outfit] user %d: %w", user.ID, err))
		}
		return c.JSON(status, services.FailureEnvelope(err))
	}
	fmt.Printf("[Outfit: %v] generated for user %d in %s cached=%v\n", res.Outfit.ID, user.ID, time.Since(started).Round(time.Millisecond), res.FromCache)
	return c.JSON(http.StatusOK, res.Envelope())
}

func outfitResponses(c echo.Context, cache services.URLCacheServiceProvider, outfits []models.GeneratedOutfit) []OutfitResponse {
	keys := make([]string, 0, len(outfits))
	for _, o := range outfits {
		if o.ImageURL != nil {
			keys = append(keys, *o.ImageURL)
		}
	}
	urls := presignedURLs(c.Request().Context(), cache, nil, keys)
	out := make([]OutfitResponse, len(outfits))
	for i, o := range outfits {
		out[i] = OutfitResponse{GeneratedOutfit: o}
		if o.ImageURL != nil {
			if url, ok := urls[*o.ImageURL]; ok {
				out[i].ImageUri = &url
			}
		}
	}
	return out
}

func (controller *OutfitsController) ListOutfits(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}
	var outfits []models.GeneratedOutfit
	if err := db.Where("owner_id = ?", user.ID).Order("created_at desc, id desc").Limit(limit).Find(&outfits).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch outfits"})
	}
	return c.JSON(http.StatusOK, echo.Map{"outfits": outfitResponses(c, controller.URLCache, outfits)})
}

func ownedOutfit(c echo.Context, db *gorm.DB, userID uint) (*models.GeneratedOutfit, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	var o models.GeneratedOutfit
	r := db.Where("id = ? AND owner_id = ?", id, userID).Limit(1).Find(&o)
	if r.Error != nil {
		return nil, c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch outfit"})
	}
	if r.RowsAffected == 0 {
		return nil, c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit not found"})
	}
	return &o, nil
}

func (controller *OutfitsController) DeleteOutfit(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	o, err := ownedOutfit(c, db, user.ID)
	if o == nil {
		return err
	}
	if err := services.DeleteOutfit(db, user.ID, o.ID); err != nil {
		sentry.CaptureException(fmt.Errorf("[Outfit: %v] delete failed: %w", o.ID, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete outfit"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted", "id": o.ID})
}

func (controller *OutfitsController) ShareOutfit(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	var req ShareOutfitIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	o, err := ownedOutfit(c, db, user.ID)
	if o == nil {
		return err
	}
	if err := db.Model(o).Update("is_public", *req.IsPublic).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update outfit"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": o.ID, "is_public": *req.IsPublic})
}
