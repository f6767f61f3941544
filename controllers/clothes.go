package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"outfitapi/models"
	"outfitapi/services"
	"outfitapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type CreateClothingIn struct {
	Name        string  `json:"name" validate:"omitempty,max=100"`
	FileName    string  `json:"file_name" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Category    string  `json:"category" validate:"required,oneof=top bottom shoes accessory outerwear dress"`
	Color       string  `json:"color" validate:"omitempty,max=40"`
	Brand       *string `json:"brand" validate:"omitempty,max=80"`
	// schedule background processing once the upload had time to finish
	Process bool `json:"process"`
}

type ClothingResponse struct {
	ID               uint    `json:"id"`
	Name             string  `json:"name"`
	Description      *string `json:"description"`
	Category         string  `json:"category"`
	Color            string  `json:"color"`
	Brand            *string `json:"brand"`
	Style            *string `json:"style"`
	ImageStatus      string  `json:"image_status"`
	ProcessingStatus string  `json:"processing_status"`
	Uri              *string `json:"uri,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type ClothingCreatedResponse struct {
	ClothingResponse ClothingResponse `json:"clothes"`
	FileUploadUrl    string           `json:"file_upload_url"`
}

type ClothesListResponse struct {
	Tops        []ClothingResponse `json:"tops"`
	Bottoms     []ClothingResponse `json:"bottoms"`
	Shoes       []ClothingResponse `json:"shoes"`
	Accessories []ClothingResponse `json:"accessories"`
	Outerwear   []ClothingResponse `json:"outerwear"`
	Dresses     []ClothingResponse `json:"dresses"`
}

type ClothesController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
	Tasks      tasks.Enqueuer
}

func (controller *ClothesController) ClothingRoutes(g *echo.Group) {
	g.POST("/create", controller.CreateClothing)
	g.GET("/list", controller.ListClothes)
	g.DELETE("/:id", controller.DeleteClothing)
	g.POST("/:id/process", controller.ProcessClothing)
}

func (controller *ClothesController) CreateClothing(c echo.Context) error {
	var req CreateClothingIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if !services.IsAllowedImage(req.FileName) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Only jpg and png photos are supported"})
	}
	if controller.AWSService == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Uploads are not available right now"})
	}

	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	objectKey := fmt.Sprintf("clothes/%d/%s%s", user.ID, uuid.NewString(), strings.ToLower(filepath.Ext(req.FileName)))
	uploadURL, err := controller.AWSService.PresignLink(c.Request().Context(), services.GetEnv("R2_BUCKET_NAME", ""), objectKey)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Clothing] presign upload for user %d: %w", user.ID, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to prepare the upload"})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSpace(req.Color + " " + req.Category)
	}
	item := models.ClothingItem{
		Name:             name,
		Description:      req.Description,
		Category:         req.Category,
		Color:            strings.ToLower(req.Color),
		Brand:            req.Brand,
		OwnerID:          user.ID,
		ImageStatus:      "draft",
		ProcessingStatus: models.ProcessingIdle,
		ImageURL:         &objectKey,
	}
	if err := db.Omit("Owner").Create(&item).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create clothing item"})
	}

	if req.Process && controller.Tasks != nil {
		if err := tasks.EnqueueClothingProcessing(db, controller.Tasks, &item, asynq.ProcessIn(time.Minute)); err != nil {
			fmt.Printf("[Clothing: %v] could not schedule processing: %v\n", item.ID, err)
		}
	}

	return c.JSON(http.StatusCreated, ClothingCreatedResponse{
		ClothingResponse: clothingResponse(item, nil),
		FileUploadUrl:    uploadURL,
	})
}

func clothingResponse(item models.ClothingItem, uri *string) ClothingResponse {
	return ClothingResponse{
		ID:               item.ID,
		Name:             item.Name,
		Description:      item.Description,
		Category:         item.Category,
		Color:            item.Color,
		Brand:            item.Brand,
		Style:            item.Style,
		ImageStatus:      item.ImageStatus,
		ProcessingStatus: item.ProcessingStatus,
		Uri:              uri,
		CreatedAt:        item.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:        item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// presignedURLs resolves read urls through the url cache. When the cache
// itself fails every key falls back to a direct presign.
func presignedURLs(ctx context.Context, cache services.URLCacheServiceProvider, aws services.AWSServiceProvider, keys []string) map[string]string {
	if len(keys) == 0 {
		return map[string]string{}
	}
	if cache != nil {
		urls, err := cache.GetReadURLs(ctx, keys)
		if err == nil {
			return urls
		}
		log.Printf("CACHE WARNING: Cache system failed for %d keys: %v. Triggering manual R2 fallback.", len(keys), err)
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("failure_type", "cache_system")
			sentry.CaptureException(err)
		})
	}
	urls := map[string]string{}
	if aws == nil {
		return urls
	}
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	for _, key := range keys {
		if key == "" {
			continue
		}
		url, err := aws.GetPresignedR2FileReadURL(ctx, bucketName, key)
		if err != nil {
			log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", key, err)
			sentry.CaptureException(err)
			continue
		}
		urls[key] = url
	}
	return urls
}

func (controller *ClothesController) populatePresignedClothingImages(ctx context.Context, clothes []models.ClothingItem) []ClothingResponse {
	keys := make([]string, 0, len(clothes))
	for _, item := range clothes {
		if item.ImageURL != nil {
			keys = append(keys, *item.ImageURL)
		}
	}
	urls := presignedURLs(ctx, controller.URLCache, controller.AWSService, keys)

	responses := make([]ClothingResponse, len(clothes))
	for i, item := range clothes {
		var uri *string
		if item.ImageURL != nil {
			if url, ok := urls[*item.ImageURL]; ok {
				uri = &url
			}
		}
		responses[i] = clothingResponse(item, uri)
	}
	return responses
}

func (controller *ClothesController) ListClothes(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	var clothes []models.ClothingItem
	if err := db.Where("owner_id = ?", user.ID).Order("created_at desc").Find(&clothes).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch clothes"})
	}
	processed := controller.populatePresignedClothingImages(c.Request().Context(), clothes)

	response := ClothesListResponse{
		Tops:        []ClothingResponse{},
		Bottoms:     []ClothingResponse{},
		Shoes:       []ClothingResponse{},
		Accessories: []ClothingResponse{},
		Outerwear:   []ClothingResponse{},
		Dresses:     []ClothingResponse{},
	}
	for _, resp := range processed {
		switch resp.Category {
		case "top":
			response.Tops = append(response.Tops, resp)
		case "bottom":
			response.Bottoms = append(response.Bottoms, resp)
		case "shoes":
			response.Shoes = append(response.Shoes, resp)
		case "accessory":
			response.Accessories = append(response.Accessories, resp)
		case "outerwear":
			response.Outerwear = append(response.Outerwear, resp)
		case "dress":
			response.Dresses = append(response.Dresses, resp)
		}
	}
	return c.JSON(http.StatusOK, response)
}

func (controller *ClothesController) findOwned(c echo.Context) (*models.ClothingItem, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	var item models.ClothingItem
	r := db.Where("id = ? AND owner_id = ?", id, user.ID).Limit(1).Find(&item)
	if r.Error != nil {
		return nil, c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch clothing item"})
	}
	if r.RowsAffected == 0 {
		return nil, c.JSON(http.StatusNotFound, map[string]string{"error": "Clothing item not found"})
	}
	return &item, nil
}

func (controller *ClothesController) DeleteClothing(c echo.Context) error {
	item, err := controller.findOwned(c)
	if item == nil {
		return err
	}
	db := c.Get("__db").(*gorm.DB)
	if err := db.Delete(item).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete clothing item"})
	}
	if item.ImageURL != nil && controller.URLCache != nil {
		controller.URLCache.Invalidate(c.Request().Context(), *item.ImageURL)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted", "id": item.ID})
}

func (controller *ClothesController) ProcessClothing(c echo.Context) error {
	item, err := controller.findOwned(c)
	if item == nil {
		return err
	}
	if controller.Tasks == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Processing is not available right now"})
	}
	if item.ProcessingStatus == models.ProcessingPending {
		return c.JSON(http.StatusAccepted, clothingResponse(*item, nil))
	}
	db := c.Get("__db").(*gorm.DB)
	db.Model(item).Updates(map[string]interface{}{"image_status": "uploaded", "process_retry_times": 0, "process_error_message": nil})
	item.ImageStatus = "uploaded"
	if err := tasks.EnqueueClothingProcessing(db, controller.Tasks, item); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Sorry, could not start processing, please try again"})
	}
	fmt.Printf("[Queue] Clothing processing task submitted, Clothing ID: %v\n", item.ID)
	return c.JSON(http.StatusAccepted, clothingResponse(*item, nil))
}
