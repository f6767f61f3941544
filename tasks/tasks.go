package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"outfitapi/models"
	"outfitapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TaskProcessClothing = "clothing:process"
	TaskCacheCleanup    = "cache:cleanup"

	QueueGenerate = "generate"

	maxProcessRetries = 3
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type ClothingProcessingPayload struct {
	ClothingID uint `json:"clothing_id"`
}

func NewClothingProcessingTask(clothingID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(ClothingProcessingPayload{ClothingID: clothingID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProcessClothing, payload, asynq.Queue(QueueGenerate), asynq.MaxRetry(maxProcessRetries)), nil
}

// EnqueueClothingProcessing marks the item pending and schedules its processing task.
func EnqueueClothingProcessing(db *gorm.DB, client Enqueuer, item *models.ClothingItem, opts ...asynq.Option) error {
	task, err := NewClothingProcessingTask(item.ID)
	if err != nil {
		return err
	}
	if _, err := client.Enqueue(task, opts...); err != nil {
		sentry.CaptureException(fmt.Errorf("[Queue] Error on enqueueing clothing %v: %w", item.ID, err))
		return err
	}
	item.ProcessingStatus = models.ProcessingPending
	return db.Model(item).Update("processing_status", models.ProcessingPending).Error
}

func getFileForClothing(ctx context.Context, awsService services.AWSServiceProvider, item models.ClothingItem) ([]byte, error) {
	if item.ImageURL == nil || *item.ImageURL == "" {
		return nil, fmt.Errorf("[Clothing: %v] image url is empty", item.ID)
	}
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	fileUrl, err := awsService.GetPresignedR2FileReadURL(ctx, bucketName, *item.ImageURL)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Clothing: %v] Error on getting presigned URL for file %s", item.ID, *item.ImageURL))
		return nil, err
	}
	fmt.Printf("[Clothing: %v] Downloading... %s\n", item.ID, *item.ImageURL)
	fileBytes, err := services.ReadFileFromUrl(ctx, fileUrl)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Clothing: %v] Error on downloading file %s: %v", item.ID, *item.ImageURL, err))
		return nil, err
	}
	return fileBytes, nil
}

// ProcessedImageKey is where the whitened PNG of an item is stored.
func ProcessedImageKey(item models.ClothingItem) string {
	return fmt.Sprintf("clothes/%d/processed/%d.png", item.OwnerID, item.ID)
}

func HandleClothingProcessingTask(ctx context.Context, t *asynq.Task, db *gorm.DB, analyzer services.ClothingAnalyzer,
	awsService services.AWSServiceProvider, push services.PushSender) error {
	var payload ClothingProcessingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("[Queue] bad clothing payload %s: %v: %w", string(t.Payload()), err, asynq.SkipRetry)
	}
	fmt.Printf("[Clothing: %v] Start Processing\n", payload.ClothingID)

	var item models.ClothingItem
	if err := db.WithContext(ctx).First(&item, payload.ClothingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("[Clothing: %v] not found: %w", payload.ClothingID, asynq.SkipRetry)
		}
		sentry.CaptureException(fmt.Errorf("[Queue] Error on retrieving clothing for processing %v", payload.ClothingID))
		return err
	}
	if item.ProcessingStatus == models.ProcessingCompleted {
		fmt.Printf("[Clothing: %v] Already processed, skipping\n", item.ID)
		return nil
	}

	original, err := getFileForClothing(ctx, awsService, item)
	if err != nil {
		if item.ImageURL == nil || *item.ImageURL == "" {
			saveClothingProcessingFail(db, item, "Photo is missing, please upload it again", false)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return retryOrFail(db, item, "Failed to download the photo", err)
	}
	fmt.Printf("[Clothing: %v] Downloaded file size: %d bytes\n", item.ID, len(original))

	prepared, err := services.PrepareClothingPhoto(original)
	if err != nil {
		saveClothingProcessingFail(db, item, "We could not read this photo, please try another one", false)
		sentry.CaptureException(fmt.Errorf("[Clothing: %v] Error on preparing photo: %v", item.ID, err))
		return fmt.Errorf("[Clothing: %v] %v: %w", item.ID, err, asynq.SkipRetry)
	}

	analysis, llmResponse, err := analyzer.AnalyzeClothing(ctx, prepared, "image/png")
	if err != nil {
		return retryOrFail(db, item, "Failed to recognize the item", err)
	}

	processedKey := ProcessedImageKey(item)
	uploadURL, err := awsService.PresignLink(ctx, services.GetEnv("R2_BUCKET_NAME", ""), processedKey)
	if err != nil {
		return retryOrFail(db, item, "Failed to store the processed photo", err)
	}
	status, err := awsService.UploadToPresignedURL(ctx, uploadURL, prepared)
	if err != nil || status < 200 || status > 299 {
		if err == nil {
			err = fmt.Errorf("upload returned status %d", status)
		}
		return retryOrFail(db, item, "Failed to store the processed photo", err)
	}

	applyAnalysis(&item, analysis)
	item.ImageURL = &processedKey
	item.ProcessingStatus = models.ProcessingCompleted
	item.ProcessErrorMessage = nil
	if tx := db.WithContext(ctx).Omit("Owner").Save(&item); tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Clothing: %v] Error on saving processed item: %v", item.ID, tx.Error))
		return tx.Error
	}
	if llmResponse != nil {
		fmt.Printf("[Clothing: %v] Model: %s tokens: %d\n", item.ID, llmResponse.Model, llmResponse.TotalTokenCount)
	}
	services.RecordClothingProcessed(models.ProcessingCompleted)

	if push != nil {
		err := push.Send(ctx, item.OwnerID, "Item ready", fmt.Sprintf("%s was added to your wardrobe", item.Name), map[string]string{
			"type":        "clothing_processed",
			"clothing_id": fmt.Sprint(item.ID),
		})
		if err != nil {
			fmt.Printf("[Clothing: %v] Push failed: %v\n", item.ID, err)
		}
	}
	fmt.Printf("[Clothing: %v] Processing finished successfully\n", item.ID)
	return nil
}

func applyAnalysis(item *models.ClothingItem, analysis *models.ClothingAnalysis) {
	if analysis == nil {
		return
	}
	category := strings.ToLower(strings.TrimSpace(analysis.Category))
	for _, known := range models.ClothingCategories {
		if known == category {
			item.Category = category
			break
		}
	}
	if analysis.Color != "" {
		item.Color = strings.ToLower(analysis.Color)
	}
	if analysis.Style != "" {
		item.Style = services.StrPointer(analysis.Style)
	}
	if analysis.Brand != "" && item.Brand == nil {
		item.Brand = services.StrPointer(analysis.Brand)
	}
	if analysis.Description != "" && item.Description == nil {
		item.Description = services.StrPointer(analysis.Description)
	}
	if item.Name == "" {
		item.Name = strings.TrimSpace(analysis.Color + " " + category)
	}
	if raw, err := json.Marshal(analysis); err == nil {
		item.AIMetadata = datatypes.JSON(raw)
	}
}

// retryOrFail records the failure and lets asynq retry until the item runs out of attempts.
func retryOrFail(db *gorm.DB, item models.ClothingItem, msg string, cause error) error {
	fmt.Printf("[Clothing: %v] %s: %v\n", item.ID, msg, cause)
	final := saveClothingProcessingFail(db, item, msg, true)
	if final {
		sentry.CaptureException(fmt.Errorf("[Clothing: %v] %s: %v", item.ID, msg, cause))
		return fmt.Errorf("[Clothing: %v] %v: %w", item.ID, cause, asynq.SkipRetry)
	}
	return cause
}

// saveClothingProcessingFail reports whether the item is now terminally failed.
func saveClothingProcessingFail(db *gorm.DB, item models.ClothingItem, msg string, shouldRetry bool) bool {
	item.ProcessRetryTimes = item.ProcessRetryTimes + 1
	item.ProcessErrorMessage = &msg
	final := !shouldRetry || item.ProcessRetryTimes >= maxProcessRetries
	if final {
		item.ProcessingStatus = models.ProcessingFailed
		services.RecordClothingProcessed(models.ProcessingFailed)
	}
	tx := db.Omit("Owner").Save(&item)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Fail Clothing %v] Error on saving clothing for failed status", item.ID))
	}
	return final
}
