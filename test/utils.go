package test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	"outfitapi/models"
	"outfitapi/services"

	"github.com/golang-jwt/jwt/v4"
	"github.com/hibiken/asynq"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	req := NewJSONRequest(method, target, param)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", GenerateUserToken(userPk)))
	return req
}

func NewJSONAuthRequestRaw(method string, target string, userPk string, json string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(json))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", GenerateUserToken(userPk)))
	return req
}

func NewRefString(data string) *string {
	return &data
}

func FakeUser(db *gorm.DB) *models.UserAccount {
	return FakeUserNamed(db, "OurName", "email@example.com")
}

func FakeUserNamed(db *gorm.DB, name string, email string) *models.UserAccount {
	user := &models.UserAccount{
		Name:                 name,
		Email:                email,
		GoogleID:             "google-" + email,
		Platform:             models.PlatformIOS,
		LastIp:               "123.122.122.122",
		Status:               "FINISHED_AUTH",
		AvatarURL:            "pictureurl",
		ReceiveNotifications: true,
	}
	db.Create(user)
	tokenDb := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      "android",
		Token:         "fcm-token-" + email,
		Active:        true,
	}
	db.Create(&tokenDb)
	return user
}

func FakeClothing(db *gorm.DB, ownerID uint, name, category, color string) *models.ClothingItem {
	item := &models.ClothingItem{
		Name:             name,
		Category:         category,
		Color:            color,
		OwnerID:          ownerID,
		ImageStatus:      "uploaded",
		ProcessingStatus: models.ProcessingCompleted,
		ImageURL:         NewRefString(fmt.Sprintf("clothes/%d/%s.png", ownerID, strings.ReplaceAll(name, " ", "-"))),
	}
	db.Create(item)
	return item
}

type GoogleServiceMock struct{}

func (gsm GoogleServiceMock) ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {
	if idToken == "invalid" {
		return nil, fmt.Errorf("idtoken: invalid token")
	}
	return &idtoken.Payload{Issuer: "Issue", Audience: "AAA", Expires: 119919191919, IssuedAt: 12312321321, Subject: "123googleid", Claims: map[string]interface{}{
		"email":   "fake@example.com",
		"picture": "pictureurl",
		"name":    "Fake Person",
		"sub":     "123googleid",
	}}, nil
}

type AppleServiceMock struct {
	Identity *services.AppleIdentity
	Err      error
}

func (m AppleServiceMock) VerifyAuthorizationCode(ctx context.Context, code string) (*services.AppleIdentity, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Identity != nil {
		return m.Identity, nil
	}
	return &services.AppleIdentity{AppleID: "apple-" + code, Email: "apple@example.com", EmailVerified: true}, nil
}

type AWSProviderMock struct {
	MockUrl string

	mu      sync.Mutex
	Uploads map[string][]byte
}

func (awsService *AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService *AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {
	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService *AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	if awsService.MockUrl != "" {
		return awsService.MockUrl, nil
	}
	return "https://fakebucketurl.com/read/" + fileKey, nil
}

func (awsService *AWSProviderMock) UploadToPresignedURL(ctx context.Context, url string, fileContent []byte) (int, error) {
	awsService.mu.Lock()
	defer awsService.mu.Unlock()
	if awsService.Uploads == nil {
		awsService.Uploads = map[string][]byte{}
	}
	awsService.Uploads[url] = fileContent
	return 204, nil
}

type URLCacheMock struct{}

func (URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", nil
	}
	return "https://cdn.test/" + objectKey, nil
}

func (m URLCacheMock) GetReadURLs(ctx context.Context, objectKeys []string) (map[string]string, error) {
	urls := map[string]string{}
	for _, key := range objectKeys {
		if key != "" {
			urls[key], _ = m.GetReadURL(ctx, key)
		}
	}
	return urls, nil
}

func (URLCacheMock) Invalidate(ctx context.Context, objectKey string) error {
	return nil
}

// ComposerMock recommends the first item of every category unless Compose is set.
type ComposerMock struct {
	Compose func(in services.CompositionInput) (*services.Composition, error)

	mu    sync.Mutex
	Calls int
}

func (m *ComposerMock) ComposeOutfit(ctx context.Context, in services.CompositionInput) (*services.Composition, *services.LLMResponse, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.Compose != nil {
		composition, err := m.Compose(in)
		return composition, &services.LLMResponse{Model: "test-model", IsTest: true}, err
	}
	seen := map[string]bool{}
	var ids []uint
	for _, item := range in.Wardrobe {
		if seen[item.Category] {
			continue
		}
		seen[item.Category] = true
		ids = append(ids, item.ID)
	}
	return &services.Composition{
		Title:                  "smart casual look",
		Mood:                   "Confident",
		Description:            "A clean look for " + in.Request.Prompt,
		RecommendedClothingIDs: ids,
		StyleNotes:             []string{"Tuck the shirt in"},
		PurchaseLinks:          []models.PurchaseLink{{StoreName: "Local Store"}},
	}, &services.LLMResponse{Model: "test-model", InputTokenCount: 10, OutputTokenCount: 20, TotalTokenCount: 30, IsTest: true}, nil
}

type AnalyzerMock struct {
	Analysis *models.ClothingAnalysis
	Err      error
}

func (m AnalyzerMock) AnalyzeClothing(ctx context.Context, image []byte, mimeType string) (*models.ClothingAnalysis, *services.LLMResponse, error) {
	if m.Err != nil {
		return nil, nil, m.Err
	}
	analysis := m.Analysis
	if analysis == nil {
		analysis = &models.ClothingAnalysis{Category: "top", Color: "navy", ColorHex: "#000080", Style: "casual", Description: "A navy shirt"}
	}
	return analysis, &services.LLMResponse{Model: "test-model", IsTest: true}, nil
}

type WeatherMock struct {
	Snapshot *models.WeatherSnapshot
	Err      error
}

func (m WeatherMock) Current(ctx context.Context, location string) (*models.WeatherSnapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Snapshot != nil {
		return m.Snapshot, nil
	}
	return &models.WeatherSnapshot{Temperature: 18, Condition: "Clouds", Description: "broken clouds in " + location, Humidity: 60, WindSpeed: 3.2}, nil
}

type PinterestMock struct {
	Pins []models.PinPreview
	Err  error
}

func (m PinterestMock) AuthURL(ctx context.Context, userID uint) (string, error) {
	return fmt.Sprintf("https://www.pinterest.com/oauth/?state=test-%d", userID), nil
}

func (m PinterestMock) Connect(ctx context.Context, userID uint, code, state string) error {
	if state != fmt.Sprintf("test-%d", userID) {
		return services.ErrPinterestState
	}
	return m.Err
}

func (m PinterestMock) Boards(ctx context.Context, userID uint) ([]models.PinterestBoard, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return []models.PinterestBoard{{ID: "b1", Name: "Autumn looks", PinCount: len(m.Pins)}}, nil
}

func (m PinterestMock) BoardPins(ctx context.Context, userID uint, boardID string, limit int) ([]models.PinPreview, error) {
	return m.RecentPins(ctx, userID, limit)
}

func (m PinterestMock) RecentPins(ctx context.Context, userID uint, limit int) ([]models.PinPreview, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if limit > 0 && len(m.Pins) > limit {
		return m.Pins[:limit], nil
	}
	return m.Pins, nil
}

type SentPush struct {
	UserID uint
	Title  string
	Body   string
	Data   map[string]string
}

type PushMock struct {
	mu   sync.Mutex
	Sent []SentPush
}

func (m *PushMock) Send(ctx context.Context, userID uint, title, body string, data map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentPush{UserID: userID, Title: title, Body: body, Data: data})
	return nil
}

func (m *PushMock) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

type EnqueuerMock struct {
	mu    sync.Mutex
	Tasks []*asynq.Task
}

func (m *EnqueuerMock) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tasks = append(m.Tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(m.Tasks)), Type: task.Type()}, nil
}
