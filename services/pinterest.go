package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"outfitapi/models"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPinterestNotConnected = errors.New("pinterest account is not connected")
	ErrPinterestState        = errors.New("pinterest oauth state mismatch")
)

type PinterestProvider interface {
	AuthURL(ctx context.Context, userID uint) (string, error)
	Connect(ctx context.Context, userID uint, code, state string) error
	Boards(ctx context.Context, userID uint) ([]models.PinterestBoard, error)
	BoardPins(ctx context.Context, userID uint, boardID string, limit int) ([]models.PinPreview, error)
	RecentPins(ctx context.Context, userID uint, limit int) ([]models.PinPreview, error)
}

// PinterestService keeps OAuth tokens on PinterestConnection rows and reads
// boards and pins through the v5 API.
type PinterestService struct {
	DB         *gorm.DB
	OAuth      *oauth2.Config
	APIBaseURL string
	limiter    *rate.Limiter
}

func NewPinterestService(db *gorm.DB) *PinterestService {
	return &PinterestService{
		DB: db,
		OAuth: &oauth2.Config{
			ClientID:     GetEnv("PINTEREST_CLIENT_ID", ""),
			ClientSecret: GetEnv("PINTEREST_CLIENT_SECRET", ""),
			RedirectURL:  GetEnv("PINTEREST_REDIRECT_URL", ""),
			Scopes:       []string{"boards:read", "pins:read", "user_accounts:read"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://www.pinterest.com/oauth/",
				TokenURL:  "https://api.pinterest.com/v5/oauth/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		APIBaseURL: "https://api.pinterest.com/v5",
		limiter:    rate.NewLimiter(rate.Limit(5), 20),
	}
}

func (s *PinterestService) AuthURL(ctx context.Context, userID uint) (string, error) {
	state := uuid.NewString()
	conn := models.PinterestConnection{UserAccountID: userID, OAuthState: state}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"oauth_state", "updated_at"}),
	}).Create(&conn).Error
	if err != nil {
		return "", err
	}
	return s.OAuth.AuthCodeURL(state), nil
}

func (s *PinterestService) Connect(ctx context.Context, userID uint, code, state string) error {
	var conn models.PinterestConnection
	if err := s.DB.WithContext(ctx).Where("user_account_id = ?", userID).First(&conn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPinterestState
		}
		return err
	}
	if conn.OAuthState == "" || conn.OAuthState != state {
		return ErrPinterestState
	}
	token, err := s.OAuth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("pinterest token exchange: %w", err)
	}
	return s.saveToken(ctx, &conn, token)
}

func (s *PinterestService) saveToken(ctx context.Context, conn *models.PinterestConnection, token *oauth2.Token) error {
	conn.AccessToken = token.AccessToken
	conn.RefreshToken = token.RefreshToken
	conn.TokenType = token.TokenType
	conn.OAuthState = ""
	conn.Connected = true
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		conn.Expiry = &expiry
	}
	return s.DB.WithContext(ctx).Save(conn).Error
}

func (s *PinterestService) client(ctx context.Context, userID uint) (*http.Client, error) {
	var conn models.PinterestConnection
	err := s.DB.WithContext(ctx).Where("user_account_id = ? and connected = ?", userID, true).First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPinterestNotConnected
	}
	if err != nil {
		return nil, err
	}
	stored := &oauth2.Token{AccessToken: conn.AccessToken, RefreshToken: conn.RefreshToken, TokenType: conn.TokenType}
	if conn.Expiry != nil {
		stored.Expiry = *conn.Expiry
	}
	source := s.OAuth.TokenSource(ctx, stored)
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("pinterest token refresh: %w", err)
	}
	if token.AccessToken != stored.AccessToken {
		if err := s.saveToken(ctx, &conn, token); err != nil {
			fmt.Println("[Pinterest] could not persist refreshed token:", err)
		}
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token)), nil
}

func (s *PinterestService) get(ctx context.Context, userID uint, path string, query url.Values, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	client, err := s.client(ctx, userID)
	if err != nil {
		return err
	}
	endpoint := s.APIBaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	client.Timeout = 15 * time.Second
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("pinterest request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrPinterestNotConnected
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pinterest returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type pinterestBoardsPage struct {
	Items []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		PinCount    int    `json:"pin_count"`
	} `json:"items"`
}

type pinterestPinsPage struct {
	Items []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Link        string `json:"link"`
		Media       struct {
			Images map[string]struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"media"`
	} `json:"items"`
}

func (p pinterestPinsPage) previews() []models.PinPreview {
	pins := make([]models.PinPreview, 0, len(p.Items))
	for _, item := range p.Items {
		preview := models.PinPreview{ID: item.ID, Title: item.Title, Description: item.Description, Link: item.Link}
		for _, size := range []string{"600x", "400x300", "150x150"} {
			if img, ok := item.Media.Images[size]; ok && img.URL != "" {
				preview.ImageURL = img.URL
				break
			}
		}
		pins = append(pins, preview)
	}
	return pins
}

func (s *PinterestService) Boards(ctx context.Context, userID uint) ([]models.PinterestBoard, error) {
	var page pinterestBoardsPage
	if err := s.get(ctx, userID, "/boards", url.Values{"page_size": {"50"}}, &page); err != nil {
		return nil, err
	}
	boards := make([]models.PinterestBoard, 0, len(page.Items))
	for _, item := range page.Items {
		boards = append(boards, models.PinterestBoard{ID: item.ID, Name: item.Name, Description: item.Description, PinCount: item.PinCount})
	}
	return boards, nil
}

func (s *PinterestService) BoardPins(ctx context.Context, userID uint, boardID string, limit int) ([]models.PinPreview, error) {
	var page pinterestPinsPage
	query := url.Values{"page_size": {fmt.Sprint(pageSize(limit))}}
	if err := s.get(ctx, userID, "/boards/"+url.PathEscape(boardID)+"/pins", query, &page); err != nil {
		return nil, err
	}
	return page.previews(), nil
}

func (s *PinterestService) RecentPins(ctx context.Context, userID uint, limit int) ([]models.PinPreview, error) {
	var page pinterestPinsPage
	if err := s.get(ctx, userID, "/pins", url.Values{"page_size": {fmt.Sprint(pageSize(limit))}}, &page); err != nil {
		return nil, err
	}
	return page.previews(), nil
}

func pageSize(limit int) int {
	if limit <= 0 || limit > 100 {
		return 25
	}
	return limit
}
