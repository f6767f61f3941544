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

	"golang.org/x/time/rate"
)

var (
	ErrWeatherRateLimited = errors.New("weather rate limit exceeded")
	ErrLocationNotFound   = errors.New("location not found")
)

type WeatherProvider interface {
	Current(ctx context.Context, location string) (*models.WeatherSnapshot, error)
}

// OpenWeatherService queries current weather. Calls share one token bucket
// per process.
type OpenWeatherService struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	limiter *rate.Limiter
}

func NewOpenWeatherService(apiKey string) *OpenWeatherService {
	return &OpenWeatherService{
		APIKey:  apiKey,
		BaseURL: "https://api.openweathermap.org/data/2.5",
		Client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(1), 10),
	}
}

type openWeatherResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (s *OpenWeatherService) Current(ctx context.Context, location string) (*models.WeatherSnapshot, error) {
	if s.limiter != nil && !s.limiter.Allow() {
		return nil, ErrWeatherRateLimited
	}
	query := url.Values{}
	query.Set("q", location)
	query.Set("appid", s.APIKey)
	query.Set("units", "metric")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/weather?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrLocationNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrWeatherRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("weather service returned status %d", resp.StatusCode)
	}

	var body openWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("weather response: %w", err)
	}
	snapshot := &models.WeatherSnapshot{
		Temperature: body.Main.Temp,
		Humidity:    body.Main.Humidity,
		WindSpeed:   body.Wind.Speed,
	}
	if len(body.Weather) > 0 {
		snapshot.Condition = body.Weather[0].Main
		snapshot.Description = body.Weather[0].Description
		snapshot.Icon = body.Weather[0].Icon
	}
	return snapshot, nil
}
