package services_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"outfitapi/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWeatherCurrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		if r.URL.Query().Get("q") == "Atlantis" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"weather":[{"main":"Rain","description":"light rain","icon":"10d"}],"main":{"temp":11.4,"humidity":81},"wind":{"speed":4.1}}`))
	}))
	defer server.Close()

	svc := services.NewOpenWeatherService("key")
	svc.BaseURL = server.URL

	snapshot, err := svc.Current(context.Background(), "Baku")
	require.NoError(t, err)
	assert.Equal(t, "Rain", snapshot.Condition)
	assert.Equal(t, 11.4, snapshot.Temperature)
	assert.Equal(t, 81, snapshot.Humidity)

	_, err = svc.Current(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, services.ErrLocationNotFound)
}

func TestOpenWeatherRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"weather":[],"main":{"temp":20}}`))
	}))
	defer server.Close()
	svc := services.NewOpenWeatherService("key")
	svc.BaseURL = server.URL

	var limited bool
	for i := 0; i < 20; i++ {
		if _, err := svc.Current(context.Background(), "Paris"); err != nil {
			assert.ErrorIs(t, err, services.ErrWeatherRateLimited)
			limited = true
			break
		}
	}
	assert.True(t, limited)
}
