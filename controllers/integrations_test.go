package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"outfitapi/dbhelper"
	"outfitapi/models"
	"outfitapi/services"
	"outfitapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentWeather(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db)
	user := test.FakeUser(db)

	rec := ts.do("GET", "/shop/weather?location=Lisbon", user, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "broken clouds in Lisbon", decode(t, rec)["description"])

	rec = ts.do("GET", "/shop/weather", user, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	location := "Oslo"
	db.Create(&models.UserPreferences{UserAccountID: user.ID, Location: &location})
	rec = ts.do("GET", "/shop/weather", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "broken clouds in Oslo", decode(t, rec)["description"])
}

func TestCurrentWeatherErrors(t *testing.T) {
	cases := []struct {
		name    string
		weather services.WeatherProvider
		status  int
	}{
		{name: "unconfigured", weather: nil, status: http.StatusServiceUnavailable},
		{name: "rate limited", weather: test.WeatherMock{Err: services.ErrWeatherRateLimited}, status: http.StatusTooManyRequests},
		{name: "unknown location", weather: test.WeatherMock{Err: services.ErrLocationNotFound}, status: http.StatusNotFound},
		{name: "upstream", weather: test.WeatherMock{Err: fmt.Errorf("dial tcp: refused")}, status: http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := dbhelper.SetupTestDB()
			cleaner := dbhelper.SetupCleaner(db)
			defer cleaner()
			weather := tc.weather
			ts := newTestServer(db, func(deps *ServerDeps) { deps.Weather = weather })
			user := test.FakeUser(db)

			rec := ts.do("GET", "/shop/weather?location=Nowhere", user, "")
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestPinterestConnect(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db, func(deps *ServerDeps) {
		deps.Pinterest = test.PinterestMock{Pins: []models.PinPreview{{ID: "p1", Title: "Linen"}, {ID: "p2", Title: "Denim"}}}
	})
	user := test.FakeUser(db)

	rec := ts.do("GET", "/shop/pinterest/auth-url", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["url"], fmt.Sprintf("state=test-%d", user.ID))

	rec = ts.do("POST", "/shop/pinterest/connect", user, PinterestConnectIn{Code: "code", State: "forged"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do("POST", "/shop/pinterest/connect", user, PinterestConnectIn{Code: "code"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do("POST", "/shop/pinterest/connect", user, PinterestConnectIn{Code: "code", State: fmt.Sprintf("test-%d", user.ID)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["connected"])

	rec = ts.do("GET", "/shop/pinterest/boards", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	boards := decode(t, rec)["boards"].([]interface{})
	require.Len(t, boards, 1)
	assert.EqualValues(t, 2, boards[0].(map[string]interface{})["pin_count"])

	rec = ts.do("GET", "/shop/pinterest/boards/b1/pins?limit=1", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["pins"], 1)
}

func TestPinterestNotConnected(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db, func(deps *ServerDeps) {
		deps.Pinterest = test.PinterestMock{Err: services.ErrPinterestNotConnected}
	})
	user := test.FakeUser(db)

	rec := ts.do("GET", "/shop/pinterest/boards", user, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do("GET", "/shop/pinterest/boards/b1/pins", user, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
