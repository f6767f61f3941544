package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"outfitapi/models"
	"outfitapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
)

type PinterestConnectIn struct {
	Code  string `json:"code" validate:"required"`
	State string `json:"state" validate:"required"`
}

type IntegrationsController struct {
	Weather     services.WeatherProvider
	Pinterest   services.PinterestProvider
	Preferences *services.PreferenceStore
}

func (controller *IntegrationsController) WeatherRoutes(g *echo.Group) {
	g.GET("", controller.CurrentWeather)
}

func (controller *IntegrationsController) PinterestRoutes(g *echo.Group) {
	g.GET("/auth-url", controller.PinterestAuthURL)
	g.POST("/connect", controller.PinterestConnect)
	g.GET("/boards", controller.PinterestBoards)
	g.GET("/boards/:boardId/pins", controller.PinterestBoardPins)
}

func (controller *IntegrationsController) CurrentWeather(c echo.Context) error {
	if controller.Weather == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Weather is not available right now"})
	}
	user := c.Get("currentUser").(models.UserAccount)
	location := strings.TrimSpace(c.QueryParam("location"))
	if location == "" && controller.Preferences != nil {
		location, _ = controller.Preferences.Location(c.Request().Context(), user.ID)
	}
	if location == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Location is required"})
	}

	snapshot, err := controller.Weather.Current(c.Request().Context(), location)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, snapshot)
	case errors.Is(err, services.ErrWeatherRateLimited):
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many weather requests, try again shortly"})
	case errors.Is(err, services.ErrLocationNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Location not found"})
	}
	fmt.Printf("[Weather] lookup for %q failed: %v\n", location, err)
	return c.JSON(http.StatusBadGateway, map[string]string{"error": "Weather service failed"})
}

func pinterestError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrPinterestNotConnected):
		return c.JSON(http.StatusConflict, map[string]string{"error": "Pinterest is not connected"})
	case errors.Is(err, services.ErrPinterestState):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Pinterest authorization expired, please try again"})
	}
	sentry.CaptureException(fmt.Errorf("[Pinterest] %w", err))
	return c.JSON(http.StatusBadGateway, map[string]string{"error": "Pinterest request failed"})
}

func (controller *IntegrationsController) PinterestAuthURL(c echo.Context) error {
	if controller.Pinterest == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Pinterest is not available right now"})
	}
	user := c.Get("currentUser").(models.UserAccount)
	url, err := controller.Pinterest.AuthURL(c.Request().Context(), user.ID)
	if err != nil {
		return pinterestError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

func (controller *IntegrationsController) PinterestConnect(c echo.Context) error {
	if controller.Pinterest == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Pinterest is not available right now"})
	}
	var req PinterestConnectIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	user := c.Get("currentUser").(models.UserAccount)
	if err := controller.Pinterest.Connect(c.Request().Context(), user.ID, req.Code, req.State); err != nil {
		return pinterestError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"connected": true})
}

func (controller *IntegrationsController) PinterestBoards(c echo.Context) error {
	if controller.Pinterest == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Pinterest is not available right now"})
	}
	user := c.Get("currentUser").(models.UserAccount)
	boards, err := controller.Pinterest.Boards(c.Request().Context(), user.ID)
	if err != nil {
		return pinterestError(c, err)
	}
	if boards == nil {
		boards = []models.PinterestBoard{}
	}
	return c.JSON(http.StatusOK, echo.Map{"boards": boards})
}

func (controller *IntegrationsController) PinterestBoardPins(c echo.Context) error {
	if controller.Pinterest == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Pinterest is not available right now"})
	}
	user := c.Get("currentUser").(models.UserAccount)
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 || limit > 50 {
		limit = 25
	}
	pins, err := controller.Pinterest.BoardPins(c.Request().Context(), user.ID, c.Param("boardId"), limit)
	if err != nil {
		return pinterestError(c, err)
	}
	if pins == nil {
		pins = []models.PinPreview{}
	}
	return c.JSON(http.StatusOK, echo.Map{"pins": pins})
}
