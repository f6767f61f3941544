package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"outfitapi/models"
	"outfitapi/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type ProfileController struct {
	Preferences *services.PreferenceStore
}

func (controller *ProfileController) ProfileRoutes(g *echo.Group) {
	g.GET("/me", controller.Me)
	g.GET("/preferences", controller.GetPreferences)
	g.PUT("/preferences", controller.UpdatePreferences)
	g.POST("/register-push", controller.RegisterPush)
	g.POST("/telegram", controller.LinkTelegram)
}

func (controller *ProfileController) Me(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	out := models.UserInfoOut{
		Id:               user.ID,
		Name:             user.Name,
		Email:            user.Email,
		AvatarUrl:        user.AvatarURL,
		Bio:              user.Bio,
		TelegramUsername: user.TelegramUsername,
	}
	db.Model(&models.UserFollow{}).Where("followee_id = ?", user.ID).Count(&out.FollowersCount)
	db.Model(&models.UserFollow{}).Where("follower_id = ?", user.ID).Count(&out.FollowingCount)
	db.Model(&models.GeneratedOutfit{}).Where("owner_id = ?", user.ID).Count(&out.OutfitsCount)
	return c.JSON(http.StatusOK, out)
}

func (controller *ProfileController) GetPreferences(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	prefs, err := controller.Preferences.Get(c.Request().Context(), user.ID)
	if errors.Is(err, services.ErrPreferencesNotFound) {
		return c.JSON(http.StatusOK, models.UserPreferences{UserAccountID: user.ID})
	}
	if err != nil {
		fmt.Println("[Preferences] load failed", user.ID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load preferences"})
	}
	return c.JSON(http.StatusOK, prefs)
}

func (controller *ProfileController) UpdatePreferences(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	var req models.PreferencesIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	prefs, err := controller.Preferences.Upsert(c.Request().Context(), user.ID, req)
	if err != nil {
		fmt.Println("[Preferences] save failed", user.ID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save preferences"})
	}
	return c.JSON(http.StatusOK, prefs)
}

func (controller *ProfileController) RegisterPush(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	var tokenRequest = new(models.UserPushIn)

	if err := c.Bind(tokenRequest); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if !models.ValidatePlatformRaw(tokenRequest.Platform) {
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Please provide proper platform parameter"})
	}
	if err := c.Validate(tokenRequest); err != nil {
		return err
	}
	var pushData models.UserPushToken = models.UserPushToken{
		Platform:      models.ScanPlatform(tokenRequest.Platform),
		Token:         tokenRequest.Token,
		UserAccountID: user.ID,
		Active:        true,
	}

	// same device can sign in to several accounts and still receive pushes
	result := db.Where("token = ? and user_account_id = ?", tokenRequest.Token, user.ID).FirstOrCreate(&pushData)
	if result.Error != nil {
		log.Println(result.Error)
		return echo.ErrInternalServerError
	}
	if !pushData.Active {
		db.Model(&pushData).Update("active", true)
	}
	fmt.Println("Push id ", pushData.ID, " Platform: ", pushData.Platform, "User ID:", pushData.UserAccountID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "registered",
		"push_id": pushData.ID,
	})
}

func (controller *ProfileController) LinkTelegram(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	var req models.TelegramLinkIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	username := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(req.Username), "@"))
	if username == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Username is required"})
	}

	var taken int64
	db.Model(&models.UserAccount{}).Where("telegram_username = ? AND id <> ?", username, user.ID).Count(&taken)
	if taken > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "This Telegram account is linked to another user"})
	}
	if err := db.Model(&user).Update("telegram_username", username).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to link Telegram"})
	}
	return c.JSON(http.StatusOK, echo.Map{"telegram_username": username})
}
