package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"outfitapi/models"
	"outfitapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type AuthController struct {
	Google services.GoogleServiceProvider
	Apple  services.AppleServiceProvider
}

func (m *AuthController) AuthRoutes(g *echo.Group) {
	g.POST("/google", m.GoogleSignIn)
	g.POST("/apple", m.AppleSignIn)
	g.POST("/refresh-token", m.RefreshToken)
}

func signInResponse(c echo.Context, user *models.UserAccount, isNew bool) error {
	refreshToken, err := GenerateRefreshToken(UIntToStr(user.ID))
	if err != nil {
		fmt.Println(err)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, models.SignInOut{
		Id:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		New:          isNew,
		Avatar:       user.AvatarURL,
		AccessToken:  GenerateUserToken(UIntToStr(user.ID), c, 72),
		RefreshToken: refreshToken,
	})
}

func (m *AuthController) GoogleSignIn(c echo.Context) error {
	if m.Google == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Google sign in is not configured"})
	}
	googleCreds := new(models.GoogleAuthSignIn)
	if err := c.Bind(googleCreds); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if !models.ValidatePlatformRaw(googleCreds.Platform) {
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Please provide proper platform parameter"})
	}
	if err := c.Validate(googleCreds); err != nil {
		return err
	}

	payload, err := m.Google.ValidateIdToken(c.Request().Context(), googleCreds.IdToken, os.Getenv("GOOGLE_CLIENT_ID"))
	if err != nil {
		fmt.Println("[Google signin]", err)
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't verify credentials"})
	}
	googleID, _ := payload.Claims["sub"].(string)
	googleEmail, _ := payload.Claims["email"].(string)
	if googleID == "" || googleEmail == "" {
		sentry.CaptureMessage(fmt.Sprintf("Error when fetching user data %s", payload.Claims))
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't verify credentials"})
	}
	pictureUrl, _ := payload.Claims["picture"].(string)
	googleName, _ := payload.Claims["name"].(string)

	db := c.Get("__db").(*gorm.DB)
	user, isNew, err := findOrCreateUser(db, "google_id", googleID, googleEmail, models.UserAccount{
		Name:      googleName,
		Email:     googleEmail,
		GoogleID:  googleID,
		AvatarURL: pictureUrl,
		Platform:  models.ScanPlatform(googleCreds.Platform),
		LastIp:    c.RealIP(),
	})
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Google signin] %w", err))
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"message": "Internal server error"})
	}
	if user.Banned {
		return echo.ErrForbidden
	}
	return signInResponse(c, user, isNew)
}

func (m *AuthController) AppleSignIn(c echo.Context) error {
	if m.Apple == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Apple sign in is not configured"})
	}
	var req models.AppleAuthRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	identity, err := m.Apple.VerifyAuthorizationCode(c.Request().Context(), req.AuthorizationCode)
	if err != nil {
		fmt.Println("[Apple signin] error verifying:", err)
		if errors.Is(err, services.ErrAppleVerification) {
			return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't verify credentials through Apple"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if identity.Email == "" {
		fmt.Println("[Apple signin] no email in token for", identity.AppleID)
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't get your information"})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.Split(identity.Email, "@")[0]
	}
	db := c.Get("__db").(*gorm.DB)
	linkEmail := ""
	if identity.EmailVerified {
		linkEmail = identity.Email
	}
	user, isNew, err := findOrCreateUser(db, "apple_id", identity.AppleID, linkEmail, models.UserAccount{
		Name:     name,
		Email:    identity.Email,
		AppleID:  identity.AppleID,
		Platform: models.ScanPlatform(req.Platform),
		LastIp:   c.RealIP(),
	})
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Apple signin] %w", err))
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"message": "Internal server error"})
	}
	if user.Banned {
		return echo.ErrForbidden
	}
	return signInResponse(c, user, isNew)
}

// findOrCreateUser looks the account up by provider id, then by a trusted
// email, and creates it when neither matches.
func findOrCreateUser(db *gorm.DB, idColumn, providerID, email string, fresh models.UserAccount) (*models.UserAccount, bool, error) {
	var user models.UserAccount
	r := db.Where(idColumn+" = ?", providerID).Limit(1).Find(&user)
	if r.Error != nil {
		return nil, false, r.Error
	}
	if r.RowsAffected > 0 {
		db.Model(&user).Update("last_ip", fresh.LastIp)
		return &user, false, nil
	}
	if email != "" {
		r = db.Where("email = ?", email).Limit(1).Find(&user)
		if r.Error != nil {
			return nil, false, r.Error
		}
		if r.RowsAffected > 0 {
			if err := db.Model(&user).Update(idColumn, providerID).Error; err != nil {
				return nil, false, err
			}
			log.Printf("[Auth] Linked %s to existing user %d", idColumn, user.ID)
			return &user, false, nil
		}
	}
	fresh.Status = "FINISHED_AUTH"
	fresh.ReceiveNotifications = true
	if err := db.Create(&fresh).Error; err != nil {
		return nil, false, err
	}
	return &fresh, true, nil
}

func (m *AuthController) RefreshToken(c echo.Context) error {
	tokenReq := new(models.RefreshTokenIn)
	if err := c.Bind(tokenReq); err != nil {
		fmt.Println(err)
		return echo.ErrBadRequest
	}
	if tokenReq.RefreshToken == "" {
		return echo.ErrBadRequest
	}
	token, err := jwt.Parse(tokenReq.RefreshToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("Unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil {
		fmt.Println(err)
		return echo.ErrBadRequest
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid || claims["typ"] != "refresh" {
		return echo.ErrBadRequest
	}
	data, _ := claims["sub"].(string)
	userId, err := strconv.Atoi(data)
	if err != nil || userId < 1 {
		fmt.Println("Refresh: bad sub", data)
		return echo.ErrBadRequest
	}

	db := c.Get("__db").(*gorm.DB)
	var user models.UserAccount
	result := db.First(&user, userId)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return echo.ErrForbidden
	}
	if result.Error != nil {
		fmt.Println("Error getting user while refreshing token", userId)
		return echo.ErrInternalServerError
	}
	if user.Banned {
		return echo.ErrUnauthorized
	}

	t := GenerateUserToken(fmt.Sprint(userId), c, 72)
	rt, err := GenerateRefreshToken(fmt.Sprint(userId))
	if err != nil {
		fmt.Println("Error refreshing token ", err)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  t,
		"refresh_token": rt,
	})
}
