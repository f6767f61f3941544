package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"outfitapi/dbhelper"
	"outfitapi/models"
	"outfitapi/services"
	"outfitapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthGoogle(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db)

	param := models.GoogleAuthSignIn{IdToken: "google-id-token", Platform: "ios"}
	rec := ts.do("POST", "/auth/google", nil, param)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.SignInOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fake@example.com", resp.Email)
	assert.Equal(t, "Fake Person", resp.Name)
	assert.Equal(t, "pictureurl", resp.Avatar)
	assert.True(t, resp.New)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	var user models.UserAccount
	db.First(&user, "email = ?", "fake@example.com")
	assert.Equal(t, "123googleid", user.GoogleID)
	assert.Equal(t, "FINISHED_AUTH", user.Status)
	assert.Equal(t, models.PlatformIOS, user.Platform)

	rec = ts.do("POST", "/auth/google", nil, param)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.New)
	assert.Equal(t, user.ID, resp.Id)

	var count int64
	db.Model(&models.UserAccount{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestAuthGoogleLinksExistingEmail(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db)
	existing := test.FakeUserNamed(db, "Existing", "fake@example.com")

	rec := ts.do("POST", "/auth/google", nil, models.GoogleAuthSignIn{IdToken: "google-id-token", Platform: "android"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.SignInOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.New)
	assert.Equal(t, existing.ID, resp.Id)

	var user models.UserAccount
	db.First(&user, existing.ID)
	assert.Equal(t, "123googleid", user.GoogleID)
}

func TestAuthGoogleRejected(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db)

	rec := ts.do("POST", "/auth/google", nil, models.GoogleAuthSignIn{IdToken: "invalid", Platform: "ios"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do("POST", "/auth/google", nil, models.GoogleAuthSignIn{IdToken: "google-id-token", Platform: "symbian"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var count int64
	db.Model(&models.UserAccount{}).Count(&count)
	assert.Zero(t, count)
}

func TestAuthApple(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db)

	rec := ts.do("POST", "/auth/apple", nil, models.AppleAuthRequest{
		IdentityToken:     "identity",
		Platform:          "ios",
		AuthorizationCode: "code1",
		Name:              "Apple Person",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.SignInOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.New)
	assert.Equal(t, "apple@example.com", resp.Email)
	assert.Equal(t, "Apple Person", resp.Name)

	var user models.UserAccount
	db.First(&user, resp.Id)
	assert.Equal(t, "apple-code1", user.AppleID)
}

func TestAuthAppleRejected(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db, func(deps *ServerDeps) {
		deps.Apple = test.AppleServiceMock{Err: services.ErrAppleVerification}
	})

	rec := ts.do("POST", "/auth/apple", nil, models.AppleAuthRequest{
		IdentityToken:     "identity",
		Platform:          "ios",
		AuthorizationCode: "code1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	ts = newTestServer(db, func(deps *ServerDeps) {
		deps.Apple = test.AppleServiceMock{Identity: &services.AppleIdentity{AppleID: "apple-hidden"}}
	})
	rec = ts.do("POST", "/auth/apple", nil, models.AppleAuthRequest{
		IdentityToken:     "identity",
		Platform:          "ios",
		AuthorizationCode: "code2",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRefreshToken(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db)

	rec := ts.do("POST", "/auth/google", nil, models.GoogleAuthSignIn{IdToken: "google-id-token", Platform: "ios"})
	require.Equal(t, http.StatusOK, rec.Code)
	var signIn models.SignInOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signIn))

	rec = ts.do("POST", "/auth/refresh-token", nil, models.RefreshTokenIn{RefreshToken: signIn.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payload := decode(t, rec)
	assert.NotEmpty(t, payload["access_token"])
	assert.NotEmpty(t, payload["refresh_token"])

	// an access token is not accepted as a refresh token
	rec = ts.do("POST", "/auth/refresh-token", nil, models.RefreshTokenIn{RefreshToken: signIn.AccessToken})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do("POST", "/auth/refresh-token", nil, models.RefreshTokenIn{RefreshToken: "garbage"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshTokenRejectedOnShopRoutes(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db)
	user := test.FakeUser(db)

	refresh, err := GenerateRefreshToken(strconv.FormatUint(uint64(user.ID), 10))
	require.NoError(t, err)
	req := test.NewJSONRequest("GET", "/shop/profile/me", "")
	req.Header.Add("Authorization", "Bearer "+refresh)
	rec := ts.serve(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserMiddleware(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db)

	rec := ts.do("GET", "/shop/profile/me", &models.UserAccount{JsonModel: models.JsonModel{ID: 9999}}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	banned := test.FakeUserNamed(db, "Banned", "banned@example.com")
	db.Model(banned).Update("banned", true)
	rec = ts.do("GET", "/shop/profile/me", banned, "")
	assert.Equal(t, http.StatusLocked, rec.Code)
}
