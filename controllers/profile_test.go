package controllers

import (
	"net/http"
	"testing"

	"outfitapi/dbhelper"
	"outfitapi/models"
	"outfitapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfileOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db)
	user := test.FakeUser(db)
	other := test.FakeUserNamed(db, "Other", "other@example.com")
	db.Create(&models.UserFollow{FollowerID: other.ID, FolloweeID: user.ID})
	fakeOutfit(db, user.ID, "weekend", false)
	fakeOutfit(db, user.ID, "office", true)

	rec := ts.do("GET", "/shop/profile/me", user, "")

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decode(t, rec)
	assert.Equal(t, user.Name, payload["name"])
	assert.Equal(t, user.Email, payload["email"])
	assert.EqualValues(t, 1, payload["followers_count"])
	assert.EqualValues(t, 0, payload["following_count"])
	assert.EqualValues(t, 2, payload["outfits_count"])
}

func TestPreferences(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db)
	user := test.FakeUser(db)

	rec := ts.do("GET", "/shop/profile/preferences", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode(t, rec)["location"])

	body := map[string]interface{}{
		"body_type":         "athletic",
		"style_preferences": "minimal, classic ,",
		"favorite_colors":   []string{"navy", " olive "},
		"location":          "Berlin",
	}
	rec = ts.do("PUT", "/shop/profile/preferences", user, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do("GET", "/shop/profile/preferences", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decode(t, rec)
	assert.Equal(t, "athletic", payload["body_type"])
	assert.Equal(t, "Berlin", payload["location"])
	assert.Equal(t, []interface{}{"minimal", "classic"}, payload["style_preferences"])
	assert.Equal(t, []interface{}{"navy", "olive"}, payload["favorite_colors"])

	// a second save updates the same row
	rec = ts.do("PUT", "/shop/profile/preferences", user, map[string]interface{}{"location": "Paris"})
	require.Equal(t, http.StatusOK, rec.Code)
	var count int64
	db.Model(&models.UserPreferences{}).Where("user_account_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestRegisterPush(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db)
	user := test.FakeUser(db)

	param := models.UserPushIn{Token: "device-token", Platform: "ios"}
	rec := ts.do("POST", "/shop/profile/register-push", user, param)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do("POST", "/shop/profile/register-push", user, param)
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	db.Model(&models.UserPushToken{}).Where("user_account_id = ? AND token = ?", user.ID, "device-token").Count(&count)
	assert.EqualValues(t, 1, count)

	rec = ts.do("POST", "/shop/profile/register-push", user, models.UserPushIn{Token: "x", Platform: "symbian"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLinkTelegram(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	ts := newTestServer(db)
	user := test.FakeUser(db)
	other := test.FakeUserNamed(db, "Other", "other@example.com")

	rec := ts.do("POST", "/shop/profile/telegram", user, models.TelegramLinkIn{Username: "@StyleFan"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "stylefan", decode(t, rec)["telegram_username"])

	var stored models.UserAccount
	db.First(&stored, user.ID)
	assert.Equal(t, "stylefan", stored.TelegramUsername)

	rec = ts.do("POST", "/shop/profile/telegram", other, models.TelegramLinkIn{Username: "stylefan"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// relinking your own username is fine
	rec = ts.do("POST", "/shop/profile/telegram", user, models.TelegramLinkIn{Username: "StyleFan"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
