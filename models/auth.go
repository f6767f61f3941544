package models

import "time"

type JsonModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type GoogleAuthSignIn struct {
	IdToken  string `json:"idToken" validate:"required"`
	Platform string `json:"platform" validate:"required,platform"`
}

type AppleAuthRequest struct {
	IdentityToken     string `json:"identity_token" validate:"required"`
	Platform          string `json:"platform" validate:"required,platform"`
	AuthorizationCode string `json:"authorization_code" validate:"required"`
	// Apple sends the name only on the very first sign in
	Name string `json:"name"`
}

type RefreshTokenIn struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type SignInOut struct {
	Id           uint   `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	New          bool   `json:"new"`
	Avatar       string `json:"avatar"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type UserInfoOut struct {
	Id               uint   `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	AvatarUrl        string `json:"avatar_url"`
	Bio              string `json:"bio"`
	TelegramUsername string `json:"telegram_username"`
	FollowersCount   int64  `json:"followers_count"`
	FollowingCount   int64  `json:"following_count"`
	OutfitsCount     int64  `json:"outfits_count"`
}

type TelegramLinkIn struct {
	Username string `json:"username" validate:"required,max=64"`
}
