package models

import "time"

type UserAccount struct {
	JsonModel
	Name   string `json:"name"`
	Email  string `json:"email" gorm:"unique"`
	Banned bool   `gorm:"default:false" json:"-"`
	LastIp string `json:"-"`
	//"STARTED_AUTH", "FINISHED_AUTH"
	Status           string   `json:"-"`
	GoogleID         string   `json:"-"`
	AppleID          string   `json:"-"`
	Platform         Platform `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	TelegramUsername string   `json:"telegram_username" gorm:"index"`
	AvatarURL        string   `json:"avatar_url"`
	Bio              string   `json:"bio"`

	ReceiveNotifications bool `gorm:"default:true" json:"receive_notifications"`
}

type UserPushToken struct {
	JsonModel
	UserAccountID uint        `gorm:"index"`
	UserAccount   UserAccount `json:"-"`
	Platform      Platform    `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	Token         string      `json:"token"`
	Active        bool        `gorm:"default:false" json:"-"`
}

type UserPushIn struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,platform"`
}

// PinterestConnection keeps the OAuth state while the handshake is running and
// the tokens once it completes.
type PinterestConnection struct {
	JsonModel
	UserAccountID uint       `gorm:"uniqueIndex" json:"-"`
	OAuthState    string     `gorm:"column:oauth_state" json:"-"`
	AccessToken   string     `json:"-"`
	RefreshToken  string     `json:"-"`
	TokenType     string     `json:"-"`
	Expiry        *time.Time `json:"expiry"`
	Connected     bool       `json:"connected"`
}
