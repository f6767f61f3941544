package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

type Platform string

const (
	PlatformIOS      Platform = "ios"
	PlatformAndroid  Platform = "android"
	PlatformWeb      Platform = "web"
	PlatformTelegram Platform = "telegram"
)

var platformRule = regexp.MustCompile(`^(ios|android|web|telegram)$`)

func (l *Platform) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*l = Platform(v)
	case []byte:
		*l = Platform(string(v))
	}
	return nil
}

func ScanPlatform(value string) Platform {
	return Platform(value)
}

func ValidatePlatform(fl validator.FieldLevel) bool {
	return platformRule.MatchString(fl.Field().String())
}

func ValidatePlatformRaw(value string) bool {
	return platformRule.MatchString(value)
}
