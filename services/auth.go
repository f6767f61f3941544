package services

import (
	"context"
	"errors"
	"fmt"

	apple "github.com/Timothylock/go-signin-with-apple/apple"
	"google.golang.org/api/idtoken"
)

type GoogleServiceProvider interface {
	ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

type GoogleService struct {
}

func (gs GoogleService) ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {
	return idtoken.Validate(ctx, idToken, audience)
}

// AppleIdentity is what a verified Sign in with Apple code tells about the user.
type AppleIdentity struct {
	AppleID       string
	Email         string
	EmailVerified bool
}

var ErrAppleVerification = errors.New("could not verify credentials through Apple")

type AppleServiceProvider interface {
	VerifyAuthorizationCode(ctx context.Context, code string) (*AppleIdentity, error)
}

type AppleService struct {
	TeamID   string
	KeyID    string
	ClientID string
}

func NewAppleService() *AppleService {
	return &AppleService{
		TeamID:   GetEnv("APPLE_TEAM_ID", ""),
		KeyID:    GetEnv("APPLE_KEY_ID", ""),
		ClientID: GetEnv("APPLE_CLIENT_ID", ""),
	}
}

func (s *AppleService) VerifyAuthorizationCode(ctx context.Context, code string) (*AppleIdentity, error) {
	privateKey, err := DecodeBase64EnvPrivateKey("APPLE_SIGNIN_PKEY_BASE64")
	if err != nil {
		return nil, err
	}
	secret, err := apple.GenerateClientSecret(privateKey, s.TeamID, s.ClientID, s.KeyID)
	if err != nil {
		return nil, fmt.Errorf("apple client secret: %w", err)
	}

	var resp apple.ValidationResponse
	err = apple.New().VerifyAppToken(ctx, apple.AppValidationTokenRequest{
		ClientID:     s.ClientID,
		ClientSecret: secret,
		Code:         code,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAppleVerification, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s - %s", ErrAppleVerification, resp.Error, resp.ErrorDescription)
	}

	unique, err := apple.GetUniqueID(resp.IDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAppleVerification, err)
	}
	claim, err := apple.GetClaims(resp.IDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAppleVerification, err)
	}
	identity := &AppleIdentity{AppleID: unique}
	identity.Email, _ = (*claim)["email"].(string)
	identity.EmailVerified, _ = (*claim)["email_verified"].(bool)
	return identity, nil
}
