package outfit

import (
	"context"
	"errors"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

const (
	MessageGenerated       = "Outfit generated successfully!"
	MessageGeneratedCached = "Outfit generated successfully (served from cache)"
)

// Notification is the single message shown for a finished submission.
type Notification struct {
	Level   Level
	Message string
	UserID  uint
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Outcome is the end state of one submission. Err is nil on success.
type Outcome struct {
	FromCache bool
	Err       error
}

// NotificationFor maps an outcome to its user facing message.
func NotificationFor(o Outcome) Notification {
	if o.Err == nil {
		if o.FromCache {
			return Notification{Level: LevelSuccess, Message: MessageGeneratedCached}
		}
		return Notification{Level: LevelSuccess, Message: MessageGenerated}
	}
	return Notification{Level: LevelError, Message: failureMessage(o.Err)}
}

func failureMessage(err error) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return "Please check your request: " + validationErr.Reason
	}
	category, reason := Classify(err)
	switch reason {
	case ReasonOverloaded:
		return "The stylist is overloaded right now. Please try again in a moment."
	case ReasonRateLimit:
		return "Too many requests. Please wait a minute and try again."
	case ReasonAuth:
		return "Please sign in again to generate outfits."
	case ReasonNoClothes:
		return "Your wardrobe is empty. Add some clothes first!"
	case ReasonConnection:
		return "Connection problem. Check your network and try again."
	case ReasonServer:
		return "The stylist service had a problem. Please try again later."
	case ReasonNotFound:
		return "Some of the selected items could not be found."
	}
	if category == CategoryValidation {
		return "Please check your request: " + err.Error()
	}
	return err.Error()
}
