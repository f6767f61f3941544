package outfit

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Category is the user facing class of a failed generation.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryValidation
	CategoryAuth
	CategoryTransient
	CategoryNotFound
)

func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryAuth:
		return "auth"
	case CategoryTransient:
		return "transient"
	case CategoryNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Reason narrows a category down to the pattern that matched.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonOverloaded Reason = "overloaded"
	ReasonRateLimit  Reason = "rate_limit"
	ReasonServer     Reason = "server"
	ReasonConnection Reason = "connection"
	ReasonAuth       Reason = "auth"
	ReasonNoClothes  Reason = "no_clothes"
	ReasonNotFound   Reason = "not_found"
)

// ErrNoOutfit is returned when the generation service answers without an outfit.
var ErrNoOutfit = errors.New("no outfit returned by the generation service")

// ValidationError names the first constraint a request violated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Error is a classified generation failure.
type Error struct {
	Category Category
	Reason   Reason
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Category.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// GenerationError wraps a failure reported by the generation service and
// classifies it from its message.
func GenerationError(message string) *Error {
	category, reason := classifyMessage(message)
	return &Error{Category: category, Reason: reason, Message: message}
}

func newError(category Category, reason Reason, message string, err error) *Error {
	return &Error{Category: category, Reason: reason, Message: message, Err: err}
}

type pattern struct {
	needle   string
	category Category
	reason   Reason
}

// checked in order, first match wins
var patterns = []pattern{
	{"unauthorized", CategoryAuth, ReasonAuth},
	{"unauthenticated", CategoryAuth, ReasonAuth},
	{"not authenticated", CategoryAuth, ReasonAuth},
	{"invalid or expired jwt", CategoryAuth, ReasonAuth},
	{"missing or malformed jwt", CategoryAuth, ReasonAuth},
	{"forbidden", CategoryAuth, ReasonAuth},
	{"please sign in", CategoryAuth, ReasonAuth},
	{"sign in again", CategoryAuth, ReasonAuth},
	{"no clothes", CategoryNotFound, ReasonNoClothes},
	{"wardrobe is empty", CategoryNotFound, ReasonNoClothes},
	{"not found", CategoryNotFound, ReasonNotFound},
	{"overloaded", CategoryTransient, ReasonOverloaded},
	{"unavailable", CategoryTransient, ReasonOverloaded},
	{"rate limit", CategoryTransient, ReasonRateLimit},
	{"rate-limit", CategoryTransient, ReasonRateLimit},
	{"too many requests", CategoryTransient, ReasonRateLimit},
	{"resource_exhausted", CategoryTransient, ReasonRateLimit},
	{"resource exhausted", CategoryTransient, ReasonRateLimit},
	{"connection", CategoryTransient, ReasonConnection},
	{"network", CategoryTransient, ReasonConnection},
	{"timeout", CategoryTransient, ReasonConnection},
	{"timed out", CategoryTransient, ReasonConnection},
	{"internal server error", CategoryTransient, ReasonServer},
	{"bad gateway", CategoryTransient, ReasonServer},
	{"gateway timeout", CategoryTransient, ReasonConnection},
}

func classifyMessage(message string) (Category, Reason) {
	lower := strings.ToLower(message)
	for _, p := range patterns {
		if strings.Contains(lower, p.needle) {
			return p.category, p.reason
		}
	}
	return CategoryUnknown, ReasonNone
}

// Classify returns the category and reason of err.
func Classify(err error) (Category, Reason) {
	if err == nil {
		return CategoryUnknown, ReasonNone
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return CategoryValidation, ReasonNone
	}
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Category, genErr.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient, ReasonConnection
	}
	return classifyMessage(err.Error())
}

// Retryable reports whether another attempt could succeed. Validation, auth
// and not found failures are terminal.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	category, _ := Classify(err)
	return category == CategoryTransient || category == CategoryUnknown
}
