package outfit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"outfitapi/models"
	"outfitapi/services"
)

type Result struct {
	Outfit             models.GeneratedOutfit
	RecommendedClothes []models.ClothingItem
	FromCache          bool
}

// Invoker performs one call of the generation RPC.
type Invoker interface {
	Invoke(ctx context.Context, userID uint, req Request) (*Result, error)
}

// FromEnvelope unpacks a generation response. A reported failure or a missing
// outfit becomes a classified *Error.
func FromEnvelope(env *models.GenerationEnvelope) (*Result, error) {
	if env == nil {
		return nil, newError(CategoryUnknown, ReasonNone, ErrNoOutfit.Error(), ErrNoOutfit)
	}
	if !env.Success {
		message := env.Error
		if message == "" {
			message = "generation failed"
		}
		return nil, GenerationError(message)
	}
	if env.Data == nil || env.Data.Outfit == nil {
		return nil, newError(CategoryUnknown, ReasonNone, ErrNoOutfit.Error(), ErrNoOutfit)
	}
	result := &Result{
		Outfit:             *env.Data.Outfit,
		RecommendedClothes: env.Data.RecommendedClothes,
	}
	if env.Meta != nil {
		result.FromCache = env.Meta.FromCache
	}
	return result, nil
}

// LocalInvoker calls the generation service in the same process.
type LocalInvoker struct {
	Service services.OutfitGenerator
}

func (l LocalInvoker) Invoke(ctx context.Context, userID uint, req Request) (*Result, error) {
	res, err := l.Service.Generate(ctx, userID, req.Payload())
	if err != nil {
		env := services.FailureEnvelope(err)
		return FromEnvelope(&env)
	}
	env := res.Envelope()
	return FromEnvelope(&env)
}

// HTTPInvoker calls POST /shop/outfits/generate of a remote API.
type HTTPInvoker struct {
	BaseURL string
	// Token returns the bearer token used for the user.
	Token  func(ctx context.Context, userID uint) (string, error)
	Client *http.Client
}

func NewHTTPInvoker(baseURL string, token func(ctx context.Context, userID uint) (string, error)) *HTTPInvoker {
	return &HTTPInvoker{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (h *HTTPInvoker) Invoke(ctx context.Context, userID uint, req Request) (*Result, error) {
	body, err := json.Marshal(req.Payload())
	if err != nil {
		return nil, newError(CategoryValidation, ReasonNone, "could not encode request", err)
	}
	token, err := h.Token(ctx, userID)
	if err != nil {
		return nil, newError(CategoryAuth, ReasonAuth, "not authenticated: "+err.Error(), err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(h.BaseURL, "/")+"/shop/outfits/generate", bytes.NewReader(body))
	if err != nil {
		return nil, newError(CategoryUnknown, ReasonNone, err.Error(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Idempotency-Key", req.RequestID)

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, newError(CategoryTransient, ReasonConnection, fmt.Sprintf("connection error: %v", err), err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, newError(CategoryTransient, ReasonConnection, fmt.Sprintf("connection error while reading response: %v", err), err)
	}

	var env models.GenerationEnvelope
	decodeErr := json.Unmarshal(raw, &env)
	message := env.Error
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, newError(CategoryAuth, ReasonAuth, "not authenticated: "+message, nil)
	case resp.StatusCode == http.StatusLocked:
		return nil, newError(CategoryAuth, ReasonAuth, "account is locked: "+message, nil)
	case resp.StatusCode == http.StatusBadRequest:
		return nil, newError(CategoryValidation, ReasonNone, message, nil)
	case resp.StatusCode == http.StatusNotFound:
		category, reason := classifyMessage(message)
		if category != CategoryNotFound {
			category, reason = CategoryNotFound, ReasonNotFound
		}
		return nil, newError(category, reason, message, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, newError(CategoryTransient, ReasonRateLimit, "rate limit exceeded: "+message, nil)
	case resp.StatusCode == http.StatusRequestTimeout:
		return nil, newError(CategoryTransient, ReasonConnection, "connection timed out: "+message, nil)
	case resp.StatusCode >= 500:
		category, reason := classifyMessage(message)
		if category != CategoryTransient {
			category, reason = CategoryTransient, ReasonServer
		}
		return nil, newError(category, reason, message, nil)
	case resp.StatusCode >= 400:
		// any other client error is terminal
		return nil, newError(CategoryValidation, ReasonNone, message, nil)
	}
	if decodeErr != nil {
		return nil, newError(CategoryUnknown, ReasonNone, "invalid response from generation service", decodeErr)
	}
	return FromEnvelope(&env)
}
