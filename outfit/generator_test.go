package outfit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"outfitapi/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	mu      sync.Mutex
	calls   []Request
	respond func(attempt int, req Request) (*Result, error)
}

func (f *fakeInvoker) Invoke(_ context.Context, _ uint, req Request) (*Result, error) {
	f.mu.Lock()
	attempt := len(f.calls)
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.respond(attempt, req)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

type staticSource struct {
	name  string
	delay time.Duration
	apply func(*Request)
	err   error
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Fetch(ctx context.Context, _ uint) (func(*Request), error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.apply, s.err
}

func newTestGenerator(invoker Invoker) (*Generator, *Store, *recordingNotifier, *[]time.Duration) {
	store := NewStore()
	notifier := &recordingNotifier{}
	g := NewGenerator(invoker, store, notifier)
	delays := &[]time.Duration{}
	g.Backoff.Sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return g, store, notifier, delays
}

func outfitResult(id uint, title string, fromCache bool) *Result {
	o := models.GeneratedOutfit{Title: title}
	o.ID = id
	return &Result{Outfit: o, FromCache: fromCache}
}

func TestGenerateRejectsBlankPromptWithoutInvoking(t *testing.T) {
	invoker := &fakeInvoker{respond: func(int, Request) (*Result, error) {
		t.Fatal("invoker must not be called")
		return nil, nil
	}}
	g, store, notifier, _ := newTestGenerator(invoker)

	_, err := g.Generate(context.Background(), 1, RawInput{Prompt: "   "})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, invoker.calls)
	assert.Empty(t, store.List(1))
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, LevelError, notifier.sent[0].Level)
}

func TestGeneratePrependsOnSuccess(t *testing.T) {
	invoker := &fakeInvoker{respond: func(int, Request) (*Result, error) {
		return outfitResult(2, "New", false), nil
	}}
	g, store, notifier, _ := newTestGenerator(invoker)
	old := models.GeneratedOutfit{Title: "Old"}
	old.ID = 1
	store.Load(7, []models.GeneratedOutfit{old})

	res, err := g.Generate(context.Background(), 7, RawInput{Prompt: "weekend brunch"})

	require.NoError(t, err)
	assert.Equal(t, uint(2), res.Outfit.ID)
	list := store.List(7)
	require.Len(t, list, 2)
	assert.Equal(t, uint(2), list[0].ID)
	assert.Equal(t, uint(1), list[1].ID)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, MessageGenerated, notifier.sent[0].Message)
	assert.Equal(t, uint(7), notifier.sent[0].UserID)
}

func TestGenerateFailureLeavesStoreUnchanged(t *testing.T) {
	invoker := &fakeInvoker{respond: func(int, Request) (*Result, error) {
		return nil, GenerationError("503 UNAVAILABLE: the model is overloaded")
	}}
	g, store, notifier, delays := newTestGenerator(invoker)
	old := models.GeneratedOutfit{Title: "Old"}
	old.ID = 1
	store.Load(7, []models.GeneratedOutfit{old})

	_, err := g.Generate(context.Background(), 7, RawInput{Prompt: "date night"})

	require.Error(t, err)
	assert.Len(t, invoker.calls, 4)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *delays)
	assert.Equal(t, []models.GeneratedOutfit{old}, store.List(7))
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, LevelError, notifier.sent[0].Level)
	assert.Contains(t, notifier.sent[0].Message, "overloaded")
}

func TestGenerateReusesRequestIDAcrossRetries(t *testing.T) {
	invoker := &fakeInvoker{respond: func(attempt int, _ Request) (*Result, error) {
		if attempt == 0 {
			return nil, GenerationError("connection reset by peer")
		}
		return outfitResult(3, "Retried", false), nil
	}}
	g, _, _, _ := newTestGenerator(invoker)

	_, err := g.Generate(context.Background(), 1, RawInput{Prompt: "hiking"})
	require.NoError(t, err)
	require.Len(t, invoker.calls, 2)
	assert.NotEmpty(t, invoker.calls[0].RequestID)
	assert.Equal(t, invoker.calls[0].RequestID, invoker.calls[1].RequestID)

	_, err = g.Generate(context.Background(), 1, RawInput{Prompt: "hiking"})
	require.NoError(t, err)
	assert.NotEqual(t, invoker.calls[0].RequestID, invoker.calls[2].RequestID)
}

func TestGenerateDoesNotRetryNoClothes(t *testing.T) {
	invoker := &fakeInvoker{respond: func(int, Request) (*Result, error) {
		return nil, GenerationError("no clothes found in your wardrobe")
	}}
	g, _, notifier, delays := newTestGenerator(invoker)

	_, err := g.Generate(context.Background(), 1, RawInput{Prompt: "gym"})

	require.Error(t, err)
	assert.Len(t, invoker.calls, 1)
	assert.Empty(t, *delays)
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0].Message, "wardrobe is empty")
}

func TestBusinessMeetingWithoutPreferences(t *testing.T) {
	invoker := &fakeInvoker{respond: func(_ int, req Request) (*Result, error) {
		return outfitResult(9, "Sharp Navy Suit", false), nil
	}}
	g, store, notifier, _ := newTestGenerator(invoker)
	g.Preferences = PreferenceSourceFunc(func(context.Context, uint) (*models.StylePreferences, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	res, err := g.Generate(context.Background(), 4, RawInput{Prompt: "business meeting outfit"})

	require.NoError(t, err)
	assert.Equal(t, "Sharp Navy Suit", res.Outfit.Title)
	require.Len(t, invoker.calls, 1)
	assert.Equal(t, "business meeting outfit", invoker.calls[0].Prompt)
	assert.Nil(t, invoker.calls[0].Preferences)
	assert.Len(t, store.List(4), 1)
	require.Len(t, notifier.sent, 1)
	assert.True(t, strings.Contains(strings.ToLower(notifier.sent[0].Message), "generated successfully"))
}

func TestGenerateCachedNotification(t *testing.T) {
	invoker := &fakeInvoker{respond: func(int, Request) (*Result, error) {
		return outfitResult(5, "Cached", true), nil
	}}
	g, store, notifier, _ := newTestGenerator(invoker)

	_, err := g.Generate(context.Background(), 1, RawInput{Prompt: "party"})

	require.NoError(t, err)
	assert.Len(t, store.List(1), 1)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, MessageGeneratedCached, notifier.sent[0].Message)
}

func TestGenerateFoldsReadyContextAndDropsSlowOnes(t *testing.T) {
	invoker := &fakeInvoker{respond: func(int, Request) (*Result, error) {
		return outfitResult(1, "Rainy", false), nil
	}}
	g, _, _, _ := newTestGenerator(invoker)
	g.Preferences = PreferenceSourceFunc(func(context.Context, uint) (*models.StylePreferences, error) {
		time.Sleep(20 * time.Millisecond)
		return &models.StylePreferences{FavoriteColors: models.StringList{"green"}}, nil
	})
	summary := "slow pins"
	g.Context = []ContextSource{
		staticSource{name: "weather", apply: func(r *Request) {
			r.Weather = &models.WeatherSnapshot{Condition: "Rain", Temperature: 9}
		}},
		staticSource{name: "pinterest", delay: time.Second, apply: func(r *Request) {
			r.PinterestContext = &summary
		}},
		staticSource{name: "broken", err: errors.New("boom")},
	}

	_, err := g.Generate(context.Background(), 1, RawInput{Prompt: "commute"})

	require.NoError(t, err)
	require.Len(t, invoker.calls, 1)
	req := invoker.calls[0]
	require.NotNil(t, req.Weather)
	assert.Equal(t, "Rain", req.Weather.Condition)
	assert.Nil(t, req.PinterestContext)
	require.NotNil(t, req.Preferences)
	assert.Equal(t, models.StringList{"green"}, req.Preferences.FavoriteColors)
}

func TestGenerateStateTransitions(t *testing.T) {
	invoker := &fakeInvoker{respond: func(int, Request) (*Result, error) {
		return outfitResult(1, "x", false), nil
	}}
	g, _, _, _ := newTestGenerator(invoker)
	var states []State
	g.OnState = func(_ uint, _ string, s State) { states = append(states, s) }

	_, err := g.Generate(context.Background(), 1, RawInput{Prompt: "x"})

	require.NoError(t, err)
	assert.Equal(t, []State{StateValidating, StateLoadingContext, StateInvoking, StateStoring, StateSucceeded}, states)
}
