package outfit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// State is a step of one submission.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateLoadingContext
	StateInvoking
	StateStoring
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateLoadingContext:
		return "loading_context"
	case StateInvoking:
		return "invoking"
	case StateStoring:
		return "storing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Generator runs submissions end to end. Every submission ends with exactly
// one notification, the store changes only on success.
type Generator struct {
	Invoker     Invoker
	Preferences PreferenceSource
	// Context sources run next to the preference load. Results that are not
	// ready once preferences are done (plus ContextGrace) are dropped.
	Context      []ContextSource
	ContextGrace time.Duration
	Backoff      Backoff
	Store        *Store
	Notifier     Notifier
	// NewRequestID defaults to a random uuid.
	NewRequestID func() string
	// OnState observes state transitions.
	OnState func(userID uint, requestID string, state State)
}

func NewGenerator(invoker Invoker, store *Store, notifier Notifier) *Generator {
	return &Generator{
		Invoker:  invoker,
		Store:    store,
		Notifier: notifier,
		Backoff:  DefaultBackoff(),
	}
}

// Generate validates raw input, enriches it, calls the invoker with retries
// and records the result.
func (g *Generator) Generate(ctx context.Context, userID uint, raw RawInput) (*Result, error) {
	requestID := g.requestID()
	g.transition(userID, requestID, StateValidating)
	req, err := Validate(raw)
	if err != nil {
		return nil, g.fail(ctx, userID, requestID, err)
	}
	req.RequestID = requestID

	g.transition(userID, requestID, StateLoadingContext)
	req = g.enrich(ctx, userID, req)

	g.transition(userID, requestID, StateInvoking)
	backoff := g.Backoff
	backoff.OnRetry = func(retry int, delay time.Duration, err error) {
		log.Printf("[Generator] request %s retry %d/%d in %v: %v", requestID, retry, backoff.MaxRetries, delay, err)
		if g.Backoff.OnRetry != nil {
			g.Backoff.OnRetry(retry, delay, err)
		}
	}
	result, err := Retry(ctx, backoff, func(ctx context.Context, attempt int) (*Result, error) {
		return g.Invoker.Invoke(ctx, userID, req)
	})
	if err != nil {
		return nil, g.fail(ctx, userID, requestID, err)
	}

	g.transition(userID, requestID, StateStoring)
	if g.Store != nil {
		g.Store.Prepend(userID, result.Outfit)
	}
	g.transition(userID, requestID, StateSucceeded)
	g.notify(ctx, userID, Outcome{FromCache: result.FromCache})
	return result, nil
}

type contextResult struct {
	index int
	apply func(*Request)
	err   error
}

func (g *Generator) enrich(ctx context.Context, userID uint, req Request) Request {
	sideCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan contextResult, len(g.Context))
	for i, source := range g.Context {
		go func(i int, source ContextSource) {
			apply, err := source.Fetch(sideCtx, userID)
			results <- contextResult{index: i, apply: apply, err: err}
		}(i, source)
	}

	if req.Preferences == nil {
		req.Preferences = LoadPreferences(ctx, g.Preferences, userID)
	}

	applied := make([]func(*Request), len(g.Context))
	pending := len(g.Context)
	collect := func(r contextResult) {
		pending--
		if r.err != nil {
			log.Printf("[Generator] %s context skipped for user %d: %v", g.Context[r.index].Name(), userID, r.err)
			return
		}
		applied[r.index] = r.apply
	}

drain:
	for pending > 0 {
		select {
		case r := <-results:
			collect(r)
		default:
			break drain
		}
	}
	if pending > 0 && g.ContextGrace > 0 {
		timer := time.NewTimer(g.ContextGrace)
	wait:
		for pending > 0 {
			select {
			case r := <-results:
				collect(r)
			case <-timer.C:
				break wait
			case <-ctx.Done():
				break wait
			}
		}
		timer.Stop()
	}
	if pending > 0 {
		log.Printf("[Generator] %d context source(s) not ready for user %d, dropped", pending, userID)
	}

	for _, apply := range applied {
		if apply != nil {
			apply(&req)
		}
	}
	return req
}

func (g *Generator) fail(ctx context.Context, userID uint, requestID string, err error) error {
	category, reason := Classify(err)
	log.Printf("[Generator] request %s failed for user %d (%s %s): %v", requestID, userID, category, reason, err)
	g.transition(userID, requestID, StateFailed)
	g.notify(ctx, userID, Outcome{Err: err})
	return err
}

func (g *Generator) notify(ctx context.Context, userID uint, outcome Outcome) {
	if g.Notifier == nil {
		return
	}
	n := NotificationFor(outcome)
	n.UserID = userID
	g.Notifier.Notify(ctx, n)
}

func (g *Generator) transition(userID uint, requestID string, state State) {
	if g.OnState != nil {
		g.OnState(userID, requestID, state)
	}
}

func (g *Generator) requestID() string {
	if g.NewRequestID != nil {
		return g.NewRequestID()
	}
	return uuid.NewString()
}
