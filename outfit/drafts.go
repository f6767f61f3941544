package outfit

import (
	"context"
	"log"
	"sync"
	"time"
)

// DraftStorage persists unsent prompt drafts. Load returns "" for a missing draft.
type DraftStorage interface {
	LoadDraft(ctx context.Context, key string) (string, error)
	SaveDraft(ctx context.Context, key, text string) error
	DeleteDraft(ctx context.Context, key string) error
}

type MemoryDraftStorage struct {
	mu     sync.Mutex
	drafts map[string]string
}

func NewMemoryDraftStorage() *MemoryDraftStorage {
	return &MemoryDraftStorage{drafts: make(map[string]string)}
}

func (m *MemoryDraftStorage) LoadDraft(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drafts[key], nil
}

func (m *MemoryDraftStorage) SaveDraft(_ context.Context, key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[key] = text
	return nil
}

func (m *MemoryDraftStorage) DeleteDraft(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, key)
	return nil
}

type pendingDraft struct {
	text  string
	timer *time.Timer
}

// DraftKeeper saves drafts after Delay without further updates for the same key.
type DraftKeeper struct {
	Storage DraftStorage
	Delay   time.Duration

	mu      sync.Mutex
	pending map[string]*pendingDraft
	// held while a storage write is in progress, Clear waits on it
	writeMu sync.Mutex
}

func NewDraftKeeper(storage DraftStorage, delay time.Duration) *DraftKeeper {
	return &DraftKeeper{Storage: storage, Delay: delay, pending: make(map[string]*pendingDraft)}
}

// Update schedules a save of text, replacing any scheduled save for key.
func (k *DraftKeeper) Update(key, text string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if p, ok := k.pending[key]; ok {
		p.timer.Stop()
	}
	p := &pendingDraft{text: text}
	p.timer = time.AfterFunc(k.Delay, func() {
		k.writeMu.Lock()
		defer k.writeMu.Unlock()
		k.mu.Lock()
		if k.pending[key] != p {
			k.mu.Unlock()
			return
		}
		delete(k.pending, key)
		k.mu.Unlock()
		k.save(context.Background(), key, text)
	})
	k.pending[key] = p
}

// Flush saves a scheduled draft right away.
func (k *DraftKeeper) Flush(ctx context.Context, key string) error {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()
	k.mu.Lock()
	p, ok := k.pending[key]
	if ok {
		p.timer.Stop()
		delete(k.pending, key)
	}
	k.mu.Unlock()
	if !ok {
		return nil
	}
	if p.text == "" {
		return k.Storage.DeleteDraft(ctx, key)
	}
	return k.Storage.SaveDraft(ctx, key, p.text)
}

// Restore returns the newest draft, scheduled or saved.
func (k *DraftKeeper) Restore(ctx context.Context, key string) (string, error) {
	k.mu.Lock()
	p, ok := k.pending[key]
	k.mu.Unlock()
	if ok {
		return p.text, nil
	}
	return k.Storage.LoadDraft(ctx, key)
}

// Clear drops both the scheduled and the saved draft, after a submission.
func (k *DraftKeeper) Clear(ctx context.Context, key string) error {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()
	k.mu.Lock()
	if p, ok := k.pending[key]; ok {
		p.timer.Stop()
		delete(k.pending, key)
	}
	k.mu.Unlock()
	return k.Storage.DeleteDraft(ctx, key)
}

func (k *DraftKeeper) save(ctx context.Context, key, text string) {
	var err error
	if text == "" {
		err = k.Storage.DeleteDraft(ctx, key)
	} else {
		err = k.Storage.SaveDraft(ctx, key, text)
	}
	if err != nil {
		log.Printf("[Drafts] could not save draft %s: %v", key, err)
	}
}
