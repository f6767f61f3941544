package outfit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftKeeperDebounces(t *testing.T) {
	storage := NewMemoryDraftStorage()
	keeper := NewDraftKeeper(storage, 30*time.Millisecond)
	ctx := context.Background()

	keeper.Update("tg:42", "blue")
	keeper.Update("tg:42", "blue jeans")

	saved, _ := storage.LoadDraft(ctx, "tg:42")
	assert.Empty(t, saved)
	restored, err := keeper.Restore(ctx, "tg:42")
	require.NoError(t, err)
	assert.Equal(t, "blue jeans", restored)

	assert.Eventually(t, func() bool {
		saved, _ := storage.LoadDraft(ctx, "tg:42")
		return saved == "blue jeans"
	}, time.Second, 10*time.Millisecond)
}

func TestDraftKeeperFlushAndClear(t *testing.T) {
	storage := NewMemoryDraftStorage()
	keeper := NewDraftKeeper(storage, time.Hour)
	ctx := context.Background()

	keeper.Update("tg:1", "linen shirt")
	require.NoError(t, keeper.Flush(ctx, "tg:1"))
	saved, _ := storage.LoadDraft(ctx, "tg:1")
	assert.Equal(t, "linen shirt", saved)

	keeper.Update("tg:1", "linen shirt and chinos")
	require.NoError(t, keeper.Clear(ctx, "tg:1"))
	restored, err := keeper.Restore(ctx, "tg:1")
	require.NoError(t, err)
	assert.Empty(t, restored)
}

type slowDraftStorage struct {
	*MemoryDraftStorage
	saving  chan struct{}
	release chan struct{}
}

func (s *slowDraftStorage) SaveDraft(ctx context.Context, key, text string) error {
	close(s.saving)
	<-s.release
	return s.MemoryDraftStorage.SaveDraft(ctx, key, text)
}

func TestDraftKeeperClearWaitsForRunningSave(t *testing.T) {
	storage := &slowDraftStorage{
		MemoryDraftStorage: NewMemoryDraftStorage(),
		saving:             make(chan struct{}),
		release:            make(chan struct{}),
	}
	keeper := NewDraftKeeper(storage, time.Millisecond)
	ctx := context.Background()

	keeper.Update("tg:7", "party look")
	<-storage.saving

	cleared := make(chan error)
	go func() { cleared <- keeper.Clear(ctx, "tg:7") }()
	time.Sleep(20 * time.Millisecond)
	close(storage.release)
	require.NoError(t, <-cleared)

	restored, err := keeper.Restore(ctx, "tg:7")
	require.NoError(t, err)
	assert.Empty(t, restored)
}
