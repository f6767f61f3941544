package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"golang.org/x/sync/errgroup"
)

// below the presign expiry so a cached url is never served stale
const urlCacheTTL = 12 * time.Minute

type URLCacheServiceProvider interface {
	GetReadURL(ctx context.Context, objectKey string) (string, error)
	GetReadURLs(ctx context.Context, objectKeys []string) (map[string]string, error)
	Invalidate(ctx context.Context, objectKey string) error
}

// URLCacheService caches presigned read urls of clothing and outfit images.
type URLCacheService struct {
	cache      *cache.LoadableCache[string]
	bucketName string
}

func NewURLCacheService(awsService AWSServiceProvider, bucketName string) (*URLCacheService, error) {
	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     1 << 26,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	ristrettoStore := ristretto_store.NewRistretto(ristrettoCache)

	loadFunction := func(ctx context.Context, key any) (string, []store.Option, error) {
		objectKey, ok := key.(string)
		if !ok {
			return "", nil, fmt.Errorf("invalid key type provided to URL cache: expected string, got %T", key)
		}
		log.Printf("[URLCache] miss for %s, presigning", objectKey)
		url, err := awsService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
		return url, []store.Option{store.WithExpiration(urlCacheTTL), store.WithCost(int64(len(url)))}, err
	}

	return &URLCacheService{
		cache:      cache.NewLoadable[string](loadFunction, cache.New[string](ristrettoStore)),
		bucketName: bucketName,
	}, nil
}

func (s *URLCacheService) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", nil
	}
	return s.cache.Get(ctx, objectKey)
}

// GetReadURLs resolves many keys concurrently. Empty keys are skipped.
func (s *URLCacheService) GetReadURLs(ctx context.Context, objectKeys []string) (map[string]string, error) {
	var mu sync.Mutex
	urls := make(map[string]string, len(objectKeys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, key := range objectKeys {
		if key == "" {
			continue
		}
		g.Go(func() error {
			url, err := s.GetReadURL(gctx, key)
			if err != nil {
				return fmt.Errorf("presign %s: %w", key, err)
			}
			mu.Lock()
			urls[key] = url
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func (s *URLCacheService) Invalidate(ctx context.Context, objectKey string) error {
	return s.cache.Delete(ctx, objectKey)
}
