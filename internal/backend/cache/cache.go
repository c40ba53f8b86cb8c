package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// Cache stores serialized prediction results keyed by image digest.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Options selects and tunes a cache backend.
type Options struct {
	Type     string
	Size     int
	TTL      time.Duration
	Address  string
	Password string
	DB       int
	Prefix   string
}

// Key derives the cache key for an uploaded image.
func Key(imageData []byte) string {
	sum := sha256.Sum256(imageData)
	return hex.EncodeToString(sum[:])
}

// NewCache creates the backend named by options.Type.
func NewCache(ctx context.Context, options Options) (cache Cache, err error) {
	switch options.Type {
	case "", "none":
		cache = noCache{}
	case "memory":
		cache, err = NewMemoryCache(options.Size, options.TTL)
	case "redis":
		cache, err = NewRedisCache(ctx, options)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", options.Type)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("result cache initialized", "type", options.Type, "ttl", options.TTL)
	return cache, nil
}

type noCache struct{}

func (noCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (noCache) Set(context.Context, string, []byte) error         { return nil }
func (noCache) Close() error                                      { return nil }
