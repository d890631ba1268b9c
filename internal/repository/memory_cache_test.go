package repository

import (
	"context"
	"testing"
	"time"

	"github.com/SergeiKhy/smart-shortener/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRepository(t *testing.T) {
	cache := NewMemoryCacheRepository(time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx, "abc123")
	assert.ErrorIs(t, err, ErrCacheMiss)

	link := &models.Link{ID: 7, Code: "abc123", OriginalURL: "http://a.com"}
	require.NoError(t, cache.Set(ctx, "abc123", link, time.Minute))

	got, err := cache.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, link, got)

	// изменение полученного объекта не портит кэш
	got.OriginalURL = "http://changed.com"
	again, err := cache.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "http://a.com", again.OriginalURL)

	require.NoError(t, cache.Delete(ctx, "abc123"))
	_, err = cache.Get(ctx, "abc123")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheRepository_Expiration(t *testing.T) {
	cache := NewMemoryCacheRepository(time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "short", &models.Link{Code: "short"}, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := cache.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
