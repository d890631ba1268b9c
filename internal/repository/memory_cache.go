package repository

import (
	"context"
	"time"

	"github.com/SergeiKhy/smart-shortener/internal/models"
	gocache "github.com/patrickmn/go-cache"
)

// memoryCacheRepository кэш в памяти процесса, используется когда Redis не настроен
type memoryCacheRepository struct {
	cache *gocache.Cache
}

func NewMemoryCacheRepository(defaultTTL time.Duration) CacheRepository {
	return &memoryCacheRepository{
		cache: gocache.New(defaultTTL, 2*defaultTTL),
	}
}

func (r *memoryCacheRepository) Get(_ context.Context, key string) (*models.Link, error) {
	value, ok := r.cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	// копия: вызывающий код не должен менять закэшированный объект
	link := value.(models.Link)
	return &link, nil
}

func (r *memoryCacheRepository) Set(_ context.Context, key string, link *models.Link, ttl time.Duration) error {
	r.cache.Set(key, *link, ttl)
	return nil
}

func (r *memoryCacheRepository) Delete(_ context.Context, key string) error {
	r.cache.Delete(key)
	return nil
}
