package service

import (
	"context"
	"errors"

	"github.com/SergeiKhy/smart-shortener/internal/metrics"
	"github.com/SergeiKhy/smart-shortener/internal/models"
	"github.com/SergeiKhy/smart-shortener/internal/repository"
	"go.uber.org/zap"
)

// Resolver находит ссылку по идентификатору и записывает переход до того,
// как вызывающий код отдаст редирект
type Resolver interface {
	Resolve(ctx context.Context, id string, visit *models.Visit) (*models.Link, error)
}

type resolver struct {
	links     LinkService
	recorder  ClickRecorder
	cacheRepo repository.CacheRepository
	logger    *zap.Logger
}

func NewResolver(
	links LinkService,
	recorder ClickRecorder,
	cacheRepo repository.CacheRepository,
	logger *zap.Logger,
) Resolver {
	return &resolver{
		links:     links,
		recorder:  recorder,
		cacheRepo: cacheRepo,
		logger:    logger,
	}
}

func (r *resolver) Resolve(ctx context.Context, id string, visit *models.Visit) (*models.Link, error) {
	link, err := r.links.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}

	err = r.recorder.RecordClick(ctx, link, visit)
	if errors.Is(err, repository.ErrLinkNotFound) {
		// в кэше осталась запись удалённой ссылки; идентификатор мог быть
		// занят заново, поэтому после сброса кэша читаем хранилище ещё раз
		link, err = r.reload(ctx, id)
		if err == nil {
			err = r.recorder.RecordClick(ctx, link, visit)
		}
	}
	if err != nil {
		return nil, err
	}

	metrics.RedirectsTotal.Inc()
	return link, nil
}

func (r *resolver) reload(ctx context.Context, id string) (*models.Link, error) {
	if err := r.cacheRepo.Delete(ctx, id); err != nil {
		r.logger.Warn("Failed to evict stale link", zap.String("id", id), zap.Error(err))
	}
	return r.links.GetLink(ctx, id)
}
