package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/smart-shortener/internal/metrics"
	"github.com/SergeiKhy/smart-shortener/internal/models"
	"github.com/SergeiKhy/smart-shortener/internal/repository"
	"go.uber.org/zap"
)

// ClickRecorder записывает переходы по ссылкам. Запись синхронная:
// после успешного возврата событие и счётчик уже зафиксированы в БД.
type ClickRecorder interface {
	RecordClick(ctx context.Context, link *models.Link, visit *models.Visit) error
}

type clickRecorder struct {
	clickRepo repository.ClickRepository
	logger    *zap.Logger
}

func NewClickRecorder(clickRepo repository.ClickRepository, logger *zap.Logger) ClickRecorder {
	return &clickRecorder{
		clickRepo: clickRepo,
		logger:    logger,
	}
}

func (r *clickRecorder) RecordClick(ctx context.Context, link *models.Link, visit *models.Visit) error {
	click := &models.Click{
		LinkID:    link.ID,
		ClickedAt: time.Now().UTC(),
	}
	if visit != nil {
		click.IPAddress = visit.IPAddress
		click.UserAgent = visit.UserAgent
		click.Referer = visit.Referer
	}

	if err := r.clickRepo.RecordClick(ctx, click); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return err
		}
		r.logger.Error("Failed to record click",
			zap.String("id", link.DisplayID()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to record click: %w", err)
	}

	metrics.ClicksRecordedTotal.Inc()
	return nil
}
