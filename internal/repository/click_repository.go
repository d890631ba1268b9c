package repository

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/smart-shortener/internal/models"
	"github.com/jackc/pgx/v5"
)

// ClickRepository хранилище событий перехода
type ClickRepository interface {
	// RecordClick атомарно увеличивает счётчик ссылки и добавляет событие:
	// либо оба изменения, либо ни одного
	RecordClick(ctx context.Context, click *models.Click) error
	ListRecentByLinkID(ctx context.Context, linkID int64, limit int) ([]*models.Click, error)
	CountByLinkID(ctx context.Context, linkID int64) (int64, error)
}

type clickRepository struct {
	db *PostgresDB
}

func NewClickRepository(db *PostgresDB) ClickRepository {
	return &clickRepository{db: db}
}

func (r *clickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE links SET click_count = click_count + 1 WHERE id = $1`, click.LinkID,
		)
		if err != nil {
			return fmt.Errorf("failed to increment click count: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrLinkNotFound
		}

		query := `
			INSERT INTO clicks (link_id, ip_address, user_agent, referer, clicked_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`
		err = tx.QueryRow(ctx, query,
			click.LinkID,
			click.IPAddress,
			click.UserAgent,
			click.Referer,
			click.ClickedAt,
		).Scan(&click.ID)
		if err != nil {
			return fmt.Errorf("failed to record click: %w", err)
		}
		return nil
	})
}

func (r *clickRepository) ListRecentByLinkID(ctx context.Context, linkID int64, limit int) ([]*models.Click, error) {
	query := `
		SELECT id, link_id, ip_address, user_agent, referer, clicked_at
		FROM clicks
		WHERE link_id = $1
		ORDER BY clicked_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, linkID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}
	defer rows.Close()

	clicks := make([]*models.Click, 0, limit)
	for rows.Next() {
		click := &models.Click{}
		if err := rows.Scan(
			&click.ID,
			&click.LinkID,
			&click.IPAddress,
			&click.UserAgent,
			&click.Referer,
			&click.ClickedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		clicks = append(clicks, click)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clicks: %w", err)
	}

	return clicks, nil
}

func (r *clickRepository) CountByLinkID(ctx context.Context, linkID int64) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM clicks WHERE link_id = $1`, linkID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count clicks: %w", err)
	}
	return count, nil
}
