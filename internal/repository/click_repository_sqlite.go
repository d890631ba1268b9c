package repository

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/smart-shortener/internal/models"
)

type sqliteClickRepository struct {
	db *SQLiteDB
}

func NewSQLiteClickRepository(db *SQLiteDB) ClickRepository {
	return &sqliteClickRepository{db: db}
}

func (r *sqliteClickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE links SET click_count = click_count + 1 WHERE id = ?`, click.LinkID)
	if err != nil {
		return fmt.Errorf("failed to increment click count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to increment click count: %w", err)
	}
	if affected == 0 {
		return ErrLinkNotFound
	}

	result, err = tx.ExecContext(ctx, `
		INSERT INTO clicks (link_id, ip_address, user_agent, referer, clicked_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		click.LinkID,
		click.IPAddress,
		click.UserAgent,
		click.Referer,
		click.ClickedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}
	if click.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read click id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *sqliteClickRepository) ListRecentByLinkID(ctx context.Context, linkID int64, limit int) ([]*models.Click, error) {
	query := `
		SELECT id, link_id, ip_address, user_agent, referer, clicked_at
		FROM clicks
		WHERE link_id = ?
		ORDER BY clicked_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.DB.QueryContext(ctx, query, linkID, limit)
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

func (r *sqliteClickRepository) CountByLinkID(ctx context.Context, linkID int64) (int64, error) {
	var count int64
	err := r.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM clicks WHERE link_id = ?`, linkID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count clicks: %w", err)
	}
	return count, nil
}
