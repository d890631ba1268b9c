package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/SergeiKhy/smart-shortener/internal/models"
)

type sqliteLinkRepository struct {
	db *SQLiteDB
}

func NewSQLiteLinkRepository(db *SQLiteDB) LinkRepository {
	return &sqliteLinkRepository{db: db}
}

func (r *sqliteLinkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (code, alias, original_url, created_at)
		VALUES (?, ?, ?, ?)
	`

	var alias sql.NullString
	if link.Alias != nil {
		alias = sql.NullString{String: *link.Alias, Valid: true}
	}

	result, err := r.db.DB.ExecContext(ctx, query, link.Code, alias, link.OriginalURL, link.CreatedAt)
	if err != nil {
		if conflict := classifySQLiteError(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read link id: %w", err)
	}
	link.ID = id
	link.ClickCount = 0

	return nil
}

func (r *sqliteLinkRepository) GetByDisplayID(ctx context.Context, id string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE code = ? OR alias = ? LIMIT 1`

	return r.scanOne(r.db.DB.QueryRowContext(ctx, query, id, id))
}

func (r *sqliteLinkRepository) GetByOriginalURL(ctx context.Context, originalURL string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE original_url = ? ORDER BY id LIMIT 1`

	return r.scanOne(r.db.DB.QueryRowContext(ctx, query, originalURL))
}

// Delete удаляет ссылку вместе с её кликами в одной транзакции
func (r *sqliteLinkRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var linkID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM links WHERE code = ? OR alias = ? LIMIT 1`, id, id).Scan(&linkID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLinkNotFound
		}
		return fmt.Errorf("failed to find link: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM clicks WHERE link_id = ?`, linkID); err != nil {
		return fmt.Errorf("failed to delete clicks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, linkID); err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *sqliteLinkRepository) scanOne(row *sql.Row) (*models.Link, error) {
	link := &models.Link{}
	var alias sql.NullString
	err := row.Scan(
		&link.ID,
		&link.Code,
		&alias,
		&link.OriginalURL,
		&link.CreatedAt,
		&link.ClickCount,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	if alias.Valid {
		link.Alias = &alias.String
	}
	return link, nil
}
