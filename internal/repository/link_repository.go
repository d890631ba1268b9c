package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/smart-shortener/internal/models"
	"github.com/jackc/pgx/v5"
)

// LinkRepository хранилище коротких ссылок. Код и алиас уникальны,
// конфликт возвращается как ErrIdentifierTaken или ErrDuplicateTarget.
type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetByDisplayID(ctx context.Context, id string) (*models.Link, error)
	GetByOriginalURL(ctx context.Context, originalURL string) (*models.Link, error)
	Delete(ctx context.Context, id string) error
}

const linkColumns = `id, code, alias, original_url, created_at, click_count`

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (code, alias, original_url, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, click_count
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		link.Code,
		link.Alias,
		link.OriginalURL,
		link.CreatedAt,
	).Scan(&link.ID, &link.ClickCount)

	if err != nil {
		if conflict := classifyPostgresError(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func (r *linkRepository) GetByDisplayID(ctx context.Context, id string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE code = $1 OR alias = $1 LIMIT 1`

	return r.scanOne(ctx, query, id)
}

func (r *linkRepository) GetByOriginalURL(ctx context.Context, originalURL string) (*models.Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE md5(original_url) = md5($1) AND original_url = $1
		ORDER BY id
		LIMIT 1
	`

	return r.scanOne(ctx, query, originalURL)
}

// Delete удаляет ссылку вместе с её кликами в одной транзакции
func (r *linkRepository) Delete(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		var linkID int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM links WHERE code = $1 OR alias = $1 LIMIT 1 FOR UPDATE`, id,
		).Scan(&linkID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLinkNotFound
			}
			return fmt.Errorf("failed to lock link: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM clicks WHERE link_id = $1`, linkID); err != nil {
			return fmt.Errorf("failed to delete clicks: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM links WHERE id = $1`, linkID); err != nil {
			return fmt.Errorf("failed to delete link: %w", err)
		}
		return nil
	})
}

func (r *linkRepository) scanOne(ctx context.Context, query string, arg string) (*models.Link, error) {
	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(
		&link.ID,
		&link.Code,
		&link.Alias,
		&link.OriginalURL,
		&link.CreatedAt,
		&link.ClickCount,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}
