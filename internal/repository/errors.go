package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrLinkNotFound = errors.New("link not found")

	// ErrIdentifierTaken код или алиас уже заняты
	ErrIdentifierTaken = errors.New("identifier already exists")

	// ErrDuplicateTarget для этого URL уже есть сгенерированная ссылка
	ErrDuplicateTarget = errors.New("generated link for target already exists")
)

const (
	pgUniqueViolation = "23505"

	generatedTargetIndex = "links_generated_target_key"
)

// classifyPostgresError переводит нарушение уникальности в ошибку репозитория
func classifyPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil
	}
	if pgErr.ConstraintName == generatedTargetIndex {
		return ErrDuplicateTarget
	}
	return ErrIdentifierTaken
}

// classifySQLiteError то же для SQLite; имя нарушенного индекса есть только в тексте ошибки
func classifySQLiteError(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return nil
	}
	if strings.Contains(sqliteErr.Error(), "links.original_url") {
		return ErrDuplicateTarget
	}
	return ErrIdentifierTaken
}
