package models

import (
	"time"
)

// Link короткая ссылка. Для ссылок с кастомным алиасом Code совпадает с Alias,
// поэтому уникальный индекс по code покрывает общее пространство идентификаторов.
type Link struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Alias       *string   `json:"alias,omitempty"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	ClickCount  int64     `json:"click_count"`
}

// DisplayID возвращает внешний идентификатор: алиас, если он задан, иначе код.
func (l *Link) DisplayID() string {
	if l.Alias != nil && *l.Alias != "" {
		return *l.Alias
	}
	return l.Code
}

type CreateLinkInput struct {
	OriginalURL string  `json:"original_url"`
	CustomAlias *string `json:"custom_alias,omitempty"`
}

type LinkStats struct {
	Link         *Link    `json:"link"`
	TotalClicks  int64    `json:"total_clicks"`
	RecentClicks []*Click `json:"recent_clicks"`
}
