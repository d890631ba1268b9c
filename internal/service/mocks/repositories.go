package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/smart-shortener/internal/models"
	"github.com/SergeiKhy/smart-shortener/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing.
// Повторяет ограничения схемы: уникальные code и alias, один сгенерированный
// код на целевой URL.
type MockLinkRepository struct {
	mu        sync.RWMutex
	links     map[int64]*models.Link
	byCode    map[string]int64
	byAlias   map[string]int64
	generated map[string]int64
	nextID    int64
	clicks    *MockClickRepository

	// Err возвращается всеми методами, если задан (имитация отказа БД)
	Err error
	// CreateCalls число вызовов Create
	CreateCalls int
}

func NewMockLinkRepository() *MockLinkRepository {
	m := &MockLinkRepository{}
	m.reset()
	return m
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if m.Err != nil {
		return m.Err
	}

	if _, exists := m.byCode[link.Code]; exists {
		return repository.ErrIdentifierTaken
	}
	if link.Alias != nil {
		if _, exists := m.byAlias[*link.Alias]; exists {
			return repository.ErrIdentifierTaken
		}
	} else if _, exists := m.generated[link.OriginalURL]; exists {
		return repository.ErrDuplicateTarget
	}

	link.ID = m.nextID
	m.nextID++

	stored := *link
	m.links[stored.ID] = &stored
	m.byCode[stored.Code] = stored.ID
	if stored.Alias != nil {
		m.byAlias[*stored.Alias] = stored.ID
	} else {
		m.generated[stored.OriginalURL] = stored.ID
	}
	return nil
}

func (m *MockLinkRepository) GetByDisplayID(ctx context.Context, id string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	linkID, exists := m.byCode[id]
	if !exists {
		linkID, exists = m.byAlias[id]
	}
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	return m.copyOf(linkID), nil
}

func (m *MockLinkRepository) GetByOriginalURL(ctx context.Context, originalURL string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	var oldest *models.Link
	for _, link := range m.links {
		if link.OriginalURL != originalURL {
			continue
		}
		if oldest == nil || link.ID < oldest.ID {
			oldest = link
		}
	}
	if oldest == nil {
		return nil, repository.ErrLinkNotFound
	}
	return m.copyOf(oldest.ID), nil
}

func (m *MockLinkRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	linkID, exists := m.byCode[id]
	if !exists {
		linkID, exists = m.byAlias[id]
	}
	if !exists {
		return repository.ErrLinkNotFound
	}

	link := m.links[linkID]
	delete(m.links, linkID)
	delete(m.byCode, link.Code)
	if link.Alias != nil {
		delete(m.byAlias, *link.Alias)
	} else {
		delete(m.generated, link.OriginalURL)
	}

	if m.clicks != nil {
		m.clicks.deleteByLinkID(linkID)
	}
	return nil
}

func (m *MockLinkRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}

func (m *MockLinkRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *MockLinkRepository) reset() {
	m.links = make(map[int64]*models.Link)
	m.byCode = make(map[string]int64)
	m.byAlias = make(map[string]int64)
	m.generated = make(map[string]int64)
	m.nextID = 1
	m.Err = nil
	m.CreateCalls = 0
}

func (m *MockLinkRepository) copyOf(id int64) *models.Link {
	link := *m.links[id]
	return &link
}

// MockClickRepository implements repository.ClickRepository for testing.
// Счётчик хранится в связанном MockLinkRepository, поэтому RecordClick
// берёт обе блокировки (сначала ссылок, потом кликов).
type MockClickRepository struct {
	mu     sync.RWMutex
	links  *MockLinkRepository
	clicks []*models.Click
	nextID int64

	// Err возвращается RecordClick, если задан
	Err error
}

func NewMockClickRepository(links *MockLinkRepository) *MockClickRepository {
	m := &MockClickRepository{
		links:  links,
		nextID: 1,
	}
	links.mu.Lock()
	links.clicks = m
	links.mu.Unlock()
	return m
}

func (m *MockClickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	m.links.mu.Lock()
	defer m.links.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	link, exists := m.links.links[click.LinkID]
	if !exists {
		return repository.ErrLinkNotFound
	}
	link.ClickCount++

	click.ID = m.nextID
	m.nextID++
	stored := *click
	m.clicks = append(m.clicks, &stored)
	return nil
}

func (m *MockClickRepository) ListRecentByLinkID(ctx context.Context, linkID int64, limit int) ([]*models.Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.Click
	for _, click := range m.clicks {
		if click.LinkID == linkID {
			c := *click
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ClickedAt.Equal(result[j].ClickedAt) {
			return result[i].ClickedAt.After(result[j].ClickedAt)
		}
		return result[i].ID > result[j].ID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockClickRepository) CountByLinkID(ctx context.Context, linkID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, click := range m.clicks {
		if click.LinkID == linkID {
			count++
		}
	}
	return count, nil
}

func (m *MockClickRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clicks)
}

func (m *MockClickRepository) deleteByLinkID(linkID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.clicks[:0]
	for _, click := range m.clicks {
		if click.LinkID != linkID {
			kept = append(kept, click)
		}
	}
	m.clicks = kept
}

func (m *MockClickRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = nil
	m.nextID = 1
	m.Err = nil
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]models.Link
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]models.Link),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.cache[key]
	if !exists {
		return nil, repository.ErrCacheMiss
	}
	return &link, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = *link
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

func (m *MockCacheRepository) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.cache[key]
	return exists
}

func (m *MockCacheRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]models.Link)
}
