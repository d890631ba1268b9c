package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/SergeiKhy/smart-shortener/internal/idgen"
	"github.com/SergeiKhy/smart-shortener/internal/metrics"
	"github.com/SergeiKhy/smart-shortener/internal/models"
	"github.com/SergeiKhy/smart-shortener/internal/repository"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/net/idna"
)

// Ошибки сервиса
var (
	ErrURLMissing          = errors.New("url missing")
	ErrInvalidURL          = errors.New("invalid url")
	ErrInvalidAlias        = errors.New("invalid custom alias")
	ErrAliasTaken          = errors.New("custom alias taken")
	ErrGenerationExhausted = errors.New("failed to generate unique short id")
)

// Константы сервиса
const (
	// DefaultMaxAllocationAttempts сколько раз пробуем вставить сгенерированный код
	DefaultMaxAllocationAttempts = 10
	DefaultCacheTTL              = 24 * time.Hour
	RecentClicksLimit            = 100
	maxAliasLength               = 100
)

// Алиасы, совпадающие со служебными маршрутами, считаются занятыми
var reservedAliases = []string{"api", "create", "health", "metrics", "stats"}

var aliasPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var validate = validator.New()

// Options параметры выделения идентификаторов
type Options struct {
	CodeLength            int
	MaxAllocationAttempts int
	CacheTTL              time.Duration
}

func (o Options) withDefaults() Options {
	if o.CodeLength <= 0 {
		o.CodeLength = idgen.DefaultLength
	}
	if o.MaxAllocationAttempts <= 0 {
		o.MaxAllocationAttempts = DefaultMaxAllocationAttempts
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	return o
}

//go:generate mockgen -destination=mocks/services.go -package=mocks . LinkService,Resolver

// LinkService интерфейс сервиса ссылок
type LinkService interface {
	// CreateLink возвращает ссылку и признак того, что она создана, а не переиспользована
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, bool, error)
	GetLink(ctx context.Context, id string) (*models.Link, error)
	GetStats(ctx context.Context, id string) (*models.LinkStats, error)
	DeleteLink(ctx context.Context, id string) error
}

// linkService реализация сервиса ссылок
type linkService struct {
	linkRepo  repository.LinkRepository
	clickRepo repository.ClickRepository
	cacheRepo repository.CacheRepository
	generator idgen.Generator
	opts      Options
	logger    *zap.Logger
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(
	linkRepo repository.LinkRepository,
	clickRepo repository.ClickRepository,
	cacheRepo repository.CacheRepository,
	generator idgen.Generator,
	opts Options,
	logger *zap.Logger,
) LinkService {
	return &linkService{
		linkRepo:  linkRepo,
		clickRepo: clickRepo,
		cacheRepo: cacheRepo,
		generator: generator,
		opts:      opts.withDefaults(),
		logger:    logger,
	}
}

// CreateLink выделяет идентификатор для URL.
// Без алиаса существующая ссылка на тот же URL переиспользуется; сгенерированный код
// при коллизии перегенерируется, занятый алиас сразу даёт ErrAliasTaken.
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, bool, error) {
	target, err := NormalizeURL(input.OriginalURL)
	if err != nil {
		return nil, false, err
	}

	alias, err := normalizeAlias(input.CustomAlias)
	if err != nil {
		return nil, false, err
	}

	if alias == "" {
		existing, err := s.linkRepo.GetByOriginalURL(ctx, target)
		if err == nil {
			metrics.LinksReusedTotal.Inc()
			return existing, false, nil
		}
		if !errors.Is(err, repository.ErrLinkNotFound) {
			return nil, false, fmt.Errorf("failed to look up existing link: %w", err)
		}
	}

	for attempt := 1; attempt <= s.opts.MaxAllocationAttempts; attempt++ {
		link := &models.Link{
			OriginalURL: target,
			CreatedAt:   time.Now().UTC(),
		}
		if alias != "" {
			link.Code = alias
			link.Alias = &alias
		} else {
			code, err := s.generator.Generate(s.opts.CodeLength)
			if err != nil {
				return nil, false, fmt.Errorf("failed to generate code: %w", err)
			}
			link.Code = code
		}

		err := s.linkRepo.Create(ctx, link)
		switch {
		case err == nil:
			metrics.LinksCreatedTotal.Inc()
			s.cache(ctx, link)
			return link, true, nil

		case errors.Is(err, repository.ErrIdentifierTaken):
			if alias != "" {
				return nil, false, ErrAliasTaken
			}
			metrics.CodeCollisionsTotal.Inc()
			s.logger.Debug("Generated code collision, retrying",
				zap.String("code", link.Code),
				zap.Int("attempt", attempt),
			)

		case errors.Is(err, repository.ErrDuplicateTarget):
			// параллельный запрос успел создать ссылку на этот URL
			existing, err := s.linkRepo.GetByOriginalURL(ctx, target)
			if err != nil {
				return nil, false, fmt.Errorf("failed to load concurrently created link: %w", err)
			}
			metrics.LinksReusedTotal.Inc()
			return existing, false, nil

		default:
			return nil, false, err
		}
	}

	s.logger.Warn("Could not allocate a unique short code",
		zap.Int("attempts", s.opts.MaxAllocationAttempts),
	)
	return nil, false, ErrGenerationExhausted
}

// GetLink получает ссылку по идентификатору (сначала из кэша, затем из БД)
func (s *linkService) GetLink(ctx context.Context, id string) (*models.Link, error) {
	if id == "" {
		return nil, repository.ErrLinkNotFound
	}

	link, err := s.cacheRepo.Get(ctx, id)
	if err == nil {
		metrics.CacheHitsTotal.Inc()
		return link, nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.logger.Warn("Cache lookup failed", zap.String("id", id), zap.Error(err))
	}
	metrics.CacheMissesTotal.Inc()

	link, err = s.linkRepo.GetByDisplayID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache(ctx, link)
	return link, nil
}

// GetStats метаданные ссылки и последние клики, всегда из БД
func (s *linkService) GetStats(ctx context.Context, id string) (*models.LinkStats, error) {
	link, err := s.linkRepo.GetByDisplayID(ctx, id)
	if err != nil {
		return nil, err
	}

	recent, err := s.clickRepo.ListRecentByLinkID(ctx, link.ID, RecentClicksLimit)
	if err != nil {
		return nil, err
	}

	total, err := s.clickRepo.CountByLinkID(ctx, link.ID)
	if err != nil {
		return nil, err
	}

	return &models.LinkStats{
		Link:         link,
		TotalClicks:  total,
		RecentClicks: recent,
	}, nil
}

// DeleteLink удаляет ссылку и её клики
func (s *linkService) DeleteLink(ctx context.Context, id string) error {
	if err := s.linkRepo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.cacheRepo.Delete(ctx, id); err != nil {
		s.logger.Warn("Failed to evict deleted link from cache", zap.String("id", id), zap.Error(err))
	}
	return nil
}

func (s *linkService) cache(ctx context.Context, link *models.Link) {
	if err := s.cacheRepo.Set(ctx, link.DisplayID(), link, s.opts.CacheTTL); err != nil {
		s.logger.Warn("Failed to cache link", zap.String("id", link.DisplayID()), zap.Error(err))
	}
}

// NormalizeURL добавляет схему http://, если её нет, и проверяет, что получился
// абсолютный http(s) URL с доменным именем или IP-адресом.
// Интернационализированные домены проверяются в punycode-форме,
// сам URL сохраняется как есть
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrURLMissing
	}

	if strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return "", ErrInvalidURL
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}

	if err := validate.Var(raw, "http_url"); err != nil {
		return "", ErrInvalidURL
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}

	host := parsed.Hostname()
	if net.ParseIP(host) == nil && !validDomain(host) {
		return "", ErrInvalidURL
	}

	return raw, nil
}

// validDomain проверяет доменное имя: минимум две метки, TLD содержит букву
func validDomain(host string) bool {
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return false
	}
	ascii = strings.TrimSuffix(ascii, ".")

	if validate.Var(ascii, "hostname_rfc1123") != nil {
		return false
	}

	dot := strings.LastIndexByte(ascii, '.')
	if dot < 0 {
		return false
	}

	return strings.IndexFunc(ascii[dot+1:], unicode.IsLetter) >= 0
}

// normalizeAlias обрезает пробелы; пустой алиас означает, что алиас не запрошен
func normalizeAlias(raw *string) (string, error) {
	if raw == nil {
		return "", nil
	}

	alias := strings.TrimSpace(*raw)
	if alias == "" {
		return "", nil
	}

	if len(alias) > maxAliasLength || !aliasPattern.MatchString(alias) {
		return "", ErrInvalidAlias
	}

	for _, reserved := range reservedAliases {
		if strings.EqualFold(alias, reserved) {
			return "", ErrAliasTaken
		}
	}

	return alias, nil
}
