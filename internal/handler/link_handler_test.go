package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/SergeiKhy/smart-shortener/internal/handler"
	"github.com/SergeiKhy/smart-shortener/internal/models"
	"github.com/SergeiKhy/smart-shortener/internal/repository"
	"github.com/SergeiKhy/smart-shortener/internal/service"
	"github.com/SergeiKhy/smart-shortener/internal/service/mocks"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"
)

type testRouter struct {
	router   *gin.Engine
	links    *mocks.MockLinkService
	resolver *mocks.MockResolver
}

// setupRouter собирает роутер поверх gomock-моков сервисов
func setupRouter(t *testing.T, cfg handler.RouterConfig) *testRouter {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkService(ctrl)
	resolver := mocks.NewMockResolver(ctrl)

	router, err := handler.NewRouter(links, resolver, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	return &testRouter{router: router, links: links, resolver: resolver}
}

func (tr *testRouter) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	tr.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func strPtr(s string) *string {
	return &s
}

func sampleLink() *models.Link {
	return &models.Link{
		ID:          7,
		Code:        "aB3xY9",
		OriginalURL: "https://example.com/docs",
		CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// TestAPICreate_Created проверяет ответ 201 для новой ссылки
func TestAPICreate_Created(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})

	tr.links.EXPECT().
		CreateLink(gomock.Any(), &models.CreateLinkInput{OriginalURL: "example.com/docs"}).
		Return(sampleLink(), true, nil)

	w := tr.do(jsonRequest(http.MethodPost, "/api/create", `{"url":"example.com/docs"}`))

	require.Equal(t, http.StatusCreated, w.Code)
	var resp handler.CreateLinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "aB3xY9", resp.ID)
	assert.Equal(t, "http://example.com/aB3xY9", resp.ShortURL)
}

// TestAPICreate_Reused проверяет ответ 200 для существующей ссылки
func TestAPICreate_Reused(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{BaseURL: "https://sho.rt/"})

	tr.links.EXPECT().CreateLink(gomock.Any(), gomock.Any()).Return(sampleLink(), false, nil)

	w := tr.do(jsonRequest(http.MethodPost, "/api/create", `{"url":"https://example.com/docs"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"short_url":"https://sho.rt/aB3xY9","id":"aB3xY9"}`, w.Body.String())
}

// TestAPICreate_CustomAlias проверяет передачу алиаса в сервис
func TestAPICreate_CustomAlias(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})

	link := sampleLink()
	link.Code = "promo"
	link.Alias = strPtr("promo")

	tr.links.EXPECT().
		CreateLink(gomock.Any(), &models.CreateLinkInput{OriginalURL: "https://example.com/docs", CustomAlias: strPtr("promo")}).
		Return(link, true, nil)

	w := tr.do(jsonRequest(http.MethodPost, "/api/create", `{"url":"https://example.com/docs","custom":"promo"}`))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"promo"`)
}

// TestAPICreate_Errors проверяет перевод ошибок сервиса в HTTP-ответы
func TestAPICreate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"url missing", service.ErrURLMissing, http.StatusBadRequest, `{"error":"url missing"}`},
		{"invalid url", service.ErrInvalidURL, http.StatusBadRequest, `{"error":"invalid url"}`},
		{"invalid alias", service.ErrInvalidAlias, http.StatusBadRequest, `{"error":"invalid alias"}`},
		{"alias taken", service.ErrAliasTaken, http.StatusConflict, `{"error":"custom alias taken"}`},
		{"exhausted", service.ErrGenerationExhausted, http.StatusInternalServerError, `{"error":"failed to generate short id"}`},
		{"storage", errors.New("connection reset"), http.StatusInternalServerError, `{"error":"internal error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := setupRouter(t, handler.RouterConfig{})
			tr.links.EXPECT().CreateLink(gomock.Any(), gomock.Any()).Return(nil, false, tt.err)

			w := tr.do(jsonRequest(http.MethodPost, "/api/create", `{"url":"x"}`))

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

// TestAPICreate_MalformedJSON проверяет, что битый JSON считается пустым запросом
func TestAPICreate_MalformedJSON(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})

	tr.links.EXPECT().
		CreateLink(gomock.Any(), &models.CreateLinkInput{}).
		Return(nil, false, service.ErrURLMissing)

	w := tr.do(jsonRequest(http.MethodPost, "/api/create", `{"url":`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"url missing"}`, w.Body.String())
}

// TestFormCreate_Success проверяет страницу с созданной ссылкой
func TestFormCreate_Success(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})

	tr.links.EXPECT().
		CreateLink(gomock.Any(), &models.CreateLinkInput{OriginalURL: "example.com/docs"}).
		Return(sampleLink(), true, nil)

	w := tr.do(formRequest("/create", url.Values{"url": {"example.com/docs"}, "custom_alias": {""}}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http://example.com/aB3xY9")
	assert.Contains(t, w.Body.String(), "Short URL created successfully!")
	assert.Contains(t, w.Body.String(), "/stats/aB3xY9")
}

// TestFormCreate_ReusedNoFlash проверяет, что для существующей ссылки нет сообщения об успехе
func TestFormCreate_ReusedNoFlash(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})

	tr.links.EXPECT().
		CreateLink(gomock.Any(), &models.CreateLinkInput{OriginalURL: "https://example.com/docs"}).
		Return(sampleLink(), false, nil)

	w := tr.do(formRequest("/create", url.Values{"url": {"https://example.com/docs"}}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http://example.com/aB3xY9")
	assert.NotContains(t, w.Body.String(), "Short URL created successfully!")
}

// TestFormCreate_AcceptsJSON проверяет JSON с полем original_url на форме
func TestFormCreate_AcceptsJSON(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})

	tr.links.EXPECT().
		CreateLink(gomock.Any(), &models.CreateLinkInput{OriginalURL: "https://example.com/docs", CustomAlias: strPtr("docs")}).
		Return(sampleLink(), true, nil)

	w := tr.do(jsonRequest(http.MethodPost, "/create", `{"original_url":"https://example.com/docs","custom_alias":"docs"}`))

	assert.Equal(t, http.StatusOK, w.Code)
}

// TestFormCreate_ErrorFlash проверяет редирект на главную с сообщением об ошибке
func TestFormCreate_ErrorFlash(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"url missing", service.ErrURLMissing, "Please provide a valid URL."},
		{"invalid url", service.ErrInvalidURL, "Invalid URL format. Please check and try again."},
		{"invalid alias", service.ErrInvalidAlias, "Invalid custom alias. Use letters, digits, &#39;-&#39; or &#39;_&#39; (up to 100 characters)."},
		{"alias taken", service.ErrAliasTaken, "Custom alias already taken. Try another one."},
		{"exhausted", service.ErrGenerationExhausted, "Could not generate a unique short ID. Try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := setupRouter(t, handler.RouterConfig{})
			tr.links.EXPECT().CreateLink(gomock.Any(), gomock.Any()).Return(nil, false, tt.err)

			w := tr.do(formRequest("/create", url.Values{"url": {"whatever"}}))

			require.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/", w.Header().Get("Location"))

			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)

			// сообщение показывается на главной ровно один раз
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(cookies[0])
			home := tr.do(req)
			assert.Equal(t, http.StatusOK, home.Code)
			assert.Contains(t, home.Body.String(), tt.message)
			assert.Contains(t, home.Header().Get("Set-Cookie"), "Max-Age=0")
		})
	}
}

// TestFormCreate_StorageError проверяет страницу 500 при отказе хранилища
func TestFormCreate_StorageError(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})
	tr.links.EXPECT().CreateLink(gomock.Any(), gomock.Any()).Return(nil, false, errors.New("disk I/O error"))

	w := tr.do(formRequest("/create", url.Values{"url": {"https://example.com"}}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Something went wrong")
}

// TestHome проверяет главную страницу без сообщения
func TestHome(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})

	w := tr.do(httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/create"`)
	assert.NotContains(t, w.Body.String(), `class="flash`)
}

// TestRedirect_Success проверяет редирект и передачу метаданных визита
func TestRedirect_Success(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})

	tr.resolver.EXPECT().
		Resolve(gomock.Any(), "aB3xY9", &models.Visit{
			IPAddress: "192.0.2.10",
			UserAgent: "Mozilla/5.0",
			Referer:   "https://news.example.org/",
		}).
		Return(sampleLink(), nil)

	req := httptest.NewRequest(http.MethodGet, "/aB3xY9", nil)
	req.RemoteAddr = "192.0.2.10:51234"
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", "https://news.example.org/")
	// без доверенных прокси заголовок игнорируется
	req.Header.Set("X-Forwarded-For", "203.0.113.1")

	w := tr.do(req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/docs", w.Header().Get("Location"))
}

// TestRedirect_TrustedProxy проверяет IP клиента за доверенным прокси
func TestRedirect_TrustedProxy(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{TrustedProxies: []string{"10.0.0.0/8"}})

	tr.resolver.EXPECT().
		Resolve(gomock.Any(), "aB3xY9", gomock.Cond(func(x any) bool {
			v, ok := x.(*models.Visit)
			return ok && v.IPAddress == "203.0.113.1"
		})).
		Return(sampleLink(), nil)

	req := httptest.NewRequest(http.MethodGet, "/aB3xY9", nil)
	req.RemoteAddr = "10.1.2.3:40000"
	req.Header.Set("X-Forwarded-For", "203.0.113.1")

	assert.Equal(t, http.StatusFound, tr.do(req).Code)
}

// TestRedirect_NotFound проверяет страницу 404
func TestRedirect_NotFound(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})
	tr.resolver.EXPECT().Resolve(gomock.Any(), "unknown123", gomock.Any()).Return(nil, repository.ErrLinkNotFound)

	w := tr.do(httptest.NewRequest(http.MethodGet, "/unknown123", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "short link not found")
	assert.Empty(t, w.Header().Get("Location"))
}

// TestRedirect_RecorderFailure проверяет, что при сбое записи клика редиректа нет
func TestRedirect_RecorderFailure(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})
	tr.resolver.EXPECT().Resolve(gomock.Any(), "aB3xY9", gomock.Any()).Return(nil, errors.New("database is locked"))

	w := tr.do(httptest.NewRequest(http.MethodGet, "/aB3xY9", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
}

// TestUnknownRoute проверяет 404 для путей вне маршрутов
func TestUnknownRoute(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})

	w := tr.do(httptest.NewRequest(http.MethodGet, "/a/b/c", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestStats_Page проверяет страницу статистики
func TestStats_Page(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})

	link := sampleLink()
	link.ClickCount = 2
	tr.links.EXPECT().GetStats(gomock.Any(), "aB3xY9").Return(&models.LinkStats{
		Link:        link,
		TotalClicks: 2,
		RecentClicks: []*models.Click{
			{ID: 2, LinkID: 7, IPAddress: "198.51.100.4", UserAgent: "curl/8.0", ClickedAt: time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)},
			{ID: 1, LinkID: 7, IPAddress: "198.51.100.3", ClickedAt: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)},
		},
	}, nil)

	w := tr.do(httptest.NewRequest(http.MethodGet, "/stats/aB3xY9", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `<strong id="click-count">2</strong>`)
	assert.Contains(t, body, "2024-05-02 09:30:00")
	assert.Contains(t, body, "198.51.100.4")
	assert.Less(t, strings.Index(body, "198.51.100.4"), strings.Index(body, "198.51.100.3"))
}

// TestStats_NotFound проверяет статистику несуществующей ссылки
func TestStats_NotFound(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})
	tr.links.EXPECT().GetStats(gomock.Any(), "missing").Return(nil, repository.ErrLinkNotFound)

	w := tr.do(httptest.NewRequest(http.MethodGet, "/stats/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestStatsAPI проверяет JSON-статистику
func TestStatsAPI(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{BaseURL: "https://sho.rt/"})

	link := sampleLink()
	link.ClickCount = 1
	clickedAt := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	tr.links.EXPECT().GetStats(gomock.Any(), "aB3xY9").Return(&models.LinkStats{
		Link:         link,
		TotalClicks:  1,
		RecentClicks: []*models.Click{{ID: 1, LinkID: 7, IPAddress: "198.51.100.4", ClickedAt: clickedAt}},
	}, nil)

	w := tr.do(httptest.NewRequest(http.MethodGet, "/api/stats/aB3xY9", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp handler.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "aB3xY9", resp.ID)
	assert.Equal(t, "https://sho.rt/aB3xY9", resp.ShortURL)
	assert.Equal(t, int64(1), resp.ClickCount)
	assert.Equal(t, int64(1), resp.TotalClicks)
	require.Len(t, resp.RecentClicks, 1)
	assert.True(t, clickedAt.Equal(resp.RecentClicks[0].ClickedAt))
	assert.NotContains(t, w.Body.String(), `"id":7`)

	tr.links.EXPECT().GetStats(gomock.Any(), "missing").Return(nil, repository.ErrLinkNotFound)
	w = tr.do(httptest.NewRequest(http.MethodGet, "/api/stats/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())
}

// TestDeleteLink проверяет административное удаление по ключу
func TestDeleteLink(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{AdminAPIKey: "secret"})

	w := tr.do(httptest.NewRequest(http.MethodDelete, "/api/links/aB3xY9", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tr.links.EXPECT().DeleteLink(gomock.Any(), "aB3xY9").Return(nil)
	req := httptest.NewRequest(http.MethodDelete, "/api/links/aB3xY9", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusNoContent, tr.do(req).Code)

	tr.links.EXPECT().DeleteLink(gomock.Any(), "missing").Return(repository.ErrLinkNotFound)
	req = httptest.NewRequest(http.MethodDelete, "/api/links/missing", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusNotFound, tr.do(req).Code)
}

// TestDeleteLink_Disabled проверяет, что без ключа маршрут не регистрируется
func TestDeleteLink_Disabled(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})

	w := tr.do(httptest.NewRequest(http.MethodDelete, "/api/links/aB3xY9", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestHealthCheck проверяет health-эндпоинт
func TestHealthCheck(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})

	w := tr.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp handler.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	_, err := time.Parse(time.RFC3339, resp.Time)
	assert.NoError(t, err)
}

// TestMetricsEndpoint проверяет экспорт метрик Prometheus
func TestMetricsEndpoint(t *testing.T) {
	tr := setupRouter(t, handler.RouterConfig{})

	w := tr.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "links_created_total")
}
