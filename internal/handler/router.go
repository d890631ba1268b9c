package handler

import (
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/SergeiKhy/smart-shortener/internal/metrics"
	"github.com/SergeiKhy/smart-shortener/internal/middleware"
	"github.com/SergeiKhy/smart-shortener/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

type RouterConfig struct {
	BaseURL        string
	TrustedProxies []string
	AdminAPIKey    string
}

func NewRouter(
	links service.LinkService,
	resolver service.Resolver,
	cfg RouterConfig,
	logger *zap.Logger,
) (*gin.Engine, error) {
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.Metrics(),
	)

	// без списка доверенных прокси X-Forwarded-For игнорируется
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	tmpl, err := template.New("").
		Funcs(template.FuncMap{"formatTime": formatTime}).
		ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	linkHandler := NewLinkHandler(links, resolver, cfg.BaseURL, logger)

	router.GET("/", linkHandler.Home)
	router.POST("/create", linkHandler.CreateLinkForm)
	router.GET("/health", HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/stats/:id", linkHandler.Stats)

	api := router.Group("/api")
	{
		api.POST("/create", linkHandler.CreateLinkAPI)
		api.GET("/stats/:id", linkHandler.StatsAPI)

		if cfg.AdminAPIKey != "" {
			api.DELETE("/links/:id", middleware.RequireAPIKey(cfg.AdminAPIKey), linkHandler.DeleteLink)
		}
	}

	// Редирект по коду или алиасу
	router.GET("/:id", linkHandler.Redirect)
	router.NoRoute(linkHandler.NotFound)

	return router, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
