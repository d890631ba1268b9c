package middleware

import (
	"time"

	"github.com/SergeiKhy/smart-shortener/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics собирает метрики запросов. Маршрут берётся из шаблона (/:id),
// чтобы не плодить метки на каждый код.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
