package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"schedule-bridge-backend/internal/mw"
	"schedule-bridge-backend/internal/telemetry"
)

// RouterConfig tunes the shared middleware.
type RouterConfig struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(h.logger), mw.Metrics())

	r.GET("/metrics", gin.WrapH(telemetry.Handler()))

	rateLimiter := mw.RateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)
	caching := func(c *gin.Context) { c.Next() }
	if h.cache != nil {
		caching = mw.Cache(h.cache, cfg.CacheTTL)
	}

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/bridge", h.FindRooms)
		api.GET("/bridge", h.BridgeHealth)
		api.POST("/bridge/cancel", h.CancelBooking)

		api.POST("/schedule/upload", h.UploadSchedule)
		api.GET("/schedule/auditories", caching, h.GetAuditories)
		api.GET("/schedule/journal", caching, h.GetJournal)
		api.GET("/schedule/journal/:aud_id", caching, h.GetAuditoryJournal)
		api.GET("/schedule/subjects", caching, h.GetSubjects)
		api.POST("/schedule/subjects/push", h.PushSubjects)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
