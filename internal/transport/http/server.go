package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/campuslink/realtime/internal/config"
	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/store"
)

// NewServer builds the HTTP server: the WebSocket endpoint plus the
// small internal REST surface the platform uses (provisioning, live
// updates, history reads).
func NewServer(hub *core.Hub, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg, logger)))

	api := NewAPIHandler(hub, st, logger)
	router.GET("/api/online", api.OnlineUsers)
	router.GET("/api/conversations/:id/messages", api.ListMessages)
	router.POST("/api/events", api.PublishEvent)
	router.POST("/api/users", api.CreateUser)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
