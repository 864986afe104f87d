package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"live-quiz-service/internal/app"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(r *http.Request) error

type RouterConfig struct {
	Service      *app.SessionService
	Hub          *app.Hub
	Identifier   Identifier
	Logger       *slog.Logger
	AllowOrigins []string
	Health       map[string]HealthCheck
}

// NewRouter mounts the REST API, the websocket endpoint, health and metrics.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	origins := cfg.AllowOrigins
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization", "Accept", "Origin"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	rest := NewRESTHandler(cfg.Service, cfg.Identifier, logger)
	ws := NewWSHandler(cfg.Service, cfg.Hub, cfg.Identifier, logger)

	r.GET("/healthz", func(c *gin.Context) {
		status := gin.H{}
		healthy := true
		for name, check := range cfg.Health {
			if err := check(c.Request); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": status})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": status})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", gin.WrapF(ws.ServeWS))

	api := r.Group("/api", rest.Authenticate)
	{
		api.POST("/sessions", rest.CreateSession)
		api.GET("/sessions/:id", rest.GetSession)
		api.GET("/sessions/:id/leaderboard", rest.Leaderboard)
		api.GET("/sessions/code/:code", rest.GetSessionByCode)
		api.GET("/quizzes/:quizId/sessions", rest.ListSessions)
	}
	return r
}
