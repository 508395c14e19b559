package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/dkeye/Voice/internal/adapters/rtc"
	"github.com/dkeye/Voice/internal/adapters/signal"
	"github.com/dkeye/Voice/internal/app/orch"
	"github.com/dkeye/Voice/internal/config"
	"github.com/dkeye/Voice/internal/core"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	identityKey = "identity"
	sessionName = "VoiceSessions"
	tokenKey    = "token"
)

// credential picks the bearer token from the Authorization header, the token query parameter
// (browsers cannot set headers on a websocket upgrade) or the cookie session.
func credential(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if q := c.Query(tokenKey); q != "" {
		return q
	}
	if v, ok := sessions.Default(c).Get(tokenKey).(string); ok {
		return v
	}
	return ""
}

// AuthMiddleware resolves the caller's identity or aborts with 401.
func AuthMiddleware(resolver core.IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, err := resolver.Resolve(c.Request.Context(), credential(c))
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("unauthorized")
			abortWithError(c, err)
			return
		}
		c.Set(identityKey, who)
		c.Next()
	}
}

func identityOf(c *gin.Context) domain.Identity {
	who, _ := c.MustGet(identityKey).(domain.Identity)
	return who
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, resolver core.IdentityResolver, history HistorySource) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	ice, err := rtc.Configuration(cfg.RTC.ICEServers)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("invalid ice servers, using default")
		ice = rtc.DefaultWebRTCConfig()
	}
	h := &handlers{orch: o, resolver: resolver, history: history, cfg: cfg, ice: ice}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": o.Registry.Len()})
	})

	api := r.Group("/api")
	api.POST("/session", h.createSession)
	api.DELETE("/session", h.dropSession)

	authed := api.Group("", AuthMiddleware(resolver))
	authed.GET("/rtc/config", h.rtcConfig)
	authed.GET("/rooms", h.listRooms)

	calls := authed.Group("/calls")
	calls.POST("", h.initiateCall)
	calls.POST("/:id/respond", h.respondToCall)
	calls.POST("/end", h.endCall)
	calls.GET("/active", h.activeCall)
	calls.GET("/history", h.callHistory)
	calls.GET("/can-call/:id", h.canCall)
	calls.POST("/cleanup", h.forceCleanup)

	authed.GET("/presence", h.onlineUsers)
	authed.GET("/presence/:id", h.presenceStatus)

	ctrl := signal.NewSignalWSController(o, cfg.ReadLimit, cfg.PingPeriod)
	authed.GET("/ws/signal", func(c *gin.Context) {
		who := identityOf(c)
		log.Info().Str("module", "adapters.http").Str("user", string(who.ID)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c, who)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
