package http

import (
	"context"
	stdhttp "net/http"
	"strconv"

	"github.com/dkeye/roomrelay/internal/adapters/signal"
	"github.com/dkeye/roomrelay/internal/app"
	"github.com/dkeye/roomrelay/internal/config"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	clientTokenCookie = "ct"
	lastRoomKey       = "last_room"
	maxCodeAttempts   = 8
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(clientTokenCookie)
		if token == "" {
			token = genClientToken()
			c.SetCookie(clientTokenCookie, token, 3600*24*7, "/", "", false, true)
		}
		c.Set(signal.ClientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("RelaySessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, gin.H{"status": "ok", "connections": orch.Registry.Count()})
	})

	ws := signal.NewSignalWSController(orch, signal.OptionsFromConfig(cfg))
	h := &handlers{orch: orch}

	api := r.Group("/api")
	api.POST("/rooms", h.createRoom)
	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:code", h.getRoom)
	api.GET("/rooms/:code/messages", h.roomMessages)
	api.GET("/session", h.session)
	api.GET("/ws", func(c *gin.Context) {
		ws.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

type handlers struct {
	orch *app.Orchestrator
}

// POST /api/rooms — create a room with a fresh code
func (h *handlers) createRoom(c *gin.Context) {
	var code domain.RoomCode
	for range maxCodeAttempts {
		raw, err := GenerateCode()
		if err != nil {
			c.JSON(stdhttp.StatusInternalServerError, gin.H{"error": "failed to generate code"})
			return
		}
		if !h.orch.Rooms.Exists(domain.RoomCode(raw)) {
			code = domain.RoomCode(raw)
			break
		}
		log.Warn().Str("module", "adapters.http").Msg("room code collision, regenerating")
	}
	if code == "" {
		c.JSON(stdhttp.StatusServiceUnavailable, gin.H{"error": "no free room code"})
		return
	}

	if err := h.orch.CreateRoom(code, c.GetString(signal.ClientTokenKey)); err != nil {
		c.JSON(stdhttp.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	sess := sessions.Default(c)
	sess.Set(lastRoomKey, string(code))
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
	}

	c.JSON(stdhttp.StatusCreated, gin.H{"roomId": code})
}

// GET /api/rooms — list rooms
func (h *handlers) listRooms(c *gin.Context) {
	infos := h.orch.Rooms.Rooms()
	out := make([]app.RoomSummary, 0, len(infos))
	for _, info := range infos {
		if s, ok := h.orch.Summary(info.Code); ok {
			out = append(out, s)
		}
	}
	c.JSON(stdhttp.StatusOK, gin.H{"rooms": out})
}

// GET /api/rooms/:code — room info
func (h *handlers) getRoom(c *gin.Context) {
	s, ok := h.orch.Summary(domain.RoomCode(c.Param("code")))
	if !ok {
		c.JSON(stdhttp.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(stdhttp.StatusOK, s)
}

// GET /api/rooms/:code/messages?limit=N — stored chat history
func (h *handlers) roomMessages(c *gin.Context) {
	limit := 0
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			c.JSON(stdhttp.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	msgs, err := h.orch.History(c.Request.Context(), domain.RoomCode(c.Param("code")), limit)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("load history")
		c.JSON(stdhttp.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(stdhttp.StatusOK, gin.H{"messages": msgs})
}

// GET /api/session — what this browser last did
func (h *handlers) session(c *gin.Context) {
	sess := sessions.Default(c)
	last, _ := sess.Get(lastRoomKey).(string)
	c.JSON(stdhttp.StatusOK, gin.H{
		"clientToken": c.GetString(signal.ClientTokenKey),
		"lastRoom":    last,
	})
}
