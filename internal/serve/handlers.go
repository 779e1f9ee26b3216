package serve

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dtnitsch/school-kb/models"
	"github.com/dtnitsch/school-kb/pkg/caching"
	"github.com/dtnitsch/school-kb/pkg/chat"
	"github.com/dtnitsch/school-kb/pkg/metrics"
	"github.com/gin-gonic/gin"
)

const sampleSize = 3

// Server holds the handlers for the chat widget backend.
type Server struct {
	cache          *caching.Cache
	chat           *chat.Service
	frameAncestors string
	adminToken     string
	logger         *slog.Logger
}

func NewServer(cache *caching.Cache, svc *chat.Service, cfg models.ServeConfig, logger *slog.Logger) *Server {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cache:          cache,
		chat:           svc,
		frameAncestors: cfg.FrameAncestors,
		adminToken:     strings.TrimSpace(cfg.AdminToken),
		logger:         logger,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.embedHeaders)

	router.GET("/health", s.health)
	router.POST("/api/chat", s.handleChat)
	router.GET("/debug/csv", s.debugCSV)

	admin := router.Group("/admin", s.requireAdmin)
	admin.GET("", s.adminStatus)
	admin.POST("/flush", s.adminFlush)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	return router
}

// embedHeaders lets the widget be framed by the configured parent pages.
func (s *Server) embedHeaders(c *gin.Context) {
	c.Header("X-Frame-Options", "ALLOWALL")
	c.Header("Content-Security-Policy", "frame-ancestors "+s.frameAncestors+";")
	c.Next()
}

// requireAdmin checks ?token= when an admin token is configured.
func (s *Server) requireAdmin(c *gin.Context) {
	if s.adminToken == "" {
		c.Next()
		return
	}
	if strings.TrimSpace(c.Query("token")) != s.adminToken {
		c.String(http.StatusForbidden, "forbidden")
		c.Abort()
		return
	}
	c.Next()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type chatRequest struct {
	Message string `json:"message"`
	Lang    string `json:"lang"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	// A missing or malformed body is treated as an empty message.
	_ = c.ShouldBindJSON(&req)

	reply, err := s.chat.Reply(c.Request.Context(), req.Message, strings.ToLower(req.Lang))
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		s.respondChat(c, http.StatusBadRequest, gin.H{"error": "Empty message"})
	case err != nil:
		s.logger.Error("Chat error", "error", err)
		s.respondChat(c, http.StatusInternalServerError, gin.H{"error": "Server error processing your request."})
	default:
		s.respondChat(c, http.StatusOK, gin.H{"reply": reply})
	}
}

func (s *Server) respondChat(c *gin.Context, status int, body gin.H) {
	metrics.ChatRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	c.JSON(status, body)
}

func (s *Server) debugCSV(c *gin.Context) {
	snap := s.cache.Context(c.Request.Context())
	body := gin.H{"csv_url": s.cache.Source()}
	for _, lang := range models.Languages {
		entries := snap.Entries[lang]
		body[string(lang)+"_count"] = len(entries)
		body["sample_"+string(lang)] = entries[:min(sampleSize, len(entries))]
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) adminStatus(c *gin.Context) {
	// Loads on first visit so the counts reflect the source.
	s.cache.Context(c.Request.Context())
	st := s.cache.Status()
	loaded := "never"
	if !st.LoadedAt.IsZero() {
		loaded = st.LoadedAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, gin.H{
		"csv_url":     st.Source,
		"counts":      st.Counts,
		"last_load":   loaded,
		"ttl_seconds": int(st.TTL.Seconds()),
		"stale":       st.Stale,
		"last_error":  st.LastError,
	})
}

func (s *Server) adminFlush(c *gin.Context) {
	s.cache.Flush()
	c.JSON(http.StatusOK, gin.H{"flushed": true})
}
