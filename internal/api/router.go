package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/EdNewsHub/internal/aggregator"
	"github.com/LJTian/EdNewsHub/internal/collector"
	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	listCacheTTL     = 5 * time.Minute
)

// ResponseCache 是列表响应的二级缓存，由 storage.Store 基于 Redis 实现
type ResponseCache interface {
	GetJSON(ctx context.Context, key string, dst any) bool
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration)
}

type Options struct {
	// UpdateToken 非空时 POST /content/update 需要 Authorization: Bearer <token>
	UpdateToken string
	RateLimit   float64
	RateBurst   int
}

type Server struct {
	agg    *aggregator.Aggregator
	cache  ResponseCache
	opts   Options
	logger *slog.Logger
}

func NewServer(agg *aggregator.Aggregator, cache ResponseCache, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{agg: agg, cache: cache, opts: opts, logger: logger.With("component", "api")}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	v1.Use(RateLimit(s.opts.RateLimit, s.opts.RateBurst))
	{
		v1.GET("/content", s.getContent)
		v1.GET("/content/status", s.status)
		v1.POST("/content/update", s.requireToken(), s.runUpdate)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getContent(c *gin.Context) {
	action := c.DefaultQuery("action", "get")
	query := strings.TrimSpace(c.Query("q"))
	category := strings.TrimSpace(c.Query("category"))
	university := strings.TrimSpace(c.Query("university"))
	limit := parseLimit(c.Query("limit"))

	switch {
	case action == "search" && query == "":
		badRequest(c, "query parameter q required for search")
		return
	case action == "category" && category == "":
		badRequest(c, "category parameter required")
		return
	case action == "university" && university == "":
		badRequest(c, "university parameter required")
		return
	}

	// stats 含运行状态，不走缓存
	if action == "stats" {
		st := s.agg.Status()
		ok(c, gin.H{
			"stats":            s.agg.ContentStats(),
			"lastUpdate":       st.LastUpdate,
			"updateInProgress": st.Running,
		})
		return
	}

	ctx := c.Request.Context()
	key := fmt.Sprintf("content:%d:%s:%s:%s:%s:%d", s.agg.Generation(), action, query, category, university, limit)
	if s.cache != nil {
		var cached gin.H
		if s.cache.GetJSON(ctx, key, &cached) {
			ok(c, cached)
			return
		}
	}

	var data gin.H
	switch action {
	case "search":
		data = listData(s.agg.SearchContent(query), limit)
		data["query"] = query
	case "category":
		data = listData(s.agg.ContentByCategory(category), limit)
		data["category"] = category
	case "university":
		data = listData(s.agg.UniversityContent(university), limit)
		data["university"] = university
	case "premium":
		data = listData(s.agg.PremiumContent(), limit)
		data["type"] = "premium"
	case "visa":
		data = listData(s.agg.VisaContent(), limit)
		data["type"] = "visa"
	case "guides":
		data = listData(s.agg.ApplicationGuides(), limit)
		data["type"] = "application-guides"
	case "trending":
		data = gin.H{"topics": s.agg.TrendingTopics(), "type": "trending"}
	default:
		data = listData(s.agg.AllContent(), limit)
		data["lastUpdate"] = s.lastUpdate()
	}

	if s.cache != nil {
		s.cache.SetJSON(ctx, key, data, listCacheTTL)
	}
	ok(c, data)
}

func (s *Server) status(c *gin.Context) {
	ok(c, s.agg.Status())
}

func (s *Server) runUpdate(c *gin.Context) {
	// 客户端断开不应中断正在进行的采集
	ctx := context.WithoutCancel(c.Request.Context())
	items, err := s.agg.RunAutomatedUpdate(ctx)
	if errors.Is(err, aggregator.ErrUpdateInProgress) {
		c.JSON(http.StatusConflict, gin.H{
			"code":    "already_running",
			"message": "update already in progress",
			"data":    gin.H{"lastUpdate": s.lastUpdate()},
		})
		return
	}
	if err != nil {
		s.logger.Error("manual update failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}

	data := listData(items, defaultListLimit)
	data["lastUpdate"] = s.lastUpdate()
	ok(c, data)
}

func (s *Server) requireToken() gin.HandlerFunc {
	want := []byte(s.opts.UpdateToken)
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.Next()
			return
		}
		got, bearer := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !bearer || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "unauthorized",
				"message": "invalid update token",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) lastUpdate() time.Time {
	if t := s.agg.Status().LastUpdate; !t.IsZero() {
		return t
	}
	return time.Now().UTC()
}

func listData(items []collector.ScrapedContent, limit int) gin.H {
	total := len(items)
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []collector.ScrapedContent{}
	}
	return gin.H{"articles": items, "total": total}
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return min(n, maxListLimit)
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    "bad_request",
		"message": msg,
	})
}
