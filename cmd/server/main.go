// Command server runs the DotRep reputation engine: contribution ingestion,
// anomaly detection, reputation scoring with evidence, and multi-source
// reputation aggregation over the XCM gateway and the DKG edge node.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/dotrep-labs/reputation-engine/internal/adapters"
	"github.com/dotrep-labs/reputation-engine/internal/aggregator"
	"github.com/dotrep-labs/reputation-engine/internal/cache"
	"github.com/dotrep-labs/reputation-engine/internal/config"
	apperrors "github.com/dotrep-labs/reputation-engine/internal/errors"
	"github.com/dotrep-labs/reputation-engine/internal/explain"
	"github.com/dotrep-labs/reputation-engine/internal/middleware"
	"github.com/dotrep-labs/reputation-engine/internal/monitoring"
	"github.com/dotrep-labs/reputation-engine/internal/ratelimit"
	"github.com/dotrep-labs/reputation-engine/internal/security"
	"github.com/dotrep-labs/reputation-engine/internal/scoring"
	"github.com/dotrep-labs/reputation-engine/internal/stats"
	"github.com/dotrep-labs/reputation-engine/internal/store"
	"github.com/dotrep-labs/reputation-engine/internal/types"
)

type server struct {
	cfg     *config.Config
	repo    *store.Repository
	db      *store.DB
	agg     *aggregator.Aggregator
	xcm     *adapters.XCMAdapter
	dkg     *adapters.DKGAdapter
	cache   *cache.Cache
	limiter *ratelimit.RateLimiter
	metrics *monitoring.Metrics
	logger  *monitoring.Logger
	started time.Time
}

func main() {
	logger := monitoring.NewLogger()
	slog.SetDefault(logger.Logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration, refusing to start", "error", err)
		os.Exit(1)
	}

	db, err := store.NewDB(cfg.DataDir)
	if err != nil {
		slog.Error("Failed to open contribution store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	metrics := monitoring.NewMetrics()

	redisClient, err := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		// Degraded, not fatal: the limiter falls back to in-memory buckets.
		slog.Warn("Redis unavailable at startup", "error", err)
	}
	defer redisClient.Close()

	xcm := adapters.NewXCMAdapter(cfg.XCMGatewayURL, cfg.SourceTimeout)
	defer xcm.Close()
	dkg := adapters.NewDKGAdapter(cfg.DKGNodeURL, cfg.SourceTimeout)
	defer dkg.Close()

	s := &server{
		cfg:  cfg,
		repo: store.NewRepository(db),
		db:   db,
		agg: aggregator.New(xcm, dkg,
			aggregator.WithSourceTimeout(cfg.SourceTimeout),
			aggregator.WithPercentileCeiling(cfg.PercentileCeiling),
			aggregator.WithMonitor(metrics)),
		xcm:     xcm,
		dkg:     dkg,
		cache:   cache.New(cfg.CacheTTL),
		limiter: ratelimit.NewRateLimiter(redisClient, ratelimit.DefaultConfig(), metrics),
		metrics: metrics,
		logger:  logger,
		started: time.Now(),
	}

	router := s.buildRouter()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("Reputation engine listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Forced shutdown", "error", err)
	}
	slog.Info("Server stopped")
}

func (s *server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(apperrors.RecoveryHandler())
	router.Use(monitoring.Middleware(s.metrics, s.logger))
	router.Use(apperrors.ErrorHandler())
	router.Use(security.HeadersMiddleware())
	router.Use(middleware.NoCache())
	router.Use(middleware.Compression())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:        12 * time.Hour,
	}))
	router.Use(s.limiter.IPRateLimitMiddleware())
	router.Use(s.cache.Middleware(s.metrics))

	router.GET("/health", s.handleHealth)
	router.GET("/anomalies", s.handleAnomalies)
	router.GET("/score/:actor", s.handleScore)
	router.GET("/explain/:actor", s.handleExplain)
	router.GET("/contributions", s.handleContributions)
	router.GET("/reputation/multichain/:account", s.handleMultiChain)
	router.POST("/contributions", s.limiter.IngestRateLimitMiddleware(), s.handleIngest)

	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	router.GET("/cache/stats", s.handleCacheStats)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}

func (s *server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"database":       s.db.PoolStats(),
		"rate_limiter":   s.limiter.GetStats(),
		"sources": gin.H{
			"xcm": s.xcm.BreakerStats(),
			"dkg": s.dkg.BreakerStats(),
		},
	})
}

// handleAnomalies runs cross-sectional anomaly detection over the weekly
// aggregates of the whole population.
func (s *server) handleAnomalies(c *gin.Context) {
	threshold := s.cfg.AnomalyThreshold
	if raw := c.Query("k"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			c.Error(apperrors.NewValidationError("k must be a positive number"))
			c.Abort()
			return
		}
		threshold = parsed
	}

	weeks, ok := s.weeksParam(c, s.cfg.AnomalyWeeks)
	if !ok {
		return
	}

	robust := false
	if raw := c.Query("robust"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.Error(apperrors.NewValidationError("robust must be a boolean"))
			c.Abort()
			return
		}
		robust = parsed
	}

	rows, err := s.repo.WeeklyAggregates(c.Request.Context(), "", weeks)
	if err != nil {
		c.Error(apperrors.NewInternalError("failed to load weekly aggregates", err))
		c.Abort()
		return
	}

	anomalies := stats.DetectAnomalies(rows, stats.Options{Threshold: threshold, Robust: robust})
	s.metrics.IncrementAnomalyRun(len(anomalies))

	c.JSON(http.StatusOK, gin.H{
		"threshold": threshold,
		"weeks":     weeks,
		"robust":    robust,
		"anomalies": anomalies,
	})
}

func (s *server) handleScore(c *gin.Context) {
	actor := strings.TrimSpace(c.Param("actor"))
	if actor == "" {
		c.Error(apperrors.NewValidationError("actor must not be empty"))
		c.Abort()
		return
	}

	events, err := s.repo.VerifiedEventsByActor(c.Request.Context(), actor)
	if err != nil {
		c.Error(apperrors.NewInternalError("failed to load events", err))
		c.Abort()
		return
	}

	start := time.Now()
	result := scoring.ComputeScore(actor, events, time.Now().UTC(), s.cfg.Scoring)
	s.metrics.ObserveScoring(time.Since(start).Seconds())
	s.logger.ScoreLogger(actor, result.FinalScore, len(events), time.Since(start))

	c.JSON(http.StatusOK, result)
}

func (s *server) handleExplain(c *gin.Context) {
	actor := strings.TrimSpace(c.Param("actor"))
	if actor == "" {
		c.Error(apperrors.NewValidationError("actor must not be empty"))
		c.Abort()
		return
	}

	limit := 5
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.Error(apperrors.NewValidationError("limit must be a positive integer"))
			c.Abort()
			return
		}
		limit = parsed
	}

	events, err := s.repo.VerifiedEventsByActor(c.Request.Context(), actor)
	if err != nil {
		c.Error(apperrors.NewInternalError("failed to load events", err))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"actor":    actor,
		"evidence": explain.TopEvidence(events, limit),
	})
}

// handleContributions returns an actor's weekly series, or the whole
// population's when no actor is named (drives the analytics charts).
func (s *server) handleContributions(c *gin.Context) {
	actor := strings.TrimSpace(c.Query("actor"))

	weeks, ok := s.weeksParam(c, s.cfg.AnomalyWeeks)
	if !ok {
		return
	}

	aggregates, err := s.repo.WeeklyAggregates(c.Request.Context(), actor, weeks)
	if err != nil {
		c.Error(apperrors.NewInternalError("failed to load weekly aggregates", err))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"actor":  actor,
		"weeks":  weeks,
		"series": aggregates,
	})
}

// defaultChains are queried when the caller does not name chains explicitly.
var defaultChains = []string{"polkadot", "kusama", "astar", "moonbeam"}

func (s *server) handleMultiChain(c *gin.Context) {
	account := strings.TrimSpace(c.Param("account"))
	if account == "" {
		c.Error(apperrors.NewValidationError("account must not be empty"))
		c.Abort()
		return
	}

	chains := defaultChains
	if raw := c.Query("chains"); raw != "" {
		chains = chains[:0:0]
		for _, chain := range strings.Split(raw, ",") {
			chain = strings.TrimSpace(chain)
			if chain != "" {
				chains = append(chains, chain)
			}
		}
		if len(chains) == 0 {
			c.Error(apperrors.NewValidationError("chains must name at least one chain"))
			c.Abort()
			return
		}
	}

	records, summary, err := s.agg.MultiChainReputation(c.Request.Context(), account, chains)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":   account,
		"chains":    records,
		"aggregate": summary,
	})
}

func (s *server) handleIngest(c *gin.Context) {
	var req types.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("invalid ingest payload", err.Error()))
		c.Abort()
		return
	}
	if len(req.Events) == 0 {
		c.Error(apperrors.NewValidationError("events must not be empty"))
		c.Abort()
		return
	}
	for i, ev := range req.Events {
		if strings.TrimSpace(ev.ActorID) == "" {
			c.Error(apperrors.NewValidationError("event actor_id must not be empty", i))
			c.Abort()
			return
		}
		if strings.TrimSpace(ev.Type) == "" {
			c.Error(apperrors.NewValidationError("event type must not be empty", i))
			c.Abort()
			return
		}
		if ev.Timestamp.IsZero() {
			c.Error(apperrors.NewValidationError("event timestamp must be set", i))
			c.Abort()
			return
		}
		if ev.ReputationPoints < 0 {
			c.Error(apperrors.NewValidationError("event reputation_points must not be negative", i))
			c.Abort()
			return
		}
	}

	stored, err := s.repo.InsertEvents(c.Request.Context(), req.Events)
	if err != nil {
		c.Error(apperrors.NewInternalError("failed to store events", err))
		c.Abort()
		return
	}

	duplicates := len(req.Events) - stored
	s.metrics.AddEventsIngested(stored, duplicates)

	c.JSON(http.StatusAccepted, gin.H{
		"stored":     stored,
		"duplicates": duplicates,
	})
}

func (s *server) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.cache.Stats())
}

// weeksParam parses the shared `weeks` query parameter, bounded to one year.
func (s *server) weeksParam(c *gin.Context, fallback int) (int, bool) {
	weeks := fallback
	if raw := c.Query("weeks"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 52 {
			c.Error(apperrors.NewValidationError("weeks must be an integer between 1 and 52"))
			c.Abort()
			return 0, false
		}
		weeks = parsed
	}
	return weeks, true
}
