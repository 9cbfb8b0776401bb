// Package server exposes collector status and a manual ingestion trigger
// over HTTP.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jvheeswijck/sim-subs/internal/ingest"
	"github.com/jvheeswijck/sim-subs/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Runner ingests a list of communities.
type Runner interface {
	Run(ctx context.Context, names []string) ([]ingest.Stats, error)
}

// CommunityLister returns the communities a manual run should cover.
type CommunityLister func() ([]string, error)

// Server serves the status endpoints.
type Server struct {
	router      *gin.Engine
	store       storage.Storage
	runner      Runner
	communities CommunityLister
	log         *logrus.Entry

	// running serializes manual runs; the writer assumes a single writer.
	running sync.Mutex
}

// New creates a Server and registers its routes.
func New(store storage.Storage, runner Runner, communities CommunityLister, log *logrus.Entry) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router:      gin.New(),
		store:       store,
		runner:      runner,
		communities: communities,
		log:         log,
	}
	s.router.Use(gin.Recovery(), s.requestLogger())

	s.router.GET("/health", s.health)
	s.router.GET("/stats", s.stats)
	s.router.POST("/ingest", s.ingest)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr until the server fails.
func (s *Server) Run(addr string) error {
	s.log.WithField("addr", addr).Info("Starting server")
	return s.router.Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
	})
}

// stats returns the row count of each table
func (s *Server) stats(c *gin.Context) {
	counts, err := s.store.Counts(c.Request.Context())
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, counts)
}

// ingest runs one collection pass over the configured communities
func (s *Server) ingest(c *gin.Context) {
	if !s.running.TryLock() {
		c.IndentedJSON(http.StatusConflict, gin.H{"error": "an ingestion run is already in progress"})
		return
	}
	defer s.running.Unlock()

	names, err := s.communities()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.log.WithField("subreddits", len(names)).Info("Manual ingestion triggered")
	stats, err := s.runner.Run(c.Request.Context(), names)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{
			"error":       err.Error(),
			"communities": stats,
		})
		return
	}

	inserted := 0
	for _, st := range stats {
		inserted += st.Inserted
	}
	c.IndentedJSON(http.StatusOK, gin.H{
		"message":     "Ingestion completed",
		"new_posts":   inserted,
		"communities": stats,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		}).Debug("Request handled")
	}
}
