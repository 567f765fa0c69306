package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/lox/flowcal/internal/chart"
	"github.com/lox/flowcal/internal/store"
)

// UserHeader carries the caller's identity. Requests without it can compute but never save.
const UserHeader = "X-User-ID"

type Server struct {
	store  *store.Store
	addr   string
	charts *chart.Cache
	now    func() time.Time
	newID  func() string
}

func NewServer(store *store.Store, addr string, charts *chart.Cache) *Server {
	if charts == nil {
		charts = chart.NewCache("")
	}
	return &Server{
		store:  store,
		addr:   addr,
		charts: charts,
		now:    time.Now,
		newID:  newRecordID,
	}
}

func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/experiments", s.handleSearchExperiments)
	api.POST("/experiments/:experiment/runs", s.handleCreateRun)
	api.GET("/experiments/:experiment/runs", s.handleListRuns)
	api.GET("/experiments/:experiment/runs/latest", s.handleLatestRun)
	api.GET("/experiments/:experiment/runs/latest/chart.png", s.handleLatestChart)
	api.GET("/shortcuts", s.handleListShortcuts)
	api.POST("/shortcuts", s.handleAddShortcut)

	return router
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		logrus.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("failed to shutdown http server: %v", err)
		}
	}()

	logrus.Infof("http server listening on %s", s.addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func userID(c *gin.Context) string {
	return c.GetHeader(UserHeader)
}
