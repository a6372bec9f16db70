package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/growbot-project/growbot/internal/bot"
	"github.com/growbot-project/growbot/internal/config"
	"github.com/growbot-project/growbot/internal/db"
	"github.com/growbot-project/growbot/internal/events"
	"github.com/growbot-project/growbot/internal/util"
)

// Fleet is the view of the bot manager the API needs.
type Fleet interface {
	GetAllInfo() []bot.Info
	Count() int
	RunningCount() int
	Stop(name string) error
	Reconnect(name string) error
}

// JournalReader serves journal queries. It is nil when the journal is disabled.
type JournalReader interface {
	Recent(bot string, limit int) ([]db.Entry, error)
	CountByType(bot string) (map[string]int, error)
	OpenAlerts() ([]db.Alert, error)
	AcknowledgeAlert(id int64) error
}

// Server is the monitoring and control API.
type Server struct {
	cfg      *config.Config
	eventBus *events.EventBus
	fleet    Fleet
	journal  JournalReader
	stream   *Stream

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server and subscribes its event stream.
func NewServer(cfg *config.Config, eventBus *events.EventBus, fleet Fleet, journal JournalReader) *Server {
	if cfg.GetApplicationData().Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		eventBus: eventBus,
		fleet:    fleet,
		journal:  journal,
		stream:   NewStream(cfg.GetApplicationData().Security.AllowedOrigins),
	}
	s.stream.Subscribe(eventBus)
	s.router = s.buildRouter()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	appData := s.cfg.GetApplicationData()
	addr := fmt.Sprintf(":%d", appData.API.Port)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// No write timeout: /api/events holds its connection open
		IdleTimeout: 120 * time.Second,
	}

	var tlsConfig *tls.Config
	if appData.Security.TLSEnabled {
		var err error
		if tlsConfig, err = s.loadTLS(appData.Security); err != nil {
			return err
		}
	}

	// SO_REUSEADDR for immediate rebinding after a restart
	lc := ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Bool("tls", tlsConfig != nil).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		s.stream.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if tlsConfig != nil {
		err = s.httpServer.Serve(tls.NewListener(ln, tlsConfig))
	} else {
		err = s.httpServer.Serve(ln)
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// loadTLS loads the configured key pair, generating a self-signed one on
// first use.
func (s *Server) loadTLS(sec config.SecurityConfig) (*tls.Config, error) {
	certFile, keyFile := s.resolve(sec.TLSCertFile), s.resolve(sec.TLSKeyFile)
	if err := util.EnsureSelfSignedCert(certFile, keyFile, "localhost", "127.0.0.1"); err != nil {
		return nil, err
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		},
	}, nil
}

func (s *Server) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.cfg.Dir(), path)
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	security := s.cfg.GetApplicationData().Security

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	allowedOrigins := security.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	rateLimiter := NewRateLimiter(security.RateLimitRPS)
	router.Use(rateLimiter.Middleware())

	auth := NewAuthMiddleware(s.cfg)

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/version", s.handleVersion)
	}

	protected := router.Group("/api")
	protected.Use(auth.IPWhitelist(), auth.RequireAuth())
	{
		protected.GET("/bots", s.handleListBots)
		protected.GET("/bots/:name", s.handleGetBot)
		protected.POST("/bots/:name/stop", s.handleStopBot)
		protected.POST("/bots/:name/reconnect", s.handleReconnectBot)

		protected.GET("/system", s.handleSystem)
		protected.GET("/config", s.handleGetConfig)

		protected.GET("/journal", s.handleJournal)
		protected.GET("/journal/:name/counts", s.handleJournalCounts)
		protected.GET("/alerts", s.handleAlerts)
		protected.POST("/alerts/:id/ack", s.handleAckAlert)

		protected.GET("/events", s.stream.Handle)
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "growbot API is running"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.stream.Close()
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
