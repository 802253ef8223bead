// Package api serves the JSON API and wires the process together.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"kyri56xcaesar/tasktracker/internal/authmw"
	"kyri56xcaesar/tasktracker/internal/config"
	"kyri56xcaesar/tasktracker/internal/front"
	"kyri56xcaesar/tasktracker/internal/logging"
	"kyri56xcaesar/tasktracker/internal/metrics"
	"kyri56xcaesar/tasktracker/internal/store"
	"kyri56xcaesar/tasktracker/internal/store/memstore"
	"kyri56xcaesar/tasktracker/internal/store/mongo"
	"kyri56xcaesar/tasktracker/internal/store/postgres"
	"kyri56xcaesar/tasktracker/internal/tracker"
)

const apiPrefix = "/api"

type Server struct {
	config  config.Config
	engine  *gin.Engine
	tracker *tracker.Service
	gate    *authmw.Gate
	metrics *metrics.Metrics
	log     *logrus.Logger
}

// NewServer builds the gin engine with the JSON API under /api and the
// HTML pages at the root.
func NewServer(cfg config.Config, svc *tracker.Service, gate *authmw.Gate, m *metrics.Metrics, log *logrus.Logger) (*Server, error) {
	s := &Server{
		config:  cfg,
		engine:  gin.New(),
		tracker: svc,
		gate:    gate,
		metrics: m,
		log:     log,
	}

	s.engine.Use(gin.Recovery(), logging.Middleware(log), m.Middleware())
	s.setCors()
	s.setRoutes()

	if err := front.Mount(s.engine, front.Deps{
		Tracker: svc,
		Gate:    gate,
		Config:  cfg,
		Log:     log,
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) setCors() {
	corsconfig := cors.DefaultConfig()
	corsconfig.AllowOrigins = s.config.AllowedOrigins
	corsconfig.AllowMethods = s.config.AllowedMethods
	corsconfig.AllowHeaders = s.config.AllowedHeaders
	corsconfig.AllowCredentials = !containsWildcard(s.config.AllowedOrigins)
	s.engine.Use(cors.New(corsconfig))
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func (s *Server) setRoutes() {
	root := s.engine.Group("/")
	{
		root.GET("/healthz", s.handleHealth)
		root.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.engine.Group(apiPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", s.handleLogin)
		auth.GET("/logout", s.gate.Optional(), s.handleLogout)
		auth.GET("/me", s.gate.RequireAuth(), s.handleMe)
		auth.PUT("/profile", s.gate.RequireAuth(), s.handleUpdateProfile)
	}

	users := api.Group("/users", s.gate.RequireAuth())
	{
		users.GET("", s.handleListUsers)
		users.POST("", s.handleCreateUser)
		users.PUT("/profile", s.handleUpdateProfile)
		users.PUT("/password", s.handleChangePassword)
		users.PUT("/:id", s.handleUpdateUser)
		users.DELETE("/:id", s.handleDeleteUser)
	}

	projects := api.Group("/projects", s.gate.RequireAuth())
	{
		projects.GET("", s.handleListProjects)
		projects.POST("", s.handleCreateProject)
		projects.GET("/:id", s.handleGetProject)
		projects.PUT("/:id", s.handleUpdateProject)
		projects.DELETE("/:id", s.handleDeleteProject)
		projects.POST("/:id/team", s.handleAddTeamMember)
		projects.DELETE("/:id/team/:userId", s.handleRemoveTeamMember)
		projects.GET("/:id/stats", s.handleProjectStats)
	}

	tasks := api.Group("/tasks", s.gate.RequireAuth())
	{
		tasks.GET("", s.handleListTasks)
		tasks.POST("", s.handleCreateTask)
		tasks.GET("/stats", s.handleTaskStats)
		tasks.GET("/:id", s.handleGetTask)
		tasks.PUT("/:id", s.handleUpdateTask)
		tasks.DELETE("/:id", s.handleDeleteTask)
		tasks.PATCH("/:id/status", s.handleUpdateTaskStatus)
		tasks.POST("/:id/comments", s.handleAddComment)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.tracker.Ping(ctx); err != nil {
		s.log.WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// InitAndServe loads the configuration at confPath, connects the backends
// and serves until SIGINT or SIGTERM.
func InitAndServe(confPath string) {
	cfg := config.Load(confPath, logrus.StandardLogger())
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	setGinMode(cfg.ApiGinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatalf("could not connect to the store: %v", err)
	}

	m := metrics.New()
	issuer := authmw.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpire)

	var revocations authmw.Revocations = authmw.NopRevocations{}
	if cfg.RedisURL != "" {
		r, err := authmw.NewRedisRevocations(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("could not connect to redis: %v", err)
		}
		defer r.Close()
		revocations = r
		log.Info("token revocation backed by redis")
	}

	var (
		external  *authmw.KeycloakVerifier
		directory authmw.Directory = authmw.NopDirectory{}
	)
	if cfg.KeycloakEnabled() {
		external, err = authmw.NewKeycloakVerifier(cfg.KCAddress, cfg.KCRealm, cfg.KCAudience)
		if err != nil {
			log.Fatalf("keycloak verifier: %v", err)
		}
		defer external.Close()

		if cfg.KCClientSecret != "" {
			dir := authmw.NewKeycloakDirectory(cfg.KCAddress, cfg.KCRealm, cfg.KCClientID, cfg.KCClientSecret)
			if err := dir.SelfTest(ctx); err != nil {
				log.WithError(err).Warn("keycloak directory unavailable, accounts will not be mirrored")
			} else {
				directory = dir
			}
		}
	}

	svc := tracker.New(tracker.Deps{
		Store:       st,
		Issuer:      issuer,
		Revocations: revocations,
		Directory:   directory,
		Metrics:     m,
		Log:         log,
	})
	if _, err := svc.SeedAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("failed to seed the admin account: %v", err)
	}

	gate := &authmw.Gate{
		Issuer:      issuer,
		Users:       st,
		Revocations: revocations,
		External:    external,
		Metrics:     m,
		Log:         log,
	}

	srv, err := NewServer(cfg, svc, gate, m, log)
	if err != nil {
		log.Fatalf("failed to build the server: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: time.Second * 5,
	}

	go func() {
		log.Infof("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()

	stop()
	log.Info("shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: ", err)
	}
	if err := st.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("failed to close the store")
	}

	log.Info("Server exiting")
}

func openStore(ctx context.Context, cfg config.Config, log *logrus.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return postgres.Open(ctx, postgres.Options{
			Address:  cfg.DBAddress,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Name:     cfg.DBName,
			Timeout:  cfg.StoreTimeout,
		}, log)
	case config.DriverMongo:
		return mongo.Open(ctx, mongo.Options{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDB,
			Timeout:  cfg.StoreTimeout,
		}, log)
	case config.DriverMemory:
		log.Warn("using the in-memory store, data is lost on restart")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func setGinMode(mode string) {
	switch strings.ToLower(mode) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "envgin":
		gin.SetMode(gin.EnvGinMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
}
