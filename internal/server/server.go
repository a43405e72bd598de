// File: server.go
// Title: Iguana Server
// Description: Runs the query service over gRPC next to the HTTP routes
//              and keeps the gRPC health status in line with the health
//              checks.
// Author: msto63
// Version: v0.1.0
// Created: 2025-03-10
// Modified: 2025-03-10
//
// Change History:
// - 2025-03-10 v0.1.0: Initial implementation

// Package server exposes the language engine to remote clients: a gRPC
// query service, an Olea websocket, Prometheus metrics and a health
// report.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/engine"
	"github.com/msto63/iguana/internal/repository"
	grpcx "github.com/msto63/iguana/pkg/core/grpc"
	"github.com/msto63/iguana/pkg/core/health"
	"github.com/msto63/iguana/pkg/core/version"
)

// Config holds the listen addresses and timeouts
type Config struct {
	Host            string
	GRPCPort        int
	HTTPPort        int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Version         string

	// AllowedOrigins lists the origins accepted by the websocket, "*"
	// accepts all. Empty means same-origin only.
	AllowedOrigins []string
}

// DefaultConfig returns the default server configuration
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		GRPCPort:        9300,
		HTTPPort:        9380,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Version:         "dev",
	}
}

// Options wires the server to its collaborators
type Options struct {
	Config Config
	Logger *mdwlog.Logger

	// Engine answers the requests (required)
	Engine Engine

	// Users resolves the user names sent by clients (optional)
	Users repository.UserDirectory

	// Gatherer serves /metrics (default: prometheus.DefaultGatherer)
	Gatherer prometheus.Gatherer

	// Checks are added to the health registry
	Checks []health.Checker
}

// Server runs the gRPC and HTTP listeners
type Server struct {
	grpc   *grpcx.Server
	http   *http.Server
	health *health.Registry
	logger *mdwlog.Logger
	config Config
}

// New creates a server
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, mdwerror.New("server needs an engine").WithCode(mdwerror.CodeServiceInitialization)
	}
	if opts.Logger == nil {
		opts.Logger = mdwlog.GetDefault()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	cfg := opts.Config
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	logger := opts.Logger.WithField("component", "server")

	checks := health.NewRegistry("iguana", cfg.Version)
	checks.SetInfo("search_language", version.SearchLanguage)
	checks.SetInfo("olea_language", version.OleaLanguage)
	checks.Register(health.PingCheck("engine", func(context.Context) error {
		return probe(opts.Engine)
	}))
	for _, c := range opts.Checks {
		checks.Register(c)
	}

	grpcCfg := grpcx.DefaultServerConfig()
	grpcCfg.Logger = opts.Logger
	grpcServer := grpcx.NewServer(grpcCfg)
	RegisterQueryServiceServer(grpcServer.GRPCServer(), NewService(opts.Engine, opts.Users, opts.Logger))

	socket := NewSocketHandler(opts.Engine, opts.Users, opts.Logger, originChecker(cfg.AllowedOrigins))
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.HTTPPort),
		Handler:      newHTTPHandler(logger, socket, opts.Gatherer, checks),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		grpc:   grpcServer,
		http:   httpServer,
		health: checks,
		logger: logger,
		config: cfg,
	}, nil
}

// Run listens on the configured ports and serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	grpcLis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.config.Host, s.config.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}
	httpLis, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		grpcLis.Close()
		return fmt.Errorf("failed to listen for HTTP: %w", err)
	}
	return s.Serve(ctx, grpcLis, httpLis)
}

// Serve serves on existing listeners until ctx is done or a listener
// fails, then shuts both down
func (s *Server) Serve(ctx context.Context, grpcLis, httpLis net.Listener) error {
	s.updateServing(ctx)

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.grpc.Serve(grpcLis)
	}()
	go func() {
		s.logger.Info("HTTP server listening", mdwlog.Fields{"address": httpLis.Addr().String()})
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	s.grpc.StopWithTimeout(shutdownCtx)
	if err := s.http.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// probe lexes one input per language
func probe(e Engine) error {
	if _, err := e.Tokenize(engine.LanguageSearch, `Issue.title ~~ "probe"`); err != nil {
		return fmt.Errorf("search lexer: %w", err)
	}
	if _, err := e.Tokenize(engine.LanguageOlea, "Probe :Task !2"); err != nil {
		return fmt.Errorf("olea lexer: %w", err)
	}
	return nil
}

// updateServing copies the health report into the gRPC health service
func (s *Server) updateServing(ctx context.Context) {
	report := s.health.Check(ctx)
	s.grpc.SetServing("", report.Serving())
	s.grpc.SetServing(ServiceName, report.Serving())
	if !report.Serving() {
		s.logger.Warn("health checks failing", mdwlog.Fields{"report": report.String()})
	}
}

// HealthRegistry returns the health check registry
func (s *Server) HealthRegistry() *health.Registry {
	return s.health
}

// HTTPHandler returns the HTTP routes
func (s *Server) HTTPHandler() http.Handler {
	return s.http.Handler
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		return set["*"] || set[r.Header.Get("Origin")]
	}
}
