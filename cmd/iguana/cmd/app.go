package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/engine"
	"github.com/msto63/iguana/internal/metrics"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/repository"
	"github.com/msto63/iguana/internal/server"
	"github.com/msto63/iguana/internal/tui"
	"github.com/msto63/iguana/pkg/core/config"
	grpcx "github.com/msto63/iguana/pkg/core/grpc"
	"github.com/msto63/iguana/pkg/core/health"
	"github.com/msto63/iguana/pkg/core/logging"
)

// store is what the commands need from a record store
type store interface {
	repository.Repository
	repository.UserDirectory
}

// app carries the state shared by all commands
type app struct {
	cfgFile  string
	logLevel mdwlog.Level
	fixtures string
	user     string
	remote   string

	cfg    *config.Config
	logger *mdwlog.Logger

	closers []io.Closer
}

// setup loads the configuration and creates the logger
func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.cfgFile != "" {
		a.cfg, err = config.Load(a.cfgFile)
	} else {
		a.cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}
	if a.fixtures == "" {
		a.fixtures = a.cfg.Store.Fixtures
	}

	level := a.cfg.General.LogLevel
	if cmd.Flags().Changed("log-level") {
		level = a.logLevel.String()
	}
	logger, closer, err := logging.NewLogger(logging.LoggerConfig{
		ServiceName: a.cfg.General.Name,
		Level:       level,
		Format:      a.cfg.General.LogFormat,
		Output:      cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger
	a.closers = append(a.closers, closer)
	mdwlog.SetDefault(logger)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.WarnWithErr("close failed", err)
		}
	}
	a.closers = nil
}

// openStore opens the configured record store and loads the fixtures.
// A SQLite store only takes fixtures while it is empty.
func (a *app) openStore() (store, []health.Checker, error) {
	memOpts := repository.MemoryOptions{
		Logger:           a.logger,
		ReplaceAssignees: a.cfg.Olea.ReplaceAssignees,
		SavedSearchKeep:  a.cfg.Search.SavedSearchKeep,
	}

	switch a.cfg.Store.Type {
	case config.StoreSQLite:
		s, err := repository.NewSQLiteStore(repository.SQLiteConfig{
			Path:   a.cfg.Store.Path,
			Logger: a.logger,
			Memory: memOpts,
		})
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, s)
		if a.fixtures != "" && s.Len() == 0 {
			if _, err := s.LoadFixtureFile(a.fixtures); err != nil {
				return nil, nil, err
			}
		}
		return s, []health.Checker{health.PingCheck("sqlite", s.Ping)}, nil

	default:
		m, err := repository.NewMemory(memOpts)
		if err != nil {
			return nil, nil, err
		}
		if a.fixtures != "" {
			if _, err := m.LoadFixtureFile(a.fixtures); err != nil {
				return nil, nil, err
			}
		} else {
			a.logger.Warn("memory store without fixtures, every query answers empty")
		}
		return m, nil, nil
	}
}

// newEngine builds the engine on s, registering its metrics on reg
func (a *app) newEngine(s store, reg prometheus.Registerer) (*engine.Engine, error) {
	opts := engine.Options{
		Logger:          a.logger,
		Repository:      s,
		MaxQueryLength:  a.cfg.Search.MaxLength,
		MinSearchLength: a.cfg.Search.MinLength,
		MaxLineLength:   a.cfg.Olea.MaxLength,
		Timeout:         a.cfg.Search.Timeout.Duration,
		AuditLogger:     engine.LogAudit{Logger: a.logger.WithField("component", "audit")},
	}
	if reg != nil {
		opts.Metrics = metrics.New(reg)
	}
	return engine.New(opts)
}

// localEngine opens the store and the engine for a one-shot command
func (a *app) localEngine(ctx context.Context) (*engine.Engine, model.UserRef, error) {
	s, _, err := a.openStore()
	if err != nil {
		return nil, model.UserRef{}, err
	}
	e, err := a.newEngine(s, nil)
	if err != nil {
		return nil, model.UserRef{}, err
	}
	user, err := a.resolveUser(ctx, s)
	if err != nil {
		return nil, model.UserRef{}, err
	}
	return e, user, nil
}

func (a *app) resolveUser(ctx context.Context, users repository.UserDirectory) (model.UserRef, error) {
	if a.user == "" {
		return model.UserRef{}, nil
	}
	return users.LookupUser(ctx, a.user)
}

// remoteClient connects to the server named by --remote
func (a *app) remoteClient() (*server.Client, error) {
	cfg := grpcx.DefaultClientConfig(a.remote)
	cfg.Logger = a.logger
	conn, err := grpcx.Dial(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn)
	return server.NewClient(conn), nil
}

// backend returns the remote server when --remote is set, otherwise an
// engine on the local store
func (a *app) backend(ctx context.Context, project string, sprint int) (tui.Backend, error) {
	if a.remote != "" {
		client, err := a.remoteClient()
		if err != nil {
			return nil, err
		}
		return &tui.RemoteBackend{Client: client, User: a.user, Project: project, Sprint: sprint}, nil
	}
	e, user, err := a.localEngine(ctx)
	if err != nil {
		return nil, err
	}
	return &tui.LocalBackend{Engine: e, User: user, Project: project, Sprint: sprint}, nil
}
