// File: engine.go
// Title: Iguana Language Engine
// Description: Composition root of the query languages. Ties the entity
//              registry, the search frontend and the Olea parser to a
//              repository and exposes search, quick-add and tokenizing
//              to the outer layers.
// Author: msto63
// Version: v0.1.0
// Created: 2025-03-09
// Modified: 2025-03-09
//
// Change History:
// - 2025-03-09 v0.1.0: Initial implementation

package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/entities"
	"github.com/msto63/iguana/internal/lang/scan"
	"github.com/msto63/iguana/internal/metrics"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/olea"
	"github.com/msto63/iguana/internal/registry"
	"github.com/msto63/iguana/internal/repository"
	"github.com/msto63/iguana/internal/search/ast"
	"github.com/msto63/iguana/internal/search/frontend"
	"github.com/msto63/iguana/internal/search/parser"
)

// Languages accepted by Tokenize
const (
	LanguageSearch = "search"
	LanguageOlea   = "olea"
)

// Engine coordinates the search and quick-add languages
type Engine struct {
	logger   *mdwlog.Logger
	catalog  *entities.Catalog
	registry *registry.Registry
	frontend *frontend.Frontend
	olea     *olea.Parser
	repo     repository.Repository
	metrics  *metrics.Metrics
	options  Options
}

// Options configures the engine
type Options struct {
	// Logger for engine operations (optional, defaults to default logger)
	Logger *mdwlog.Logger

	// Repository executes queries and applies quick-add lines (required)
	Repository repository.Repository

	// Catalog of entity kinds (default: entities.Default)
	Catalog *entities.Catalog

	// Registry of searchable fields (default: built from Catalog)
	Registry *registry.Registry

	// Metrics recorder (optional)
	Metrics *metrics.Metrics

	// MaxQueryLength limits search input length (default: 4096)
	MaxQueryLength int

	// MinSearchLength is the shortest search input and full-text term (default: 3)
	MinSearchLength int

	// MaxLineLength limits quick-add line length (default: 1024)
	MaxLineLength int

	// Timeout bounds one search or quick-add call (default: 10s)
	Timeout time.Duration

	// AuditLogger records every applied quick-add line (optional)
	AuditLogger AuditLogger
}

// AuditLogger records quick-add calls
type AuditLogger interface {
	LogQuickAdd(ctx context.Context, req QuickAddRequest, user model.UserRef, result *QuickAddResult, err error)
}

// New creates an engine
func New(opts Options) (*Engine, error) {
	if opts.Repository == nil {
		return nil, mdwerror.New("engine needs a repository").
			WithCode(mdwerror.CodeServiceInitialization)
	}
	if opts.Logger == nil {
		opts.Logger = mdwlog.GetDefault()
	}
	if opts.Catalog == nil {
		opts.Catalog = entities.Default()
	}
	if opts.MaxQueryLength <= 0 {
		opts.MaxQueryLength = parser.DefaultMaxInputLength
	}
	if opts.MinSearchLength <= 0 {
		opts.MinSearchLength = frontend.DefaultMinLength
	}
	if opts.MaxLineLength <= 0 {
		opts.MaxLineLength = olea.DefaultMaxLineLength
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	logger := opts.Logger.WithField("component", "engine")

	if opts.Registry == nil {
		reg, err := opts.Catalog.NewRegistry(opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize entity registry: %w", err)
		}
		opts.Registry = reg
	}

	p, err := parser.New(parser.Options{
		Logger:         opts.Logger,
		Registry:       opts.Registry,
		MaxInputLength: opts.MaxQueryLength,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize search parser: %w", err)
	}

	fe, err := frontend.New(frontend.Options{
		Logger:           opts.Logger,
		Registry:         opts.Registry,
		Parser:           p,
		Store:            opts.Repository,
		Permissions:      opts.Repository,
		Presenter:        opts.Repository,
		Metrics:          opts.Metrics,
		FullTextEntities: opts.Catalog.FullTextEntities(),
		MinLength:        opts.MinSearchLength,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize search frontend: %w", err)
	}

	e := &Engine{
		logger:   logger,
		catalog:  opts.Catalog,
		registry: opts.Registry,
		frontend: fe,
		olea:     olea.New(olea.Options{Logger: opts.Logger, MaxLineLength: opts.MaxLineLength}),
		repo:     opts.Repository,
		metrics:  opts.Metrics,
		options:  opts,
	}

	logger.Info("engine initialized", mdwlog.Fields{
		"entities":        len(opts.Registry.Entities()),
		"maxQueryLength":  opts.MaxQueryLength,
		"minSearchLength": opts.MinSearchLength,
		"maxLineLength":   opts.MaxLineLength,
		"timeout":         opts.Timeout.String(),
	})
	return e, nil
}

// Search answers a search request for user
func (e *Engine) Search(ctx context.Context, expression string, user model.UserRef) (*frontend.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.options.Timeout)
	defer cancel()

	timer := e.logger.StartTimer("search").
		WithField("expression", clip(expression)).
		WithField("user", user.String())
	resp, err := e.frontend.Search(ctx, expression, user)
	if err != nil {
		timer.StopWithError(err)
		return nil, err
	}
	timer.WithField("results", len(resp.Results)).WithField("fullText", resp.FullText).Stop()
	return resp, nil
}

// Compile compiles a structured search query without running it
func (e *Engine) Compile(expression string) (*ast.CompiledQuery, error) {
	return e.frontend.Compile(expression)
}

// Tokenize returns the token stream of input in the given language
func (e *Engine) Tokenize(language, input string) ([]scan.Token, error) {
	switch strings.ToLower(language) {
	case LanguageSearch:
		return parser.Tokenize(input)
	case LanguageOlea:
		return olea.Tokenize(input)
	default:
		return nil, mdwerror.Newf("unknown language %q, expected %s or %s", language, LanguageSearch, LanguageOlea).
			WithCode(mdwerror.CodeInvalidInput).
			WithDetail("language", language)
	}
}

// Registry returns the entity registry
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Catalog returns the entity catalog
func (e *Engine) Catalog() *entities.Catalog {
	return e.catalog
}

// Repository returns the repository the engine works on
func (e *Engine) Repository() repository.Repository {
	return e.repo
}

// clip shortens user input for log fields
func clip(s string) string {
	const limit = 120
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
