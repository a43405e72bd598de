// File: frontend.go
// Title: Search Frontend
// Description: Answers a search request. A structured query is compiled
//              and executed; any input that fails on that path is
//              answered by full-text search over the registered entities.
//              Results are filtered by read permission and presented.
// Author: msto63
// Version: v0.1.0
// Created: 2025-03-08
// Modified: 2025-03-08
//
// Change History:
// - 2025-03-08 v0.1.0: Initial implementation

package frontend

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/metrics"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/registry"
	"github.com/msto63/iguana/internal/search/ast"
	"github.com/msto63/iguana/internal/search/parser"
)

// DefaultMinLength is the shortest accepted input and full-text term
const DefaultMinLength = 3

// Store executes compiled queries and remembers structured searches
type Store interface {
	Execute(ctx context.Context, q *ast.CompiledQuery) ([]*model.Record, error)
	SaveSearchIfNew(ctx context.Context, expression string, user model.UserRef) error
}

// Permissions decides which records a user may see
type Permissions interface {
	CanRead(ctx context.Context, rec *model.Record, user model.UserRef) bool
}

// Presenter maps a record to its search result
type Presenter interface {
	Present(ctx context.Context, rec *model.Record) model.Result
}

// Options configures the frontend. Permissions and Presenter default to
// Store when it implements them.
type Options struct {
	Logger      *mdwlog.Logger
	Registry    *registry.Registry
	Parser      *parser.Parser
	Store       Store
	Permissions Permissions
	Presenter   Presenter
	Metrics     *metrics.Metrics

	// FullTextEntities lists the entities searched by the fallback, in
	// result order. Defaults to all registered entities.
	FullTextEntities []string
	MinLength        int
}

// Response is the answer to one search request
type Response struct {
	Results  []model.Result
	FullText bool

	// Query is the compiled structured query, nil for full-text answers
	Query *ast.CompiledQuery
}

// Frontend answers search requests
type Frontend struct {
	logger      *mdwlog.Logger
	registry    *registry.Registry
	parser      *parser.Parser
	store       Store
	permissions Permissions
	presenter   Presenter
	metrics     *metrics.Metrics
	options     Options
}

// New creates a search frontend
func New(opts Options) (*Frontend, error) {
	if opts.Logger == nil {
		opts.Logger = mdwlog.GetDefault()
	}
	if opts.Registry == nil || opts.Store == nil {
		return nil, mdwerror.New("search frontend needs a registry and a store").
			WithCode(mdwerror.CodeServiceInitialization)
	}
	if opts.Permissions == nil {
		p, ok := opts.Store.(Permissions)
		if !ok {
			return nil, mdwerror.New("search frontend needs permissions").
				WithCode(mdwerror.CodeServiceInitialization)
		}
		opts.Permissions = p
	}
	if opts.Presenter == nil {
		p, ok := opts.Store.(Presenter)
		if !ok {
			return nil, mdwerror.New("search frontend needs a presenter").
				WithCode(mdwerror.CodeServiceInitialization)
		}
		opts.Presenter = p
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	if len(opts.FullTextEntities) == 0 {
		opts.FullTextEntities = opts.Registry.Entities()
	}

	logger := opts.Logger.WithField("component", "search-frontend")
	if opts.Parser == nil {
		p, err := parser.New(parser.Options{Logger: opts.Logger, Registry: opts.Registry})
		if err != nil {
			return nil, mdwerror.Wrap(err, "failed to initialize search parser").
				WithCode(mdwerror.CodeServiceInitialization)
		}
		opts.Parser = p
	}

	return &Frontend{
		logger:      logger,
		registry:    opts.Registry,
		parser:      opts.Parser,
		store:       opts.Store,
		permissions: opts.Permissions,
		presenter:   opts.Presenter,
		metrics:     opts.Metrics,
		options:     opts,
	}, nil
}

// Compile compiles a structured query without executing it
func (f *Frontend) Compile(expression string) (*ast.CompiledQuery, error) {
	if err := f.checkLength(expression, expression); err != nil {
		return nil, err
	}
	return f.parser.Parse(expression)
}

// Query answers expression and returns the results user may read
func (f *Frontend) Query(ctx context.Context, expression string, user model.UserRef) ([]model.Result, error) {
	resp, err := f.Search(ctx, expression, user)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Search answers expression. Structured queries are saved for user;
// full-text answers are not.
func (f *Frontend) Search(ctx context.Context, expression string, user model.UserRef) (*Response, error) {
	start := time.Now()
	if err := f.checkLength(expression, expression); err != nil {
		f.metrics.SearchServed(metrics.PathFailed, time.Since(start))
		return nil, err
	}

	resp, err := f.structured(ctx, expression, user)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			f.metrics.SearchServed(metrics.PathFailed, time.Since(start))
			return nil, ctxErr
		}
		f.logger.Info("falling back to full-text search", mdwlog.Fields{
			"expression": expression,
			"reason":     err.Error(),
		})
		resp, err = f.fullText(ctx, expression, user)
	}
	if err != nil {
		f.metrics.SearchServed(metrics.PathFailed, time.Since(start))
		return nil, err
	}

	path := metrics.PathStructured
	if resp.FullText {
		path = metrics.PathFallback
	}
	f.metrics.SearchServed(path, time.Since(start))
	f.logger.Debug("search answered", mdwlog.Fields{
		"expression": expression,
		"path":       path,
		"results":    len(resp.Results),
		"user":       user.String(),
		"duration":   time.Since(start).String(),
	})
	return resp, nil
}

func (f *Frontend) structured(ctx context.Context, expression string, user model.UserRef) (*Response, error) {
	q, err := f.parser.Parse(expression)
	if err != nil {
		return nil, err
	}
	records, err := f.store.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := f.store.SaveSearchIfNew(ctx, expression, user); err != nil {
		f.logger.Warn("failed to save search", mdwlog.Fields{
			"expression": expression,
			"error":      err.Error(),
		})
	}

	records = f.readable(ctx, records, user)
	if q.HasLimit() && len(records) > q.Limit {
		records = records[:q.Limit]
	}
	return &Response{Results: f.present(ctx, records), Query: q}, nil
}

func (f *Frontend) readable(ctx context.Context, records []*model.Record, user model.UserRef) []*model.Record {
	out := records[:0]
	for _, rec := range records {
		if f.permissions.CanRead(ctx, rec, user) {
			out = append(out, rec)
		}
	}
	return out
}

func (f *Frontend) present(ctx context.Context, records []*model.Record) []model.Result {
	results := make([]model.Result, 0, len(records))
	for _, rec := range records {
		results = append(results, f.presenter.Present(ctx, rec))
	}
	return results
}

func (f *Frontend) checkLength(input, part string) error {
	if utf8.RuneCountInString(part) < f.options.MinLength {
		return &TooShortError{Input: input, Part: part, Min: f.options.MinLength}
	}
	return nil
}

// IsTooShort reports whether err rejects a too short input
func IsTooShort(err error) bool {
	var tse *TooShortError
	return errors.As(err, &tse)
}
