// ============================================================================
// Iguana - Issue Tracker Query Languages
// ============================================================================
//
// Package:     repository
// Description: Reference repositories executing compiled queries and
//              quick-add instructions
// Author:      Mike Stoffels
// Created:     2025-03-08
// License:     MIT
// ============================================================================

// Package repository provides the storage collaborators of the query
// languages: an in-memory record store that evaluates compiled search
// queries and applies Olea instructions, and a SQLite store that persists
// records and saved searches.
package repository

import (
	"context"

	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/olea"
	"github.com/msto63/iguana/internal/search/ast"
)

// Repository is the complete collaborator surface used by the engine
type Repository interface {
	Execute(ctx context.Context, q *ast.CompiledQuery) ([]*model.Record, error)
	CanRead(ctx context.Context, rec *model.Record, user model.UserRef) bool
	Present(ctx context.Context, rec *model.Record) model.Result

	CreateIssue(ctx context.Context, project string, in *olea.Instructions, user model.UserRef) (olea.IssueRef, error)
	CreateIssueInSprint(ctx context.Context, project string, sprint int, in *olea.Instructions, user model.UserRef) (olea.IssueRef, error)
	UpdateIssue(ctx context.Context, ref olea.IssueRef, in *olea.Instructions, user model.UserRef) error
	AddToSprint(ctx context.Context, ref olea.IssueRef, sprint int, user model.UserRef) error

	SearchStore
}

// UserDirectory resolves user names sent by remote clients
type UserDirectory interface {
	LookupUser(ctx context.Context, username string) (model.UserRef, error)
}

// SearchStore keeps saved search expressions
type SearchStore interface {
	SaveSearchIfNew(ctx context.Context, expression string, user model.UserRef) error
	ListSearches(ctx context.Context, user model.UserRef) ([]model.SavedSearch, error)
	SetPersistent(ctx context.Context, id string, persistent bool, user model.UserRef) error
}

// DefaultSavedSearchKeep is the number of non persistent saved searches
// that survive pruning
const DefaultSavedSearchKeep = 10

// AutosaveDescription describes searches saved by a successful query
const AutosaveDescription = "Autosave"
