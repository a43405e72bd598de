package tui

import (
	"context"
	"errors"

	"github.com/msto63/iguana/internal/engine"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/server"
)

// Backend runs the shell's input, locally or on a remote server
type Backend interface {
	Search(ctx context.Context, expression string) (*server.SearchReply, error)
	QuickAdd(ctx context.Context, line string) (*server.QuickAddReply, error)
}

// LocalBackend runs input on an in-process engine
type LocalBackend struct {
	Engine  server.Engine
	User    model.UserRef
	Project string
	Sprint  int
}

// Search implements Backend
func (b *LocalBackend) Search(ctx context.Context, expression string) (*server.SearchReply, error) {
	resp, err := b.Engine.Search(ctx, expression, b.User)
	if err != nil {
		return nil, err
	}
	reply := &server.SearchReply{Results: resp.Results, FullText: resp.FullText}
	if resp.Query != nil {
		reply.Query = resp.Query.String()
	}
	return reply, nil
}

// QuickAdd implements Backend
func (b *LocalBackend) QuickAdd(ctx context.Context, line string) (*server.QuickAddReply, error) {
	result, err := b.Engine.QuickAdd(ctx, engine.QuickAddRequest{
		Line:    line,
		Project: b.Project,
		Sprint:  b.Sprint,
	}, b.User)
	if err != nil {
		return nil, err
	}
	return &server.QuickAddReply{
		Issue:   result.Issue.String(),
		Created: result.Created,
		Changes: result.Changes,
	}, nil
}

// RemoteBackend runs input on an iguana server
type RemoteBackend struct {
	Client  *server.Client
	User    string
	Project string
	Sprint  int
}

// Search implements Backend
func (b *RemoteBackend) Search(ctx context.Context, expression string) (*server.SearchReply, error) {
	return b.Client.Search(ctx, server.SearchRequest{Expression: expression, User: b.User})
}

// QuickAdd implements Backend
func (b *RemoteBackend) QuickAdd(ctx context.Context, line string) (*server.QuickAddReply, error) {
	return b.Client.QuickAdd(ctx, server.QuickAddRequest{
		Line:    line,
		Project: b.Project,
		Sprint:  b.Sprint,
		User:    b.User,
	})
}

// rejectedInput returns the input a failed call hands back, falling back
// to what was sent
func rejectedInput(err error, sent string) string {
	var rej interface{ Expression() string }
	if errors.As(err, &rej) {
		return rej.Expression()
	}
	if payload, ok := server.RejectedInput(err); ok && payload.Expression != "" {
		return payload.Expression
	}
	return sent
}
