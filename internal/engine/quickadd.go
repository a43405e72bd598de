package engine

import (
	"context"
	"errors"
	"strings"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/metrics"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/olea"
)

// QuickAddRequest is one quick-add line typed in a project. Sprint, when
// set, is the sequence number of the sprint a new issue is added to.
type QuickAddRequest struct {
	Line    string
	Project string
	Sprint  int
}

// QuickAddResult describes an applied quick-add line
type QuickAddResult struct {
	Issue        olea.IssueRef
	Created      bool
	Changes      []string
	Instructions *olea.Instructions
}

// QuickAddError is returned for every failed quick-add line. It carries
// the line so a client can put it back into its input box.
type QuickAddError struct {
	Line string
	Err  error
}

func (e *QuickAddError) Error() string {
	return e.Err.Error()
}

func (e *QuickAddError) Unwrap() error { return e.Err }

// Expression returns the rejected line
func (e *QuickAddError) Expression() string { return e.Line }

// Code returns the code of the underlying error
func (e *QuickAddError) Code() mdwerror.Code { return mdwerror.GetCode(e.Err) }

var _ olea.LineError = (*QuickAddError)(nil)

// QuickAdd parses and applies a quick-add line for user. Surrounding
// whitespace is removed before parsing.
func (e *Engine) QuickAdd(ctx context.Context, req QuickAddRequest, user model.UserRef) (*QuickAddResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.options.Timeout)
	defer cancel()

	timer := e.logger.StartTimer("quick-add").
		WithField("line", clip(req.Line)).
		WithField("project", req.Project).
		WithField("user", user.String())

	result, err := e.quickAdd(ctx, req, user)
	if e.options.AuditLogger != nil {
		e.options.AuditLogger.LogQuickAdd(ctx, req, user, result, err)
	}
	if err != nil {
		timer.StopWithError(err)
		return nil, &QuickAddError{Line: req.Line, Err: err}
	}
	timer.WithField("issue", result.Issue.String()).WithField("created", result.Created).Stop()
	return result, nil
}

func (e *Engine) quickAdd(ctx context.Context, req QuickAddRequest, user model.UserRef) (*QuickAddResult, error) {
	mode := "create"
	if strings.TrimSpace(req.Project) == "" {
		e.metrics.OleaLine(mode, metrics.OutcomeRejected)
		return nil, mdwerror.New("quick-add needs a project").WithCode(mdwerror.CodeInvalidInput)
	}

	in, err := e.olea.Parse(strings.TrimSpace(req.Line))
	if err != nil {
		e.metrics.OleaLine(mode, metrics.OutcomeRejected)
		return nil, err
	}
	in = in.Resolve(req.Project)

	result := &QuickAddResult{Instructions: in, Changes: in.Changes(), Created: in.IsCreate()}
	if in.IsCreate() {
		result.Issue, err = e.repo.CreateIssueInSprint(ctx, req.Project, req.Sprint, in, user)
	} else {
		mode = "update"
		result.Issue = *in.Target
		err = e.repo.UpdateIssue(ctx, *in.Target, in, user)
	}
	if err != nil {
		e.metrics.OleaLine(mode, metrics.OutcomeFailed)
		return nil, err
	}

	e.metrics.OleaLine(mode, metrics.OutcomeOK)
	e.logger.Info("quick-add applied", mdwlog.Fields{
		"issue":   result.Issue.String(),
		"created": result.Created,
		"changes": result.Changes,
		"user":    user.String(),
	})
	return result, nil
}

// IsLineError reports whether err rejects the line itself rather than
// failing while applying it
func IsLineError(err error) bool {
	var semErr *olea.SemanticError
	var parseErr *olea.ParseError
	return errors.As(err, &semErr) || errors.As(err, &parseErr) || mdwerror.GetCode(err).IsLanguage()
}

// LogAudit records quick-add calls in a log
type LogAudit struct {
	Logger *mdwlog.Logger
}

// LogQuickAdd implements AuditLogger
func (a LogAudit) LogQuickAdd(_ context.Context, req QuickAddRequest, user model.UserRef, result *QuickAddResult, err error) {
	fields := mdwlog.Fields{
		"audit":   "quick-add",
		"line":    req.Line,
		"project": req.Project,
		"user":    user.String(),
	}
	if err != nil {
		fields["code"] = string(mdwerror.GetCode(err))
		a.Logger.Warn("quick-add rejected", fields)
		return
	}
	fields["issue"] = result.Issue.String()
	fields["created"] = result.Created
	a.Logger.Info("quick-add audit", fields)
}
