// File: websocket.go
// Title: Olea Websocket
// Description: Websocket endpoint for quick-add input boxes. Clients
//              send Olea lines and searches as JSON messages; every
//              message is answered in order on the same connection.
// Author: msto63
// Version: v0.1.0
// Created: 2025-03-10
// Modified: 2025-03-10
//
// Change History:
// - 2025-03-10 v0.1.0: Initial implementation

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/engine"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/repository"
)

// Message types of the websocket protocol
const (
	MessagePing    = "ping"
	MessagePong    = "pong"
	MessageOlea    = "olea"
	MessageApplied = "applied"
	MessageSearch  = "search"
	MessageResults = "results"
	MessageTokens  = "tokens"
	MessageError   = "error"
)

const (
	socketReadTimeout = 120 * time.Second
	socketReadLimit   = 64 * 1024
)

// WSMessage is a client message
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WSResponse is a server message
type WSResponse struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// SocketHandler serves the Olea websocket
type SocketHandler struct {
	engine   Engine
	users    repository.UserDirectory
	logger   *mdwlog.Logger
	upgrader websocket.Upgrader
}

// NewSocketHandler creates the websocket handler. allowOrigin decides
// cross-origin upgrades; nil accepts same-origin requests only.
func NewSocketHandler(e Engine, users repository.UserDirectory, logger *mdwlog.Logger, allowOrigin func(r *http.Request) bool) *SocketHandler {
	if logger == nil {
		logger = mdwlog.GetDefault()
	}
	return &SocketHandler{
		engine: e,
		users:  users,
		logger: logger.WithField("component", "olea-socket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin,
		},
	}
}

// ServeHTTP upgrades the connection and serves it until the client leaves
func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnWithErr("websocket upgrade failed", err)
		return
	}
	h.handleConnection(r.Context(), conn)
}

func (h *SocketHandler) handleConnection(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	logger := h.logger.WithField("remote", conn.RemoteAddr().String())
	logger.Debug("websocket connection established")

	conn.SetReadLimit(socketReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(socketReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(socketReadTimeout))
	})

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WarnWithErr("websocket read failed", err)
			} else {
				logger.Debug("websocket connection closed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(socketReadTimeout))

		if err := conn.WriteJSON(h.handleMessage(ctx, msg)); err != nil {
			logger.WarnWithErr("websocket write failed", err)
			return
		}
	}
}

func (h *SocketHandler) handleMessage(ctx context.Context, msg WSMessage) WSResponse {
	switch msg.Type {
	case MessagePing:
		return WSResponse{Type: MessagePong}

	case MessageOlea:
		var req QuickAddRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return invalidPayload(msg.Type, err)
		}
		user, err := h.lookupUser(ctx, req.User)
		if err != nil {
			return errorResponse(err, req.Line)
		}
		result, err := h.engine.QuickAdd(ctx, engine.QuickAddRequest{
			Line:    req.Line,
			Project: req.Project,
			Sprint:  req.Sprint,
		}, user)
		if err != nil {
			return errorResponse(err, req.Line)
		}
		return WSResponse{Type: MessageApplied, Payload: newQuickAddReply(result)}

	case MessageSearch:
		var req SearchRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return invalidPayload(msg.Type, err)
		}
		user, err := h.lookupUser(ctx, req.User)
		if err != nil {
			return errorResponse(err, req.Expression)
		}
		resp, err := h.engine.Search(ctx, req.Expression, user)
		if err != nil {
			return errorResponse(err, req.Expression)
		}
		return WSResponse{Type: MessageResults, Payload: newSearchReply(resp)}

	case MessageTokens:
		var req TokenizeRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return invalidPayload(msg.Type, err)
		}
		tokens, err := h.engine.Tokenize(req.Language, req.Input)
		if err != nil {
			return errorResponse(err, req.Input)
		}
		return WSResponse{Type: MessageTokens, Payload: NewTokenizeReply(tokens)}

	default:
		return errorResponse(mdwerror.Newf("unknown message type %q", msg.Type).WithCode(mdwerror.CodeInvalidInput), "")
	}
}

func (h *SocketHandler) lookupUser(ctx context.Context, name string) (model.UserRef, error) {
	if name == "" || h.users == nil {
		return model.UserRef{}, nil
	}
	user, err := h.users.LookupUser(ctx, name)
	if err != nil {
		return model.UserRef{}, mdwerror.Wrap(err, "unknown user").WithCode(mdwerror.CodeForbidden)
	}
	return user, nil
}

func invalidPayload(kind string, err error) WSResponse {
	return errorResponse(mdwerror.Wrap(err, "invalid "+kind+" payload").WithCode(mdwerror.CodeInvalidInput), "")
}

// errorResponse reports err. The expression of a rejected input wins
// over the fallback input.
func errorResponse(err error, input string) WSResponse {
	payload := ErrorPayload{
		Code:       string(mdwerror.GetCode(err)),
		Message:    err.Error(),
		Expression: input,
	}
	var rej rejected
	if errors.As(err, &rej) {
		payload.Expression = rej.Expression()
	}
	return WSResponse{Type: MessageError, Payload: payload}
}
