// File: wire.go
// Title: Remote Message Shapes
// Description: Request and reply payloads shared by the gRPC query
//              service and the Olea websocket. On the gRPC wire they
//              travel as google.protobuf.Struct values.
// Author: msto63
// Version: v0.1.0
// Created: 2025-03-10
// Modified: 2025-03-10
//
// Change History:
// - 2025-03-10 v0.1.0: Initial implementation

package server

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/msto63/iguana/internal/engine"
	"github.com/msto63/iguana/internal/lang/scan"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/search/frontend"
)

// SearchRequest asks for the results of a search expression
type SearchRequest struct {
	Expression string `json:"expression"`
	User       string `json:"user,omitempty"`
}

// SearchReply lists the results of a search. Query is the compiled
// structured query and stays empty for full-text answers.
type SearchReply struct {
	Results  []model.Result `json:"results"`
	FullText bool           `json:"full_text"`
	Query    string         `json:"query,omitempty"`
}

// QuickAddRequest is one Olea line typed in a project
type QuickAddRequest struct {
	Line    string `json:"line"`
	Project string `json:"project"`
	Sprint  int    `json:"sprint,omitempty"`
	User    string `json:"user,omitempty"`
}

// QuickAddReply describes an applied Olea line
type QuickAddReply struct {
	Issue   string   `json:"issue"`
	Created bool     `json:"created"`
	Changes []string `json:"changes"`
}

// TokenizeRequest asks for the token stream of input
type TokenizeRequest struct {
	Language string `json:"language"`
	Input    string `json:"input"`
}

// Token is one lexical unit as sent to clients
type Token struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Value  string `json:"value"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// TokenizeReply is the token stream of a TokenizeRequest
type TokenizeReply struct {
	Tokens []Token `json:"tokens"`
}

// ErrorPayload describes a rejected request. Expression carries the
// rejected input back so a client can offer it for correction.
type ErrorPayload struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Expression string `json:"expression,omitempty"`
}

func newSearchReply(resp *frontend.Response) SearchReply {
	reply := SearchReply{Results: resp.Results, FullText: resp.FullText}
	if resp.Query != nil {
		reply.Query = resp.Query.String()
	}
	return reply
}

func newQuickAddReply(result *engine.QuickAddResult) QuickAddReply {
	return QuickAddReply{
		Issue:   result.Issue.String(),
		Created: result.Created,
		Changes: result.Changes,
	}
}

func NewTokenizeReply(tokens []scan.Token) TokenizeReply {
	reply := TokenizeReply{Tokens: make([]Token, 0, len(tokens))}
	for _, tok := range tokens {
		reply.Tokens = append(reply.Tokens, Token{
			Kind:   string(tok.Kind),
			Text:   tok.Text,
			Value:  tok.String(),
			Offset: tok.Span.Offset,
			Length: tok.Span.Length,
		})
	}
	return reply
}

// encode converts v to a Struct through its JSON form
func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return out, nil
}

// decode fills v from a Struct through its JSON form
func decode(in *structpb.Struct, v any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to decode %T: %w", v, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return nil
}
