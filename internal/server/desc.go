// File: desc.go
// Title: Query Service Descriptor
// Description: gRPC descriptor and client of iguana.v1.QueryService. The
//              service exchanges google.protobuf.Struct messages so no
//              generated code is needed.
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

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "iguana.v1.QueryService"

const (
	searchMethod   = "/" + ServiceName + "/Search"
	quickAddMethod = "/" + ServiceName + "/QuickAdd"
	tokenizeMethod = "/" + ServiceName + "/Tokenize"
)

// QueryServiceServer is the server API of the query service
type QueryServiceServer interface {
	Search(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	QuickAdd(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Tokenize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// QueryServiceDesc describes the query service for grpc.Server
var QueryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QueryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Search", Handler: unaryHandler(searchMethod, QueryServiceServer.Search)},
		{MethodName: "QuickAdd", Handler: unaryHandler(quickAddMethod, QueryServiceServer.QuickAdd)},
		{MethodName: "Tokenize", Handler: unaryHandler(tokenizeMethod, QueryServiceServer.Tokenize)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "iguana/v1/query.proto",
}

// RegisterQueryServiceServer registers srv on s
func RegisterQueryServiceServer(s grpc.ServiceRegistrar, srv QueryServiceServer) {
	s.RegisterService(&QueryServiceDesc, srv)
}

type structMethod func(QueryServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(QueryServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(QueryServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls a remote query service
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client on an established connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Search runs a search expression remotely
func (c *Client) Search(ctx context.Context, req SearchRequest, opts ...grpc.CallOption) (*SearchReply, error) {
	reply := &SearchReply{}
	if err := c.invoke(ctx, searchMethod, req, reply, opts...); err != nil {
		return nil, err
	}
	return reply, nil
}

// QuickAdd applies an Olea line remotely
func (c *Client) QuickAdd(ctx context.Context, req QuickAddRequest, opts ...grpc.CallOption) (*QuickAddReply, error) {
	reply := &QuickAddReply{}
	if err := c.invoke(ctx, quickAddMethod, req, reply, opts...); err != nil {
		return nil, err
	}
	return reply, nil
}

// Tokenize returns the remote token stream of an input
func (c *Client) Tokenize(ctx context.Context, req TokenizeRequest, opts ...grpc.CallOption) (*TokenizeReply, error) {
	reply := &TokenizeReply{}
	if err := c.invoke(ctx, tokenizeMethod, req, reply, opts...); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, reply any, opts ...grpc.CallOption) error {
	in, err := encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return err
	}
	return decode(out, reply)
}
