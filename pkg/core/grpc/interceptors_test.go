package grpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
)

type codedErr struct{ code mdwerror.Code }

func (e codedErr) Error() string       { return string(e.code) }
func (e codedErr) Code() mdwerror.Code { return e.code }

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"nil", nil, codes.OK},
		{"syntax", codedErr{mdwerror.CodeSyntax}, codes.InvalidArgument},
		{"too short", codedErr{mdwerror.CodeTooShort}, codes.InvalidArgument},
		{"wrapped semantic", fmt.Errorf("quick-add: %w", codedErr{mdwerror.CodeSemantic}), codes.InvalidArgument},
		{"not found", mdwerror.New("x").WithCode(mdwerror.CodeNotFound), codes.NotFound},
		{"forbidden", mdwerror.New("x").WithCode(mdwerror.CodeForbidden), codes.PermissionDenied},
		{"database", mdwerror.New("x").WithCode(mdwerror.CodeDatabaseError), codes.Internal},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{"status kept", status.Error(codes.Unauthenticated, "who"), codes.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status.Code(toStatus(tt.err)); got != tt.want {
				t.Errorf("toStatus() code = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(mdwlog.Discard())
	info := &grpc.UnaryServerInfo{FullMethod: "/iguana.v1.QueryService/Search"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Errorf("error = %v, want Internal", err)
	}
}

func TestRequestIDInterceptor(t *testing.T) {
	interceptor := RequestIDInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/test"}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDHeader, "req-42"))
	var got string
	_, err := interceptor(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		got = GetRequestID(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "req-42" {
		t.Errorf("request id = %q, want req-42", got)
	}

	_, _ = interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		got = GetRequestID(ctx)
		return nil, nil
	})
	if len(got) != 36 {
		t.Errorf("generated request id = %q, want a UUID", got)
	}
}

func TestLoggingInterceptor(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantMsg   string
	}{
		{"ok", nil, "info", "/iguana.v1.QueryService/Search completed"},
		{"rejected input", status.Error(codes.InvalidArgument, "too short"), "info", "/iguana.v1.QueryService/Search completed"},
		{"store failure", mdwerror.New("disk gone").WithCode(mdwerror.CodeDatabaseError), "warn", "/iguana.v1.QueryService/Search failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := mdwlog.NewWithConfig(mdwlog.Config{Level: mdwlog.LevelInfo, Format: mdwlog.FormatJSON, Output: &buf})
			interceptor := LoggingInterceptor(logger)
			info := &grpc.UnaryServerInfo{FullMethod: "/iguana.v1.QueryService/Search"}

			_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return nil, tt.err
			})
			if err != tt.err {
				t.Errorf("interceptor changed the error: %v", err)
			}

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("log line %q: %v", buf.String(), err)
			}
			if entry["level"] != tt.wantLevel || entry["message"] != tt.wantMsg {
				t.Errorf("log entry = %v, want %s %q", entry, tt.wantLevel, tt.wantMsg)
			}
		})
	}
}

func TestClientTimeoutInterceptor(t *testing.T) {
	interceptor := ClientTimeoutInterceptor(time.Minute)
	invoke := func(ctx context.Context) (time.Time, bool) {
		var deadline time.Time
		var ok bool
		_ = interceptor(ctx, "/m", nil, nil, nil, func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
			deadline, ok = ctx.Deadline()
			return nil
		})
		return deadline, ok
	}

	if _, ok := invoke(context.Background()); !ok {
		t.Error("call without deadline got none")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	want, _ := ctx.Deadline()
	if got, _ := invoke(ctx); !got.Equal(want) {
		t.Errorf("deadline = %v, want the caller's %v", got, want)
	}
}

func TestDialNeedsTarget(t *testing.T) {
	if _, err := Dial(DefaultClientConfig("")); err == nil {
		t.Error("Dial() without target succeeded")
	}
}
