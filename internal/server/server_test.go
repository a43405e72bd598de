package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/engine"
	"github.com/msto63/iguana/internal/metrics"
	"github.com/msto63/iguana/internal/repository"
	"github.com/msto63/iguana/internal/repository/repotest"
	"github.com/msto63/iguana/internal/server"
	"github.com/msto63/iguana/pkg/core/health"
)

type fixture struct {
	conn     *grpc.ClientConn
	client   *server.Client
	httpAddr string
	repo     *repository.MemoryRepository
}

func startServer(t *testing.T, checks ...health.Checker) *fixture {
	t.Helper()
	repo := repotest.New(t, repository.MemoryOptions{})
	reg := prometheus.NewRegistry()
	e, err := engine.New(engine.Options{
		Logger:     mdwlog.Discard(),
		Repository: repo,
		Metrics:    metrics.New(reg),
	})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}

	srv, err := server.New(server.Options{
		Config:   server.DefaultConfig(),
		Logger:   mdwlog.Discard(),
		Engine:   e,
		Users:    repo,
		Gatherer: reg,
		Checks:   checks,
	})
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}

	grpcLis := bufconn.Listen(1 << 20)
	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, grpcLis, httpLis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return grpcLis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient() error = %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	})

	return &fixture{
		conn:     conn,
		client:   server.NewClient(conn),
		httpAddr: httpLis.Addr().String(),
		repo:     repo,
	}
}

func TestNewRequiresEngine(t *testing.T) {
	_, err := server.New(server.Options{Logger: mdwlog.Discard()})
	if !mdwerror.HasCode(err, mdwerror.CodeServiceInitialization) {
		t.Errorf("New() error = %v", err)
	}
}

func TestGRPCSearch(t *testing.T) {
	f := startServer(t)
	ctx := context.Background()

	reply, err := f.client.Search(ctx, server.SearchRequest{
		Expression: `Issue.type == "Task" SORT DESC Issue.number`,
		User:       "a",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if reply.FullText || reply.Query == "" {
		t.Errorf("Search() = %+v, want a structured answer", reply)
	}
	var links []string
	for _, r := range reply.Results {
		links = append(links, r.Link)
	}
	if diff := cmp.Diff([]string{"/project/PRJ/issue/3/", "/project/PROJ/issue/1/"}, links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}

	reply, err = f.client.Search(ctx, server.SearchRequest{Expression: "Bling", User: "a"})
	if err != nil {
		t.Fatalf("Search(Bling) error = %v", err)
	}
	if !reply.FullText || len(reply.Results) != 1 {
		t.Errorf("Search(Bling) = %+v, want one full-text result", reply)
	}
}

func TestGRPCRejectedInput(t *testing.T) {
	f := startServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		code codes.Code
		want server.ErrorPayload
	}{
		{
			name: "search too short",
			call: func() error {
				_, err := f.client.Search(ctx, server.SearchRequest{Expression: "ab", User: "a"})
				return err
			},
			code: codes.InvalidArgument,
			want: server.ErrorPayload{Code: string(mdwerror.CodeTooShort), Expression: "ab"},
		},
		{
			name: "olea semantic error",
			call: func() error {
				_, err := f.client.QuickAdd(ctx, server.QuickAddRequest{Line: ">PRJ-2 :Weird !2", Project: "PRJ", User: "a"})
				return err
			},
			code: codes.InvalidArgument,
			want: server.ErrorPayload{Code: string(mdwerror.CodeSemantic), Expression: ">PRJ-2 :Weird !2"},
		},
		{
			name: "olea unknown issue",
			call: func() error {
				_, err := f.client.QuickAdd(ctx, server.QuickAddRequest{Line: ">PRJ-9 !2", Project: "PRJ", User: "a"})
				return err
			},
			code: codes.NotFound,
			want: server.ErrorPayload{Code: string(mdwerror.CodeNotFound), Expression: ">PRJ-9 !2"},
		},
		{
			name: "olea not a member",
			call: func() error {
				_, err := f.client.QuickAdd(ctx, server.QuickAddRequest{Line: "New issue", Project: "PRJ", User: "d"})
				return err
			},
			code: codes.PermissionDenied,
			want: server.ErrorPayload{Code: string(mdwerror.CodeForbidden), Expression: "New issue"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if got := status.Code(err); got != tt.code {
				t.Fatalf("status code = %s, want %s (%v)", got, tt.code, err)
			}
			got, ok := server.RejectedInput(err)
			if !ok {
				t.Fatalf("RejectedInput(%v) found no payload", err)
			}
			got.Message = ""
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGRPCUnknownUser(t *testing.T) {
	f := startServer(t)
	_, err := f.client.Search(context.Background(), server.SearchRequest{Expression: "Bling", User: "nobody"})
	if got := status.Code(err); got != codes.Unauthenticated {
		t.Errorf("status code = %s, want %s", got, codes.Unauthenticated)
	}
}

func TestGRPCQuickAdd(t *testing.T) {
	f := startServer(t)

	reply, err := f.client.QuickAdd(context.Background(), server.QuickAddRequest{
		Line:    "Remote task :Bug !3",
		Project: "PRJ",
		Sprint:  1,
		User:    "a",
	})
	if err != nil {
		t.Fatalf("QuickAdd() error = %v", err)
	}
	want := &server.QuickAddReply{Issue: "PRJ-4", Created: true, Changes: []string{"title", "priority", "type"}}
	if diff := cmp.Diff(want, reply); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}
	if f.repo.Len() == 0 {
		t.Error("repository is empty")
	}
}

func TestGRPCTokenize(t *testing.T) {
	f := startServer(t)
	ctx := context.Background()

	reply, err := f.client.Tokenize(ctx, server.TokenizeRequest{Language: "olea", Input: ">PRJ-1 !2"})
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	var kinds []string
	for _, tok := range reply.Tokens {
		kinds = append(kinds, tok.Kind)
	}
	if len(kinds) != 2 || reply.Tokens[0].Offset != 0 || reply.Tokens[1].Offset != 6 {
		t.Errorf("Tokenize() = %+v", reply.Tokens)
	}

	_, err = f.client.Tokenize(ctx, server.TokenizeRequest{Language: "sql", Input: "select"})
	if got := status.Code(err); got != codes.InvalidArgument {
		t.Errorf("status code = %s, want %s", got, codes.InvalidArgument)
	}
}

func TestGRPCHealth(t *testing.T) {
	f := startServer(t)
	resp, err := healthpb.NewHealthClient(f.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: server.ServiceName})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %s, want SERVING", resp.GetStatus())
	}
}

func dialSocket(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+f.httpAddr+server.RouteOleaSocket, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msgType string, payload any) server.WSMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(server.WSMessage{Type: msgType, Payload: raw}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var reply server.WSMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return reply
}

func TestOleaSocket(t *testing.T) {
	f := startServer(t)
	conn := dialSocket(t, f)

	if reply := roundTrip(t, conn, server.MessagePing, nil); reply.Type != server.MessagePong {
		t.Errorf("ping answered with %q", reply.Type)
	}

	reply := roundTrip(t, conn, server.MessageOlea, server.QuickAddRequest{Line: "Socket task $3", Project: "PRJ", User: "a"})
	if reply.Type != server.MessageApplied {
		t.Fatalf("olea answered with %q: %s", reply.Type, reply.Payload)
	}
	var applied server.QuickAddReply
	if err := json.Unmarshal(reply.Payload, &applied); err != nil {
		t.Fatal(err)
	}
	if applied.Issue != "PRJ-4" || !applied.Created {
		t.Errorf("applied = %+v, want created PRJ-4", applied)
	}

	line := ">PRJ-4 &done"
	reply = roundTrip(t, conn, server.MessageOlea, server.QuickAddRequest{Line: line, Project: "PRJ", User: "a"})
	if reply.Type != server.MessageError {
		t.Fatalf("ambiguous line answered with %q", reply.Type)
	}
	var rejected server.ErrorPayload
	if err := json.Unmarshal(reply.Payload, &rejected); err != nil {
		t.Fatal(err)
	}
	if rejected.Expression != line || rejected.Code != string(mdwerror.CodeAmbiguous) {
		t.Errorf("error payload = %+v, want expression %q with %s", rejected, line, mdwerror.CodeAmbiguous)
	}

	reply = roundTrip(t, conn, server.MessageSearch, server.SearchRequest{Expression: "Socket", User: "a"})
	if reply.Type != server.MessageResults {
		t.Fatalf("search answered with %q", reply.Type)
	}
	var results server.SearchReply
	if err := json.Unmarshal(reply.Payload, &results); err != nil {
		t.Fatal(err)
	}
	if !results.FullText || len(results.Results) != 1 || results.Results[0].Title != "(PRJ-4) Socket task" {
		t.Errorf("results = %+v", results)
	}

	if reply := roundTrip(t, conn, "bogus", nil); reply.Type != server.MessageError {
		t.Errorf("unknown message answered with %q", reply.Type)
	}
}

func httpGet(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(body)
}

func TestMetricsEndpoint(t *testing.T) {
	f := startServer(t)
	if _, err := f.client.Search(context.Background(), server.SearchRequest{Expression: "Bling", User: "a"}); err != nil {
		t.Fatal(err)
	}
	code, body := httpGet(t, "http://"+f.httpAddr+server.RouteMetrics)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(body, `iguana_search_queries_total{path="fallback"} 1`) {
		t.Errorf("metrics lack the fallback search:\n%s", body)
	}
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		checks []health.Checker
		code   int
		status health.Status
	}{
		{"healthy", nil, http.StatusOK, health.StatusHealthy},
		{
			name: "failing store",
			checks: []health.Checker{health.PingCheck("store", func(context.Context) error {
				return io.ErrUnexpectedEOF
			})},
			code:   http.StatusServiceUnavailable,
			status: health.StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := startServer(t, tt.checks...)
			code, body := httpGet(t, "http://"+f.httpAddr+server.RouteHealth)
			if code != tt.code {
				t.Errorf("status code = %d, want %d", code, tt.code)
			}
			var report health.Report
			if err := json.Unmarshal([]byte(body), &report); err != nil {
				t.Fatalf("invalid report %q: %v", body, err)
			}
			if report.Status != tt.status {
				t.Errorf("report status = %s, want %s", report.Status, tt.status)
			}
		})
	}
}
