// File: http.go
// Title: HTTP Routes
// Description: HTTP side of the server: the Olea websocket, Prometheus
//              metrics and the health report.
// Author: msto63
// Version: v0.1.0
// Created: 2025-03-10
// Modified: 2025-03-10
//
// Change History:
// - 2025-03-10 v0.1.0: Initial implementation

package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/pkg/core/health"
)

// HTTP routes
const (
	RouteOleaSocket = "/ws/olea"
	RouteMetrics    = "/metrics"
	RouteHealth     = "/healthz"
)

// newHTTPHandler builds the HTTP routes
func newHTTPHandler(logger *mdwlog.Logger, socket http.Handler, gatherer prometheus.Gatherer, checks *health.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(RouteOleaSocket, socket)
	mux.Handle(RouteMetrics, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc(RouteHealth, func(w http.ResponseWriter, r *http.Request) {
		report := checks.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(report.HTTPStatus())
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.WarnWithErr("failed to write health report", err)
		}
	})
	return loggingMiddleware(logger, mux)
}

// loggingMiddleware logs every request at debug level
func loggingMiddleware(logger *mdwlog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		logger.Debug("HTTP request", mdwlog.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapper.statusCode,
			"duration": time.Since(start).String(),
		})
	})
}

// responseWrapper captures the status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack hands the connection to the websocket upgrader
func (w *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}
