package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/server"
	"github.com/msto63/iguana/pkg/core/version"
)

func newServeCommand(a *app) *cobra.Command {
	var host string
	var grpcPort, httpPort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the languages over gRPC and websocket",
		Long: `Starts the query service. gRPC answers Search, QuickAdd and Tokenize;
the HTTP port serves the Olea websocket at /ws/olea, Prometheus metrics
at /metrics and the health report at /healthz.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()

			srv := a.cfg.Server
			if cmd.Flags().Changed("host") {
				srv.Host = host
			}
			if cmd.Flags().Changed("grpc-port") {
				srv.GRPCPort = grpcPort
			}
			if cmd.Flags().Changed("http-port") {
				srv.HTTPPort = httpPort
			}

			s, checks, err := a.openStore()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			e, err := a.newEngine(s, reg)
			if err != nil {
				return err
			}

			svc, err := server.New(server.Options{
				Config: server.Config{
					Host:            srv.Host,
					GRPCPort:        srv.GRPCPort,
					HTTPPort:        srv.HTTPPort,
					ReadTimeout:     srv.ReadTimeout.Duration,
					WriteTimeout:    srv.WriteTimeout.Duration,
					ShutdownTimeout: srv.ShutdownTimeout.Duration,
					Version:         version.Version,
					AllowedOrigins:  srv.AllowedOrigins,
				},
				Logger:   a.logger,
				Engine:   e,
				Users:    s,
				Gatherer: reg,
				Checks:   checks,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info("iguana serving", mdwlog.Fields{
				"host":      srv.Host,
				"grpc_port": srv.GRPCPort,
				"http_port": srv.HTTPPort,
				"store":     a.cfg.Store.Type,
				"version":   version.Version,
			})
			return svc.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVar(&grpcPort, "grpc-port", 0, "gRPC port (default from config)")
	cmd.Flags().IntVar(&httpPort, "http-port", 0, "HTTP port (default from config)")
	return cmd
}
