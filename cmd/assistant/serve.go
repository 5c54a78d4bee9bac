package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcapi "ai-reading-assistant/internal/api/grpc"
	"ai-reading-assistant/internal/app"
	httpapi "ai-reading-assistant/internal/http"
	"ai-reading-assistant/internal/observability"
	"ai-reading-assistant/internal/observability/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC, HTTP and metrics servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application := app.New(cfg)
		if err := application.Start(ctx); err != nil {
			return err
		}
		defer application.Shutdown()

		metricsServer := observability.NewServer(":"+cfg.Observability.MetricsPort, application.Ready)
		metricsServer.Start()

		lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
		if err != nil {
			return err
		}

		server := grpc.NewServer(
			grpc.UnaryInterceptor(observability.UnaryServerInterceptor(metrics.DefaultMetrics)),
			grpc.StreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics)),
		)

		healthServer := health.NewServer()
		grpc_health_v1.RegisterHealthServer(server, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

		grpcapi.Register(server, application.Capture, application.Playback, application.Summarizer, cfg.Playback.DefaultRate)

		// Enable gRPC reflection for debugging tools like grpcurl
		reflection.Register(server)

		go func() {
			log.Info().Str("port", cfg.Service.GRPCPort).Msg("gRPC server started")
			if err := server.Serve(lis); err != nil {
				log.Error().Err(err).Msg("gRPC serve failed")
				stop()
			}
		}()

		httpServer := &http.Server{
			Addr: ":" + cfg.Service.HTTPPort,
			Handler: httpapi.NewRouter(httpapi.Deps{
				Capture:     application.Capture,
				Playback:    application.Playback,
				Summarizer:  application.Summarizer,
				Websocket:   application.Hub,
				DefaultRate: cfg.Playback.DefaultRate,
				Ready:       application.Ready,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("port", cfg.Service.HTTPPort).Msg("HTTP server started")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP serve failed")
				stop()
			}
		}()

		<-ctx.Done()

		log.Info().Msg("Shutting down servers")
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown failed")
		}
		// Transcript streams only end when clients leave, so bound the drain.
		stopped := make(chan struct{})
		go func() {
			server.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			server.Stop()
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics shutdown failed")
		}
		return nil
	},
}
