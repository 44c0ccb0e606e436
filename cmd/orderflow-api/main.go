// Command orderflow-api hosts the T2 control surface: a synchronous
// HTTP front door that starts, signals, queries, and terminates cases
// against the Temporal engine.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/orderflow/core/internal/config"
	"github.com/orderflow/core/internal/telemetry"
	"github.com/orderflow/core/pkg/control"
)

func main() {
	logger, err := telemetry.NewLogger(os.Getenv("ENV") == "production")
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("orderflow-api exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	temporalClient, err := client.Dial(client.Options{HostPort: envOr("TEMPORAL_HOST_PORT", "localhost:7233")})
	if err != nil {
		return err
	}
	defer temporalClient.Close()

	policyPath := envOr("TENANT_POLICY_PATH", "policy/tenant_access.rego")
	authz, err := control.NewTenantAuthorizer(context.Background(), policyPath)
	if err != nil {
		return err
	}

	engine := control.NewClientAdapter(temporalClient)
	server := control.NewServer(engine, authz, cfg.Workflow, logger, envOr("CONTROL_BASE_URL", "http://localhost:8080"))

	httpServer := &http.Server{
		Addr:    envOr("CONTROL_ADDR", ":8080"),
		Handler: server.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("orderflow-api starting", zap.String("addr", httpServer.Addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	logger.Info("orderflow-api drained")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
