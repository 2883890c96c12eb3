package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/24f2002329/caniedit/internal/auth"
	"github.com/24f2002329/caniedit/internal/handlers"
	"github.com/24f2002329/caniedit/internal/middleware"
	"github.com/24f2002329/caniedit/internal/pdf"
	"github.com/24f2002329/caniedit/internal/routes"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background sweepers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply the schema before starting")

	return cmd
}

func runServe(parent context.Context, migrate bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := wireApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate {
		if err := migrateSchema(ctx, a); err != nil {
			return err
		}
	}
	if err := a.seed(ctx); err != nil {
		return err
	}

	// --- Authentication ---
	verifier, err := auth.NewVerifier(a.cfg.Auth)
	if err != nil {
		if !errors.Is(err, auth.ErrNotConfigured) {
			return err
		}
		a.log.Warn("No JWT secret or JWKS URL configured; every caller is anonymous")
	}
	var tokens middleware.TokenVerifier
	if verifier != nil {
		tokens = verifier
	}

	// --- Application Setup ---
	app := &handlers.Handlers{
		Gate:          a.gate,
		Users:         a.users,
		Subscriptions: a.resolver,
		Usage:         a.ledger,
		Plans:         a.catalog,
		Files:         a.records,
		Store:         a.store,
		Processor:     pdf.NewProcessor(),
		Log:           a.log,
		MaxFileBytes:  a.cfg.Storage.MaxFileBytes(),
	}

	if a.cfg.App.Environment != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.SetupRouter(app, routes.Options{
		AllowedOrigins: a.cfg.App.Origins(),
		Auth:           middleware.NewAuthenticator(tokens, a.users, a.log),
		Log:            a.log,
	})

	// --- Background Workers ---
	sweepers := a.supervisor()
	sweepers.Start(ctx)

	// --- Start Server ---
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("Starting CanIEdit API server", zap.String("addr", srv.Addr), zap.String("env", a.cfg.App.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		sweepers.Wait()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	// --- Graceful Shutdown ---
	a.log.Info("Shutdown signal received, draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Error shutting down HTTP server", zap.Error(err))
	}
	sweepers.Wait()
	a.log.Info("CanIEdit API stopped gracefully")
	return nil
}
