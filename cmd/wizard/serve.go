package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aretw0/wizard"
	"github.com/aretw0/wizard/internal/cli"
	httpAdapter "github.com/aretw0/wizard/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Hosts tour sessions behind a JSON API, with a Server-Sent Events stream per session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setupEnvironment(cmd, cli.SetupOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		if _, err := httpAdapter.Spec(); err != nil {
			return err
		}

		addr := env.Config.HTTP.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		handler := httpAdapter.NewHandler(env.Sessions, env.Machines,
			httpAdapter.WithLogger(env.Logger),
			httpAdapter.WithVersion(strings.TrimSpace(wizard.Version)),
			httpAdapter.WithMetricsHandler(promhttp.HandlerFor(env.Registry, promhttp.HandlerOpts{})),
		)

		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			env.Logger.Info("Starting Wizard Server", "addr", srv.Addr, "store", env.Config.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			env.Logger.Info("Start shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			timeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				env.Logger.Warn("Graceful shutdown did not complete", "timeout", timeout, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			env.Logger.Info("Wizard Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default from config, :8080)")
	serveCmd.Flags().Duration("shutdown-timeout", 5*time.Second, "Deadline for in-flight requests on shutdown")
}
