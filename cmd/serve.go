package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpapi "timer-tracker.com/timer-tracker/internal/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts the timer HTTP API, resumes running countdowns and streams timer events",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		events := httpapi.NewEventHub(a.logger)
		a.wire(events.PublishCompletion, events.PublishChange)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a.countdown.Restore(ctx)

		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		httpapi.Register(e, httpapi.NewHandler(a.timers, a.countdown, a.bulk, events, a.logger), events, a.cfg.RateLimit)

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			a.logger.Info("HTTP server listening", "addr", a.cfg.AppURL)
			if err := e.Start(a.cfg.AppURL); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.ShutdownTimeoutSeconds)*time.Second)
			defer cancel()

			events.Close()
			err := e.Shutdown(shutdownCtx)
			a.countdown.Shutdown(shutdownCtx)
			return err
		})

		if err := g.Wait(); err != nil {
			return err
		}

		a.logger.Info("HTTP server and countdowns shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
