package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/tripstory/internal/cli"
	"github.com/fpang/tripstory/internal/photo"
	"github.com/fpang/tripstory/internal/server"
)

var (
	portFlag      int
	cityFlag      string
	noStreamFlag  bool
	maxDimFlag    int
	keepAliveFlag time.Duration
	validateFlag  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve starts the TripStory API for the web client. The journey state machine
runs in-process and pushes changes to GET /api/journey/events.

Examples:
  tripstory serve
  tripstory serve --port 9090 --city 阳朔`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.IntVar(&portFlag, "port", 0, "Port to listen on (default from TRIPSTORY_ADDR)")
	f.StringVar(&cityFlag, "city", "", "City used for the default route")
	f.BoolVar(&noStreamFlag, "no-events", false, "Disable the server-sent events stream")
	f.IntVar(&maxDimFlag, "max-dimension", photo.DefaultMaxDimension, "Longest edge of uploaded photos before generation")
	f.BoolVar(&validateFlag, "validate-key", false, "Probe the Gemini API key before serving")
	f.DurationVar(&keepAliveFlag, "keep-alive", 15*time.Second, "Interval between event stream keep-alive comments")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, start, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}()

	if validateFlag {
		if err := app.ValidateKey(ctx); err != nil {
			log.Error().Err(err).Msg(cli.ExplainValidationError(err))
			return fmt.Errorf("gemini key: %w", err)
		}
	}

	addr := app.Config.Addr
	if portFlag != 0 {
		addr = fmt.Sprintf(":%d", portFlag)
	}

	srv := server.New(app.ServerDeps(), server.Options{
		AllowedOrigins:    app.Config.AllowedOrigins,
		DefaultCity:       cityFlag,
		Streaming:         !noStreamFlag,
		KeepAlive:         keepAliveFlag,
		MaxPhotoDimension: maxDimFlag,
	})

	httpSrv := &http.Server{
		Addr:        addr,
		Handler:     srv.Handler(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: the event stream stays open.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	app.StartupLog("tripstory", commitHash, start).
		Config("addr", addr).
		Feature("events", !noStreamFlag).
		Log()
	fmt.Printf("\n  TripStory API: http://localhost%s/api/health\n\n", addr)

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
