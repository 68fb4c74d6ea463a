// Package main is the Lambda entry point for the TripStory API.
//
// API Gateway (HTTP API, payload v2) proxies every /api route to the same
// chi router the local server uses. The event stream is disabled because
// API Gateway buffers responses; clients poll GET /api/journey instead.
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/boot"
	"github.com/fpang/tripstory/internal/config"
	"github.com/fpang/tripstory/internal/logging"
	"github.com/fpang/tripstory/internal/metrics"
	"github.com/fpang/tripstory/internal/server"
)

// commitHash is injected via -ldflags at build time.
var commitHash = "dev"

func main() {
	initStart := time.Now()
	logging.Init()
	metrics.Enable(os.Stdout)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()
	app, err := boot.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire application")
	}

	srv := server.New(app.ServerDeps(), server.Options{
		AllowedOrigins: app.Config.AllowedOrigins,
		Streaming:      false,
	})
	adapter := httpadapter.NewV2(srv.Handler())

	app.StartupLog("tripstory-lambda", commitHash, initStart).Log()
	lambda.Start(adapter.ProxyWithContext)
}
