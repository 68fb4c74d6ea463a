// Package boot wires TripStory's components from a resolved config.Config.
//
// Both the local server and the Lambda need the same composition: AWS config
// when any AWS resource is configured, secrets from SSM, the text model, the
// image backend, the gallery store and a journey.Machine restored from the
// last saved route. Build does it once so each main is a short sequence of
// calls.
package boot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/tripstory/internal/auth"
	"github.com/fpang/tripstory/internal/chat"
	"github.com/fpang/tripstory/internal/config"
	"github.com/fpang/tripstory/internal/geo"
	"github.com/fpang/tripstory/internal/journey"
	"github.com/fpang/tripstory/internal/logging"
	"github.com/fpang/tripstory/internal/s3util"
	"github.com/fpang/tripstory/internal/server"
	"github.com/fpang/tripstory/internal/store"
	"github.com/fpang/tripstory/internal/video"
)

// App holds the wired components.
type App struct {
	Config    config.Config
	Gemini    *genai.Client // nil without a Gemini key
	Assistant *chat.Assistant
	CheckIn   *chat.CheckInService
	Lookup    *video.Lookup
	Resolver  *geo.Resolver // nil without an AMap key
	Store     store.Store
	Machine   *journey.Machine

	closers []func() error
}

// needsAWS reports whether any configured resource lives in AWS.
func needsAWS(cfg config.Config) bool {
	return cfg.S3Bucket != "" || cfg.DynamoTable != "" ||
		cfg.SSMGeminiKeyParam != "" || cfg.SSMArkKeyParam != "" || cfg.SSMAMapKeyParam != ""
}

// InitAWS loads the default AWS config.
func InitAWS(ctx context.Context) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", awsCfg.Region).Msg("AWS config loaded")
	return awsCfg, nil
}

// Build wires every component from cfg. AWS is only contacted when cfg
// names an AWS resource.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	var awsCfg aws.Config
	if needsAWS(cfg) {
		var err error
		if awsCfg, err = InitAWS(ctx); err != nil {
			return nil, err
		}
		if cfg.SSMGeminiKeyParam != "" || cfg.SSMArkKeyParam != "" || cfg.SSMAMapKeyParam != "" {
			cfg.LoadSecrets(ctx, ssm.NewFromConfig(awsCfg))
		}
	}

	app := &App{Config: cfg}

	var model chat.TextModel
	if cfg.GeminiAPIKey != "" {
		client, err := chat.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		app.Gemini = client
		model = chat.NewGeminiText(client, cfg.GeminiModel)
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, planner and photo guide use fallbacks")
	}
	app.Assistant = chat.NewAssistant(model)

	backend, err := imageBackend(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	var guides chat.GuideSource
	if model != nil {
		guides = app.Assistant
	}
	app.CheckIn = chat.NewCheckInService(guides, backend)

	var keywords video.KeywordGenerator
	if model != nil {
		keywords = app.Assistant
	}
	var videoOpts []video.Option
	if cfg.BilibiliCookie != "" {
		videoOpts = append(videoOpts, video.WithCookie(cfg.BilibiliCookie))
	}
	app.Lookup = video.NewLookup(keywords, video.NewClient(videoOpts...))

	if cfg.AMapKey != "" {
		app.Resolver = geo.NewResolver(geo.NewClient(cfg.AMapKey))
	} else {
		log.Warn().Msg("AMAP_KEY not set, confirmed plans load the default route")
	}

	if err := app.openStore(ctx, awsCfg); err != nil {
		return nil, err
	}

	app.Machine = journey.New(app.CheckIn, app.Lookup, app.Store, journey.Options{
		ArriveDelay: cfg.ArriveDelay,
		SettleDelay: cfg.SettleDelay,
	})
	app.restoreRoute(ctx)
	return app, nil
}

func imageBackend(cfg config.Config, awsCfg aws.Config) (chat.ImageBackend, error) {
	switch cfg.ResolveImageBackend() {
	case config.BackendArk:
		if cfg.ArkAPIKey == "" {
			return nil, fmt.Errorf("image backend ark requires ARK_API_KEY")
		}
		return chat.NewArkImageClient(cfg.ArkAPIKey), nil
	case config.BackendGemini:
		if cfg.GeminiAPIKey == "" || cfg.S3Bucket == "" {
			return nil, fmt.Errorf("image backend gemini requires GEMINI_API_KEY and TRIPSTORY_BUCKET")
		}
		images := s3util.NewImageStore(s3.NewFromConfig(awsCfg), cfg.S3Bucket)
		return chat.NewGeminiImageClient(cfg.GeminiAPIKey, images), nil
	default:
		log.Warn().Msg("No image generation key configured, using mock check-in photos")
		return chat.MockBackend{}, nil
	}
}

// openStore picks DynamoDB, then SQLite, then memory.
func (a *App) openStore(ctx context.Context, awsCfg aws.Config) error {
	switch {
	case a.Config.DynamoTable != "":
		a.Store = store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), a.Config.DynamoTable, a.Config.Owner)
	case a.Config.SQLitePath != "":
		s, err := store.OpenSQLite(ctx, a.Config.SQLitePath, a.Config.Owner)
		if err != nil {
			return err
		}
		a.Store = s
		a.closers = append(a.closers, s.Close)
	default:
		log.Warn().Msg("No gallery store configured, photos are kept in memory")
		a.Store = store.NewMemoryStore()
	}
	return nil
}

// restoreRoute loads the last confirmed route into the machine. Failures
// leave the machine without a route.
func (a *App) restoreRoute(ctx context.Context) {
	route, err := a.Store.GetRoute(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load saved route")
		return
	}
	if route == nil {
		return
	}
	if err := a.Machine.LoadRoute(route); err != nil {
		log.Warn().Err(err).Msg("Saved route rejected")
		return
	}
	log.Info().Str("start", route.Start).Str("end", route.End).Msg("Restored saved route")
}

// ValidateKey probes the Gemini API with the configured key.
func (a *App) ValidateKey(ctx context.Context) error {
	var models auth.Prober
	if a.Gemini != nil {
		models = a.Gemini.Models
	}
	model := a.Config.GeminiModel
	if model == "" {
		model = chat.DefaultModelName
	}
	return auth.ValidateAPIKey(ctx, models, model)
}

// ServerDeps exposes the components to the HTTP layer.
func (a *App) ServerDeps() server.Deps {
	deps := server.Deps{
		Planner: a.Assistant,
		Guides:  a.Assistant,
		CheckIn: a.CheckIn,
		Videos:  a.Lookup,
		Store:   a.Store,
		Machine: a.Machine,
	}
	if a.Resolver != nil {
		deps.Resolver = a.Resolver
	}
	return deps
}

// Close stops the machine and releases the store.
func (a *App) Close() error {
	if a.Machine != nil {
		a.Machine.Reset()
	}
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StartupLog builds the startup event for the named binary.
func (a *App) StartupLog(name, version string, initStart time.Time) *logging.StartupLogger {
	cfg := a.Config
	return logging.NewStartupLogger(name).
		Version(version).
		InitDuration(time.Since(initStart)).
		S3Bucket("images", cfg.S3Bucket).
		DynamoTable("gallery", cfg.DynamoTable).
		SSMParam("geminiKey", cfg.SSMGeminiKeyParam).
		SSMParam("arkKey", cfg.SSMArkKeyParam).
		SSMParam("amapKey", cfg.SSMAMapKeyParam).
		Feature("planner", cfg.GeminiAPIKey != "").
		Feature("geocoding", a.Resolver != nil).
		Feature("bilibiliCookie", cfg.BilibiliCookie != "").
		Config("imageBackend", a.CheckIn.Backend()).
		Config("model", cfg.GeminiModel).
		Config("owner", cfg.Owner).
		Config("sqlite", cfg.SQLitePath)
}
