// Package config resolves TripStory's runtime settings from the environment.
//
// Values come from process environment variables, optionally seeded from
// .env.local and .env files in the working directory (existing variables are
// never overwritten). API keys that are still unset can be fetched from AWS
// SSM Parameter Store when a parameter path is configured for them.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/chat"
	"github.com/fpang/tripstory/internal/store"
)

// Image backends selectable with TRIPSTORY_IMAGE_BACKEND.
const (
	BackendAuto   = "auto"
	BackendArk    = "ark"
	BackendGemini = "gemini"
	BackendMock   = "mock"
)

// Config holds resolved settings. Secrets are never logged.
type Config struct {
	Addr           string
	AllowedOrigins []string

	GeminiAPIKey string
	GeminiModel  string
	ArkAPIKey    string
	AMapKey      string

	ImageBackend   string
	BilibiliCookie string

	S3Bucket    string
	DynamoTable string
	SQLitePath  string
	Owner       string

	ArriveDelay time.Duration
	SettleDelay time.Duration

	// SSM parameter paths for secrets left unset in the environment.
	SSMGeminiKeyParam string
	SSMArkKeyParam    string
	SSMAMapKeyParam   string
}

// LoadDotEnv loads .env.local then .env if present. Variables already in the
// environment win over file values.
func LoadDotEnv(dir string) error {
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(dir, name)
		err := godotenv.Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		log.Debug().Str("file", path).Msg("Loaded environment file")
	}
	return nil
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:              envOrDefault("TRIPSTORY_ADDR", ":8080"),
		AllowedOrigins:    splitList(envOrDefault("TRIPSTORY_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       chat.GetModelName(),
		ArkAPIKey:         os.Getenv("ARK_API_KEY"),
		AMapKey:           os.Getenv("AMAP_KEY"),
		ImageBackend:      strings.ToLower(envOrDefault("TRIPSTORY_IMAGE_BACKEND", BackendAuto)),
		BilibiliCookie:    os.Getenv("BILIBILI_COOKIE"),
		S3Bucket:          os.Getenv("TRIPSTORY_BUCKET"),
		DynamoTable:       os.Getenv("TRIPSTORY_TABLE"),
		SQLitePath:        os.Getenv("TRIPSTORY_DB"),
		Owner:             envOrDefault("TRIPSTORY_OWNER", store.DefaultOwner),
		SSMGeminiKeyParam: os.Getenv("SSM_GEMINI_KEY_PARAM"),
		SSMArkKeyParam:    os.Getenv("SSM_ARK_KEY_PARAM"),
		SSMAMapKeyParam:   os.Getenv("SSM_AMAP_KEY_PARAM"),
	}

	switch cfg.ImageBackend {
	case BackendAuto, BackendArk, BackendGemini, BackendMock:
	default:
		return Config{}, fmt.Errorf("TRIPSTORY_IMAGE_BACKEND: unknown backend %q", cfg.ImageBackend)
	}

	var err error
	if cfg.ArriveDelay, err = durationEnv("TRIPSTORY_ARRIVE_DELAY"); err != nil {
		return Config{}, err
	}
	if cfg.SettleDelay, err = durationEnv("TRIPSTORY_SETTLE_DELAY"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolveImageBackend picks the backend for BackendAuto: ARK when its key is
// set, then Gemini, else the mock.
func (c Config) ResolveImageBackend() string {
	if c.ImageBackend != BackendAuto {
		return c.ImageBackend
	}
	switch {
	case c.ArkAPIKey != "":
		return BackendArk
	case c.GeminiAPIKey != "" && c.S3Bucket != "":
		return BackendGemini
	default:
		return BackendMock
	}
}

// ParameterAPI is the subset of *ssm.Client used to fetch secrets.
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadSecrets fills unset API keys from SSM for every key that has a
// parameter path. A failed fetch is logged and leaves the key empty, so the
// affected feature degrades to its fallback.
func (c *Config) LoadSecrets(ctx context.Context, client ParameterAPI) {
	secrets := []struct {
		label string
		param string
		dst   *string
	}{
		{"gemini", c.SSMGeminiKeyParam, &c.GeminiAPIKey},
		{"ark", c.SSMArkKeyParam, &c.ArkAPIKey},
		{"amap", c.SSMAMapKeyParam, &c.AMapKey},
	}
	for _, s := range secrets {
		if *s.dst != "" || s.param == "" {
			continue
		}
		start := time.Now()
		result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(s.param),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			log.Warn().Err(err).Str("param", s.param).Msg("Failed to read " + s.label + " key from SSM")
			continue
		}
		if result.Parameter == nil || result.Parameter.Value == nil {
			log.Warn().Str("param", s.param).Msg("SSM parameter has no value")
			continue
		}
		*s.dst = *result.Parameter.Value
		log.Debug().Str("param", s.param).Dur("elapsed", time.Since(start)).Msg("Loaded " + s.label + " key from SSM")
	}
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// durationEnv parses key as a Go duration or as whole milliseconds.
// An unset variable yields zero.
func durationEnv(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
