// Command tripstory runs the TripStory backend locally and exposes its
// building blocks (planning, check-in generation, travel videos, the gallery)
// as one-shot subcommands.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/tripstory/internal/boot"
	"github.com/fpang/tripstory/internal/config"
	"github.com/fpang/tripstory/internal/logging"
)

// CLI flags
var (
	envDirFlag  string
	modelFlag   string
	ownerFlag   string
	sqliteFlag  string
	backendFlag string
)

var rootCmd = &cobra.Command{
	Use:   "tripstory",
	Short: "AI-assisted road-trip journey backend",
	Long: `TripStory plans a road trip through points of interest, simulates driving
between them, and turns the traveller's photo at each stop into an
AI-generated check-in picture.

Examples:
  tripstory serve --port 8080
  tripstory plan --origin 南宁 --city 桂林
  tripstory video --origin 桂林 --destination 阳朔
  tripstory checkin --poi 象鼻山 --image ./me.jpg
  tripstory gallery`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init()
		return config.LoadDotEnv(envDirFlag)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envDirFlag, "env-dir", ".", "Directory containing .env.local and .env")
	pf.StringVarP(&modelFlag, "model", "m", "", "Gemini text model (default from GEMINI_MODEL)")
	pf.StringVar(&ownerFlag, "owner", "", "Gallery owner (default from TRIPSTORY_OWNER)")
	pf.StringVar(&sqliteFlag, "db", "", "SQLite gallery path (default from TRIPSTORY_DB)")
	pf.StringVar(&backendFlag, "image-backend", "", "Image backend: auto, ark, gemini or mock")

	rootCmd.AddCommand(serveCmd, planCmd, videoCmd, checkInCmd, galleryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	if modelFlag != "" {
		cfg.GeminiModel = modelFlag
	}
	if ownerFlag != "" {
		cfg.Owner = ownerFlag
	}
	if sqliteFlag != "" {
		cfg.SQLitePath = sqliteFlag
	}
	if backendFlag != "" {
		cfg.ImageBackend = backendFlag
	}
	return cfg, nil
}

// buildApp wires the application for a subcommand.
func buildApp(ctx context.Context) (*boot.App, time.Time, error) {
	start := time.Now()
	cfg, err := loadConfig()
	if err != nil {
		return nil, start, err
	}
	app, err := boot.Build(ctx, cfg)
	if err != nil {
		return nil, start, err
	}
	log.Debug().Str("backend", app.CheckIn.Backend()).Msg("Application wired")
	return app, start, nil
}
