package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pantheonreview/pantheon/internal/config"
	"github.com/pantheonreview/pantheon/internal/diff"
	"github.com/pantheonreview/pantheon/internal/feedback"
	"github.com/pantheonreview/pantheon/internal/logging"
	"github.com/pantheonreview/pantheon/internal/output"
	"github.com/pantheonreview/pantheon/pkg/models"
)

// sharedFlags returns the flags common to review and extract. Fresh flag
// values are built for every command.
func sharedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "position-mode",
			Usage: "Diff position convention: github or skip-removed",
		},
		&cli.StringSliceFlag{
			Name:    "exclude",
			Aliases: []string{"e"},
			Usage:   "Glob of files to leave out of the review (repeatable)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging for this command",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the review bundle as JSON instead of a table",
		},
	}
}

// loadConfig reads the configuration and applies the command line
// overrides shared by every command
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if mode := c.String("position-mode"); mode != "" {
		cfg.General.PositionMode = mode
	}
	if exclude := c.StringSlice("exclude"); len(exclude) > 0 {
		cfg.General.Exclude = append(cfg.General.Exclude, exclude...)
	}
	if c.Bool("verbose") {
		cfg.General.LogLevel = "debug"
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config) zerolog.Logger {
	return logging.Setup(cfg.General.LogLevel, cfg.General.LogPretty)
}

func newParser(cfg *config.Config, logger zerolog.Logger) *diff.Parser {
	mode, _ := diff.ParsePositionMode(cfg.General.PositionMode)
	return diff.NewParser(diff.WithPositionMode(mode), diff.WithLogger(logger))
}

func newExtractor(cfg *config.Config, logger zerolog.Logger) *feedback.Extractor {
	opts := []feedback.Option{
		feedback.WithWindow(cfg.Extract.Window),
		feedback.WithMinParagraph(cfg.Extract.MinParagraph),
		feedback.WithLogger(logger),
	}
	if cfg.Extract.Placeholder != "" {
		opts = append(opts, feedback.WithPlaceholder(cfg.Extract.Placeholder))
	}
	return feedback.NewExtractor(opts...)
}

func printBundle(bundle *models.ReviewBundle, asJSON bool) error {
	if asJSON {
		return output.WriteJSON(os.Stdout, bundle)
	}
	return output.WriteTable(os.Stdout, bundle)
}
