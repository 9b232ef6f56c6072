package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pantheonreview/pantheon/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "pantheon",
		Usage:   "Multi-reviewer AI code review for GitHub pull requests",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default: ./pantheon.toml, ./.github/pantheon.toml, ~/.pantheon.toml)",
			},
		},
		Commands: []*cli.Command{
			cmd.ReviewCommand(),
			cmd.ExtractCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
