package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/pantheonreview/pantheon/internal/config"
)

// ConfigCommand groups the subcommands that write, check and print pantheon.toml.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Write, check or print the reviewer configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a commented sample pantheon.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to write the sample",
						Value:   "pantheon.toml",
					},
				},
				Action: runConfigInit,
			},
			{
				Name:  "validate",
				Usage: "Check the merged file, env and default settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "offline",
						Usage: "Do not require GitHub or model credentials",
					},
				},
				Action: runConfigValidate,
			},
			{
				Name:   "show",
				Usage:  "Print the effective settings and reviewer roster",
				Action: runConfigShow,
			},
		},
	}
}

func runConfigInit(c *cli.Context) error {
	path := c.String("output")
	if err := config.InitConfig(path); err != nil {
		return fmt.Errorf("writing sample config: %w", err)
	}
	fmt.Printf("Wrote sample config to %s\n", path)
	return nil
}

func runConfigValidate(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	check := config.Validate
	if c.Bool("offline") {
		check = config.ValidateOffline
	}
	if err := check(cfg); err != nil {
		return fmt.Errorf("config rejected: %w", err)
	}

	fmt.Printf("OK: %d reviewers, position mode %q\n", len(cfg.Personas()), cfg.General.PositionMode)
	return nil
}

// runConfigShow never prints credentials, only whether they are set.
func runConfigShow(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	settings := tablewriter.NewWriter(os.Stdout)
	settings.SetHeader([]string{"Setting", "Value"})
	settings.SetBorder(false)
	settings.SetCenterSeparator("")
	settings.SetAutoWrapText(false)
	settings.AppendBulk([][]string{
		{"general.position_mode", cfg.General.PositionMode},
		{"general.concurrency", fmt.Sprint(cfg.General.Concurrency)},
		{"general.review_timeout", cfg.General.ReviewTimeout.String()},
		{"general.redact_secrets", fmt.Sprint(cfg.General.RedactSecrets)},
		{"general.guard_prompts", fmt.Sprint(cfg.General.GuardPrompts)},
		{"general.exclude", strings.Join(cfg.General.Exclude, ", ")},
		{"github.api_url", cfg.GitHub.APIURL},
		{"github.token", present(cfg.GitHub.Token)},
		{"ai.provider", cfg.AI.Provider},
		{"ai.model", cfg.AI.Model},
		{"ai.api_key", present(cfg.AI.APIKey)},
		{"extract.window", fmt.Sprint(cfg.Extract.Window)},
	})
	settings.Render()
	fmt.Println()

	roster := tablewriter.NewWriter(os.Stdout)
	roster.SetHeader([]string{"Reviewer", "Domain", "Format"})
	roster.SetBorder(false)
	roster.SetCenterSeparator("")
	for _, p := range cfg.Personas() {
		roster.Append([]string{p.Name, p.Domain, fmt.Sprint(p.Format)})
	}
	roster.Render()
	return nil
}

func present(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	return "(set)"
}
