package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lexmatch/internal/config"
	"github.com/standardbeagle/lexmatch/internal/extractor"
	"github.com/standardbeagle/lexmatch/internal/source"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a starter " + config.FileName + " (converts --legacy-json when given)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "File to write",
						Value:   config.FileName,
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Overwrite an existing file",
					},
				},
				Action: configInit,
			},
			{
				Name:  "show",
				Usage: "Print the effective configuration as KDL",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfigWithOverrides(c)
					if err != nil {
						return err
					}
					fmt.Fprint(c.App.Writer, config.ToKDL(cfg))
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Validate the configuration, optionally loading every source",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "sources",
						Aliases: []string{"s"},
						Usage:   "Also load each source and report what it produced",
					},
				},
				Action: configValidate,
			},
		},
	}
}

func configInit(c *cli.Context) error {
	output, err := filepath.Abs(c.String("output"))
	if err != nil {
		return err
	}
	if _, err := os.Stat(output); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", output)
	}

	var cfg *config.Config
	if path := c.String("legacy-json"); path != "" {
		if cfg, err = config.LoadLegacyJSON(path); err != nil {
			return err
		}
	} else {
		cfg = starterConfig()
		if err := config.NewValidator().ValidateAndSetDefaults(cfg); err != nil {
			return err
		}
	}
	cfg.Path = output

	if err := os.WriteFile(output, []byte(config.ToKDL(cfg)), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s with %d sources\n", output, len(cfg.Sources))
	return nil
}

// starterConfig shows one source of each file-based kind
func starterConfig() *config.Config {
	cfg := config.Default()
	cfg.Sources = []config.SourceConfig{
		{Kind: config.SourceWordlist, Label: "CITY", Pattern: "vocab/cities/**/*.txt"},
		{Kind: config.SourceSynonyms, Path: "vocab/synonyms.toml"},
	}
	cfg.Watch.Enabled = true
	return cfg
}

func configValidate(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	where := cfg.Path
	if where == "" {
		where = "defaults"
	}
	fmt.Fprintf(c.App.Writer, "Configuration OK (%s): %d sources, min confidence %.2f\n", where, len(cfg.Sources), cfg.MinConfidence)
	if !c.Bool("sources") {
		return nil
	}

	sources, err := extractor.BuildSources(cfg)
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range source.LoadEach(c.Context, sources, cfg.Loading.Parallel) {
		if r.Err != nil {
			failed++
			fmt.Fprintf(c.App.Writer, "  FAIL %s: %v\n", r.Source.Name(), r.Err)
			continue
		}
		members := 0
		for _, d := range r.Definitions {
			members += len(d.Members)
		}
		fmt.Fprintf(c.App.Writer, "  ok   %s: %d groups, %d members\n", r.Source.Name(), len(r.Definitions), members)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed to load", failed, len(sources))
	}
	return nil
}
