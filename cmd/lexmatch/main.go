package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lexmatch/internal/config"
	"github.com/standardbeagle/lexmatch/internal/debug"
	"github.com/standardbeagle/lexmatch/internal/extractor"
	"github.com/standardbeagle/lexmatch/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "lexmatch",
		Usage:                  "Fuzzy vocabulary entity extraction for tokenized text",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (default: " + config.FileName + " in the working directory, if present)",
			},
			&cli.StringFlag{
				Name:  "legacy-json",
				Usage: "Read a legacy JSON extractor config instead of KDL",
			},
			&cli.Float64Flag{
				Name:  "min-confidence",
				Usage: "Override the minimum confidence in [0,1]",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show debug information on stderr",
			},
			&cli.BoolFlag{
				Name:  "debug-log",
				Usage: "Write debug information to a timestamped file under the temp directory",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") || c.Bool("debug-log") {
				debug.EnableDebug = "true"
			}
			if c.Bool("debug-log") {
				path, err := debug.InitDebugLogFile()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "Debug log: %s\n", path)
				return nil
			}
			if debug.IsDebugEnabled() {
				debug.SetDebugOutput(c.App.ErrWriter)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			return debug.CloseDebugLog()
		},
		Commands: []*cli.Command{
			matchCommand(),
			lookupCommand(),
			vocabCommand(),
			serveCommand(),
			mcpCommand(),
			statusCommand(),
			reloadCommand(),
			configCommand(),
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, version.FullInfo())
					fmt.Fprintf(c.App.Writer, "build id: %s\n", version.BuildID())
					return nil
				},
			},
		},
	}
}

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error

	switch {
	case c.String("legacy-json") != "":
		path := c.String("legacy-json")
		if cfg, err = config.LoadLegacyJSON(path); err != nil {
			return nil, fmt.Errorf("failed to load legacy config from %s: %w", path, err)
		}
	case c.String("config") != "":
		path := c.String("config")
		if cfg, err = config.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	default:
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if cfg, err = config.LoadKDL(wd); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", wd, err)
		}
		if cfg == nil {
			cfg = config.Default()
		}
	}

	if c.IsSet("min-confidence") {
		cfg.MinConfidence = c.Float64("min-confidence")
	}
	if err := config.NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newExtractor loads the configured sources. Warnings about skipped
// sources go to the standard logger.
func newExtractor(ctx context.Context, c *cli.Context) (*extractor.Extractor, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("no vocabulary sources configured; run 'lexmatch config init' or pass --config")
	}
	return extractor.New(ctx, cfg)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func joinArgs(c *cli.Context) string {
	return strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
}
