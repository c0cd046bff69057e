package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newApp().Run(ctx, os.Args)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Running it without a command finds domains.
func newApp() *cli.Command {
	return &cli.Command{
		Name:      "domainfinder",
		Usage:     "Generate pronounceable domain names and report the available ones",
		Version:   fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		ArgsUsage: "[lexicon...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the JSON config file, created with defaults if missing",
				Value:   "./config.json",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "override the configured model database",
			},
			&cli.IntFlag{
				Name:  "order",
				Usage: "override the configured n-gram length",
			},
		},
		Action: runFind,
		Commands: []*cli.Command{
			findCmd(),
			generateCmd(),
			trainCmd(),
			modelsCmd(),
			statsCmd(),
			inspectCmd(),
			pruneCmd(),
			removeCmd(),
			exportCmd(),
			importCmd(),
		},
	}
}

// app carries what every command needs once the config is loaded.
type app struct {
	config *Config
	logger *slog.Logger
}

// setup loads the config named by the global flags, applies flag overrides
// and builds the logger. Logs go to stderr so stdout only carries results.
func setup(cmd *cli.Command) (*app, error) {
	config, err := LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if level := cmd.String("log-level"); level != "" {
		config.LogLevel = level
	}
	if db := cmd.String("db"); db != "" {
		config.Store.DatabasePath = db
	}
	if order := cmd.Int("order"); order != 0 {
		config.Generator.Order = order
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(cmd.Root().ErrWriter, &slog.HandlerOptions{Level: parseLogLevel(config.LogLevel)}))
	return &app{config: config, logger: logger}, nil
}

// lexiconPaths returns the lexicons given on the command line, or the
// configured one.
func (a *app) lexiconPaths(cmd *cli.Command) []string {
	if cmd.Args().Len() > 0 {
		return cmd.Args().Slice()
	}
	return []string{a.config.Generator.LexiconPath}
}

// modelName returns the --model flag, or the configured model name.
func (a *app) modelName(cmd *cli.Command) string {
	if name := cmd.String("model"); name != "" {
		return name
	}
	return a.config.Store.ModelName
}
