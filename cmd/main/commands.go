package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
	"github.com/urfave/cli/v3"

	"github.com/CTAG07/domainfinder/pkg/finder"
	"github.com/CTAG07/domainfinder/pkg/markov"
)

// errLimitReached stops the finder once enough domains were reported.
var errLimitReached = errors.New("limit reached")

func modelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "model",
		Aliases: []string{"m"},
		Usage:   "name of the stored model, defaults to the configured one",
	}
}

func seedFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:  "seed",
		Usage: "seed the generator for reproducible output (0 picks a random seed)",
	}
}

func findCmd() *cli.Command {
	return &cli.Command{
		Name:      "find",
		Usage:     "Generate candidates forever and print the available domains",
		ArgsUsage: "[lexicon...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "stop after this many available domains (0 = no limit)",
			},
			&cli.StringFlag{
				Name:  "tld",
				Usage: "override the configured top level domain",
			},
			seedFlag(),
		},
		Action: runFind,
	}
}

func runFind(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	if seed := cmd.Int64("seed"); seed != 0 {
		a.config.Generator.Seed = uint64(seed)
	}
	if tld := cmd.String("tld"); tld != "" {
		a.config.Finder.TLD = tld
	}

	g, err := newGenerator(ctx, a.config, a.lexiconPaths(cmd), a.logger)
	if err != nil {
		return err
	}

	f := finder.New(g, a.config.Whois.Checker(a.logger), a.config.Finder.FinderSettings())
	f.SetLogger(a.logger)

	limit := cmd.Int("limit")
	found := 0
	out := cmd.Root().Writer
	err = f.Run(ctx, func(domain string) error {
		if _, err := fmt.Fprintln(out, domain); err != nil {
			return err
		}
		found++
		if limit > 0 && found >= limit {
			return errLimitReached
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimitReached) {
		return err
	}
	a.logger.Info("Finder stopped", "found", found)
	return nil
}

func generateCmd() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Aliases:   []string{"gen"},
		Usage:     "Print generated words without checking availability",
		ArgsUsage: "[lexicon...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "number of words to print",
				Value:   10,
			},
			&cli.BoolFlag{
				Name:  "candidates",
				Usage: "print the shortest of each round of words, as the finder would check them",
			},
			seedFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			if seed := cmd.Int64("seed"); seed != 0 {
				a.config.Generator.Seed = uint64(seed)
			}

			g, err := newGenerator(ctx, a.config, a.lexiconPaths(cmd), a.logger)
			if err != nil {
				return err
			}
			next := g.Word
			if cmd.Bool("candidates") {
				next = finder.New(g, nil, a.config.Finder.FinderSettings()).Candidate
			}

			out := cmd.Root().Writer
			for i := 0; i < cmd.Int("count"); i++ {
				if _, err = fmt.Fprintln(out, next()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func trainCmd() *cli.Command {
	return &cli.Command{
		Name:      "train",
		Usage:     "Train a stored model on a lexicon, merging with what it already knows",
		ArgsUsage: "[lexicon...]",
		Flags:     []cli.Flag{modelFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(a.config.Store.DatabasePath, a.logger)
			if err != nil {
				return err
			}
			defer closeStore()

			model, err := store.EnsureModel(ctx, a.modelName(cmd), a.config.Generator.Order)
			if err != nil {
				return err
			}
			counts, err := trainCounts(a.lexiconPaths(cmd), model.Order, a.logger)
			if err != nil {
				return err
			}
			if err = store.SaveCounts(ctx, model, counts); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.Root().Writer, "trained %s (order %d) on %s source grams\n",
				model.Name, model.Order, humanize.Comma(int64(counts.Len())))
			return err
		},
	}
}

func modelsCmd() *cli.Command {
	return &cli.Command{
		Name:    "models",
		Aliases: []string{"ls"},
		Usage:   "List the stored models",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(a.config.Store.DatabasePath, a.logger)
			if err != nil {
				return err
			}
			defer closeStore()

			stats, err := store.GetStats(ctx)
			if err != nil {
				return err
			}
			out := cmd.Root().Writer
			for _, model := range stats.Models {
				if _, err = fmt.Fprintf(out, "%s\torder %d\n", model.Name, model.Order); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func statsCmd() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show statistics for every stored model",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(a.config.Store.DatabasePath, a.logger)
			if err != nil {
				return err
			}
			defer closeStore()

			stats, err := store.GetStats(ctx)
			if err != nil {
				return err
			}
			out := cmd.Root().Writer
			if len(stats.Models) == 0 {
				_, err = fmt.Fprintln(out, "no models stored")
				return err
			}
			for _, model := range stats.Models {
				s := stats.Stats[model.Id]
				_, err = fmt.Fprintf(out, "%s (order %d): %s links, %s transitions, %s source grams, %s openings\n",
					model.Name, model.Order,
					humanize.Comma(int64(s.TotalLinks)),
					humanize.Comma(int64(s.TotalFrequency)),
					humanize.Comma(int64(s.SourceGrams)),
					humanize.Comma(int64(s.StartingGrams)),
				)
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the successors of a gram in a stored model",
		ArgsUsage: "[gram]",
		Flags:     []cli.Flag{modelFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() > 1 {
				return errors.New("inspect takes at most one gram")
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			store, model, closeStore, err := storedModel(ctx, a, cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			// No gram means the start state.
			gram := cmd.Args().First()
			if gram != markov.StartGram && len(gram) != model.Order {
				return fmt.Errorf("gram %q is not %d characters long", gram, model.Order)
			}

			links, total, err := store.GetSuccessors(ctx, model, gram)
			if err != nil {
				return err
			}
			out := cmd.Root().Writer
			if len(links) == 0 {
				_, err = fmt.Fprintf(out, "no successors for %q\n", gram)
				return err
			}
			for _, link := range links {
				_, err = fmt.Fprintf(out, "%s\t%s\t%.1f%%\n",
					link.To, humanize.Comma(int64(link.Frequency)), 100*float64(link.Frequency)/float64(total))
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// storedModel opens the store and looks up the model named on the command line.
func storedModel(ctx context.Context, a *app, cmd *cli.Command) (*markov.Store, markov.ModelInfo, func(), error) {
	store, closeStore, err := openStore(a.config.Store.DatabasePath, a.logger)
	if err != nil {
		return nil, markov.ModelInfo{}, nil, err
	}
	name := a.modelName(cmd)
	model, err := store.GetModelInfo(ctx, name)
	if err != nil {
		closeStore()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, markov.ModelInfo{}, nil, fmt.Errorf("model '%s' not found", name)
		}
		return nil, markov.ModelInfo{}, nil, err
	}
	return store, model, closeStore, nil
}

func pruneCmd() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Remove rare transitions from a stored model",
		Flags: []cli.Flag{
			modelFlag(),
			&cli.IntFlag{
				Name:     "min-freq",
				Usage:    "remove transitions seen this many times or fewer",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			store, model, closeStore, err := storedModel(ctx, a, cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			removed, err := store.PruneModel(ctx, model, cmd.Int("min-freq"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.Root().Writer, "removed %s links from %s\n", humanize.Comma(removed), model.Name)
			return err
		},
	}
}

func removeCmd() *cli.Command {
	return &cli.Command{
		Name:  "remove",
		Usage: "Delete a stored model",
		Flags: []cli.Flag{modelFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			store, model, closeStore, err := storedModel(ctx, a, cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			return store.RemoveModel(ctx, model)
		},
	}
}

func exportCmd() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a stored model as JSON",
		Flags: []cli.Flag{
			modelFlag(),
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "file to write, replaced atomically (default: stdout)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			store, model, closeStore, err := storedModel(ctx, a, cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			path := cmd.String("out")
			if path == "" || path == "-" {
				return store.ExportModel(ctx, model, cmd.Root().Writer)
			}
			var buf bytes.Buffer
			if err = store.ExportModel(ctx, model, &buf); err != nil {
				return err
			}
			return atomic.WriteFile(path, &buf)
		},
	}
}

func importCmd() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Merge an exported JSON model into the store",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "name to import as, defaults to the name in the file",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("import takes exactly one export file")
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(a.config.Store.DatabasePath, a.logger)
			if err != nil {
				return err
			}
			defer closeStore()

			var r io.Reader = os.Stdin
			if path := cmd.Args().First(); path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("could not open export: %w", err)
				}
				defer func(f *os.File) {
					_ = f.Close()
				}(f)
				r = f
			}

			model, err := store.ImportModel(ctx, cmd.String("model"), r)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.Root().Writer, "imported %s (order %d)\n", model.Name, model.Order)
			return err
		},
	}
}
