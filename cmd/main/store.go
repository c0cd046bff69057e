package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/CTAG07/domainfinder/pkg/markov"
)

// openStore opens the model database, creating its directory and schema if
// needed. The returned close function releases both the store and the db.
func openStore(dataSource string, logger *slog.Logger) (*markov.Store, func(), error) {
	if dir := filepath.Dir(databaseFile(dataSource)); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(sqliteDriver, dataSource)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = markov.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to setup model schema: %w", err)
	}
	store, err := markov.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to prepare model store: %w", err)
	}
	store.SetLogger(logger)

	closeFn := func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close model store", "error", err)
		}
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}
	return store, closeFn, nil
}

// databaseFile strips the driver parameters from a data source.
func databaseFile(dataSource string) string {
	file, _, _ := strings.Cut(strings.TrimPrefix(dataSource, "file:"), "?")
	return file
}

// trainCounts reads every lexicon in paths and merges their counts.
func trainCounts(paths []string, order int, logger *slog.Logger) (*markov.Counts, error) {
	total, err := markov.NewCounts(order)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		lex, err := markov.LoadLexicon(path)
		if err != nil {
			return nil, err
		}
		counts, _ := markov.NewCounts(order)
		counts.AddLexicon(lex)
		if err = total.Merge(counts); err != nil {
			return nil, err
		}

		logger.Info("Lexicon loaded",
			"path", path,
			"words", humanize.Comma(int64(len(lex))),
			"source_grams", humanize.Comma(int64(counts.Len())),
			"order", order,
		)
	}
	return total, nil
}

// loadModel returns the model to generate from. Without the store it is
// trained on the lexicons every run, dropping links seen min_freq times or
// fewer. With the store, the stored model is used if it has been trained;
// otherwise it is trained on the lexicons and saved for later runs.
func loadModel(ctx context.Context, config *Config, lexicons []string, logger *slog.Logger) (*markov.Model, error) {
	gen := config.Generator
	if !config.Store.UseStore {
		counts, err := trainCounts(lexicons, gen.Order, logger)
		if err != nil {
			return nil, err
		}
		if gen.MinFreq > 0 {
			removed := counts.Prune(gen.MinFreq)
			logger.Info("Rare transitions dropped",
				"min_frequency", gen.MinFreq,
				"links_removed", humanize.Comma(int64(removed)),
			)
		}
		return counts.Normalize(), nil
	}

	store, closeStore, err := openStore(config.Store.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	info, err := store.EnsureModel(ctx, config.Store.ModelName, gen.Order)
	if err != nil {
		return nil, err
	}
	model, err := store.LoadModel(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("failed to load model '%s': %w", info.Name, err)
	}
	if !model.Empty() {
		logger.Info("Model loaded from store",
			"model_name", info.Name,
			"source_grams", humanize.Comma(int64(model.Len())),
		)
		return model, nil
	}

	counts, err := trainCounts(lexicons, gen.Order, logger)
	if err != nil {
		return nil, err
	}
	if err = store.SaveCounts(ctx, info, counts); err != nil {
		return nil, fmt.Errorf("failed to save model '%s': %w", info.Name, err)
	}
	return counts.Normalize(), nil
}

// newGenerator builds the model and wraps it in a generator, failing with a
// clear message if nothing in the lexicons could be used.
func newGenerator(ctx context.Context, config *Config, lexicons []string, logger *slog.Logger) (*markov.Generator, error) {
	model, err := loadModel(ctx, config, lexicons, logger)
	if err != nil {
		return nil, err
	}
	g, err := markov.NewGenerator(model, config.Generator.GenerateOptions(logger)...)
	if errors.Is(err, markov.ErrEmptyModel) {
		return nil, fmt.Errorf("lexicon %s produced an empty model at order %d: %w",
			strings.Join(lexicons, ", "), config.Generator.Order, err)
	}
	return g, err
}
