package markov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/multierr"
)

// ModelInfo holds the metadata for a stored model: its unique ID, name, and
// the gram length it was trained with.
type ModelInfo struct {
	Id    int
	Name  string
	Order int
}

// SetupSchema initializes the tables used by Store in the provided database.
// It is idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaModels = `
CREATE TABLE IF NOT EXISTS ngram_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    model_order INTEGER NOT NULL
);
`
		schemaTransitions = `
CREATE TABLE IF NOT EXISTS ngram_transitions (
    model_id INTEGER NOT NULL,
    source_gram TEXT NOT NULL,
    next_gram TEXT NOT NULL,
    frequency INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, source_gram, next_gram)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create models schema: %w", err)
	}

	if _, err = tx.Exec(schemaTransitions); err != nil {
		return fmt.Errorf("could not create transitions schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// Store persists transition counts in a SQLite database so a model can be
// trained once and reused, merged, pruned and inspected later. It holds the
// database connection and prepared statements for the common queries.
type Store struct {
	db                *sql.DB
	stmtGetModelInfo  *sql.Stmt
	stmtGetModels     *sql.Stmt
	stmtAddModel      *sql.Stmt
	stmtPruneModel    *sql.Stmt
	stmtModelLinks    *sql.Stmt
	stmtModelFreq     *sql.Stmt
	stmtModelStarters *sql.Stmt
	stmtModelSources  *sql.Stmt
	stmtGetLinks      *sql.Stmt
	stmtGetSuccessors *sql.Stmt
	logger            *slog.Logger
}

// NewStore pre-compiles all statements the Store needs, returning an error if
// any preparation fails. SetupSchema must have been called on db first.
func NewStore(db *sql.DB) (*Store, error) {
	stmtGetModelInfo, err := db.Prepare(`SELECT model_id, model_order FROM ngram_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetModels, err := db.Prepare(`SELECT model_id, model_name, model_order FROM ngram_models;`)
	if err != nil {
		return nil, err
	}

	stmtAddModel, err := db.Prepare(`INSERT INTO ngram_models (model_name, model_order) VALUES (?, ?);`)
	if err != nil {
		return nil, err
	}

	stmtPruneModel, err := db.Prepare(`DELETE FROM ngram_transitions WHERE model_id = ? AND frequency <= ?;`)
	if err != nil {
		return nil, err
	}

	stmtModelLinks, err := db.Prepare(`SELECT COUNT(*) FROM ngram_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtModelFreq, err := db.Prepare(`SELECT coalesce(SUM(frequency), 0) FROM ngram_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtModelStarters, err := db.Prepare(`SELECT COUNT(*) FROM ngram_transitions WHERE model_id = ? AND source_gram = '';`)
	if err != nil {
		return nil, err
	}

	stmtModelSources, err := db.Prepare(`SELECT COUNT(DISTINCT source_gram) FROM ngram_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetLinks, err := db.Prepare(`SELECT source_gram, next_gram, frequency FROM ngram_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetSuccessors, err := db.Prepare(`SELECT next_gram, frequency FROM ngram_transitions WHERE model_id = ? AND source_gram = ? ORDER BY next_gram;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:                db,
		stmtGetModelInfo:  stmtGetModelInfo,
		stmtGetModels:     stmtGetModels,
		stmtAddModel:      stmtAddModel,
		stmtPruneModel:    stmtPruneModel,
		stmtModelLinks:    stmtModelLinks,
		stmtModelFreq:     stmtModelFreq,
		stmtModelStarters: stmtModelStarters,
		stmtModelSources:  stmtModelSources,
		stmtGetLinks:      stmtGetLinks,
		stmtGetSuccessors: stmtGetSuccessors,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared statements held by the Store. The database
// connection itself is left open.
func (s *Store) Close() error {
	return multierr.Combine(
		s.stmtGetModelInfo.Close(),
		s.stmtGetModels.Close(),
		s.stmtAddModel.Close(),
		s.stmtPruneModel.Close(),
		s.stmtModelLinks.Close(),
		s.stmtModelFreq.Close(),
		s.stmtModelStarters.Close(),
		s.stmtModelSources.Close(),
		s.stmtGetLinks.Close(),
		s.stmtGetSuccessors.Close(),
	)
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// GetModelInfos retrieves metadata for all stored models, keyed by name.
func (s *Store) GetModelInfos(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]ModelInfo)
	for rows.Next() {
		var model ModelInfo
		if err = rows.Scan(&model.Id, &model.Name, &model.Order); err != nil {
			return nil, err
		}
		models[model.Name] = model
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// GetModelInfo retrieves the metadata for a single model. It returns
// sql.ErrNoRows if no model has that name.
func (s *Store) GetModelInfo(ctx context.Context, modelName string) (ModelInfo, error) {
	var modelId, modelOrder int
	err := s.stmtGetModelInfo.QueryRowContext(ctx, modelName).Scan(&modelId, &modelOrder)
	if err != nil {
		return ModelInfo{}, err
	}
	return ModelInfo{
		Id:    modelId,
		Name:  modelName,
		Order: modelOrder,
	}, nil
}

// InsertModel creates a new, empty model entry.
func (s *Store) InsertModel(ctx context.Context, model ModelInfo) error {
	if model.Order < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidOrder, model.Order)
	}
	_, err := s.stmtAddModel.ExecContext(ctx, model.Name, model.Order)
	return err
}

// EnsureModel returns the model called name, creating it with the given order
// if it does not exist yet. An existing model with a different order is an
// error.
func (s *Store) EnsureModel(ctx context.Context, name string, order int) (ModelInfo, error) {
	model, err := s.GetModelInfo(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		if err = s.InsertModel(ctx, ModelInfo{Name: name, Order: order}); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to create model '%s': %w", name, err)
		}
		return s.GetModelInfo(ctx, name)
	}
	if err != nil {
		return ModelInfo{}, err
	}
	if model.Order != order {
		return ModelInfo{}, fmt.Errorf("model '%s' has order %d, not %d", name, model.Order, order)
	}
	return model, nil
}

// RemoveModel deletes a model and all of its transitions. The operation is
// performed within a transaction.
func (s *Store) RemoveModel(ctx context.Context, model ModelInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, "DELETE FROM ngram_transitions WHERE model_id = ?", model.Id); err != nil {
		return fmt.Errorf("failed to remove transitions for model %d: %w", model.Id, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM ngram_models WHERE model_id = ?", model.Id); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", model.Id, err)
	}

	s.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
	)

	return tx.Commit()
}

// SaveCounts merges counts into the stored model: frequencies of links that
// already exist are added to. The whole merge runs in one transaction.
func (s *Store) SaveCounts(ctx context.Context, model ModelInfo, counts *Counts) error {
	// linkBatchSize determines how many links are written between context checks.
	const linkBatchSize = 1000

	if counts.Order() != model.Order {
		return fmt.Errorf("cannot save order %d counts into model '%s' of order %d", counts.Order(), model.Name, model.Order)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	// Prepare a special query so that an existing link keeps its frequency and gets the new one added.
	stmtInsertLink, err := tx.PrepareContext(ctx, `
		INSERT INTO ngram_transitions (model_id, source_gram, next_gram, frequency) VALUES (?, ?, ?, ?)
		ON CONFLICT(model_id, source_gram, next_gram) DO UPDATE SET frequency = frequency + excluded.frequency;
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare link insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertLink)

	links := counts.Links()
	for i, link := range links {
		if i%linkBatchSize == 0 {
			if err = ctx.Err(); err != nil {
				return err
			}
		}
		if _, err = stmtInsertLink.ExecContext(ctx, model.Id, link.From, link.To, link.Frequency); err != nil {
			return fmt.Errorf("failed to insert link (%q -> %q): %w", link.From, link.To, err)
		}
	}

	s.logger.InfoContext(ctx, "Counts saved",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("links_merged", len(links)),
	)

	return tx.Commit()
}

// LoadCounts reads every stored link of model into a fresh Counts.
func (s *Store) LoadCounts(ctx context.Context, model ModelInfo) (*Counts, error) {
	counts, err := NewCounts(model.Order)
	if err != nil {
		return nil, err
	}

	rows, err := s.stmtGetLinks.QueryContext(ctx, model.Id)
	if err != nil {
		return nil, fmt.Errorf("could not query links for model %d: %w", model.Id, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var loaded int
	for rows.Next() {
		var link Link
		if err = rows.Scan(&link.From, &link.To, &link.Frequency); err != nil {
			return nil, err
		}
		counts.Add(link.From, link.To, link.Frequency)
		loaded++
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "Counts loaded",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("links_loaded", loaded),
	)
	return counts, nil
}

// LoadModel reads the stored links of model and normalizes them.
func (s *Store) LoadModel(ctx context.Context, model ModelInfo) (*Model, error) {
	counts, err := s.LoadCounts(ctx, model)
	if err != nil {
		return nil, err
	}
	return counts.Normalize(), nil
}

// GetSuccessors returns the stored successors of a single source gram, sorted
// by gram, along with the sum of their frequencies. An unseen gram yields a
// nil slice and a total of 0.
func (s *Store) GetSuccessors(ctx context.Context, model ModelInfo, gram string) ([]Link, int, error) {
	rows, err := s.stmtGetSuccessors.QueryContext(ctx, model.Id, gram)
	if err != nil {
		return nil, 0, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var links []Link
	var total int
	for rows.Next() {
		link := Link{From: gram}
		if err = rows.Scan(&link.To, &link.Frequency); err != nil {
			return nil, 0, err
		}
		links = append(links, link)
		total += link.Frequency
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return links, total, nil
}
