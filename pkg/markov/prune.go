package markov

import (
	"context"
	"fmt"
	"log/slog"
)

// PruneModel removes every stored link of model whose frequency is less than
// or equal to minFreq. Rare transitions are mostly noise from unusual
// lexicon entries; dropping them shrinks the model and makes generated words
// closer to common spelling. It returns the number of links removed.
func (s *Store) PruneModel(ctx context.Context, model ModelInfo, minFreq int) (int64, error) {
	res, err := s.stmtPruneModel.ExecContext(ctx, model.Id, minFreq)
	if err != nil {
		return 0, fmt.Errorf("could not prune model %d: %w", model.Id, err)
	}
	rowsAffected, _ := res.RowsAffected()

	s.logger.InfoContext(ctx, "Model pruned",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("min_frequency", minFreq),
		slog.Int64("links_removed", rowsAffected),
	)
	return rowsAffected, nil
}
