package markov

import (
	"context"
	"sort"
)

// DBStats holds aggregated statistics for every model in the store.
type DBStats struct {
	Models []ModelInfo        // Stored models, sorted by name
	Stats  map[int]ModelStats // A mapping of model ids to their stats
}

// ModelStats holds aggregated statistics for a single stored model.
type ModelStats struct {
	TotalLinks     int // The number of unique source->next links.
	TotalFrequency int // The sum of frequencies of all links; the total number of trained transitions.
	StartingGrams  int // The number of distinct grams a word can open with.
	SourceGrams    int // The number of distinct source grams, the start state included.
}

// GetModelStats returns the statistics of a single model.
func (s *Store) GetModelStats(ctx context.Context, model ModelInfo) (ModelStats, error) {
	var stats ModelStats
	if err := s.stmtModelLinks.QueryRowContext(ctx, model.Id).Scan(&stats.TotalLinks); err != nil {
		return ModelStats{}, err
	}
	if err := s.stmtModelFreq.QueryRowContext(ctx, model.Id).Scan(&stats.TotalFrequency); err != nil {
		return ModelStats{}, err
	}
	if err := s.stmtModelStarters.QueryRowContext(ctx, model.Id).Scan(&stats.StartingGrams); err != nil {
		return ModelStats{}, err
	}
	if err := s.stmtModelSources.QueryRowContext(ctx, model.Id).Scan(&stats.SourceGrams); err != nil {
		return ModelStats{}, err
	}
	return stats, nil
}

// GetStats returns a snapshot of statistics for every stored model.
func (s *Store) GetStats(ctx context.Context) (*DBStats, error) {
	modelInfos, err := s.GetModelInfos(ctx)
	if err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(modelInfos))
	modelStats := make(map[int]ModelStats)
	for _, v := range modelInfos {
		models = append(models, v)
		stats, err := s.GetModelStats(ctx, v)
		if err != nil {
			return nil, err
		}
		modelStats[v.Id] = stats
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].Name < models[j].Name
	})

	return &DBStats{
		Models: models,
		Stats:  modelStats,
	}, nil
}
