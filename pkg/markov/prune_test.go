package markov

import (
	"context"
	"testing"
)

func TestPruneModel(t *testing.T) {
	db, s := setupTestStore(t)
	ctx := context.Background()

	pruneModel, _ := s.EnsureModel(ctx, "prune_test", 2)
	_ = s.SaveCounts(ctx, pruneModel, mustCounts(t, "abc\nabd\nabc\n", 2))
	// "ab" -> "bc" and "bc" -> "c$" have freq 2, "ab" -> "bd" and "bd" -> "d$" have freq 1.

	removed, err := s.PruneModel(ctx, pruneModel, 1)
	if err != nil {
		t.Fatalf("PruneModel failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 links removed, got %d", removed)
	}

	// Verify that freq=1 links are gone.
	var count int
	_ = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ngram_transitions WHERE model_id = ? AND frequency <= 1", pruneModel.Id).Scan(&count)
	if count != 0 {
		t.Errorf("expected 0 links with freq <= 1 after pruning, found %d", count)
	}

	// Verify that the freq=2 link still exists.
	links, total, _ := s.GetSuccessors(ctx, pruneModel, "ab")
	if total != 2 || len(links) != 1 || links[0].To != "bc" {
		t.Errorf("expected only \"ab\" -> \"bc\" to survive, got %+v", links)
	}
}

func TestPruneModelLeavesOtherModels(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	m1, _ := s.EnsureModel(ctx, "pruned", 2)
	m2, _ := s.EnsureModel(ctx, "untouched", 2)
	_ = s.SaveCounts(ctx, m1, mustCounts(t, "abc\n", 2))
	_ = s.SaveCounts(ctx, m2, mustCounts(t, "abc\n", 2))

	if _, err := s.PruneModel(ctx, m1, 1); err != nil {
		t.Fatalf("PruneModel failed: %v", err)
	}

	stats, err := s.GetModelStats(ctx, m2)
	if err != nil {
		t.Fatalf("GetModelStats failed: %v", err)
	}
	if stats.TotalLinks == 0 {
		t.Error("expected the other model to keep its links")
	}
}
