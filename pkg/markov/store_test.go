package markov

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
)

func TestInsertAndGetModelInfo(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	// Test success case
	modelInfo := ModelInfo{Name: "test_model", Order: 5}
	if err := s.InsertModel(ctx, modelInfo); err != nil {
		t.Fatalf("InsertModel() failed: %v", err)
	}

	m, err := s.GetModelInfo(ctx, "test_model")
	if err != nil {
		t.Errorf("GetModelInfo: expected no error, got %v", err)
	}
	if m.Name != "test_model" || m.Order != 5 {
		t.Errorf("got unexpected model info: %+v", m)
	}

	// Test failure case (nonexistent)
	_, err = s.GetModelInfo(ctx, "nonexistent_model")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows for nonexistent model, got %v", err)
	}

	// Test failure case (duplicate name)
	if err = s.InsertModel(ctx, modelInfo); err == nil {
		t.Errorf("expected an error when inserting a model with a duplicate name, but got nil")
	}

	// Test failure case (invalid order)
	if err = s.InsertModel(ctx, ModelInfo{Name: "bad", Order: 0}); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestGetModelInfos(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	_ = s.InsertModel(ctx, ModelInfo{Name: "test_model", Order: 2})
	_ = s.InsertModel(ctx, ModelInfo{Name: "another_model", Order: 1})

	models, err := s.GetModelInfos(ctx)
	if err != nil {
		t.Fatalf("GetModelInfos failed: %v", err)
	}
	if len(models) != 2 {
		t.Errorf("expected 2 models, got %d", len(models))
	}
	if _, ok := models["test_model"]; !ok {
		t.Error("expected to find 'test_model'")
	}
	if _, ok := models["another_model"]; !ok {
		t.Error("expected to find 'another_model'")
	}
}

func TestEnsureModel(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	created, err := s.EnsureModel(ctx, "words", 4)
	if err != nil {
		t.Fatalf("EnsureModel() failed: %v", err)
	}
	again, err := s.EnsureModel(ctx, "words", 4)
	if err != nil {
		t.Fatalf("EnsureModel() on an existing model failed: %v", err)
	}
	if created != again {
		t.Errorf("expected the same model, got %+v and %+v", created, again)
	}

	if _, err = s.EnsureModel(ctx, "words", 3); err == nil {
		t.Error("expected an error for a mismatched order")
	}
}

func TestSaveAndLoadCounts(t *testing.T) {
	ctx, s, model := setupTestStoreWithTraining(t, 3)

	loaded, err := s.LoadCounts(ctx, model)
	if err != nil {
		t.Fatalf("LoadCounts() failed: %v", err)
	}
	expected := mustCounts(t, testWords, 3)
	if !reflect.DeepEqual(loaded.Links(), expected.Links()) {
		t.Error("loaded counts differ from the saved counts")
	}

	// Saving again merges by adding frequencies.
	if err = s.SaveCounts(ctx, model, expected); err != nil {
		t.Fatalf("second SaveCounts() failed: %v", err)
	}
	merged, _ := s.LoadCounts(ctx, model)
	for _, link := range expected.Links() {
		if got := merged.Frequency(link.From, link.To); got != 2*link.Frequency {
			t.Errorf("%q -> %q: expected frequency %d, got %d", link.From, link.To, 2*link.Frequency, got)
		}
	}

	if err = s.SaveCounts(ctx, model, mustCounts(t, testWords, 2)); err == nil {
		t.Error("expected an error when saving counts of a different order")
	}
}

func TestLoadModel(t *testing.T) {
	ctx, s, model := setupTestStoreWithTraining(t, 2)

	loaded, err := s.LoadModel(ctx, model)
	if err != nil {
		t.Fatalf("LoadModel() failed: %v", err)
	}
	built := mustCounts(t, testWords, 2).Normalize()
	if !reflect.DeepEqual(loaded, built) {
		t.Error("expected the loaded model to equal a freshly built one")
	}

	g, err := NewGenerator(loaded, WithSeed(5))
	if err != nil {
		t.Fatalf("NewGenerator() over a loaded model failed: %v", err)
	}
	_ = g.Word()
}

func TestLoadModelEmpty(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	model, _ := s.EnsureModel(ctx, "empty", DefaultOrder)
	loaded, err := s.LoadModel(ctx, model)
	if err != nil {
		t.Fatalf("LoadModel() failed: %v", err)
	}
	if _, err = NewGenerator(loaded); !errors.Is(err, ErrEmptyModel) {
		t.Errorf("expected ErrEmptyModel for an untrained model, got %v", err)
	}
}

func TestGetSuccessors(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	model, _ := s.EnsureModel(ctx, "succ", 2)
	_ = s.SaveCounts(ctx, model, mustCounts(t, "abc\nabd\nabc\n", 2))

	links, total, err := s.GetSuccessors(ctx, model, "ab")
	if err != nil {
		t.Fatalf("GetSuccessors failed: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total frequency of 3, got %d", total)
	}
	expected := []Link{{From: "ab", To: "bc", Frequency: 2}, {From: "ab", To: "bd", Frequency: 1}}
	if !reflect.DeepEqual(links, expected) {
		t.Errorf("expected links %+v, got %+v", expected, links)
	}

	// Test unseen gram
	links, total, err = s.GetSuccessors(ctx, model, "zz")
	if err != nil {
		t.Fatalf("GetSuccessors for unseen gram failed: %v", err)
	}
	if len(links) != 0 || total != 0 {
		t.Error("expected no successors for an unseen gram")
	}
}

func TestRemoveModel(t *testing.T) {
	db, s := setupTestStore(t)
	ctx := context.Background()

	m1, _ := s.EnsureModel(ctx, "to_delete", 2)
	m2, _ := s.EnsureModel(ctx, "to_keep", 2)
	_ = s.SaveCounts(ctx, m1, mustCounts(t, "delete\n", 2))
	_ = s.SaveCounts(ctx, m2, mustCounts(t, "keep\n", 2))

	if err := s.RemoveModel(ctx, m1); err != nil {
		t.Fatalf("RemoveModel failed: %v", err)
	}

	// Verify model m1 is gone
	_, err := s.GetModelInfo(ctx, m1.Name)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows for deleted model, got %v", err)
	}

	// Verify transitions for m1 are gone
	var count int
	_ = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ngram_transitions WHERE model_id = ?", m1.Id).Scan(&count)
	if count != 0 {
		t.Errorf("expected 0 transitions for deleted model, found %d", count)
	}

	// Verify model m2 and its transitions still exist
	_ = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ngram_transitions WHERE model_id = ?", m2.Id).Scan(&count)
	if count == 0 {
		t.Error("expected transitions for kept model to exist, but found 0")
	}
}

func TestSetupSchemaIdempotent(t *testing.T) {
	db, _ := setupTestStore(t)
	if err := SetupSchema(db); err != nil {
		t.Errorf("second SetupSchema() failed: %v", err)
	}
}

func BenchmarkSaveCounts(b *testing.B) {
	lex := createBenchmarkLexicon()
	ctx := context.Background()

	counts, _ := NewCounts(DefaultOrder)
	counts.AddLexicon(lex)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		_, st := setupTestStoreBench(b)
		model, err := st.EnsureModel(ctx, "bench", DefaultOrder)
		if err != nil {
			b.Fatal(err)
		}
		b.StartTimer()
		if err = st.SaveCounts(ctx, model, counts); err != nil {
			b.Fatalf("SaveCounts() failed: %v", err)
		}
	}
}
