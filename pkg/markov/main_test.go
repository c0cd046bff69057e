package markov

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testWords is a small, realistic lexicon used across tests.
const testWords = `cat
caterpillar
catalog
dog
doggerel
dormant
domain
dominion
finder
finding
fine
market
marker
markov
marvel
tangent
tango
tangle
`

// setupTestStore creates a new SQLite database in a temp dir and a Store for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestStore(t *testing.T) (*sql.DB, *Store) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-4000")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return db, s
}

// setupTestStoreWithTraining is a convenience helper that also stores a model trained on testWords.
func setupTestStoreWithTraining(t *testing.T, order int) (context.Context, *Store, ModelInfo) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	model, err := s.EnsureModel(ctx, "test_model", order)
	if err != nil {
		t.Fatalf("setup: EnsureModel() failed: %v", err)
	}
	counts := mustCounts(t, testWords, order)
	if err := s.SaveCounts(ctx, model, counts); err != nil {
		t.Fatalf("setup: SaveCounts() failed: %v", err)
	}
	return ctx, s, model
}

// mustCounts trains a fresh table on the given newline separated words.
func mustCounts(tb testing.TB, words string, order int) *Counts {
	tb.Helper()
	lex, err := ReadLexicon(strings.NewReader(words))
	if err != nil {
		tb.Fatalf("ReadLexicon() failed: %v", err)
	}
	counts, err := NewCounts(order)
	if err != nil {
		tb.Fatalf("NewCounts() failed: %v", err)
	}
	counts.AddLexicon(lex)
	return counts
}

// setupTestStoreBench creates a database for benchmarking.
func setupTestStoreBench(b *testing.B) (*sql.DB, *Store) {
	dbFile := filepath.Join(b.TempDir(), "bench.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=OFF&_cache_size=-16000&_mmap_size=268435456")
	if err != nil {
		b.Fatalf("failed to open database: %v", err)
	}
	b.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		b.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		b.Fatalf("NewStore() error = %v", err)
	}
	b.Cleanup(func() { _ = s.Close() })

	return db, s
}

var (
	benchmarkLexicon Lexicon
	lexiconOnce      sync.Once
)

// createBenchmarkLexicon reads the system word list, falling back to a
// synthetic lexicon when it is not installed.
func createBenchmarkLexicon() Lexicon {
	lexiconOnce.Do(func() {
		lex, err := LoadLexicon(DefaultLexiconPath)
		if err != nil || len(lex) == 0 {
			var sb strings.Builder
			for i := 0; i < 200; i++ {
				sb.WriteString(testWords)
			}
			lex, _ = ReadLexicon(strings.NewReader(sb.String()))
		}
		benchmarkLexicon = lex
	})
	return benchmarkLexicon
}
