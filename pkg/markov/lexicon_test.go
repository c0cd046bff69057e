package markov

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestReadLexicon(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected Lexicon
	}{
		{
			name:     "Plain words",
			input:    "cat\ndog\n",
			expected: Lexicon{"^cat$", "^dog$"},
		},
		{
			name:     "Whitespace and case are normalized",
			input:    "  Cat \n\tDOG\r\n",
			expected: Lexicon{"^cat$", "^dog$"},
		},
		{
			name:     "Non letters are dropped",
			input:    "don't\ncafé\nabc123\nx-ray\nok\n",
			expected: Lexicon{"^ok$"},
		},
		{
			name:     "Empty lines are dropped",
			input:    "\n   \nzebra\n\n",
			expected: Lexicon{"^zebra$"},
		},
		{
			name:     "Order is preserved",
			input:    "b\na\nc",
			expected: Lexicon{"^b$", "^a$", "^c$"},
		},
		{
			name:     "Nothing survives",
			input:    "123\n$$$\n",
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lex, err := ReadLexicon(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("ReadLexicon() failed: %v", err)
			}
			if !reflect.DeepEqual(lex, tc.expected) {
				t.Errorf("expected %q, got %q", tc.expected, lex)
			}
		})
	}
}

func TestLexiconWordsAreMarkedLowercaseASCII(t *testing.T) {
	lex, err := ReadLexicon(strings.NewReader("Hello\nWORLD\nÜber\nnaïve\nplain\n"))
	if err != nil {
		t.Fatalf("ReadLexicon() failed: %v", err)
	}
	for _, word := range lex {
		if strings.Count(word, string(StartMarker)) != 1 || word[0] != StartMarker {
			t.Errorf("word %q must start with exactly one start marker", word)
		}
		if strings.Count(word, string(EndMarker)) != 1 || word[len(word)-1] != EndMarker {
			t.Errorf("word %q must end with exactly one end marker", word)
		}
		inner := word[1 : len(word)-1]
		if inner == "" {
			t.Errorf("word %q is empty", word)
		}
		for _, r := range inner {
			if r < 'a' || r > 'z' {
				t.Errorf("word %q contains %q", word, r)
			}
		}
	}
	if len(lex) != 3 {
		t.Errorf("expected 3 surviving words, got %d (%q)", len(lex), lex)
	}
}

func TestLoadLexicon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words")
	if err := os.WriteFile(path, []byte("alpha\nbeta\n"), 0644); err != nil {
		t.Fatal(err)
	}

	lex, err := LoadLexicon(path)
	if err != nil {
		t.Fatalf("LoadLexicon() failed: %v", err)
	}
	if !reflect.DeepEqual(lex, Lexicon{"^alpha$", "^beta$"}) {
		t.Errorf("got unexpected lexicon %q", lex)
	}

	_, err = LoadLexicon(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist for a missing lexicon, got %v", err)
	}
}
