package markov

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// StartMarker is prepended to every lexicon word before training.
	StartMarker = '^'
	// EndMarker is appended to every lexicon word before training. A generated
	// sequence is complete once it ends with this marker.
	EndMarker = '$'
	// Alphabet is the set of characters a lexicon word may contain.
	Alphabet = "abcdefghijklmnopqrstuvwxyz"
	// DefaultLexiconPath is the conventional system word list.
	DefaultLexiconPath = "/usr/share/dict/words"
)

// Lexicon is an ordered list of training words, each already wrapped in the
// start and end markers (e.g. "^cat$").
type Lexicon []string

// LoadLexicon opens the word list at path and reads it with ReadLexicon.
// A missing or unreadable file is returned as an error; callers should treat
// it as fatal rather than continue with an empty model.
func LoadLexicon(path string) (Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open lexicon: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	lex, err := ReadLexicon(f)
	if err != nil {
		return nil, fmt.Errorf("could not read lexicon %s: %w", path, err)
	}
	return lex, nil
}

// ReadLexicon reads one word per line from r. Each line is trimmed and
// lowercased; lines that end up empty or contain anything other than the
// 26 ASCII letters are dropped. Surviving words are wrapped in StartMarker
// and EndMarker, in input order.
func ReadLexicon(r io.Reader) (Lexicon, error) {
	var lex Lexicon
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word, ok := normalizeWord(scanner.Text())
		if !ok {
			continue
		}
		lex = append(lex, string(StartMarker)+word+string(EndMarker))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lex, nil
}

// normalizeWord returns the trimmed, lowercased form of line and whether it
// qualifies as a lexicon word.
func normalizeWord(line string) (string, bool) {
	word := strings.ToLower(strings.TrimSpace(line))
	if word == "" {
		return "", false
	}
	for i := 0; i < len(word); i++ {
		if word[i] < 'a' || word[i] > 'z' {
			return "", false
		}
	}
	return word, true
}
