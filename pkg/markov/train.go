package markov

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultOrder is the default gram length. Smaller values give more random
// looking words, larger values stay closer to the training vocabulary.
const DefaultOrder = 5

// StartGram is the synthetic source state whose successors are the opening
// grams of the training words.
const StartGram = ""

// ErrInvalidOrder is returned when a gram length below 1 is requested.
var ErrInvalidOrder = errors.New("markov: order must be at least 1")

// Link is a single observed transition and the number of times it was seen.
type Link struct {
	From      string
	To        string
	Frequency int
}

// Counts accumulates raw transition frequencies between grams of a fixed
// length. It is the trainable form of a model; Normalize turns it into the
// read-only Model used for generation.
//
// Counts is not safe for concurrent use.
type Counts struct {
	order int
	links map[string]map[string]int
}

// NewCounts returns an empty frequency table for grams of the given length.
func NewCounts(order int) (*Counts, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidOrder, order)
	}
	return &Counts{
		order: order,
		links: make(map[string]map[string]int),
	}, nil
}

// Order returns the gram length of the table.
func (c *Counts) Order() int {
	return c.order
}

// Add records n more observations of the transition from -> to.
func (c *Counts) Add(from, to string, n int) {
	next, ok := c.links[from]
	if !ok {
		next = make(map[string]int)
		c.links[from] = next
	}
	next[to] += n
}

// AddWord records the transitions of a single marked word ("^word$").
//
// A word at least order characters long contributes a start transition to
// its first gram. It then contributes one transition per window position
// i in [0, len-order-1]; the last window of the word, the one ending in the
// end marker, is never used as a source.
func (c *Counts) AddWord(word string) {
	n := c.order
	if len(word) >= n {
		c.Add(StartGram, word[:n], 1)
	}
	// The final window ends in '$', so a walk stops there and never needs
	// its successors.
	for i := 0; i < len(word)-n; i++ {
		c.Add(word[i:i+n], word[i+1:i+n+1], 1)
	}
}

// AddLexicon records every word of lex.
func (c *Counts) AddLexicon(lex Lexicon) {
	for _, word := range lex {
		c.AddWord(word)
	}
}

// Merge adds every link of other into c. Both tables must share an order.
func (c *Counts) Merge(other *Counts) error {
	if other.order != c.order {
		return fmt.Errorf("cannot merge order %d counts into order %d counts", other.order, c.order)
	}
	for from, next := range other.links {
		for to, freq := range next {
			c.Add(from, to, freq)
		}
	}
	return nil
}

// Prune removes every link seen minFreq times or fewer, and any source gram
// left without successors. It returns the number of links removed.
func (c *Counts) Prune(minFreq int) int {
	removed := 0
	for from, next := range c.links {
		for to, freq := range next {
			if freq <= minFreq {
				delete(next, to)
				removed++
			}
		}
		if len(next) == 0 {
			delete(c.links, from)
		}
	}
	return removed
}

// Len returns the number of distinct source grams.
func (c *Counts) Len() int {
	return len(c.links)
}

// Links returns every link sorted by source and then successor gram.
func (c *Counts) Links() []Link {
	links := make([]Link, 0, len(c.links))
	for from, next := range c.links {
		for to, freq := range next {
			links = append(links, Link{From: from, To: to, Frequency: freq})
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].From != links[j].From {
			return links[i].From < links[j].From
		}
		return links[i].To < links[j].To
	})
	return links
}

// Frequency returns how often from -> to was observed.
func (c *Counts) Frequency(from, to string) int {
	return c.links[from][to]
}

// Build trains a fresh table of the given order on lex and normalizes it.
func Build(lex Lexicon, order int) (*Model, error) {
	counts, err := NewCounts(order)
	if err != nil {
		return nil, err
	}
	counts.AddLexicon(lex)
	return counts.Normalize(), nil
}
