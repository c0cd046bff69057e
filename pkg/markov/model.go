package markov

import (
	"sort"
)

// Outcome is one entry of a probability mass function: a successor gram and
// the probability of moving to it.
type Outcome struct {
	Gram string
	Prob float64
}

// PMF is the successor distribution of a single source gram. Outcomes are
// sorted by gram so that a seeded random source always walks them in the
// same order.
type PMF []Outcome

// Model is a normalized transition table. It is built once and never
// modified, so a single Model can be shared by any number of Generators.
type Model struct {
	order       int
	transitions map[string]PMF
}

// Normalize converts the raw counts into a Model whose successor
// probabilities sum to 1 for every source gram. The counts are not modified.
func (c *Counts) Normalize() *Model {
	transitions := make(map[string]PMF, len(c.links))
	for from, next := range c.links {
		total := 0
		for _, freq := range next {
			total += freq
		}
		if total <= 0 {
			continue
		}

		pmf := make(PMF, 0, len(next))
		for to, freq := range next {
			pmf = append(pmf, Outcome{Gram: to, Prob: float64(freq) / float64(total)})
		}
		sort.Slice(pmf, func(i, j int) bool {
			return pmf[i].Gram < pmf[j].Gram
		})
		transitions[from] = pmf
	}
	return &Model{
		order:       c.order,
		transitions: transitions,
	}
}

// Order returns the gram length the model was trained with.
func (m *Model) Order() int {
	return m.order
}

// Lookup returns the successor distribution of gram, if it was observed as a
// source during training.
func (m *Model) Lookup(gram string) (PMF, bool) {
	pmf, ok := m.transitions[gram]
	return pmf, ok
}

// Start returns the distribution of opening grams.
func (m *Model) Start() (PMF, bool) {
	return m.Lookup(StartGram)
}

// Len returns the number of source grams in the table, the start state
// included.
func (m *Model) Len() int {
	return len(m.transitions)
}

// Empty reports whether the model has no start state and therefore cannot
// generate anything.
func (m *Model) Empty() bool {
	pmf, ok := m.Start()
	return !ok || len(pmf) == 0
}

// Grams returns every source gram in sorted order.
func (m *Model) Grams() []string {
	grams := make([]string, 0, len(m.transitions))
	for gram := range m.transitions {
		grams = append(grams, gram)
	}
	sort.Strings(grams)
	return grams
}
