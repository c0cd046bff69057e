package markov

import (
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
)

// ErrEmptyModel is returned when generation is attempted with a model that
// has no start state, e.g. one trained on an empty lexicon.
var ErrEmptyModel = errors.New("markov: model has no start state")

// fallbackAlphabet is drawn from uniformly when the current gram was never
// seen as a source. It includes the end marker so the walk can always stop.
const fallbackAlphabet = Alphabet + string(EndMarker)

// generateOptions Is used by NewGenerator to configure default options.
type generateOptions struct {
	rng           *rand.Rand
	continuation  float64
	compoundLimit int
	maxSteps      int
	logger        *slog.Logger
}

// GenerateOption is a function that configures a Generator.
type GenerateOption func(*generateOptions)

// WithSeed makes the generator reproducible: two generators with the same
// model and seed produce the same sequence of words.
func WithSeed(seed uint64) GenerateOption {
	return func(o *generateOptions) { o.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithContinuation sets the threshold a uniform draw must exceed for a
// finished segment to be followed by another one.
// Default: 0.7. A value of 1 or more disables compound words.
func WithContinuation(threshold float64) GenerateOption {
	return func(o *generateOptions) { o.continuation = threshold }
}

// WithCompoundLimit sets the length, markers included, below which a
// finished segment may be followed by another one.
// Default: 8.
func WithCompoundLimit(length int) GenerateOption {
	return func(o *generateOptions) { o.compoundLimit = length }
}

// WithMaxSteps caps the number of characters appended in a single walk.
// Once reached the word is finished as if the end marker had been drawn.
// Default: 512. A value of 0 or less removes the cap.
func WithMaxSteps(steps int) GenerateOption {
	return func(o *generateOptions) { o.maxSteps = steps }
}

// WithLogger sets the logger used for debug output. By default, all logs are
// discarded.
func WithLogger(logger *slog.Logger) GenerateOption {
	return func(o *generateOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Generator produces words by walking a Model. Each call to Word is an
// independent walk from the start state.
//
// A Generator owns its random source and is not safe for concurrent use;
// create one Generator per goroutine over a shared Model instead.
type Generator struct {
	model         *Model
	rng           *rand.Rand
	continuation  float64
	compoundLimit int
	maxSteps      int
	logger        *slog.Logger
}

// NewGenerator returns a Generator over model. It fails with ErrEmptyModel
// if the model cannot produce an opening gram.
func NewGenerator(model *Model, opts ...GenerateOption) (*Generator, error) {
	if model == nil || model.Empty() {
		return nil, ErrEmptyModel
	}

	options := &generateOptions{
		continuation:  0.7,
		compoundLimit: 8,
		maxSteps:      512,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.rng == nil {
		options.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Generator{
		model:         model,
		rng:           options.rng,
		continuation:  options.continuation,
		compoundLimit: options.compoundLimit,
		maxSteps:      options.maxSteps,
		logger:        options.logger,
	}, nil
}

// Model returns the model the generator walks.
func (g *Generator) Model() *Model {
	return g.model
}

// Word generates a single lowercase word with the boundary markers removed.
// The result may be empty if the model only knows very short words.
func (g *Generator) Word() string {
	start, _ := g.model.Start()
	n := g.model.order

	var sb strings.Builder
	sb.WriteString(Sample(start, g.rng))
	word := sb.String()

	steps := 0
	for !endsWithMarker(word) {
		if g.maxSteps > 0 && steps >= g.maxSteps {
			g.logger.Debug("Generation cut at step limit",
				slog.Int("max_steps", g.maxSteps),
				slog.Int("length", len(word)),
			)
			break
		}
		steps++

		gram := word
		if len(gram) > n {
			gram = gram[len(gram)-n:]
		}

		if pmf, ok := g.model.Lookup(gram); ok {
			next := Sample(pmf, g.rng)
			sb.WriteString(next[len(next)-1:])
		} else {
			sb.WriteByte(fallbackAlphabet[g.rng.IntN(len(fallbackAlphabet))])
		}
		word = sb.String()

		if endsWithMarker(word) && g.rng.Float64() > g.continuation && len(word) < g.compoundLimit {
			sb.WriteString(Sample(start, g.rng))
			word = sb.String()
		}
	}

	return stripMarkers(word)
}

// Words generates count words.
func (g *Generator) Words(count int) []string {
	words := make([]string, 0, count)
	for i := 0; i < count; i++ {
		words = append(words, g.Word())
	}
	return words
}

// Sample draws an outcome from pmf. It walks the outcomes in order,
// accumulating their probabilities, and returns the first whose running
// total reaches a uniform draw in [0, 1). If rounding leaves the draw above
// the final total, a uniformly chosen outcome is returned instead. An empty
// pmf yields the empty string.
func Sample(pmf PMF, rng *rand.Rand) string {
	if len(pmf) == 0 {
		return ""
	}
	draw := rng.Float64()
	cdf := 0.0
	for _, outcome := range pmf {
		cdf += outcome.Prob
		if cdf >= draw {
			return outcome.Gram
		}
	}
	return pmf[rng.IntN(len(pmf))].Gram
}

func endsWithMarker(word string) bool {
	return len(word) > 0 && word[len(word)-1] == EndMarker
}

func stripMarkers(word string) string {
	return strings.Map(func(r rune) rune {
		if r == StartMarker || r == EndMarker {
			return -1
		}
		return r
	}, word)
}
