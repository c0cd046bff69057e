// Package finder turns generated words into candidate domain names and
// reports the ones that are available for registration.
package finder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.uber.org/multierr"

	"github.com/CTAG07/domainfinder/pkg/whois"
)

// WordSource produces candidate words. *markov.Generator satisfies it.
type WordSource interface {
	Word() string
}

// Checker reports whether a domain can be registered. *whois.Checker
// satisfies it.
type Checker interface {
	Check(ctx context.Context, domain string) (whois.Status, error)
}

// Config controls how candidates are picked and checked.
type Config struct {
	Rounds      int    // Words generated per candidate; the shortest wins.
	TLD         string // Suffix appended to each candidate, e.g. ".com".
	MaxFailures int    // Consecutive checker errors tolerated before Run gives up. 0 means no limit.
}

// DefaultConfig returns the shortest of three words, checked as a .com domain,
// giving up after ten consecutive checker errors.
func DefaultConfig() Config {
	return Config{
		Rounds:      3,
		TLD:         ".com",
		MaxFailures: 10,
	}
}

var (
	// ErrTooManyFailures is returned by Run when the checker keeps failing.
	ErrTooManyFailures = errors.New("finder: too many consecutive check failures")
	// ErrEmptyCandidate is counted as a failure when a round yields no word.
	ErrEmptyCandidate = errors.New("finder: generated an empty candidate")
)

// Finder pairs a word source with an availability checker.
type Finder struct {
	words   WordSource
	checker Checker
	config  Config
	logger  *slog.Logger
}

// New creates a Finder. A non-positive Rounds is treated as 1.
func New(words WordSource, checker Checker, config Config) *Finder {
	if config.Rounds < 1 {
		config.Rounds = 1
	}
	return &Finder{
		words:   words,
		checker: checker,
		config:  config,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Finder. By default, all logs are discarded.
func (f *Finder) SetLogger(logger *slog.Logger) {
	if logger != nil {
		f.logger = logger
	}
}

// Shortest returns the shortest of words, preferring the earliest on ties.
// It returns the empty string for an empty slice.
func Shortest(words []string) string {
	if len(words) == 0 {
		return ""
	}
	best := words[0]
	for _, word := range words[1:] {
		if len(word) < len(best) {
			best = word
		}
	}
	return best
}

// Candidate generates Rounds words and returns the shortest.
func (f *Finder) Candidate() string {
	words := make([]string, f.config.Rounds)
	for i := range words {
		words[i] = f.words.Word()
	}
	return Shortest(words)
}

// Domain returns the candidate word with the configured TLD appended.
func (f *Finder) Domain(word string) string {
	tld := f.config.TLD
	if tld != "" && !strings.HasPrefix(tld, ".") {
		tld = "." + tld
	}
	return word + tld
}

// Run checks candidates until ctx is done, calling report for every domain
// found to be available. It returns nil when ctx is cancelled, the error
// returned by report if any, or ErrTooManyFailures wrapping the collected
// errors once MaxFailures consecutive rounds have failed. A round fails when
// the checker returns an error or when the candidate is empty.
func (f *Finder) Run(ctx context.Context, report func(domain string) error) error {
	var failures error
	consecutive := 0
	checked := 0

	fail := func(domain string, err error) error {
		consecutive++
		failures = multierr.Append(failures, err)
		f.logger.WarnContext(ctx, "Round failed",
			slog.String("domain", domain),
			slog.Int("consecutive_failures", consecutive),
			slog.Any("error", err),
		)
		if f.config.MaxFailures > 0 && consecutive >= f.config.MaxFailures {
			return fmt.Errorf("%w: %w", ErrTooManyFailures, failures)
		}
		return nil
	}

	for ctx.Err() == nil {
		word := f.Candidate()
		if word == "" {
			if err := fail("", ErrEmptyCandidate); err != nil {
				return err
			}
			continue
		}
		domain := f.Domain(word)

		status, err := f.checker.Check(ctx, domain)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if err = fail(domain, err); err != nil {
				return err
			}
			continue
		}
		consecutive = 0
		failures = nil
		checked++

		switch status {
		case whois.Available:
			f.logger.InfoContext(ctx, "Domain available",
				slog.String("domain", domain),
				slog.Int("checked", checked),
			)
			if err = report(domain); err != nil {
				return err
			}
		case whois.Unknown:
			f.logger.DebugContext(ctx, "Availability unknown", slog.String("domain", domain))
		default:
			f.logger.DebugContext(ctx, "Domain taken", slog.String("domain", domain))
		}
	}
	return nil
}
