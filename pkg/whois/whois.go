// Package whois checks whether a domain name is registered by running the
// system whois client and looking for its "no match" marker.
package whois

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Status is the outcome of an availability check.
type Status int

const (
	// Unknown means the lookup did not finish in time and was killed.
	Unknown Status = iota
	// Available means the registry reported no match for the domain.
	Available
	// Unavailable means the lookup finished without the no-match marker.
	Unavailable
)

func (s Status) String() string {
	switch s {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

const (
	// DefaultCommand is the lookup client that is run.
	DefaultCommand = "whois"
	// DefaultMarker is the text the registry prints for an unregistered name.
	DefaultMarker = "No match for"
	// DefaultTimeout bounds a single lookup.
	DefaultTimeout = 4 * time.Second
)

// ErrEmptyDomain is returned when Check is called without a domain.
var ErrEmptyDomain = errors.New("whois: empty domain")

// Checker runs an external lookup command per domain.
type Checker struct {
	command string
	args    []string
	marker  string
	timeout time.Duration
	logger  *slog.Logger
}

// Option Is a function that configures a Checker.
type Option func(*Checker)

// WithCommand sets the lookup command and any arguments placed before the
// domain.
// Default: "whois"
func WithCommand(command string, args ...string) Option {
	return func(c *Checker) {
		c.command = command
		c.args = args
	}
}

// WithMarker sets the text whose presence in the command output means the
// domain is available.
// Default: "No match for"
func WithMarker(marker string) Option {
	return func(c *Checker) {
		c.marker = marker
	}
}

// WithTimeout sets how long a lookup may run before it is killed. A value of
// 0 or less disables the deadline, leaving only ctx to stop the lookup.
// Default: 4s
func WithTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		c.timeout = timeout
	}
}

// WithLogger sets the logger for the Checker. By default, all logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChecker creates a Checker with default settings, which can be
// overridden by providing one or more Option functions.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		command: DefaultCommand,
		marker:  DefaultMarker,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check runs the lookup for domain. A lookup that finishes in time is
// Available when its output contains the marker and Unavailable otherwise;
// the exit status is ignored because clients disagree on it for unknown
// names. A lookup that runs past the timeout is killed and reported as
// Unknown. An error is returned only if the command could not be run, or if
// ctx itself was cancelled.
func (c *Checker) Check(ctx context.Context, domain string) (Status, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return Unknown, ErrEmptyDomain
	}

	lookupCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), c.args...), domain)
	cmd := exec.CommandContext(lookupCtx, c.command, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	// Kill sends SIGKILL; do not wait for pipes held open by grandchildren.
	cmd.WaitDelay = 100 * time.Millisecond

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Unknown, ctxErr
		}
		if errors.Is(lookupCtx.Err(), context.DeadlineExceeded) {
			c.logger.DebugContext(ctx, "Lookup timed out",
				slog.String("domain", domain),
				slog.Duration("timeout", c.timeout),
			)
			return Unknown, nil
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Unknown, fmt.Errorf("could not run %s for %s: %w", c.command, domain, err)
		}
	}

	status := Unavailable
	if strings.Contains(stdout.String(), c.marker) {
		status = Available
	}
	c.logger.DebugContext(ctx, "Lookup finished",
		slog.String("domain", domain),
		slog.String("status", status.String()),
		slog.Duration("elapsed", elapsed),
	)
	return status, nil
}
