// Package progress reports deploy stages to the user.
package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Reporter writes human-readable stage lines and notices.
type Reporter struct {
	mu     sync.Mutex
	out    io.Writer
	logger *slog.Logger
}

// New creates a Reporter writing to out.
func New(out io.Writer, logger *slog.Logger) *Reporter {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{out: out, logger: logger}
}

// Info prints a plain notice.
func (r *Reporter) Info(format string, args ...any) {
	r.printf("%s\n", fmt.Sprintf(format, args...))
}

// Warn prints a warning notice.
func (r *Reporter) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Warn(msg)
	r.printf("warning: %s\n", msg)
}

// Success prints a completion notice.
func (r *Reporter) Success(format string, args ...any) {
	r.printf("success: %s\n", fmt.Sprintf(format, args...))
}

func (r *Reporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// Run executes fn as a labelled stage, printing its outcome and logging its
// duration.
func Run[T any](ctx context.Context, r *Reporter, label string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	r.printf("... %s\n", label)

	v, err := fn(ctx)

	elapsed := time.Since(start)
	if err != nil {
		r.printf("failed: %s\n", label)
		r.logger.Debug("stage failed", "stage", label, "duration", elapsed, "error", err)
		return v, err
	}
	r.printf("done: %s\n", label)
	r.logger.Debug("stage finished", "stage", label, "duration", elapsed)
	return v, nil
}

// Step is Run for stages without a result.
func Step(ctx context.Context, r *Reporter, label string, fn func(context.Context) error) error {
	_, err := Run(ctx, r, label, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
