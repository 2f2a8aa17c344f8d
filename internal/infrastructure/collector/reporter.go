package collector

import (
	"context"
	"sync"
	"time"

	"github.com/IgorGrieder/linkstats/internal/infrastructure/logger"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

const (
	StackBackend = "backend"

	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

type sender interface {
	Send(ctx context.Context, entry Entry) (string, error)
}

// Reporter ships service events to the collector in the background.
// A nil *Reporter drops every event.
type Reporter struct {
	sender  sender
	stack   string
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewReporter(s sender, stack string, timeout time.Duration) *Reporter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Reporter{sender: s, stack: stack, timeout: timeout}
}

func (r *Reporter) Report(level, pkg, message string) {
	if r == nil || r.sender == nil {
		return
	}

	entry := Entry{Stack: r.stack, Level: level, Package: pkg, Message: message}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if _, err := r.sender.Send(ctx, entry); err != nil {
			metrics.CollectorSends.WithLabelValues(metrics.OutcomeError).Inc()
			logger.Debug("collector event dropped", zap.Error(err), zap.String("package", pkg))
			return
		}
		metrics.CollectorSends.WithLabelValues(metrics.OutcomeOK).Inc()
	}()
}

// Wait blocks until in-flight events finish or ctx is done.
func (r *Reporter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
