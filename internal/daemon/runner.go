package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/microchat/internal/chatsync"
)

// sessionRunner brings one client session up: seed the previews, reopen the
// persisted route, then follow the event stream until ctx ends.
type sessionRunner struct {
	engine   *chatsync.Engine
	nav      *chatsync.Navigator
	consumer *chatsync.Consumer
	policy   chatsync.RetryPolicy
	logger   *zap.Logger
}

func (r *sessionRunner) run(ctx context.Context) {
	if !r.bootstrap(ctx) {
		return
	}
	if ts, err := r.nav.Restore(ctx); err != nil {
		r.logger.Warn("route restore incomplete", zap.Error(err))
	} else if len(ts) > 0 {
		r.logger.Info("route restored", zap.String("fragment", r.nav.Fragment()))
	}
	if err := r.consumer.Run(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("event stream stopped", zap.Error(err))
	}
}

// bootstrap retries until the overview loads. Reports false if ctx ended first.
func (r *sessionRunner) bootstrap(ctx context.Context) bool {
	for attempt := 0; ; attempt++ {
		err := r.engine.Bootstrap(ctx)
		if err == nil {
			self := r.engine.Self()
			r.logger.Info("session bootstrapped",
				zap.Int64("self", self.ID),
				zap.Int("previews", r.engine.Ledger().Len()))
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		delay := r.policy.Next(attempt)
		r.logger.Warn("bootstrap failed", zap.Error(err), zap.Duration("retry_in", delay))
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}
