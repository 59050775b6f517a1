package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/guayoyo/loyalty-service/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// Waiter blocks until outstanding background writes settle.
type Waiter interface {
	Wait()
}

// DrainPendingWrites waits for in-flight durable writes until ctx ends.
// It reports whether everything settled in time.
func DrainPendingWrites(ctx context.Context, w Waiter, logger *zap.Logger) bool {
	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("pending writes drained")
		return true
	case <-ctx.Done():
		logger.Warn("gave up waiting for pending writes", zap.Error(ctx.Err()))
		return false
	}
}

// Sweeper evicts expired sessions.
type Sweeper interface {
	Sweep() int
}

// StartSessionSweeper runs Sweep every interval until ctx ends.
func StartSessionSweeper(ctx context.Context, s Sweeper, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Debug("session sweeper stopped")
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}
