package redis

import (
	"context"
	"time"

	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
)

// EnrichmentLocker adapts the lock factory to the pipeline's try-lock
// contract: one mutex per substance key so two processes never enrich the
// same substance at the same time.
type EnrichmentLocker struct {
	factory LockFactory
	ttl     time.Duration
	logger  logging.Logger
}

// NewEnrichmentLocker constructs an EnrichmentLocker.  The TTL bounds how
// long a crashed process can hold a substance; the watchdog keeps the lock
// alive for healthy holders that outlive it.
func NewEnrichmentLocker(factory LockFactory, ttl time.Duration, log logging.Logger) *EnrichmentLocker {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &EnrichmentLocker{factory: factory, ttl: ttl, logger: log.Named("enrichment_locker")}
}

// TryLock attempts the substance mutex without blocking.  The returned
// release func is non-nil only when the lock was acquired.
func (l *EnrichmentLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	mutex := l.factory.NewMutex("enrich:"+key,
		WithLockTTL(l.ttl),
		WithWatchdog(true))

	acquired, err := mutex.TryLock(ctx)
	if err != nil || !acquired {
		return nil, false, err
	}

	release := func() {
		// Unlock under a fresh context: the processing context may already
		// be cancelled by the time the holder releases.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mutex.Unlock(unlockCtx); err != nil {
			l.logger.Warn("failed to release enrichment lock",
				logging.String("substance_key", key), logging.Err(err))
		}
	}
	return release, true, nil
}
