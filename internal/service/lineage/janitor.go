package lineage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJanitorSchedule runs the janitor every ten minutes.
const DefaultJanitorSchedule = "*/10 * * * *"

// ExpiredPurger removes expired cache entries.
type ExpiredPurger interface {
	PurgeExpired() int
}

// EventPurger removes recorded lineage events older than a cutoff.
type EventPurger interface {
	PurgeOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// Janitor periodically purges expired cache entries and, when a retention
// is configured, recorded lineage events older than the retention window.
type Janitor struct {
	cron      *cron.Cron
	schedule  string
	cache     ExpiredPurger
	events    EventPurger
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewJanitor creates a Janitor. events may be nil and a non-positive
// retentionDays disables event purging.
func NewJanitor(schedule string, c ExpiredPurger, events EventPurger, retentionDays int, logger *slog.Logger) *Janitor {
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{
		cron:     cron.New(),
		schedule: schedule,
		cache:    c,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
	if retentionDays > 0 {
		j.retention = time.Duration(retentionDays) * 24 * time.Hour
	}
	return j
}

// Start registers the purge job and starts the cron scheduler.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		if _, _, err := j.RunOnce(context.Background()); err != nil {
			j.logger.Warn("lineage janitor run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.schedule, err)
	}
	j.cron.Start()
	j.logger.Info("lineage janitor started", "schedule", j.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running purge to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("lineage janitor stopped")
}

// RunOnce performs one purge pass and returns the number of cache entries
// and events removed.
func (j *Janitor) RunOnce(ctx context.Context) (int, int64, error) {
	purged := j.cache.PurgeExpired()

	var deleted int64
	if j.events != nil && j.retention > 0 {
		var err error
		deleted, err = j.events.PurgeOlderThan(ctx, j.now().Add(-j.retention))
		if err != nil {
			return purged, 0, fmt.Errorf("purge lineage events: %w", err)
		}
	}

	if purged > 0 || deleted > 0 {
		j.logger.Info("lineage janitor purged", "cache_entries", purged, "events", deleted)
	}
	return purged, deleted, nil
}
