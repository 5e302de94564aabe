package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"github.com/Skotchmaster/shop_auth/pkg/metrics"
)

const (
	defaultSchedule = "@hourly"
	// unverified users are kept this long after their code expired
	unverifiedGrace = 24 * time.Hour
)

type Store interface {
	DeleteExpiredTokenPairs(ctx context.Context, now time.Time) (int64, error)
	DeleteStaleUnverified(ctx context.Context, cutoff time.Time) (int64, error)
}

// Stats is what one cleanup pass removed.
type Stats struct {
	TokenPairs      int64
	UnverifiedUsers int64
}

// Cleaner purges dead token pairs and abandoned registrations on a cron
// schedule.
type Cleaner struct {
	store    Store
	cron     *cron.Cron
	now      func() time.Time
	log      *slog.Logger
	schedule string
}

type Option func(*Cleaner)

func WithCron(c *cron.Cron) Option {
	return func(cl *Cleaner) {
		if c != nil {
			cl.cron = c
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(cl *Cleaner) {
		if now != nil {
			cl.now = now
		}
	}
}

func WithSchedule(spec string) Option {
	return func(cl *Cleaner) {
		if spec != "" {
			cl.schedule = spec
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Cleaner) {
		if l != nil {
			cl.log = l
		}
	}
}

func NewCleaner(store Store, opts ...Option) *Cleaner {
	cl := &Cleaner{
		store:    store,
		now:      time.Now,
		log:      slog.Default(),
		schedule: defaultSchedule,
	}
	for _, opt := range opts {
		opt(cl)
	}
	if cl.cron == nil {
		cl.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	cl.log = cl.log.With("component", "maintenance")
	return cl
}

func (c *Cleaner) Start() error {
	if _, err := c.cron.AddFunc(c.schedule, func() {
		if _, err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("cleanup_failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule cleanup %q: %w", c.schedule, err)
	}
	c.cron.Start()
	c.log.Info("cleanup_scheduled", "schedule", c.schedule)
	return nil
}

// Stop halts the scheduler; the returned context is done once a running
// pass has finished.
func (c *Cleaner) Stop() context.Context {
	return c.cron.Stop()
}

// RunOnce performs both purges. A failure of one does not skip the other.
func (c *Cleaner) RunOnce(ctx context.Context) (Stats, error) {
	now := c.now().UTC()
	var (
		stats Stats
		errs  error
	)

	n, err := c.store.DeleteExpiredTokenPairs(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else {
		stats.TokenPairs = n
		metrics.CleanupRemoved.WithLabelValues("token_pair").Add(float64(n))
	}

	n, err = c.store.DeleteStaleUnverified(ctx, now.Add(-unverifiedGrace))
	if err != nil {
		errs = multierr.Append(errs, err)
	} else {
		stats.UnverifiedUsers = n
		metrics.CleanupRemoved.WithLabelValues("unverified_user").Add(float64(n))
	}

	c.log.Info("cleanup_done",
		"token_pairs", stats.TokenPairs,
		"unverified_users", stats.UnverifiedUsers,
		"failed", errs != nil,
	)
	return stats, errs
}
