package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/securemed/mednotes/internal/platform/notification"
)

// Mailer delivers rendered reports. *notification.NotificationManager
// satisfies it.
type Mailer interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

// Runner generates and mails due scheduled reports on a fixed interval.
type Runner struct {
	store    *ScheduleStore
	gen      *Generator
	mailer   Mailer
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewRunner(store *ScheduleStore, gen *Generator, mailer Mailer, interval time.Duration, logger zerolog.Logger) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{
		store:    store,
		gen:      gen,
		mailer:   mailer,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start checks for due schedules every interval. It blocks until ctx is
// cancelled.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunDue(ctx)
		}
	}
}

// RunDue runs every due schedule once and returns how many ran.
func (r *Runner) RunDue(ctx context.Context) int {
	now := r.now()
	due := r.store.Due(now)
	for _, sch := range due {
		err := r.run(ctx, sch, now)
		r.store.MarkRun(sch.ID, now, err)
		if err != nil {
			r.logger.Error().Err(err).
				Str("schedule_id", sch.ID).
				Str("report_type", sch.Kind).
				Msg("scheduled report failed")
			continue
		}
		r.logger.Info().
			Str("schedule_id", sch.ID).
			Str("report_type", sch.Kind).
			Int("recipients", len(sch.Recipients)).
			Msg("scheduled report delivered")
	}
	return len(due)
}

func (r *Runner) run(ctx context.Context, sch Schedule, now time.Time) error {
	report, err := r.gen.ForSchedule(ctx, sch.Kind, now)
	if err != nil {
		return err
	}

	period := report.Period
	if period == "" {
		period = report.Date
	}
	data := map[string]string{
		"report_type": report.Type,
		"period":      period,
		"content":     Markdown(report),
	}

	var errs []error
	for _, to := range sch.Recipients {
		if _, err := r.mailer.SendFromTemplate(ctx, notification.TemplateScheduledReport, data, to); err != nil {
			errs = append(errs, fmt.Errorf("deliver to %s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}
