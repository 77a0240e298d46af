package jobs

import (
	"context"
	"sync"
	"time"

	"habits/internal/auth"
	"habits/internal/habit"
	"habits/internal/logger"
	"habits/internal/metrics"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// IdempotencyWindow suppresses a second reminder for the same habit when
// scanner runs overlap. It is best effort, not a lock.
const IdempotencyWindow = 90 * time.Second

// Notifier delivers a reminder and reports whether it was accepted.
type Notifier interface {
	Send(ctx context.Context, userID uint64, text string) bool
}

// Scanner sends reminders for due habits and advances their schedule. It does
// one pass per RunOnce; cadence belongs to the caller.
type Scanner struct {
	DB          *gorm.DB
	Notifier    Notifier
	Location    *time.Location
	Now         func() time.Time
	Concurrency int
	Log         *logger.Logger
	Metrics     *metrics.Metrics
}

type Result struct {
	Initialized int
	Due         int
	Notified    int
	Failed      int
	Skipped     int
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeSkipped
)

func (s *Scanner) RunOnce(ctx context.Context) (Result, error) {
	started := time.Now()
	res, err := s.run(ctx, s.now())
	s.Metrics.ObserveScan(metrics.ScanOutcome{
		Initialized: res.Initialized,
		Notified:    res.Notified,
		Failed:      res.Failed,
		Skipped:     res.Skipped,
		Err:         err,
		Took:        time.Since(started),
	})
	return res, err
}

func (s *Scanner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// scheduled selects private habits of regular accounts.
func (s *Scanner) scheduled(ctx context.Context) *gorm.DB {
	system := s.DB.Model(&auth.User{}).Select("id").Where("is_system = ?", true)
	return s.DB.WithContext(ctx).Model(&habit.Habit{}).
		Where("is_public = ?", false).
		Where("user_id NOT IN (?)", system)
}

func (s *Scanner) run(ctx context.Context, now time.Time) (Result, error) {
	var res Result

	var pending []habit.Habit
	if err := s.scheduled(ctx).Where("next_run_at IS NULL").Find(&pending).Error; err != nil {
		return res, err
	}
	for i := range pending {
		h := &pending[i]
		next := habit.NextRun(h.TimeOfDay, h.PeriodicityDays, now, s.Location).UTC()
		tx := s.DB.WithContext(ctx).Model(&habit.Habit{}).
			Where("id = ? AND next_run_at IS NULL", h.ID).
			Update("next_run_at", next)
		if tx.Error != nil {
			s.Log.Error("init next_run_at", "habit_id", h.ID, "error", tx.Error)
			continue
		}
		res.Initialized += int(tx.RowsAffected)
	}

	var due []habit.Habit
	if err := s.scheduled(ctx).Where("next_run_at <= ?", now.UTC()).Order("next_run_at asc").Find(&due).Error; err != nil {
		return res, err
	}
	res.Due = len(due)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	var mu sync.Mutex
	for i := range due {
		h := &due[i]
		g.Go(func() error {
			o := s.process(gctx, h, now)
			mu.Lock()
			defer mu.Unlock()
			switch o {
			case outcomeSent:
				res.Notified++
			case outcomeFailed:
				res.Failed++
			case outcomeSkipped:
				res.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	return res, nil
}

func (s *Scanner) concurrency() int {
	if s.Concurrency < 1 {
		return 1
	}
	return s.Concurrency
}

func (s *Scanner) process(ctx context.Context, h *habit.Habit, now time.Time) outcome {
	if h.LastNotifiedAt != nil && now.Sub(*h.LastNotifiedAt) < IdempotencyWindow {
		return outcomeSkipped
	}

	sent := s.Notifier.Send(ctx, h.UserID, h.ReminderText())

	// A failed delivery keeps the previous mark so retries are not tight.
	last := now.UTC()
	if !sent && h.LastNotifiedAt != nil {
		last = *h.LastNotifiedAt
	}
	// +1s moves a slot equal to now into the next period.
	next := habit.NextRun(h.TimeOfDay, h.PeriodicityDays, now.Add(time.Second), s.Location).UTC()

	if err := s.DB.WithContext(ctx).Model(&habit.Habit{}).Where("id = ?", h.ID).Updates(map[string]any{
		"last_notified_at": last,
		"next_run_at":      next,
	}).Error; err != nil {
		s.Log.Error("advance schedule", "habit_id", h.ID, "error", err)
	}

	if !sent {
		return outcomeFailed
	}
	return outcomeSent
}
