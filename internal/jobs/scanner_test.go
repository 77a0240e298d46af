package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"habits/internal/habit"
	"habits/internal/logger"
	"habits/internal/metrics"
	"habits/internal/testutil"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

type fakeNotifier struct {
	mu   sync.Mutex
	ok   bool
	sent []uint64
}

func (f *fakeNotifier) Send(_ context.Context, userID uint64, _ string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, userID)
	return f.ok
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newScanner(gdb *gorm.DB, n Notifier, c *clock) *Scanner {
	return &Scanner{
		DB:          gdb,
		Notifier:    n,
		Location:    time.UTC,
		Now:         c.now,
		Concurrency: 4,
		Log:         logger.Nop(),
	}
}

func seedHabit(t *testing.T, gdb *gorm.DB, h habit.Habit) habit.Habit {
	t.Helper()
	if h.Place == "" {
		h.Place = "Desk"
	}
	if h.Action == "" {
		h.Action = "Stretch"
	}
	if h.PeriodicityDays == 0 {
		h.PeriodicityDays = 1
	}
	if err := gdb.Create(&h).Error; err != nil {
		t.Fatalf("seed habit: %v", err)
	}
	return h
}

func reload(t *testing.T, gdb *gorm.DB, id uint64) habit.Habit {
	t.Helper()
	var h habit.Habit
	if err := gdb.Where("id = ?", id).First(&h).Error; err != nil {
		t.Fatalf("reload habit: %v", err)
	}
	return h
}

func TestRunOnceSendsOncePerSlot(t *testing.T) {
	gdb := testutil.DB(t)
	u := testutil.SeedUser(t, gdb, "a@example.com")
	c := &clock{t: time.Date(2025, 5, 1, 9, 15, 0, 0, time.UTC)}
	n := &fakeNotifier{ok: true}
	s := newScanner(gdb, n, c)

	h := seedHabit(t, gdb, habit.Habit{UserID: u.ID, TimeOfDay: habit.NewTimeOfDay(9, 15, 0)})

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if res.Initialized != 1 || res.Notified != 1 || n.count() != 1 {
		t.Fatalf("unexpected first run: %+v sent=%d", res, n.count())
	}

	got := reload(t, gdb, h.ID)
	if want := c.t.AddDate(0, 0, 1); got.NextRunAt == nil || !got.NextRunAt.Equal(want) {
		t.Fatalf("next_run_at: got %v want %v", got.NextRunAt, want)
	}
	if got.LastNotifiedAt == nil || !got.LastNotifiedAt.Equal(c.t) {
		t.Fatalf("last_notified_at: got %v want %v", got.LastNotifiedAt, c.t)
	}

	c.t = c.t.Add(30 * time.Second)
	res, err = s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Notified != 0 || n.count() != 1 {
		t.Fatalf("second run sent again: %+v sent=%d", res, n.count())
	}
}

func TestRunOnceFutureSlotWaits(t *testing.T) {
	gdb := testutil.DB(t)
	u := testutil.SeedUser(t, gdb, "a@example.com")
	c := &clock{t: time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)}
	n := &fakeNotifier{ok: true}
	s := newScanner(gdb, n, c)

	h := seedHabit(t, gdb, habit.Habit{UserID: u.ID, TimeOfDay: habit.NewTimeOfDay(11, 30, 0), PeriodicityDays: 3})

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n.count() != 0 {
		t.Fatalf("sent before the slot")
	}
	got := reload(t, gdb, h.ID)
	if want := time.Date(2025, 5, 1, 11, 30, 0, 0, time.UTC); got.NextRunAt == nil || !got.NextRunAt.Equal(want) {
		t.Fatalf("next_run_at: got %v want %v", got.NextRunAt, want)
	}

	c.t = time.Date(2025, 5, 1, 11, 31, 0, 0, time.UTC)
	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run at slot: %v", err)
	}
	if n.count() != 1 {
		t.Fatalf("expected one reminder, got %d", n.count())
	}
	got = reload(t, gdb, h.ID)
	if want := time.Date(2025, 5, 4, 11, 30, 0, 0, time.UTC); !got.NextRunAt.Equal(want) {
		t.Fatalf("next_run_at: got %v want %v", got.NextRunAt, want)
	}
}

func TestRunOnceFailedDeliveryStillAdvances(t *testing.T) {
	gdb := testutil.DB(t)
	u := testutil.SeedUser(t, gdb, "a@example.com")
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	c := &clock{t: now}
	n := &fakeNotifier{ok: false}
	s := newScanner(gdb, n, c)

	earlier := now.Add(-48 * time.Hour)
	due := now.Add(-time.Minute)
	h := seedHabit(t, gdb, habit.Habit{
		UserID:         u.ID,
		TimeOfDay:      habit.NewTimeOfDay(8, 59, 0),
		NextRunAt:      &due,
		LastNotifiedAt: &earlier,
	})
	fresh := seedHabit(t, gdb, habit.Habit{UserID: u.ID, Action: "Walk", TimeOfDay: habit.NewTimeOfDay(8, 59, 0), NextRunAt: &due})

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Failed != 2 || res.Notified != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	got := reload(t, gdb, h.ID)
	if got.LastNotifiedAt == nil || !got.LastNotifiedAt.Equal(earlier) {
		t.Fatalf("failed delivery must keep last_notified_at: got %v", got.LastNotifiedAt)
	}
	if want := time.Date(2025, 5, 2, 8, 59, 0, 0, time.UTC); !got.NextRunAt.Equal(want) {
		t.Fatalf("next_run_at: got %v want %v", got.NextRunAt, want)
	}

	got = reload(t, gdb, fresh.ID)
	if got.LastNotifiedAt == nil || !got.LastNotifiedAt.Equal(now) {
		t.Fatalf("unset last_notified_at becomes now: got %v", got.LastNotifiedAt)
	}
}

func TestRunOnceSkipsRecentlyNotified(t *testing.T) {
	gdb := testutil.DB(t)
	u := testutil.SeedUser(t, gdb, "a@example.com")
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	n := &fakeNotifier{ok: true}
	s := newScanner(gdb, n, &clock{t: now})

	due := now.Add(-time.Second)
	recent := now.Add(-time.Minute)
	h := seedHabit(t, gdb, habit.Habit{UserID: u.ID, TimeOfDay: habit.NewTimeOfDay(8, 59, 59), NextRunAt: &due, LastNotifiedAt: &recent})

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Skipped != 1 || n.count() != 0 {
		t.Fatalf("expected skip: %+v sent=%d", res, n.count())
	}
	if got := reload(t, gdb, h.ID); !got.NextRunAt.Equal(due) {
		t.Fatalf("skipped habit must be left alone, next_run_at=%v", got.NextRunAt)
	}
}

func TestRunOnceIgnoresTemplates(t *testing.T) {
	gdb := testutil.DB(t)
	sys := testutil.SeedSystemUser(t, gdb, "templates@example.com")
	u := testutil.SeedUser(t, gdb, "a@example.com")
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	n := &fakeNotifier{ok: true}
	m := metrics.New()
	s := newScanner(gdb, n, &clock{t: now})
	s.Metrics = m

	tod := habit.NewTimeOfDay(9, 0, 0)
	tpl := seedHabit(t, gdb, habit.Habit{UserID: sys.ID, TimeOfDay: tod, IsPublic: true})
	sysPrivate := seedHabit(t, gdb, habit.Habit{UserID: sys.ID, Action: "Hidden", TimeOfDay: tod})
	public := seedHabit(t, gdb, habit.Habit{UserID: u.ID, Action: "Shared", TimeOfDay: tod, IsPublic: true})

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Initialized != 0 || res.Due != 0 || n.count() != 0 {
		t.Fatalf("templates must not be scheduled: %+v", res)
	}
	for _, id := range []uint64{tpl.ID, sysPrivate.ID, public.ID} {
		if got := reload(t, gdb, id); got.NextRunAt != nil {
			t.Fatalf("habit %d got next_run_at %v", id, got.NextRunAt)
		}
	}
	if v := promtest.ToFloat64(m.ScanRuns); v != 1 {
		t.Fatalf("scan runs: got %v want 1", v)
	}
}

func TestRunOnceSendsAtWindowBoundary(t *testing.T) {
	gdb := testutil.DB(t)
	u := testutil.SeedUser(t, gdb, "a@example.com")
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	n := &fakeNotifier{ok: true}
	s := newScanner(gdb, n, &clock{t: now})

	due := now.Add(-time.Second)
	last := now.Add(-IdempotencyWindow)
	seedHabit(t, gdb, habit.Habit{UserID: u.ID, TimeOfDay: habit.NewTimeOfDay(8, 59, 59), NextRunAt: &due, LastNotifiedAt: &last})

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Notified != 1 || res.Skipped != 0 || n.count() != 1 {
		t.Fatalf("expected a send once the window has elapsed: %+v sent=%d", res, n.count())
	}
}
