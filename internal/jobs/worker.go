package jobs

import (
	"context"
	"time"

	"habits/internal/logger"
)

// Worker invokes the scanner on a fixed interval until ctx is cancelled.
type Worker struct {
	ID       string
	Scanner  *Scanner
	Interval time.Duration
	Log      *logger.Logger
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	res, err := w.Scanner.RunOnce(ctx)
	if err != nil {
		w.Log.Error("scan failed", "worker", w.ID, "error", err)
		return
	}
	if res.Due > 0 || res.Initialized > 0 {
		w.Log.Info("scan done",
			"worker", w.ID,
			"initialized", res.Initialized,
			"due", res.Due,
			"notified", res.Notified,
			"failed", res.Failed,
			"skipped", res.Skipped,
		)
	}
}
