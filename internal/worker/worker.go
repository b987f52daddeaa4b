// Package worker rebuilds the cached monthly statistics when attendance records change.
package worker

import (
	"context"
	"log"
	"time"

	"attendtrack/internal/metrics"
	"attendtrack/internal/queue"
	"attendtrack/internal/stats"
)

// Refresher recomputes the monthly snapshot. *stats.Service implements it.
type Refresher interface {
	RefreshMonth(ctx context.Context) (stats.Snapshot, error)
}

// Worker coalesces record events arriving within Debounce into one refresh.
type Worker struct {
	Queue    queue.Queue
	Stats    Refresher
	Debounce time.Duration
	Logger   *log.Logger
}

func relevant(kind string) bool {
	switch kind {
	case queue.RecordCreated, queue.RecordUpdated, queue.RecordDeleted:
		return true
	}
	return false
}

// Run consumes until ctx is done or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = log.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	messages, err := w.Queue.Consume(ctx)
	if err != nil {
		return err
	}

	var (
		pending []queue.Message
		timer   *time.Timer
		fire    <-chan time.Time
	)
	flush := func() {
		fire = nil
		if len(pending) == 0 {
			return
		}
		outcome := "refreshed"
		snap, err := w.Stats.RefreshMonth(ctx)
		if err != nil {
			outcome = "failed"
			logger.Printf("worker: monthly refresh after %d event(s) failed: %v", len(pending), err)
		} else {
			logger.Printf("worker: monthly snapshot rebuilt from %d event(s), %d records", len(pending), snap.Result.Total)
		}
		for _, m := range pending {
			metrics.QueueProcessed.WithLabelValues(m.Type, outcome).Inc()
		}
		pending = pending[:0]
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				flush()
				return nil
			}
			if !relevant(msg.Type) {
				metrics.QueueProcessed.WithLabelValues(msg.Type, "ignored").Inc()
				continue
			}
			pending = append(pending, msg)
			if fire == nil {
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			}
		case <-fire:
			flush()
		case <-ctx.Done():
			return nil
		}
	}
}
