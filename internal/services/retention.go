package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Cleaner deletes pings older than a number of days.
type Cleaner interface {
	Cleanup(ctx context.Context, retentionDays int) (int64, error)
}

// RetentionWorker runs Cleanup on a fixed interval until stopped.
type RetentionWorker struct {
	cleaner  Cleaner
	days     int
	interval time.Duration
	log      logrus.FieldLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRetentionWorker(cleaner Cleaner, days int, interval time.Duration, log logrus.FieldLogger) *RetentionWorker {
	return &RetentionWorker{cleaner: cleaner, days: days, interval: interval, log: log}
}

// RunOnce performs a single cleanup pass.
func (w *RetentionWorker) RunOnce(ctx context.Context) {
	deleted, err := w.cleaner.Cleanup(ctx, w.days)
	if err != nil {
		w.log.WithError(err).Warn("retention pass failed")
		return
	}
	w.log.WithField("deleted", deleted).Debug("retention pass finished")
}

// Start launches the ticker goroutine. A zero interval disables the worker.
func (w *RetentionWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info("retention worker disabled")
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.log.WithFields(logrus.Fields{
			"retention_days": w.days,
			"interval":       w.interval.String(),
		}).Info("retention worker started")

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.RunOnce(ctx)
			}
		}
	}()
}

// Stop cancels the worker and waits for the running pass to return.
func (w *RetentionWorker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
}
