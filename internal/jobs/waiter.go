package jobs

import (
	"context"
	"time"

	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultJobTimeout      = 300 * time.Second
	DefaultPollInterval    = 200 * time.Millisecond
	DefaultMaxPollInterval = 2 * time.Second
)

// StatusReader источник состояния задачи
type StatusReader interface {
	Status(ctx context.Context, id string) (model.JobState, error)
}

// Waiter дожидается завершения задачи для синхронного режима.
// По истечении Timeout возвращает model.ErrJobTimeout, сама задача продолжает работать.
type Waiter struct {
	status      StatusReader
	timeout     time.Duration
	interval    time.Duration
	maxInterval time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewWaiter(status StatusReader, timeout, interval, maxInterval time.Duration) *Waiter {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxInterval < interval {
		maxInterval = max(interval, DefaultMaxPollInterval)
	}
	return &Waiter{
		status:      status,
		timeout:     timeout,
		interval:    interval,
		maxInterval: maxInterval,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Wait опрашивает статус с экспоненциальной паузой, пока задача не завершится.
// Возвращает последнее увиденное состояние.
func (w *Waiter) Wait(ctx context.Context, id string) (model.JobState, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.interval
	b.MaxInterval = w.maxInterval
	// бюджет считаем сами по часам, backoff отвечает только за паузы
	b.MaxElapsedTime = 0
	b.Reset()

	deadline := w.now().Add(w.timeout)
	for {
		st, err := w.status.Status(ctx, id)
		if err != nil {
			return st, err
		}
		if st.Status.Terminal() {
			return st, nil
		}

		left := deadline.Sub(w.now())
		if left <= 0 {
			return st, model.ErrJobTimeout
		}
		if err := w.sleep(ctx, min(b.NextBackOff(), left)); err != nil {
			return st, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
