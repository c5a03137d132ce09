package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedStatus отдаёт состояния по очереди, последнее повторяет
type scriptedStatus struct {
	states []model.JobStatus
	calls  int
	err    error
}

func (s *scriptedStatus) Status(_ context.Context, id string) (model.JobState, error) {
	if s.err != nil {
		return model.JobState{}, s.err
	}
	i := min(s.calls, len(s.states)-1)
	s.calls++
	return model.JobState{ID: id, Status: s.states[i]}, nil
}

// fakeClock время двигается только во время sleep
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) install(w *Waiter) {
	w.now = func() time.Time { return c.now }
	w.sleep = func(_ context.Context, d time.Duration) error {
		c.sleeps = append(c.sleeps, d)
		c.now = c.now.Add(d)
		return nil
	}
}

func TestWaiter_UntilTerminal(t *testing.T) {
	src := &scriptedStatus{states: []model.JobStatus{
		model.StatusPending, model.StatusProgress, model.StatusProgress, model.StatusSuccess,
	}}
	w := NewWaiter(src, time.Minute, 100*time.Millisecond, time.Second)
	clock := &fakeClock{now: time.Unix(0, 0)}
	clock.install(w)

	st, err := w.Wait(context.Background(), "id")

	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, st.Status)
	assert.Equal(t, 4, src.calls)
	assert.Len(t, clock.sleeps, 3)
	for _, d := range clock.sleeps {
		assert.Positive(t, d)
	}
}

func TestWaiter_Timeout(t *testing.T) {
	src := &scriptedStatus{states: []model.JobStatus{model.StatusProgress}}
	w := NewWaiter(src, 5*time.Second, 100*time.Millisecond, time.Second)
	clock := &fakeClock{now: time.Unix(0, 0)}
	clock.install(w)

	st, err := w.Wait(context.Background(), "id")

	assert.ErrorIs(t, err, model.ErrJobTimeout)
	assert.Equal(t, model.StatusProgress, st.Status)

	var slept time.Duration
	for _, d := range clock.sleeps {
		slept += d
	}
	// последняя пауза обрезается остатком бюджета
	assert.Equal(t, 5*time.Second, slept)
}

func TestWaiter_Failure(t *testing.T) {
	src := &scriptedStatus{states: []model.JobStatus{model.StatusProgress, model.StatusFailure}}
	w := NewWaiter(src, time.Minute, time.Millisecond, time.Millisecond)
	(&fakeClock{now: time.Unix(0, 0)}).install(w)

	st, err := w.Wait(context.Background(), "id")

	require.NoError(t, err)
	assert.Equal(t, model.StatusFailure, st.Status)
}

func TestWaiter_StatusError(t *testing.T) {
	boom := errors.New("redis недоступен")
	w := NewWaiter(&scriptedStatus{err: boom}, time.Minute, 0, 0)

	_, err := w.Wait(context.Background(), "id")

	assert.ErrorIs(t, err, boom)
}

func TestWaiter_ContextCanceled(t *testing.T) {
	src := &scriptedStatus{states: []model.JobStatus{model.StatusPending}}
	w := NewWaiter(src, time.Minute, 10*time.Millisecond, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Wait(ctx, "id")

	assert.ErrorIs(t, err, context.Canceled)
}
