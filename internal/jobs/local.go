package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalOptions настройки очереди в процессе
type LocalOptions struct {
	Workers int
	// Buffer сколько задач может ждать свободного воркера
	Buffer int
	// Timeout ограничение на одну задачу, 0 без ограничения
	Timeout time.Duration
	// Retention сколько хранить состояние завершённой задачи
	Retention time.Duration
}

type localTask struct {
	id   string
	task Task
}

type localEntry struct {
	state      model.JobState
	finishedAt time.Time
}

// LocalQueue пул воркеров в процессе сервера. Состояние задач живёт в памяти
// и теряется при перезапуске.
type LocalQueue struct {
	exec     Executor
	progress ProgressStore
	opts     LocalOptions
	log      *zap.SugaredLogger

	tasks  chan localTask
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	entries map[string]*localEntry
	closed  bool
	now     func() time.Time
}

func NewLocalQueue(exec Executor, progress ProgressStore, opts LocalOptions, log *zap.SugaredLogger) *LocalQueue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Buffer < 0 {
		opts.Buffer = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &LocalQueue{
		exec:     exec,
		progress: progress,
		opts:     opts,
		log:      log,
		tasks:    make(chan localTask, opts.Buffer),
		ctx:      ctx,
		cancel:   cancel,
		entries:  map[string]*localEntry{},
		now:      time.Now,
	}
	for range opts.Workers {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue ставит задачу и возвращает её id. Блокируется, пока буфер полон.
func (q *LocalQueue) Enqueue(ctx context.Context, task Task) (string, error) {
	id := uuid.NewString()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}
	q.pruneLocked()
	q.entries[id] = &localEntry{state: model.JobState{ID: id, Status: model.StatusPending}}
	q.mu.Unlock()

	select {
	case q.tasks <- localTask{id: id, task: task}:
		q.log.Infow("задача поставлена", "task_id", id, "kind", task.Kind)
		return id, nil
	case <-ctx.Done():
		q.forget(id)
		return "", ctx.Err()
	case <-q.ctx.Done():
		q.forget(id)
		return "", ErrQueueClosed
	}
}

// Status состояние задачи. Незнакомый id это PENDING.
func (q *LocalQueue) Status(ctx context.Context, id string) (model.JobState, error) {
	q.mu.RLock()
	e, ok := q.entries[id]
	var st model.JobState
	if ok {
		st = e.state
	}
	q.mu.RUnlock()

	if !ok {
		return model.JobState{ID: id, Status: model.StatusPending}, nil
	}
	if st.Status == model.StatusProgress {
		p, _, err := q.progress.Get(ctx, id)
		if err != nil {
			return st, fmt.Errorf("ошибка чтения прогресса: %w", err)
		}
		st.Progress = p
	}
	return st, nil
}

// Close останавливает воркеров. Выполняющиеся задачи получают отменённый контекст,
// ещё не начатые завершаются с FAILURE.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	return nil
}

func (q *LocalQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			q.drain()
			return
		case t := <-q.tasks:
			q.run(t)
		}
	}
}

// drain помечает оставшиеся в буфере задачи как упавшие
func (q *LocalQueue) drain() {
	for {
		select {
		case t := <-q.tasks:
			q.finish(t.id, model.JobState{ID: t.id, Status: model.StatusFailure, Error: ErrQueueClosed.Error()})
		default:
			return
		}
	}
}

func (q *LocalQueue) run(t localTask) {
	q.setStatus(t.id, model.StatusProgress)

	ctx := q.ctx
	if q.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.opts.Timeout)
		defer cancel()
	}

	report := func(p model.Progress) {
		if err := q.progress.Set(ctx, t.id, p); err != nil {
			q.log.Warnw("не удалось сохранить прогресс", "task_id", t.id, "error", err)
		}
	}

	res, err := q.execute(ctx, t, report)

	st := model.JobState{ID: t.id}
	switch {
	case err != nil:
		st.Status = model.StatusFailure
		st.Error = err.Error()
		q.log.Errorw("задача упала", "task_id", t.id, "kind", t.task.Kind, "error", err)
	default:
		st.Status = model.StatusSuccess
		st.Result = &res
		q.log.Infow("задача выполнена", "task_id", t.id, "kind", t.task.Kind, "business_error", res.Error)
	}
	if p, ok, _ := q.progress.Get(context.Background(), t.id); ok {
		st.Progress = p
	}
	q.finish(t.id, st)
	_ = q.progress.Delete(context.Background(), t.id)
}

// execute вызывает Executor и превращает панику в FAILURE
func (q *LocalQueue) execute(ctx context.Context, t localTask, report model.ProgressFunc) (res model.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorw("паника в задаче", "task_id", t.id, "panic", r)
			err = errors.New(model.DefaultJobError)
		}
	}()
	return q.exec.Execute(ctx, t.id, t.task, report)
}

func (q *LocalQueue) setStatus(id string, status model.JobStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[id]; ok {
		e.state.Status = status
	}
}

func (q *LocalQueue) finish(id string, st model.JobState) {
	if st.Status == model.StatusFailure && st.Error == "" {
		st.Error = model.DefaultJobError
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[id] = &localEntry{state: st, finishedAt: q.now()}
}

func (q *LocalQueue) forget(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, id)
}

// pruneLocked удаляет завершённые задачи старше Retention
func (q *LocalQueue) pruneLocked() {
	if q.opts.Retention <= 0 {
		return
	}
	cutoff := q.now().Add(-q.opts.Retention)
	for id, e := range q.entries {
		if e.state.Status.Terminal() && e.finishedAt.Before(cutoff) {
			delete(q.entries, id)
		}
	}
}
