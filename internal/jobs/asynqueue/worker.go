package asynqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Popolzen/shortlinks/internal/jobs"
	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker выполняет задачи из Redis
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	exec     jobs.Executor
	progress jobs.ProgressStore
	log      *zap.SugaredLogger
}

func NewWorker(opts Options, concurrency int, exec jobs.Executor, progress jobs.ProgressStore, log *zap.SugaredLogger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	w := &Worker{
		server: asynq.NewServer(opts.redisOpt(), asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{opts.queue(): 1},
			Logger:      log,
		}),
		mux:      asynq.NewServeMux(),
		exec:     exec,
		progress: progress,
		log:      log,
	}
	w.mux.HandleFunc(TypeImport, w.handle)
	w.mux.HandleFunc(TypeExport, w.handle)
	return w
}

// Run блокируется до SIGTERM/SIGINT
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

// Start запускает обработку в фоне, для встраивания в сервер
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handle(ctx context.Context, t *asynq.Task) error {
	id, _ := asynq.GetTaskID(ctx)
	data, err := w.process(ctx, id, t.Payload())
	if err != nil {
		return err
	}
	if _, err := t.ResultWriter().Write(data); err != nil {
		return fmt.Errorf("ошибка записи результата: %w", err)
	}
	return nil
}

// process выполняет задачу и возвращает сериализованный JobResult.
// Ошибка уходит в LastErr задачи и становится сообщением FAILURE.
func (w *Worker) process(ctx context.Context, id string, payload []byte) ([]byte, error) {
	task, err := jobs.DecodeTask(payload)
	if err != nil {
		return nil, err
	}

	report := func(p model.Progress) {
		if err := w.progress.Set(ctx, id, p); err != nil {
			w.log.Warnw("не удалось сохранить прогресс", "task_id", id, "error", err)
		}
	}

	res, err := w.exec.Execute(ctx, id, task, report)
	if err != nil {
		w.log.Errorw("задача упала", "task_id", id, "kind", task.Kind, "error", err)
		return nil, err
	}

	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации результата: %w", err)
	}
	w.log.Infow("задача выполнена", "task_id", id, "kind", task.Kind, "business_error", res.Error)
	return data, nil
}
