// Package asynqueue очередь задач на Redis через asynq.
// Сервер ставит задачи через Client, выполняет их отдельный процесс с Worker.
package asynqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Popolzen/shortlinks/internal/jobs"
	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const DefaultQueue = "shortlinks"

// Типы задач asynq
const (
	TypeImport = "links:import"
	TypeExport = "links:export"
)

// Options подключение к Redis и параметры задач
type Options struct {
	Addr     string
	Password string
	DB       int
	Queue    string
	// Retention сколько Redis хранит результат выполненной задачи
	Retention time.Duration
	// Timeout ограничение на выполнение одной задачи
	Timeout time.Duration
}

func (o Options) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: o.Addr, Password: o.Password, DB: o.DB}
}

func (o Options) queue() string {
	if o.Queue == "" {
		return DefaultQueue
	}
	return o.Queue
}

func typeName(kind model.JobKind) (string, error) {
	switch kind {
	case model.KindImport:
		return TypeImport, nil
	case model.KindExport:
		return TypeExport, nil
	}
	return "", fmt.Errorf("%w: %q", jobs.ErrUnknownKind, kind)
}

// Client ставит задачи в Redis и читает их состояние
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	progress  jobs.ProgressStore
	opts      Options
	log       *zap.SugaredLogger
}

var _ jobs.Queue = (*Client)(nil)

func NewClient(opts Options, progress jobs.ProgressStore, log *zap.SugaredLogger) *Client {
	return &Client{
		client:    asynq.NewClient(opts.redisOpt()),
		inspector: asynq.NewInspector(opts.redisOpt()),
		progress:  progress,
		opts:      opts,
		log:       log,
	}
}

func (c *Client) Enqueue(ctx context.Context, task jobs.Task) (string, error) {
	name, err := typeName(task.Kind)
	if err != nil {
		return "", err
	}
	payload, err := task.Encode()
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации задачи: %w", err)
	}

	id := uuid.NewString()
	opts := []asynq.Option{
		asynq.TaskID(id),
		asynq.Queue(c.opts.queue()),
		// повтор импорта создал бы дубли ссылок
		asynq.MaxRetry(0),
	}
	if c.opts.Retention > 0 {
		opts = append(opts, asynq.Retention(c.opts.Retention))
	}
	if c.opts.Timeout > 0 {
		opts = append(opts, asynq.Timeout(c.opts.Timeout))
	}

	if _, err := c.client.EnqueueContext(ctx, asynq.NewTask(name, payload), opts...); err != nil {
		return "", fmt.Errorf("ошибка постановки задачи: %w", err)
	}
	c.log.Infow("задача поставлена", "task_id", id, "kind", task.Kind, "queue", c.opts.queue())
	return id, nil
}

// Status состояние по данным asynq. Задачи, которых Redis не знает, считаются PENDING.
func (c *Client) Status(ctx context.Context, id string) (model.JobState, error) {
	info, err := c.inspector.GetTaskInfo(c.opts.queue(), id)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return model.JobState{ID: id, Status: model.StatusPending}, nil
	}
	if err != nil {
		return model.JobState{}, fmt.Errorf("ошибка чтения задачи %s: %w", id, err)
	}

	var progress model.Progress
	if info.State == asynq.TaskStateActive || info.State == asynq.TaskStateCompleted {
		p, _, err := c.progress.Get(ctx, id)
		if err != nil {
			c.log.Warnw("не удалось прочитать прогресс", "task_id", id, "error", err)
		}
		progress = p
	}

	st := stateFromInfo(id, info, progress)
	if st.Status == model.StatusFailure && info.State == asynq.TaskStateCompleted {
		c.log.Errorw("результат задачи не разобран", "task_id", id, "result", string(info.Result))
	}
	return st, nil
}

func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}

// stateFromInfo переводит состояние asynq в состояние задачи
func stateFromInfo(id string, info *asynq.TaskInfo, progress model.Progress) model.JobState {
	st := model.JobState{ID: id, Progress: progress}

	switch info.State {
	case asynq.TaskStateActive, asynq.TaskStateRetry:
		st.Status = model.StatusProgress

	case asynq.TaskStateCompleted:
		res, err := model.DecodeJobResult(info.Result)
		if err != nil {
			st.Status = model.StatusFailure
			st.Error = model.DefaultJobError
			return st
		}
		st.Status = model.StatusSuccess
		st.Result = &res

	case asynq.TaskStateArchived:
		st.Status = model.StatusFailure
		st.Error = info.LastErr
		if st.Error == "" {
			st.Error = model.DefaultJobError
		}

	default:
		st.Status = model.StatusPending
		st.Progress = model.Progress{}
	}
	return st
}
