// Package jobs описывает фоновые задачи импорта и экспорта и протокол их статуса.
//
// Задачу ставит HTTP-обработчик через Queue, выполняет воркер через Executor.
// Клиент получает task_id и опрашивает Queue.Status, либо обработчик ждёт
// завершения сам через Waiter.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/Popolzen/shortlinks/internal/service/bulk"
	"go.uber.org/zap"
)

var (
	ErrQueueClosed = errors.New("очередь задач остановлена")
	ErrUnknownKind = errors.New("неизвестный тип задачи")
)

// ImportPayload входные данные импорта: xlsx целиком
type ImportPayload struct {
	Content  []byte `json:"content"`
	Filename string `json:"filename"`
	BaseURL  string `json:"base_url"`
}

// ExportPayload входные данные экспорта
type ExportPayload struct {
	BaseURL    string `json:"base_url"`
	GenerateQR bool   `json:"generate_qr"`
}

// Task задача в очереди
type Task struct {
	Kind   model.JobKind  `json:"kind"`
	Import *ImportPayload `json:"import,omitempty"`
	Export *ExportPayload `json:"export,omitempty"`
}

func NewImportTask(content []byte, filename, baseURL string) Task {
	return Task{Kind: model.KindImport, Import: &ImportPayload{Content: content, Filename: filename, BaseURL: baseURL}}
}

func NewExportTask(baseURL string, generateQR bool) Task {
	return Task{Kind: model.KindExport, Export: &ExportPayload{BaseURL: baseURL, GenerateQR: generateQR}}
}

// Encode сериализует задачу для очереди
func (t Task) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTask обратная к Encode операция, проверяет что payload соответствует виду
func DecodeTask(data []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("не удалось разобрать задачу: %w", err)
	}
	switch {
	case t.Kind == model.KindImport && t.Import != nil:
	case t.Kind == model.KindExport && t.Export != nil:
	default:
		return t, fmt.Errorf("%w: %q", ErrUnknownKind, t.Kind)
	}
	return t, nil
}

// Queue ставит задачи и отдаёт их состояние.
// Status никогда не возвращает ошибку для неизвестного id: такая задача PENDING.
type Queue interface {
	Enqueue(ctx context.Context, task Task) (string, error)
	Status(ctx context.Context, id string) (model.JobState, error)
	Close() error
}

// Executor выполняет одну задачу. Ошибка означает FAILURE,
// бизнес-ошибка возвращается в JobResult.Error без ошибки.
type Executor interface {
	Execute(ctx context.Context, id string, task Task, progress model.ProgressFunc) (model.JobResult, error)
}

// Runner исполняет задачи импорта и экспорта
type Runner struct {
	importer *bulk.Importer
	exporter *bulk.Exporter
	log      *zap.SugaredLogger
}

func NewRunner(importer *bulk.Importer, exporter *bulk.Exporter, log *zap.SugaredLogger) *Runner {
	return &Runner{importer: importer, exporter: exporter, log: log}
}

func (r *Runner) Execute(ctx context.Context, id string, task Task, progress model.ProgressFunc) (model.JobResult, error) {
	res := model.JobResult{Kind: task.Kind}

	switch {
	case task.Kind == model.KindImport && task.Import != nil:
		r.log.Infow("старт импорта", "task_id", id, "file", task.Import.Filename, "bytes", len(task.Import.Content))
		out, err := r.importer.Import(ctx, task.Import.Content, task.Import.BaseURL, progress)
		if err != nil {
			return businessOrFailure(res, err)
		}
		res.Import = &out

	case task.Kind == model.KindExport && task.Export != nil:
		r.log.Infow("старт экспорта", "task_id", id, "qr", task.Export.GenerateQR)
		out, err := r.exporter.Export(ctx, id, task.Export.BaseURL, task.Export.GenerateQR, progress)
		if err != nil {
			return businessOrFailure(res, err)
		}
		res.Export = &out

	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownKind, task.Kind)
	}
	return res, nil
}

// businessOrFailure ошибки валидации входных данных становятся результатом задачи
func businessOrFailure(res model.JobResult, err error) (model.JobResult, error) {
	if model.IsValidation(err) {
		res.Error = err.Error()
		return res, nil
	}
	return res, err
}
