package model

import (
	"encoding/json"
	"fmt"
)

// JobStatus состояние задачи в очереди
type JobStatus string

const (
	StatusPending  JobStatus = "PENDING"
	StatusProgress JobStatus = "PROGRESS"
	StatusSuccess  JobStatus = "SUCCESS"
	StatusFailure  JobStatus = "FAILURE"
)

// Terminal true для SUCCESS и FAILURE
func (s JobStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// JobKind тип фоновой задачи
type JobKind string

const (
	KindImport JobKind = "import"
	KindExport JobKind = "export"
)

// DefaultJobError сообщение, когда воркер не оставил причину падения
const DefaultJobError = "задача не выполнена"

// Progress прогресс выполнения задачи
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	Stage   string `json:"stage"`
}

// NewProgress считает процент по current/total
func NewProgress(current, total int, stage string) Progress {
	p := Progress{Current: current, Total: total, Stage: stage}
	if total > 0 {
		p.Percent = current * 100 / total
	}
	return p
}

// CreatedLink ссылка из результата импорта
type CreatedLink struct {
	OriginalURL string `json:"original_url"`
	ShortURL    string `json:"short_url"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
}

// ImportResult итог импорта
type ImportResult struct {
	Processed    int           `json:"processed"`
	Created      int           `json:"created"`
	CreatedLinks []CreatedLink `json:"created_links"`
}

// ExportResult итог экспорта: ссылка на архив в каталоге экспорта
type ExportResult struct {
	File  string `json:"file"`
	Size  int64  `json:"size"`
	Links int    `json:"links"`
}

// JobResult результат задачи. Ровно одно из Import, Export, Error заполнено.
// Error означает бизнес-ошибку: задача отработала, но данные плохие.
type JobResult struct {
	Kind   JobKind       `json:"kind"`
	Import *ImportResult `json:"import,omitempty"`
	Export *ExportResult `json:"export,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// BusinessError true если задача вернула ошибку в результате
func (r JobResult) BusinessError() bool {
	return r.Error != ""
}

// DecodeJobResult разбирает результат, пришедший из очереди
func DecodeJobResult(data []byte) (JobResult, error) {
	var r JobResult
	if len(data) == 0 {
		return r, fmt.Errorf("пустой результат задачи")
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("не удалось разобрать результат задачи: %w", err)
	}
	switch {
	case r.Error != "":
	case r.Kind == KindImport && r.Import != nil:
	case r.Kind == KindExport && r.Export != nil:
	default:
		return r, fmt.Errorf("результат задачи неизвестного вида %q", r.Kind)
	}
	return r, nil
}

// JobState то, что видит клиент при опросе статуса
type JobState struct {
	ID       string     `json:"task_id"`
	Status   JobStatus  `json:"status"`
	Progress Progress   `json:"progress"`
	Result   *JobResult `json:"result,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// ProgressFunc получает прогресс от выполняющейся задачи
type ProgressFunc func(Progress)
