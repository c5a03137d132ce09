package handler

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/Popolzen/shortlinks/internal/config"
	"github.com/Popolzen/shortlinks/internal/jobs"
	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/Popolzen/shortlinks/internal/sheet/sheettest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pollWait = 5 * time.Second

func importSheet(t *testing.T) []byte {
	return sheettest.Build(t, []string{"url", "description", "tags"},
		[]any{"https://a.com", "первая", "x, y"},
		[]any{"не ссылка", "", ""},
		[]any{"http://b.com", "вторая", ""},
	)
}

type statusResponse struct {
	TaskID   string              `json:"task_id"`
	Status   model.JobStatus     `json:"status"`
	Result   *model.ImportResult `json:"result"`
	Error    string              `json:"error"`
	Progress *int                `json:"progress"`
	Total    *int                `json:"total"`
	Percent  *int                `json:"percent"`
	Stage    string              `json:"stage"`
}

// === Импорт ===

func TestBulkImportHandler_Async(t *testing.T) {
	env := setupTestRouter(t, testConfig(t, config.JobModeAsync), nil)

	w := env.do(uploadRequest(t, "/links/bulk", "links.xlsx", importSheet(t)))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	id := decode[map[string]string](t, w)["task_id"]
	require.NotEmpty(t, id)

	var last statusResponse
	require.Eventually(t, func() bool {
		resp := env.get("/links/bulk/status/" + id)
		if resp.Code != http.StatusOK {
			return false
		}
		// require из горутины Eventually вызывать нельзя
		if err := json.Unmarshal(resp.Body.Bytes(), &last); err != nil {
			return false
		}
		return last.Status == model.StatusSuccess
	}, pollWait, 10*time.Millisecond)

	require.NotNil(t, last.Result)
	assert.Equal(t, id, last.TaskID)
	assert.Equal(t, 3, last.Result.Processed)
	assert.Equal(t, 2, last.Result.Created)
	require.Len(t, last.Result.CreatedLinks, 2)
	assert.Equal(t, "https://a.com", last.Result.CreatedLinks[0].OriginalURL)
	assert.Equal(t, "x,y", last.Result.CreatedLinks[0].Tags)
	assert.Contains(t, last.Result.CreatedLinks[0].ShortURL, "http://localhost:8080/")

	links := decode[[]model.LinkSummary](t, env.get("/links"))
	assert.Len(t, links, 2)
}

func TestBulkImportHandler_Sync(t *testing.T) {
	env := setupTestRouter(t, testConfig(t, config.JobModeSync), nil)

	t.Run("Успешный импорт", func(t *testing.T) {
		w := env.do(uploadRequest(t, "/links/bulk", "links.xlsx", importSheet(t)))

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		res := decode[model.ImportResult](t, w)
		assert.Equal(t, 3, res.Processed)
		assert.Equal(t, 2, res.Created)
	})

	t.Run("Нет колонки url", func(t *testing.T) {
		data := sheettest.Build(t, []string{"link"}, []any{"https://a.com"})
		w := env.do(uploadRequest(t, "/links/bulk", "links.xlsx", data))

		require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		assert.Contains(t, decode[errorResponse](t, w).Error, "url")
	})

	t.Run("wait=false перекрывает режим", func(t *testing.T) {
		w := env.do(uploadRequest(t, "/links/bulk?wait=false", "links.xlsx", importSheet(t)))
		assert.Equal(t, http.StatusAccepted, w.Code)
	})
}

func TestBulkImportHandler_BadUpload(t *testing.T) {
	cfg := testConfig(t, config.JobModeAsync)
	cfg.MaxUploadBytes = 16
	queue := &fakeQueue{}
	env := setupTestRouter(t, cfg, queue)

	t.Run("Не xlsx", func(t *testing.T) {
		w := env.do(uploadRequest(t, "/links/bulk", "links.csv", []byte("url\n")))

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, msgNotXLSX, decode[errorResponse](t, w).Error)
	})

	t.Run("Нет файла", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/links/bulk", nil)
		w := env.do(req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode[errorResponse](t, w).Fields, "file")
	})

	t.Run("Слишком большой", func(t *testing.T) {
		w := env.do(uploadRequest(t, "/links/bulk", "links.xlsx", bytes.Repeat([]byte("x"), 64)))

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, msgTooLarge, decode[errorResponse](t, w).Error)
	})

	assert.Empty(t, queue.enqueued, "плохие загрузки не ставятся в очередь")
}

func TestBulkImportHandler_EnqueueFailed(t *testing.T) {
	env := setupTestRouter(t, testConfig(t, config.JobModeAsync), &fakeQueue{enqueueErr: jobs.ErrQueueClosed})

	w := env.do(uploadRequest(t, "/links/bulk", "links.xlsx", importSheet(t)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestBulkImportHandler_SyncOutcome(t *testing.T) {
	tests := []struct {
		name       string
		state      model.JobState
		wantStatus int
		wantError  string
	}{
		{
			name:       "Падение воркера",
			state:      model.JobState{Status: model.StatusFailure, Error: "redis: connection pool timeout"},
			wantStatus: http.StatusInternalServerError,
			wantError:  "redis: connection pool timeout",
		},
		{
			name: "Бизнес-ошибка",
			state: model.JobState{Status: model.StatusSuccess, Result: &model.JobResult{
				Kind: model.KindImport, Error: "url: в таблице нет колонки url",
			}},
			wantStatus: http.StatusBadRequest,
			wantError:  "url: в таблице нет колонки url",
		},
		{
			name:       "Время истекло",
			state:      model.JobState{Status: model.StatusProgress},
			wantStatus: http.StatusGatewayTimeout,
			wantError:  msgTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, config.JobModeSync)
			cfg.JobTimeout = 50 * time.Millisecond
			env := setupTestRouter(t, cfg, &fakeQueue{state: tt.state})

			w := env.do(uploadRequest(t, "/links/bulk", "links.xlsx", importSheet(t)))

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			body := decode[map[string]any](t, w)
			assert.Equal(t, tt.wantError, body["error"])
			if tt.wantStatus == http.StatusGatewayTimeout {
				assert.NotEmpty(t, body["task_id"])
			}
		})
	}
}

// === Статус ===

func TestBulkStatusHandler(t *testing.T) {
	t.Run("Неизвестная задача", func(t *testing.T) {
		env := setupTestRouter(t, testConfig(t, config.JobModeAsync), nil)

		w := env.get("/links/bulk/status/nope")
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[statusResponse](t, w)
		assert.Equal(t, "nope", resp.TaskID)
		assert.Equal(t, model.StatusPending, resp.Status)
		assert.Nil(t, resp.Progress)
	})

	t.Run("В процессе", func(t *testing.T) {
		queue := &fakeQueue{state: model.JobState{
			Status:   model.StatusProgress,
			Progress: model.NewProgress(30, 120, "Обработка строк"),
		}}
		env := setupTestRouter(t, testConfig(t, config.JobModeAsync), queue)

		resp := decode[statusResponse](t, env.get("/links/bulk/status/t1"))
		assert.Equal(t, model.StatusProgress, resp.Status)
		require.NotNil(t, resp.Progress)
		assert.Equal(t, 30, *resp.Progress)
		assert.Equal(t, 120, *resp.Total)
		assert.Equal(t, 25, *resp.Percent)
		assert.Equal(t, "Обработка строк", resp.Stage)
	})

	t.Run("Бизнес-ошибка", func(t *testing.T) {
		queue := &fakeQueue{state: model.JobState{Status: model.StatusSuccess, Result: &model.JobResult{
			Kind: model.KindImport, Error: "файл не xlsx",
		}}}
		env := setupTestRouter(t, testConfig(t, config.JobModeAsync), queue)

		w := env.get("/links/bulk/status/t1")
		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode[statusResponse](t, w)
		assert.Equal(t, model.StatusSuccess, resp.Status)
		assert.Equal(t, "файл не xlsx", resp.Error)
	})

	t.Run("Ошибка", func(t *testing.T) {
		queue := &fakeQueue{state: model.JobState{Status: model.StatusFailure, Error: model.DefaultJobError}}
		env := setupTestRouter(t, testConfig(t, config.JobModeAsync), queue)

		w := env.get("/links/bulk/status/t1")
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[statusResponse](t, w)
		assert.Equal(t, model.StatusFailure, resp.Status)
		assert.Equal(t, model.DefaultJobError, resp.Error)
	})
}

// === Экспорт ===

func readZip(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	body := w.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestExportHandler_Sync(t *testing.T) {
	env := setupTestRouter(t, testConfig(t, config.JobModeSync), nil)
	env.addLink(t, "abc", "https://a.com", true)
	env.addLink(t, "def", "https://b.com", true)

	t.Run("С QR кодами", func(t *testing.T) {
		w := env.get("/links/export")

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="links_export.zip"`, w.Header().Get("Content-Disposition"))
		assert.Len(t, readZip(t, w), 1+3*2)
	})

	t.Run("Только таблица", func(t *testing.T) {
		w := env.get("/links/export?generate_qr=false")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, readZip(t, w), 1)
	})

	// отданные архивы удаляются
	entries, err := os.ReadDir(env.cfg.ExportDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportHandler_Async(t *testing.T) {
	env := setupTestRouter(t, testConfig(t, config.JobModeAsync), nil)
	env.addLink(t, "abc", "https://a.com", true)

	w := env.get("/links/export?generate_qr=false")
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decode[map[string]string](t, w)["task_id"]
	require.NotEmpty(t, id)

	var archive *httptest.ResponseRecorder
	require.Eventually(t, func() bool {
		resp := env.get("/links/export/status/" + id)
		if resp.Header().Get("Content-Type") == "application/zip" {
			archive = resp
			return true
		}
		return false
	}, pollWait, 10*time.Millisecond)

	assert.Equal(t, http.StatusOK, archive.Code)
	assert.Equal(t, []string{"links.xlsx"}, readZip(t, archive))

	// второй раз архив уже не отдаётся
	again := env.get("/links/export/status/" + id)
	assert.Equal(t, http.StatusNotFound, again.Code)
	assert.Equal(t, msgArchiveGone, decode[errorResponse](t, again).Error)
}

func TestStatusHandlers_OtherKind(t *testing.T) {
	importDone := model.JobState{Status: model.StatusSuccess, Result: &model.JobResult{
		Kind: model.KindImport, Import: &model.ImportResult{Processed: 1, Created: 1, CreatedLinks: []model.CreatedLink{}},
	}}
	exportDone := model.JobState{Status: model.StatusSuccess, Result: &model.JobResult{
		Kind: model.KindExport, Export: &model.ExportResult{File: "x.zip", Size: 10, Links: 1},
	}}

	tests := []struct {
		name  string
		state model.JobState
		path  string
	}{
		{name: "Статус экспорта для импорта", state: importDone, path: "/links/export/status/t1"},
		{name: "Статус импорта для экспорта", state: exportDone, path: "/links/bulk/status/t1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestRouter(t, testConfig(t, config.JobModeAsync), &fakeQueue{state: tt.state})

			w := env.get(tt.path)

			require.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, msgUnknownTask, decode[errorResponse](t, w).Error)
		})
	}

	t.Run("Свой вид отдаётся как обычно", func(t *testing.T) {
		env := setupTestRouter(t, testConfig(t, config.JobModeAsync), &fakeQueue{state: importDone})

		w := env.get("/links/bulk/status/t1")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, model.StatusSuccess, decode[statusResponse](t, w).Status)
	})
}
