package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Popolzen/shortlinks/internal/archive"
	"github.com/Popolzen/shortlinks/internal/audit"
	"github.com/Popolzen/shortlinks/internal/config"
	"github.com/Popolzen/shortlinks/internal/jobs"
	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/gin-gonic/gin"
)

// ExportFilename имя архива в Content-Disposition
const ExportFilename = "links_export.zip"

// запас на заголовки multipart сверх MaxUploadBytes
const multipartOverhead = 1 << 20

// syncMode ждать ли завершения задачи в запросе. ?wait=true|false перекрывает JOB_MODE.
func syncMode(c *gin.Context, cfg *config.Config) bool {
	if v, ok := c.GetQuery("wait"); ok {
		if wait, err := strconv.ParseBool(v); err == nil {
			return wait
		}
	}
	return cfg.JobMode == config.JobModeSync
}

// BulkImportHandler принимает xlsx и ставит задачу импорта
func BulkImportHandler(queue jobs.Queue, waiter *jobs.Waiter, cfg *config.Config, pub *audit.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxUploadBytes+multipartOverhead)

		fh, err := c.FormFile("file")
		switch {
		case errBodyTooLarge(err):
			c.JSON(http.StatusBadRequest, errorResponse{Error: msgTooLarge})
			return
		case err != nil:
			c.JSON(http.StatusBadRequest, errorResponse{Error: msgNoFile, Fields: map[string]string{"file": msgNoFile}})
			return
		}
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".xlsx") {
			c.JSON(http.StatusBadRequest, errorResponse{Error: msgNotXLSX})
			return
		}
		if fh.Size > cfg.MaxUploadBytes {
			c.JSON(http.StatusBadRequest, errorResponse{Error: msgTooLarge})
			return
		}

		f, err := fh.Open()
		if err != nil {
			writeError(c, err)
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(c, err)
			return
		}

		id, err := queue.Enqueue(c.Request.Context(), jobs.NewImportTask(content, fh.Filename, cfg.BaseURL))
		if err != nil {
			writeError(c, err)
			return
		}
		pub.Publish(audit.NewTaskEvent(audit.ActionImport, id))

		if !syncMode(c, cfg) {
			c.JSON(http.StatusAccepted, gin.H{"task_id": id})
			return
		}

		st, ok := waitJob(c, waiter, id)
		if !ok {
			return
		}
		c.JSON(http.StatusCreated, st.Result.Import)
	}
}

// BulkStatusHandler состояние задачи импорта
func BulkStatusHandler(queue jobs.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := queue.Status(c.Request.Context(), c.Param("task_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		if otherKind(st, model.KindImport) {
			c.JSON(http.StatusNotFound, errorResponse{Error: msgUnknownTask})
			return
		}
		code, body := statusBody(st)
		c.JSON(code, body)
	}
}

// ExportHandler ставит задачу экспорта. В синхронном режиме отдаёт готовый архив.
func ExportHandler(queue jobs.Queue, waiter *jobs.Waiter, archives *archive.Store, cfg *config.Config, pub *audit.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		generateQR := strings.ToLower(c.DefaultQuery("generate_qr", "true")) == "true"

		id, err := queue.Enqueue(c.Request.Context(), jobs.NewExportTask(cfg.BaseURL, generateQR))
		if err != nil {
			writeError(c, err)
			return
		}
		pub.Publish(audit.NewTaskEvent(audit.ActionExport, id))

		if !syncMode(c, cfg) {
			c.JSON(http.StatusAccepted, gin.H{"task_id": id})
			return
		}

		if _, ok := waitJob(c, waiter, id); !ok {
			return
		}
		streamArchive(c, archives, id, pub)
	}
}

// ExportStatusHandler состояние экспорта. После SUCCESS отдаёт архив один раз.
func ExportStatusHandler(queue jobs.Queue, archives *archive.Store, pub *audit.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("task_id")
		st, err := queue.Status(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		if otherKind(st, model.KindExport) {
			c.JSON(http.StatusNotFound, errorResponse{Error: msgUnknownTask})
			return
		}
		if st.Status == model.StatusSuccess && st.Result != nil && !st.Result.BusinessError() {
			streamArchive(c, archives, id, pub)
			return
		}
		code, body := statusBody(st)
		c.JSON(code, body)
	}
}

// waitJob ждёт завершения и сам отвечает клиенту, если задача не удалась
func waitJob(c *gin.Context, waiter *jobs.Waiter, id string) (model.JobState, bool) {
	st, err := waiter.Wait(c.Request.Context(), id)
	if errors.Is(err, model.ErrJobTimeout) {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": msgTimeout, "task_id": id})
		return st, false
	}
	if err != nil {
		writeError(c, err)
		return st, false
	}

	switch {
	case st.Status == model.StatusFailure:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: st.Error})
		return st, false
	case st.Result == nil:
		writeError(c, errors.New("задача завершилась без результата"))
		return st, false
	case st.Result.BusinessError():
		c.JSON(http.StatusBadRequest, errorResponse{Error: st.Result.Error})
		return st, false
	}
	return st, true
}

// otherKind задача завершилась, но это задача другого вида
func otherKind(st model.JobState, kind model.JobKind) bool {
	return st.Result != nil && st.Result.Kind != "" && st.Result.Kind != kind
}

// statusBody ответ протокола статуса задачи
func statusBody(st model.JobState) (int, gin.H) {
	body := gin.H{"task_id": st.ID, "status": st.Status}

	switch st.Status {
	case model.StatusProgress:
		body["progress"] = st.Progress.Current
		body["total"] = st.Progress.Total
		body["percent"] = st.Progress.Percent
		body["stage"] = st.Progress.Stage

	case model.StatusSuccess:
		switch {
		case st.Result == nil:
		case st.Result.BusinessError():
			body["error"] = st.Result.Error
			return http.StatusBadRequest, body
		case st.Result.Import != nil:
			body["result"] = st.Result.Import
		case st.Result.Export != nil:
			body["result"] = st.Result.Export
		}

	case model.StatusFailure:
		body["error"] = st.Error
	}
	return http.StatusOK, body
}

// streamArchive отдаёт архив задачи и удаляет его после отправки
func streamArchive(c *gin.Context, archives *archive.Store, id string, pub *audit.Publisher) {
	r, err := archives.Take(id)
	if errors.Is(err, model.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Error: msgArchiveGone})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	defer r.Close()

	pub.Publish(audit.NewTaskEvent(audit.ActionDownload, id))
	c.DataFromReader(http.StatusOK, r.Size, "application/zip", r, map[string]string{
		"Content-Disposition": `attachment; filename="` + ExportFilename + `"`,
	})
}
