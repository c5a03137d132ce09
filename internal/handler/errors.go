package handler

import (
	"errors"
	"net/http"

	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/gin-gonic/gin"
)

// Сообщения клиенту. Детали ошибки уходят только в лог.
const (
	msgNotFound     = "Не нашли ссылку"
	msgInactive     = "Ссылка отключена"
	msgTemplateUsed = "Шаблон используется ссылками"
	msgTimeout      = "Время задачи истекло"
	msgInternal     = "Внутренняя ошибка сервера"
	msgNotXLSX      = "File must be .xlsx"
	msgNoFile       = "Файл не передан"
	msgTooLarge     = "Файл слишком большой"
	msgArchiveGone  = "Архив уже выгружен или удалён"
	msgUnknownTask  = "Задача не найдена"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeError отвечает клиенту по таксономии ошибок модели
func writeError(c *gin.Context, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		resp := errorResponse{Error: ve.Error()}
		if ve.Field != "" {
			resp.Fields = map[string]string{ve.Field: ve.Message}
		}
		c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: msgNotFound})
	case errors.Is(err, model.ErrLinkInactive):
		c.JSON(http.StatusGone, errorResponse{Error: msgInactive})
	case errors.Is(err, model.ErrTemplateInUse):
		c.JSON(http.StatusConflict, errorResponse{Error: msgTemplateUsed})
	case errors.Is(err, model.ErrJobTimeout):
		c.JSON(http.StatusGatewayTimeout, errorResponse{Error: msgTimeout})
	default:
		// попадёт в лог через RequestLogger
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: msgInternal})
	}
}
