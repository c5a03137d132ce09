// Package handler HTTP обработчики сервиса коротких ссылок.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/Popolzen/shortlinks/internal/audit"
	"github.com/Popolzen/shortlinks/internal/config"
	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/Popolzen/shortlinks/internal/service/shortener"
	"github.com/gin-gonic/gin"
)

// Pinger проверка доступности хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingHandler проверяет соединение с хранилищем
func PingHandler(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := p.Ping(c.Request.Context()); err != nil {
			_ = c.Error(err)
			c.String(http.StatusInternalServerError, "Хранилище недоступно")
			return
		}
		c.String(http.StatusOK, "OK")
	}
}

// RedirectHandler перенаправляет по короткой ссылке
func RedirectHandler(svc *shortener.LinkService, pub *audit.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")

		link, err := svc.Resolve(c.Request.Context(), code)
		if err != nil {
			writeError(c, err)
			return
		}

		pub.Publish(audit.NewEvent(audit.ActionFollow, link.Code, link.URL))
		// http.Redirect экранирует не-ASCII символы в Location
		c.Redirect(http.StatusFound, link.URL)
	}
}

// CreateLinkHandler создаёт короткую ссылку из JSON
func CreateLinkHandler(svc *shortener.LinkService, cfg *config.Config, pub *audit.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.LinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "Неправильное тело запроса"})
			return
		}

		link, err := svc.Create(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}

		pub.Publish(audit.NewEvent(audit.ActionShorten, link.Code, link.URL))
		c.JSON(http.StatusCreated, model.LinkResponse{
			Code:        link.Code,
			ShortURL:    shortener.ShortURL(cfg.BaseURL, link.Code),
			URL:         link.URL,
			Name:        link.Name,
			Description: link.Description,
			Tags:        link.Tags,
		})
	}
}

// ListLinksHandler возвращает все ссылки, код с доменом
func ListLinksHandler(svc *shortener.LinkService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		links, err := svc.List(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}

		out := make([]model.LinkSummary, 0, len(links))
		for _, l := range links {
			out = append(out, model.LinkSummary{
				ID:          l.ID,
				URL:         l.URL,
				Code:        shortener.ShortURL(cfg.DomainName, l.Code),
				Name:        l.Name,
				Description: l.Description,
				Tags:        l.Tags,
				CreatedAt:   l.CreatedAt,
				IsActive:    l.IsActive,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

// TemplatesHandler список шаблонов ссылок
func TemplatesHandler(svc *shortener.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		templates, err := svc.Templates(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		if templates == nil {
			templates = []model.Template{}
		}
		c.JSON(http.StatusOK, templates)
	}
}

// errBodyTooLarge признак превышения лимита тела запроса
func errBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
