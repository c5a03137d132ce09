package handler

import (
	"github.com/Popolzen/shortlinks/internal/archive"
	"github.com/Popolzen/shortlinks/internal/audit"
	"github.com/Popolzen/shortlinks/internal/config"
	"github.com/Popolzen/shortlinks/internal/jobs"
	"github.com/Popolzen/shortlinks/internal/logger"
	"github.com/Popolzen/shortlinks/internal/middleware/compressor"
	"github.com/Popolzen/shortlinks/internal/service/shortener"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps всё, что нужно обработчикам
type Deps struct {
	Links    *shortener.LinkService
	Store    Pinger
	Queue    jobs.Queue
	Waiter   *jobs.Waiter
	Archives *archive.Store
	Config   *config.Config
	Audit    *audit.Publisher
	Log      *zap.SugaredLogger
}

// NewRouter настраивает роуты и middleware
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(d.Log))
	r.Use(compressor.Compresser())

	r.GET("/ping", PingHandler(d.Store))
	r.GET("/templates", TemplatesHandler(d.Links))

	links := r.Group("/links")
	links.POST("", CreateLinkHandler(d.Links, d.Config, d.Audit))
	links.GET("", ListLinksHandler(d.Links, d.Config))
	links.POST("/bulk", BulkImportHandler(d.Queue, d.Waiter, d.Config, d.Audit))
	links.GET("/bulk/status/:task_id", BulkStatusHandler(d.Queue))
	links.GET("/export", ExportHandler(d.Queue, d.Waiter, d.Archives, d.Config, d.Audit))
	links.GET("/export/status/:task_id", ExportStatusHandler(d.Queue, d.Archives, d.Audit))

	r.GET("/:code", RedirectHandler(d.Links, d.Audit))
	return r
}
