package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Popolzen/shortlinks/internal/app"
	"github.com/Popolzen/shortlinks/internal/config"
	"go.uber.org/zap"
)

// таймаут чтения заголовков, тело загрузки читается дольше
const readHeaderTimeout = 10 * time.Second

// Server HTTP сервер поверх собранного приложения
type Server struct {
	server *http.Server
	app    *app.App
	log    *zap.SugaredLogger
}

func newServer(cfg *config.Config, a *app.App, log *zap.SugaredLogger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              cfg.GetAddress(),
			Handler:           a.Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		app: a,
		log: log,
	}
}

// Shutdown выполняет graceful shutdown с таймаутом
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Останавливаем HTTP сервер...")
	if err := s.server.Shutdown(ctx); err != nil {
		s.app.Close()
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}
	return s.app.Close()
}
