package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"github.com/Popolzen/shortlinks/internal/app"
	"github.com/Popolzen/shortlinks/internal/config"
	"github.com/Popolzen/shortlinks/internal/logger"
	"github.com/gin-gonic/gin"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

const shutdownTimeout = 30 * time.Second

func main() {
	printBuildInfo()

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("не удалось инициализировать логгер: %w", err)
	}
	defer zl.Sync()
	sugar := zl.Sugar()

	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Запускаем pprof сервер на настраиваемом порту
	if cfg.PprofAddr != "" {
		go func() {
			sugar.Infof("pprof сервер запущен на http://%s/debug/pprof/", cfg.PprofAddr)
			if err := http.ListenAndServe(cfg.PprofAddr, nil); err != nil {
				sugar.Warnw("Ошибка запуска pprof сервера", "error", err)
			}
		}()
	}

	a, err := app.New(ctx, cfg, sugar)
	if err != nil {
		return err
	}
	if err := a.StartCleaner(); err != nil {
		a.Close()
		return err
	}

	srv := newServer(cfg, a, sugar)

	errCh := make(chan error, 1)
	go func() {
		sugar.Infof("Сервис коротких ссылок запущен на http://%s", cfg.GetAddress())
		if err := srv.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		sugar.Info("Получен сигнал остановки, завершаем работу...")
	case err := <-errCh:
		if err != nil {
			a.Close()
			return fmt.Errorf("не удалось запустить сервер: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	sugar.Info("Сервис остановлен gracefully")
	return nil
}

func printBuildInfo() {
	version := "N/A"
	date := "N/A"
	commit := "N/A"

	if buildVersion != "" {
		version = buildVersion
	}
	if buildDate != "" {
		date = buildDate
	}
	if buildCommit != "" {
		commit = buildCommit
	}

	fmt.Printf("Build version: %s\n", version)
	fmt.Printf("Build date: %s\n", date)
	fmt.Printf("Build commit: %s\n", commit)
}
