// Package app собирает зависимости сервера и CLI: хранилище, сервисы,
// очередь задач, хранилище архивов и аудит.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Popolzen/shortlinks/internal/archive"
	"github.com/Popolzen/shortlinks/internal/audit"
	"github.com/Popolzen/shortlinks/internal/config"
	"github.com/Popolzen/shortlinks/internal/config/db"
	"github.com/Popolzen/shortlinks/internal/handler"
	"github.com/Popolzen/shortlinks/internal/jobs"
	"github.com/Popolzen/shortlinks/internal/jobs/asynqueue"
	"github.com/Popolzen/shortlinks/internal/repository"
	"github.com/Popolzen/shortlinks/internal/repository/database"
	"github.com/Popolzen/shortlinks/internal/repository/filestorage"
	"github.com/Popolzen/shortlinks/internal/repository/memory"
	"github.com/Popolzen/shortlinks/internal/service/bulk"
	"github.com/Popolzen/shortlinks/internal/service/shortener"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// ErrLocalQueue отдельный воркер нужен только очереди asynq
var ErrLocalQueue = errors.New("очередь local выполняет задачи внутри сервера")

// App всё, что нужно серверу и CLI
type App struct {
	Config   *config.Config
	Log      *zap.SugaredLogger
	Repo     repository.Repository
	Links    *shortener.LinkService
	Importer *bulk.Importer
	Exporter *bulk.Exporter
	Runner   *jobs.Runner
	Archives *archive.Store
	Progress jobs.ProgressStore
	Queue    jobs.Queue
	Waiter   *jobs.Waiter
	Audit    *audit.Publisher

	cleaner *archive.Cleaner
	redis   *asynqueue.RedisProgressStore
}

// OpenRepository выбирает хранилище: БД, если задан DSN, иначе файл, иначе память
func OpenRepository(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (repository.Repository, error) {
	switch {
	case cfg.UseDatabase():
		dbInstance, err := db.NewDataBase(ctx, *cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		if err := dbInstance.Migrate(); err != nil {
			dbInstance.Close()
			return nil, fmt.Errorf("ошибка выполнения миграций: %w", err)
		}
		log.Info("Используется БД репозиторий")
		return database.NewRepository(dbInstance.DB), nil
	case cfg.GetFilePath() != "":
		repo, err := filestorage.Open(cfg.GetFilePath())
		if err != nil {
			return nil, err
		}
		log.Infow("Используется файл", "path", cfg.GetFilePath())
		return repo, nil
	default:
		log.Info("Используется память")
		return memory.NewRepository(), nil
	}
}

// New собирает приложение. Шаблоны по умолчанию заводятся при каждом старте,
// повторно они не дублируются.
func New(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	repo, err := OpenRepository(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Log: log, Repo: repo}

	codes := shortener.NewCodeGenerator(repo, cfg.CodeLength)
	a.Links = shortener.NewLinkService(repo, codes)
	if _, err := a.Links.SeedTemplates(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ошибка заведения шаблонов: %w", err)
	}

	if a.Archives, err = archive.NewStore(cfg.ExportDir); err != nil {
		a.Close()
		return nil, err
	}
	a.Importer = bulk.NewImporter(repo, codes, bulk.ImportOptions{
		BatchSize:     cfg.ImportBatchSize,
		ProgressEvery: cfg.ImportProgressEvery,
	}, log)
	a.Exporter = bulk.NewExporter(repo, a.Archives, cfg.ExportChunkSize, log)
	a.Runner = jobs.NewRunner(a.Importer, a.Exporter, log)

	a.Audit = initAudit(cfg, log)

	if err := a.openQueue(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.Waiter = jobs.NewWaiter(a.Queue, cfg.JobTimeout, cfg.PollInterval, cfg.PollMaxInterval)
	return a, nil
}

func (a *App) asynqOptions() asynqueue.Options {
	return asynqueue.Options{
		Addr:      a.Config.RedisAddr,
		Password:  a.Config.RedisPassword,
		DB:        a.Config.RedisDB,
		Queue:     a.Config.QueueName,
		Retention: a.Config.JobRetention,
	}
}

func (a *App) openQueue(ctx context.Context) error {
	switch a.Config.QueueBackend {
	case config.QueueAsynq:
		opts := a.asynqOptions()
		a.redis = asynqueue.NewRedisProgressStore(asynqueue.NewRedisClient(opts), a.Config.JobRetention)
		if err := a.redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis недоступен: %w", err)
		}
		a.Progress = a.redis
		a.Queue = asynqueue.NewClient(opts, a.redis, a.Log)
		a.Log.Infow("Очередь задач asynq", "redis", opts.Addr, "queue", opts.Queue)
	default:
		progress := jobs.NewMemoryProgressStore()
		a.Progress = progress
		a.Queue = jobs.NewLocalQueue(a.Runner, progress, jobs.LocalOptions{
			Workers:   a.Config.WorkerConcurrency,
			Buffer:    a.Config.WorkerConcurrency * 16,
			Retention: a.Config.JobRetention,
		}, a.Log)
		a.Log.Infow("Очередь задач в процессе", "workers", a.Config.WorkerConcurrency)
	}
	return nil
}

// NewWorker воркер asynq для отдельного процесса
func (a *App) NewWorker() (*asynqueue.Worker, error) {
	if a.Config.QueueBackend != config.QueueAsynq {
		return nil, ErrLocalQueue
	}
	return asynqueue.NewWorker(a.asynqOptions(), a.Config.WorkerConcurrency, a.Runner, a.Progress, a.Log), nil
}

// StartCleaner запускает периодическую очистку брошенных архивов
func (a *App) StartCleaner() error {
	c, err := archive.NewCleaner(a.Archives, a.Config.ExportTTL, a.Config.ExportSweepSchedule, a.Log)
	if err != nil {
		return fmt.Errorf("некорректное расписание очистки %q: %w", a.Config.ExportSweepSchedule, err)
	}
	a.cleaner = c
	c.Start()
	return nil
}

// Handler роутер сервиса, при заданных CORS_ORIGINS обёрнутый в CORS
func (a *App) Handler() http.Handler {
	r := handler.NewRouter(handler.Deps{
		Links:    a.Links,
		Store:    a.Repo,
		Queue:    a.Queue,
		Waiter:   a.Waiter,
		Archives: a.Archives,
		Config:   a.Config,
		Audit:    a.Audit,
		Log:      a.Log,
	})
	if len(a.Config.CORSOrigins) == 0 {
		return r
	}
	c := cors.New(cors.Options{
		AllowedOrigins: a.Config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	})
	return c.Handler(r)
}

// Close останавливает очередь и закрывает ресурсы.
// Очередь закрывается первой, чтобы задачи не писали в закрытое хранилище.
func (a *App) Close() error {
	var errs []error

	if a.Queue != nil {
		a.Log.Info("Закрываем очередь задач...")
		if err := a.Queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("очередь: %w", err))
		}
	}
	if a.cleaner != nil {
		a.cleaner.Stop()
	}
	if a.Audit != nil {
		a.Log.Info("Закрываем audit publisher...")
		if err := a.Audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("аудит: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.Repo != nil {
		a.Log.Info("Закрываем репозиторий...")
		if err := a.Repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("репозиторий: %w", err))
		}
	}
	return errors.Join(errs...)
}

// initAudit подписывает наблюдателей из конфигурации
func initAudit(cfg *config.Config, log *zap.SugaredLogger) *audit.Publisher {
	publisher := audit.NewPublisher(log)

	if cfg.GetAuditFile() != "" {
		fileObs, err := audit.NewFileObserver(cfg.GetAuditFile(), log)
		if err != nil {
			log.Warnw("Не удалось создать file observer", "error", err)
		} else {
			publisher.Subscribe(fileObs)
			log.Infow("Аудит в файл", "path", cfg.GetAuditFile())
		}
	}

	if cfg.GetAuditURL() != "" {
		publisher.Subscribe(audit.NewHTTPObserver(cfg.GetAuditURL(), log))
		log.Infow("Аудит на сервер", "url", cfg.GetAuditURL())
	}

	return publisher
}
