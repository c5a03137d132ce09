package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

const (
	DefaultServerAddr    = ":8080"
	DefaultBaseURL       = "http://localhost:8080"
	DefaultFilePath      = "storage.json"
	DefaultAuditFilePath = "audit_storage.json"
	DefaultPprofAddr     = "localhost:6060"
	DefaultLogLevel      = "info"

	DefaultRedisAddr         = "localhost:6379"
	DefaultQueueName         = "shortlinks"
	DefaultWorkerConcurrency = 4

	DefaultJobTimeout      = 300 * time.Second
	DefaultPollInterval    = 200 * time.Millisecond
	DefaultPollMaxInterval = 2 * time.Second
	DefaultJobRetention    = 24 * time.Hour

	DefaultImportBatchSize     = 1000
	DefaultImportProgressEvery = 10
	DefaultExportChunkSize     = 1000
	DefaultExportDir           = "exports"
	DefaultExportTTL           = time.Hour
	DefaultExportSweepSchedule = "@every 10m"

	DefaultCodeLength     = 6
	DefaultMaxUploadBytes = 20 << 20
)

// Очереди задач
const (
	QueueLocal = "local"
	QueueAsynq = "asynq"
)

// Режимы ответа на импорт и экспорт
const (
	JobModeAsync = "async"
	JobModeSync  = "sync"
)

// Config содержит конфигурацию приложения
type Config struct {
	ServerAddr string `json:"server_address" env:"SERVER_ADDRESS"`
	BaseURL    string `json:"base_url" env:"BASE_URL"`
	// DomainName префикс кода в списке ссылок, по умолчанию BaseURL
	DomainName  string   `json:"domain_name" env:"DOMAIN_NAME"`
	FilePath    string   `json:"file_storage_path" env:"FILE_STORAGE_PATH"`
	DBurl       string   `json:"database_dsn" env:"DATABASE_DSN"`
	LogLevel    string   `json:"log_level" env:"LOG_LEVEL"`
	AuditFile   string   `json:"audit_file" env:"AUDIT_FILE"`
	AuditURL    string   `json:"audit_url" env:"AUDIT_URL"`
	PprofAddr   string   `json:"pprof_address" env:"PPROF_ADDRESS"`
	CORSOrigins []string `json:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`

	RedisAddr         string `json:"redis_address" env:"REDIS_ADDRESS"`
	RedisPassword     string `json:"-" env:"REDIS_PASSWORD"`
	RedisDB           int    `json:"redis_db" env:"REDIS_DB"`
	QueueBackend      string `json:"queue_backend" env:"QUEUE_BACKEND"`
	QueueName         string `json:"queue_name" env:"QUEUE_NAME"`
	WorkerConcurrency int    `json:"worker_concurrency" env:"WORKER_CONCURRENCY"`

	JobMode         string        `json:"job_mode" env:"JOB_MODE"`
	JobTimeout      time.Duration `json:"-" env:"JOB_TIMEOUT"`
	PollInterval    time.Duration `json:"-" env:"JOB_POLL_INTERVAL"`
	PollMaxInterval time.Duration `json:"-" env:"JOB_POLL_MAX_INTERVAL"`
	JobRetention    time.Duration `json:"-" env:"JOB_RETENTION"`

	ImportBatchSize     int           `json:"import_batch_size" env:"IMPORT_BATCH_SIZE"`
	ImportProgressEvery int           `json:"import_progress_every" env:"IMPORT_PROGRESS_EVERY"`
	ExportChunkSize     int           `json:"export_chunk_size" env:"EXPORT_CHUNK_SIZE"`
	ExportDir           string        `json:"export_dir" env:"EXPORT_DIR"`
	ExportTTL           time.Duration `json:"-" env:"EXPORT_TTL"`
	ExportSweepSchedule string        `json:"export_sweep_schedule" env:"EXPORT_SWEEP_SCHEDULE"`

	CodeLength     int   `json:"code_length" env:"CODE_LENGTH"`
	MaxUploadBytes int64 `json:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
}

// Default конфигурация без внешних источников
func Default() *Config {
	return &Config{
		ServerAddr:          DefaultServerAddr,
		BaseURL:             DefaultBaseURL,
		FilePath:            DefaultFilePath,
		PprofAddr:           DefaultPprofAddr,
		AuditFile:           DefaultAuditFilePath,
		LogLevel:            DefaultLogLevel,
		RedisAddr:           DefaultRedisAddr,
		QueueBackend:        QueueLocal,
		QueueName:           DefaultQueueName,
		WorkerConcurrency:   DefaultWorkerConcurrency,
		JobMode:             JobModeAsync,
		JobTimeout:          DefaultJobTimeout,
		PollInterval:        DefaultPollInterval,
		PollMaxInterval:     DefaultPollMaxInterval,
		JobRetention:        DefaultJobRetention,
		ImportBatchSize:     DefaultImportBatchSize,
		ImportProgressEvery: DefaultImportProgressEvery,
		ExportChunkSize:     DefaultExportChunkSize,
		ExportDir:           DefaultExportDir,
		ExportTTL:           DefaultExportTTL,
		ExportSweepSchedule: DefaultExportSweepSchedule,
		CodeLength:          DefaultCodeLength,
		MaxUploadBytes:      DefaultMaxUploadBytes,
	}
}

// NewConfig собирает конфигурацию сервера: значения по умолчанию, .env,
// JSON файл (-c/-config или CONFIG), переменные окружения, флаги.
func NewConfig() (*Config, error) {
	c, err := load(getConfigPath(os.Args[1:]))
	if err != nil {
		return nil, err
	}
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	c.bindFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}
	return c, c.finish()
}

// Load то же, что NewConfig, но без флагов командной строки.
// Используется CLI, у которого свои флаги.
func Load(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG")
	}
	c, err := load(configFile)
	if err != nil {
		return nil, err
	}
	return c, c.finish()
}

func load(configFile string) (*Config, error) {
	// .env не обязателен, уже заданные переменные он не перетирает
	_ = godotenv.Load()

	c := Default()
	if err := c.loadFromFile(configFile); err != nil {
		return nil, err
	}
	if err := c.getArgsFromEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) finish() error {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.DomainName == "" {
		c.DomainName = c.BaseURL
	}
	c.DomainName = strings.TrimRight(c.DomainName, "/")
	return c.Validate()
}

func getConfigPath(args []string) string {
	for i, arg := range args {
		if (arg == "-c" || arg == "-config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("CONFIG")
}

func (c *Config) loadFromFile(filename string) error {
	if filename == "" {
		return nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("не удалось прочитать файл конфигурации: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("некорректный файл конфигурации %s: %w", filename, err)
	}
	return nil
}

func (c *Config) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ServerAddr, "a", c.ServerAddr, "server host")
	fs.StringVar(&c.BaseURL, "b", c.BaseURL, "base url for short links")
	fs.StringVar(&c.FilePath, "f", c.FilePath, "file storage path")
	fs.StringVar(&c.DBurl, "d", c.DBurl, "database DSN")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
	fs.StringVar(&c.AuditFile, "audit-file", c.AuditFile, "audit file path")
	fs.StringVar(&c.AuditURL, "audit-url", c.AuditURL, "audit server URL")
	fs.StringVar(&c.PprofAddr, "pprof", c.PprofAddr, "pprof server address")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "redis address")
	fs.StringVar(&c.QueueBackend, "queue", c.QueueBackend, "job queue backend: local or asynq")
	fs.StringVar(&c.JobMode, "job-mode", c.JobMode, "job response mode: async or sync")
	fs.StringVar(&c.ExportDir, "export-dir", c.ExportDir, "export archives directory")
	fs.String("c", "", "config file path")
	fs.String("config", "", "config file path")
}

func (c *Config) getArgsFromEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("ошибка чтения переменных окружения: %w", err)
	}
	return nil
}

// Validate проверяет перечисления и диапазоны
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("BASE_URL должен быть абсолютным http(s) адресом: %q", c.BaseURL))
	}
	switch c.QueueBackend {
	case QueueLocal, QueueAsynq:
	default:
		errs = append(errs, fmt.Errorf("QUEUE_BACKEND: неизвестное значение %q", c.QueueBackend))
	}
	switch c.JobMode {
	case JobModeAsync, JobModeSync:
	default:
		errs = append(errs, fmt.Errorf("JOB_MODE: неизвестное значение %q", c.JobMode))
	}
	if c.QueueBackend == QueueAsynq && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDRESS обязателен для очереди asynq"))
	}
	// воркер asynq работает в отдельном процессе и видит только общую базу
	if c.QueueBackend == QueueAsynq && !c.UseDatabase() {
		errs = append(errs, errors.New("DATABASE_DSN обязателен для очереди asynq"))
	}
	if c.JobRetention <= 0 {
		errs = append(errs, errors.New("JOB_RETENTION должен быть больше нуля"))
	}
	if c.WorkerConcurrency < 1 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY должен быть больше нуля"))
	}
	if c.JobTimeout <= 0 || c.PollInterval <= 0 || c.PollMaxInterval < c.PollInterval {
		errs = append(errs, errors.New("некорректные JOB_TIMEOUT / JOB_POLL_INTERVAL / JOB_POLL_MAX_INTERVAL"))
	}
	if c.ImportBatchSize < 1 || c.ImportProgressEvery < 1 || c.ExportChunkSize < 1 {
		errs = append(errs, errors.New("размеры пачек должны быть больше нуля"))
	}
	if c.CodeLength < 1 || c.CodeLength > 50 {
		errs = append(errs, fmt.Errorf("CODE_LENGTH должен быть от 1 до 50: %d", c.CodeLength))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES должен быть больше нуля"))
	}
	if c.ExportDir == "" {
		errs = append(errs, errors.New("EXPORT_DIR не задан"))
	}
	return errors.Join(errs...)
}

// UseDatabase true если задан DSN
func (c Config) UseDatabase() bool {
	return c.DBurl != ""
}

func (c Config) GetAddress() string {
	return c.ServerAddr
}

func (c Config) GetBaseURL() string {
	return c.BaseURL
}

func (c Config) GetFilePath() string {
	return c.FilePath
}

func (c Config) GetAuditFile() string {
	return c.AuditFile
}

func (c Config) GetAuditURL() string {
	return c.AuditURL
}
