package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, DefaultServerAddr, c.ServerAddr)
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
	assert.Equal(t, DefaultBaseURL, c.DomainName)
	assert.Equal(t, QueueLocal, c.QueueBackend)
	assert.Equal(t, JobModeAsync, c.JobMode)
	assert.Equal(t, 300*time.Second, c.JobTimeout)
	assert.False(t, c.UseDatabase())
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	// файл < .env < окружение
	cfgFile := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`{
		"server_address": ":9000",
		"base_url": "http://file.local/",
		"job_mode": "sync",
		"code_length": 8
	}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DOMAIN_NAME=https://sh.rt\nCODE_LENGTH=7\n"), 0o644))
	// godotenv пишет прямо в окружение процесса
	t.Cleanup(func() {
		os.Unsetenv("DOMAIN_NAME")
		os.Unsetenv("CODE_LENGTH")
	})
	t.Setenv("SERVER_ADDRESS", ":9100")
	t.Setenv("JOB_TIMEOUT", "90s")
	t.Setenv("CORS_ORIGINS", "http://a.com,http://b.com")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")

	c, err := Load(cfgFile)

	require.NoError(t, err)
	assert.Equal(t, ":9100", c.ServerAddr)
	assert.Equal(t, "http://file.local", c.BaseURL)
	assert.Equal(t, "https://sh.rt", c.DomainName)
	assert.Equal(t, JobModeSync, c.JobMode)
	assert.Equal(t, 7, c.CodeLength)
	assert.Equal(t, 90*time.Second, c.JobTimeout)
	assert.Equal(t, []string{"http://a.com", "http://b.com"}, c.CORSOrigins)
	assert.Equal(t, int64(1<<20), c.MaxUploadBytes)
}

func TestLoad_BadFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "нет.json"))
	assert.Error(t, err)

	broken := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0o644))
	_, err = Load(broken)
	assert.Error(t, err)
}

func TestBindFlags(t *testing.T) {
	c := Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.bindFlags(fs)

	require.NoError(t, fs.Parse([]string{"-a", ":7000", "-queue", "asynq", "-c", "ignored.json"}))

	assert.Equal(t, ":7000", c.ServerAddr)
	assert.Equal(t, QueueAsynq, c.QueueBackend)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CONFIG", "from-env.json")

	assert.Equal(t, "a.json", getConfigPath([]string{"-a", ":1", "-c", "a.json"}))
	assert.Equal(t, "b.json", getConfigPath([]string{"-config", "b.json"}))
	assert.Equal(t, "from-env.json", getConfigPath([]string{"-a", ":1"}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{name: "относительный BASE_URL", modify: func(c *Config) { c.BaseURL = "localhost:8080" }},
		{name: "неизвестная очередь", modify: func(c *Config) { c.QueueBackend = "kafka" }},
		{name: "неизвестный режим", modify: func(c *Config) { c.JobMode = "maybe" }},
		{name: "asynq без redis", modify: func(c *Config) { c.QueueBackend = QueueAsynq; c.RedisAddr = "" }},
		{name: "asynq без базы", modify: func(c *Config) { c.QueueBackend = QueueAsynq; c.RedisAddr = "localhost:6379"; c.DBurl = "" }},
		{name: "нулевое хранение задач", modify: func(c *Config) { c.JobRetention = 0 }},
		{name: "отрицательное хранение задач", modify: func(c *Config) { c.JobRetention = -time.Hour }},
		{name: "длина кода", modify: func(c *Config) { c.CodeLength = 51 }},
		{name: "нулевая пачка", modify: func(c *Config) { c.ImportBatchSize = 0 }},
		{name: "интервалы опроса", modify: func(c *Config) { c.PollMaxInterval = time.Millisecond }},
		{name: "лимит загрузки", modify: func(c *Config) { c.MaxUploadBytes = 0 }},
	}

	require.NoError(t, Default().Validate())

	asynq := Default()
	asynq.QueueBackend = QueueAsynq
	asynq.RedisAddr = "localhost:6379"
	asynq.DBurl = "postgres://localhost/links"
	require.NoError(t, asynq.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			assert.Error(t, c.Validate())
		})
	}
}
