package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/Popolzen/shortlinks/internal/model"
	migration "github.com/Popolzen/shortlinks/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// === Setup ===

// setupTestDB поднимает PostgreSQL в Docker, накатывает миграции и возвращает репозиторий.
// Контейнер автоматически остановится после теста.
func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("пропускаем тест с контейнером в режиме -short")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			// "database system is ready" появляется дважды в логах postgres
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	require.NoError(t, migration.MigrateUp(db))

	return NewRepository(db)
}

func TestRepository(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	t.Run("Create и GetByCode", func(t *testing.T) {
		link := &model.Link{Code: "abc123", URL: "https://example.com/путь", Description: "d", Tags: "a,b", IsActive: true}
		require.NoError(t, repo.Create(ctx, link))
		assert.NotZero(t, link.ID)
		assert.False(t, link.CreatedAt.IsZero())

		got, err := repo.GetByCode(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/путь", got.URL)
		assert.Equal(t, "a,b", got.Tags)
		assert.True(t, got.IsActive)
		assert.Nil(t, got.TemplateID)
	})

	t.Run("Конфликт кода", func(t *testing.T) {
		err := repo.Create(ctx, &model.Link{Code: "abc123", URL: "https://other.com", IsActive: true})
		assert.ErrorIs(t, err, model.ErrCodeConflict)
	})

	t.Run("Слишком длинный код", func(t *testing.T) {
		err := repo.Create(ctx, &model.Link{Code: fmt.Sprintf("%051d", 1), URL: "https://x.com"})
		assert.Error(t, err)
	})

	t.Run("Не найдено", func(t *testing.T) {
		_, err := repo.GetByCode(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("Exists", func(t *testing.T) {
		ok, err := repo.Exists(ctx, "abc123")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Exists(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("CreateBatch атомарен", func(t *testing.T) {
		before, err := repo.Count(ctx)
		require.NoError(t, err)

		err = repo.CreateBatch(ctx, []*model.Link{
			{Code: "batch1", URL: "https://a.com", IsActive: true},
			{Code: "abc123", URL: "https://b.com", IsActive: true},
		})
		assert.ErrorIs(t, err, model.ErrCodeConflict)

		after, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("CreateBatch и ListAfter", func(t *testing.T) {
		batch := make([]*model.Link, 0, 5)
		for i := range 5 {
			batch = append(batch, &model.Link{Code: fmt.Sprintf("page%d", i), URL: "https://p.com", IsActive: true})
		}
		require.NoError(t, repo.CreateBatch(ctx, batch))

		page, err := repo.ListAfter(ctx, batch[0].ID, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "page1", page[0].Code)
		assert.Equal(t, "page2", page[1].Code)
	})

	t.Run("SetActive", func(t *testing.T) {
		require.NoError(t, repo.SetActive(ctx, "abc123", false))
		got, err := repo.GetByCode(ctx, "abc123")
		require.NoError(t, err)
		assert.False(t, got.IsActive)

		assert.ErrorIs(t, repo.SetActive(ctx, "missing", false), model.ErrNotFound)
	})

	t.Run("Шаблоны", func(t *testing.T) {
		tpl := &model.Template{Name: "url", URLPattern: "{гиперссылка}"}
		require.NoError(t, repo.EnsureTemplate(ctx, tpl))
		again := &model.Template{Name: "другое имя", URLPattern: "{гиперссылка}"}
		require.NoError(t, repo.EnsureTemplate(ctx, again))
		assert.Equal(t, tpl.ID, again.ID)

		link := &model.Link{
			Code:           "tpl1",
			URL:            "https://x.com",
			TemplateID:     &tpl.ID,
			TemplateFields: map[string]string{"гиперссылка": "https://x.com"},
			IsActive:       true,
		}
		require.NoError(t, repo.Create(ctx, link))

		got, err := repo.GetByCode(ctx, "tpl1")
		require.NoError(t, err)
		require.NotNil(t, got.TemplateID)
		assert.Equal(t, tpl.ID, *got.TemplateID)
		assert.Equal(t, "https://x.com", got.TemplateFields["гиперссылка"])

		assert.ErrorIs(t, repo.DeleteTemplate(ctx, tpl.ID), model.ErrTemplateInUse)
		assert.ErrorIs(t, repo.DeleteTemplate(ctx, 100500), model.ErrNotFound)
	})

	t.Run("Неизвестный шаблон", func(t *testing.T) {
		missing := int64(100500)
		err := repo.Create(ctx, &model.Link{Code: "tpl2", URL: "https://x.com", TemplateID: &missing})
		assert.True(t, model.IsValidation(err))
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}
