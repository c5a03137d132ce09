// Package bulk выполняет массовый импорт ссылок из xlsx и экспорт в zip архив.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/Popolzen/shortlinks/internal/repository"
	"github.com/Popolzen/shortlinks/internal/service/shortener"
	"github.com/Popolzen/shortlinks/internal/sheet"
	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize     = 1000
	DefaultProgressEvery = 10

	// maxBatchAttempts сколько раз перегенерируем коды пачки при конфликте в хранилище
	maxBatchAttempts = 3
	maxNameLength    = 255
)

// Этапы импорта
const (
	StageImportRows  = "Обработка строк"
	StageImportSave  = "Сохранение пачки"
	StageImportReady = "Готово"
)

// ImportOptions настройки импорта
type ImportOptions struct {
	BatchSize     int
	ProgressEvery int
}

// Importer создаёт ссылки из строк таблицы.
// Пачки коммитятся независимо: при падении посередине уже сохранённые пачки остаются.
type Importer struct {
	repo  repository.LinkRepository
	codes *shortener.CodeGenerator
	opts  ImportOptions
	log   *zap.SugaredLogger
}

func NewImporter(repo repository.LinkRepository, codes *shortener.CodeGenerator, opts ImportOptions, log *zap.SugaredLogger) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	return &Importer{repo: repo, codes: codes, opts: opts, log: log}
}

// Import разбирает xlsx и создаёт ссылки для строк, где url начинается с http.
// Остальные строки считаются обработанными, но пропускаются.
func (im *Importer) Import(ctx context.Context, data []byte, baseURL string, progress model.ProgressFunc) (model.ImportResult, error) {
	res := model.ImportResult{CreatedLinks: []model.CreatedLink{}}

	table, err := sheet.Open(data)
	if err != nil {
		return res, err
	}
	defer table.Close()

	total := table.Total()
	report := func(stage string) {
		if progress != nil {
			progress(model.NewProgress(res.Processed, total, stage))
		}
	}
	report(StageImportRows)

	batch := make([]*model.Link, 0, min(im.opts.BatchSize, total))
	err = table.Each(func(row sheet.Row) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Processed++

		if row.URL != "" && strings.HasPrefix(row.URL, "http") {
			batch = append(batch, &model.Link{
				URL:         row.URL,
				Name:        truncate(strings.TrimSpace(row.Name), maxNameLength),
				Description: row.Description,
				Tags:        shortener.CleanTags(row.Tags),
				IsActive:    true,
			})
		} else {
			im.log.Debugw("строка пропущена", "row", row.Index, "value", row.URL)
		}

		if len(batch) >= im.opts.BatchSize {
			if err := im.flush(ctx, batch, baseURL, &res); err != nil {
				return err
			}
			batch = batch[:0]
			report(StageImportSave)
		} else if res.Processed%im.opts.ProgressEvery == 0 {
			report(StageImportRows)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	if len(batch) > 0 {
		if err := im.flush(ctx, batch, baseURL, &res); err != nil {
			return res, err
		}
		report(StageImportSave)
	}
	report(StageImportReady)

	im.log.Infow("импорт завершён", "processed", res.Processed, "created", res.Created)
	return res, nil
}

// flush выдаёт пачке свежие коды и сохраняет её одной транзакцией.
// Если код успели занять между проверкой и вставкой, коды генерируются заново.
func (im *Importer) flush(ctx context.Context, batch []*model.Link, baseURL string, res *model.ImportResult) error {
	for attempt := 1; attempt <= maxBatchAttempts; attempt++ {
		taken := mapset.NewThreadUnsafeSetWithSize[string](len(batch))
		for _, l := range batch {
			code, err := im.codes.GenerateExcluding(ctx, taken)
			if err != nil {
				return err
			}
			taken.Add(code)
			l.Code = code
		}

		err := im.repo.CreateBatch(ctx, batch)
		if errors.Is(err, model.ErrCodeConflict) {
			im.log.Warnw("конфликт кодов в пачке, повторяем", "attempt", attempt, "size", len(batch))
			continue
		}
		if err != nil {
			return fmt.Errorf("ошибка сохранения пачки: %w", err)
		}

		for _, l := range batch {
			res.CreatedLinks = append(res.CreatedLinks, model.CreatedLink{
				OriginalURL: l.URL,
				ShortURL:    shortener.ShortURL(baseURL, l.Code),
				Description: l.Description,
				Tags:        l.Tags,
			})
		}
		res.Created += len(batch)
		return nil
	}
	return fmt.Errorf("не удалось сохранить пачку за %d попыток: %w", maxBatchAttempts, model.ErrCodeConflict)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
