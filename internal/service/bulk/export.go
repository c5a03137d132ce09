package bulk

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Popolzen/shortlinks/internal/archive"
	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/Popolzen/shortlinks/internal/qr"
	"github.com/Popolzen/shortlinks/internal/repository"
	"github.com/Popolzen/shortlinks/internal/service/shortener"
	"github.com/klauspost/compress/zip"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const DefaultChunkSize = 1000

// Имена внутри архива
const (
	SheetEntry = "links.xlsx"
	QRDir      = "qr_codes/"
)

// Этапы экспорта
const (
	StageExportSheet = "Формирование таблицы"
	StageExportQR    = "Генерация QR-кодов"
	StageExportReady = "Готово"
)

// ExportHeader заголовок листа экспорта
var ExportHeader = []any{"url", "short_url", "description", "tags"}

// Exporter собирает zip с таблицей ссылок и QR-кодами
type Exporter struct {
	repo      repository.LinkRepository
	store     *archive.Store
	chunkSize int
	log       *zap.SugaredLogger
}

func NewExporter(repo repository.LinkRepository, store *archive.Store, chunkSize int, log *zap.SugaredLogger) *Exporter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Exporter{repo: repo, store: store, chunkSize: chunkSize, log: log}
}

// exportProgress прогресс в две половины: 0-50% таблица, 50-100% QR
type exportProgress struct {
	fn   model.ProgressFunc
	last int
}

func (p *exportProgress) report(current, total, base int, stage string) {
	if p.fn == nil {
		return
	}
	pr := model.Progress{Current: current, Total: total, Stage: stage, Percent: base + 50}
	if total > 0 {
		pr.Percent = base + current*50/total
	}
	// на каждую ссылку дёргать хранилище прогресса незачем
	if pr.Percent == p.last && current != total {
		return
	}
	p.last = pr.Percent
	p.fn(pr)
}

func (p *exportProgress) done(total int) {
	if p.fn != nil {
		p.fn(model.Progress{Current: total, Total: total, Percent: 100, Stage: StageExportReady})
	}
}

// Export пишет архив задачи id в хранилище архивов.
// При любой ошибке временный файл удаляется и архив не появляется.
func (ex *Exporter) Export(ctx context.Context, id, baseURL string, generateQR bool, progress model.ProgressFunc) (model.ExportResult, error) {
	var res model.ExportResult

	total, err := ex.repo.Count(ctx)
	if err != nil {
		return res, fmt.Errorf("ошибка подсчёта ссылок: %w", err)
	}

	w, err := ex.store.Create(id)
	if err != nil {
		return res, err
	}
	defer w.Abort()

	zw := zip.NewWriter(w)
	pr := &exportProgress{fn: progress, last: -1}

	rows, lastID, err := ex.writeSheet(ctx, zw, baseURL, total, pr)
	if err != nil {
		return res, err
	}

	if generateQR {
		if err := ex.writeQR(ctx, zw, baseURL, lastID, rows, pr); err != nil {
			return res, err
		}
	}

	if err := zw.Close(); err != nil {
		return res, fmt.Errorf("ошибка закрытия архива: %w", err)
	}
	size, err := w.Commit()
	if err != nil {
		return res, err
	}
	pr.done(rows)

	path, _ := ex.store.Path(id)
	res = model.ExportResult{File: filepath.Base(path), Size: size, Links: rows}
	ex.log.Infow("экспорт завершён", "task_id", id, "links", rows, "size", size, "qr", generateQR)
	return res, nil
}

// writeSheet стримит ссылки чанками в links.xlsx. Возвращает число строк и id последней ссылки.
func (ex *Exporter) writeSheet(ctx context.Context, zw *zip.Writer, baseURL string, total int, pr *exportProgress) (int, int64, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Sheet1"
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка создания листа: %w", err)
	}
	if err := sw.SetRow("A1", ExportHeader); err != nil {
		return 0, 0, fmt.Errorf("ошибка записи заголовка: %w", err)
	}

	rows := 0
	var lastID int64
	pr.report(0, total, 0, StageExportSheet)
	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		chunk, err := ex.repo.ListAfter(ctx, lastID, ex.chunkSize)
		if err != nil {
			return 0, 0, fmt.Errorf("ошибка чтения ссылок: %w", err)
		}
		for _, l := range chunk {
			rows++
			cell, _ := excelize.CoordinatesToCellName(1, rows+1)
			err := sw.SetRow(cell, []any{l.URL, shortener.ShortURL(baseURL, l.Code), l.Description, l.Tags})
			if err != nil {
				return 0, 0, fmt.Errorf("ошибка записи строки %d: %w", rows+1, err)
			}
			// ссылки, созданные во время экспорта, могут увеличить total
			pr.report(rows, max(total, rows), 0, StageExportSheet)
		}
		if len(chunk) > 0 {
			lastID = chunk[len(chunk)-1].ID
		}
		if len(chunk) < ex.chunkSize {
			break
		}
	}

	if err := sw.Flush(); err != nil {
		return 0, 0, fmt.Errorf("ошибка записи листа: %w", err)
	}
	entry, err := zw.Create(SheetEntry)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка записи в архив: %w", err)
	}
	if err := f.Write(entry); err != nil {
		return 0, 0, fmt.Errorf("ошибка записи xlsx: %w", err)
	}
	return rows, lastID, nil
}

// writeQR второй проход по тем же ссылкам (id <= lastID): svg, png и pdf на каждую
func (ex *Exporter) writeQR(ctx context.Context, zw *zip.Writer, baseURL string, lastID int64, total int, pr *exportProgress) error {
	done := 0
	var after int64
	pr.report(0, total, 50, StageExportQR)
	for after < lastID {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := ex.repo.ListAfter(ctx, after, ex.chunkSize)
		if err != nil {
			return fmt.Errorf("ошибка чтения ссылок: %w", err)
		}
		if len(chunk) == 0 {
			break
		}
		for _, l := range chunk {
			if l.ID > lastID {
				return nil
			}
			if err := writeLinkQR(zw, shortener.ShortURL(baseURL, l.Code), l.Code); err != nil {
				return err
			}
			done++
			pr.report(done, total, 50, StageExportQR)
		}
		after = chunk[len(chunk)-1].ID
	}
	return nil
}

func writeLinkQR(zw *zip.Writer, content, code string) error {
	c, err := qr.New(content)
	if err != nil {
		return fmt.Errorf("QR для %s: %w", code, err)
	}
	png, err := c.PNG()
	if err != nil {
		return fmt.Errorf("QR для %s: %w", code, err)
	}
	pdf, err := qr.PDFFromPNG(png)
	if err != nil {
		return fmt.Errorf("QR для %s: %w", code, err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{name: code + ".svg", data: c.SVG()},
		{name: code + ".png", data: png},
		{name: code + ".pdf", data: pdf},
	}
	for _, file := range files {
		entry, err := zw.Create(QRDir + file.name)
		if err != nil {
			return fmt.Errorf("ошибка записи в архив: %w", err)
		}
		if _, err := entry.Write(file.data); err != nil {
			return fmt.Errorf("ошибка записи в архив: %w", err)
		}
	}
	return nil
}
