package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository хранилище ссылок и шаблонов в PostgreSQL
type Repository struct {
	DB *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

const linkColumns = `id, url, code, name, description, tags, template_id, template_fields, created_at, is_active`

// mapPgError переводит коды PostgreSQL в ошибки модели.
// fkErr - во что превращается нарушение внешнего ключа в данном запросе.
func mapPgError(err error, fkErr error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return model.ErrCodeConflict
	case pgerrcode.CheckViolation:
		return model.NewValidationError("code", "длина кода должна быть от 1 до 50 символов")
	case pgerrcode.ForeignKeyViolation:
		return fkErr
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(row scanner) (model.Link, error) {
	var (
		l          model.Link
		templateID sql.NullInt64
		fields     []byte
	)
	err := row.Scan(&l.ID, &l.URL, &l.Code, &l.Name, &l.Description, &l.Tags, &templateID, &fields, &l.CreatedAt, &l.IsActive)
	if err != nil {
		return l, err
	}
	if templateID.Valid {
		id := templateID.Int64
		l.TemplateID = &id
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &l.TemplateFields); err != nil {
			return l, fmt.Errorf("ошибка разбора template_fields: %w", err)
		}
	}
	return l, nil
}

func fieldsArg(fields map[string]string) (any, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации template_fields: %w", err)
	}
	return string(data), nil
}

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertLink(ctx context.Context, ex execer, link *model.Link) error {
	query := `
    INSERT INTO links (url, code, name, description, tags, template_id, template_fields, is_active)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    RETURNING id, created_at
`
	fields, err := fieldsArg(link.TemplateFields)
	if err != nil {
		return err
	}
	err = ex.QueryRowContext(ctx, query,
		link.URL, link.Code, link.Name, link.Description, link.Tags, link.TemplateID, fields, link.IsActive,
	).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		return mapPgError(err, model.NewValidationError("template", "шаблон не найден"))
	}
	return nil
}

// Create сохраняет ссылку
func (r *Repository) Create(ctx context.Context, link *model.Link) error {
	if err := insertLink(ctx, r.DB, link); err != nil {
		return fmt.Errorf("ошибка при сохранении ссылки: %w", err)
	}
	return nil
}

// CreateBatch сохраняет пачку ссылок в одной транзакции
func (r *Repository) CreateBatch(ctx context.Context, links []*model.Link) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	for _, link := range links {
		if err := insertLink(ctx, tx, link); err != nil {
			return fmt.Errorf("ошибка при сохранении пачки: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка коммита пачки: %w", err)
	}
	return nil
}

// GetByCode получает ссылку по коду
func (r *Repository) GetByCode(ctx context.Context, code string) (model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE code = $1`

	link, err := scanLink(r.DB.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Link{}, model.ErrNotFound
		}
		return model.Link{}, fmt.Errorf("ошибка при получении ссылки: %w", err)
	}
	return link, nil
}

// Exists проверяет, занят ли код
func (r *Repository) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM links WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки кода: %w", err)
	}
	return exists, nil
}

func (r *Repository) queryLinks(ctx context.Context, query string, args ...any) ([]model.Link, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса ссылок: %w", err)
	}
	defer rows.Close()

	var links []model.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования: %w", err)
		}
		links = append(links, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации: %w", err)
	}
	return links, nil
}

// List возвращает все ссылки по порядку создания
func (r *Repository) List(ctx context.Context) ([]model.Link, error) {
	return r.queryLinks(ctx, `SELECT `+linkColumns+` FROM links ORDER BY id`)
}

// ListAfter keyset-пагинация по id
func (r *Repository) ListAfter(ctx context.Context, afterID int64, limit int) ([]model.Link, error) {
	return r.queryLinks(ctx, `SELECT `+linkColumns+` FROM links WHERE id > $1 ORDER BY id LIMIT $2`, afterID, limit)
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта ссылок: %w", err)
	}
	return n, nil
}

// SetActive меняет флаг активности
func (r *Repository) SetActive(ctx context.Context, code string, active bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE links SET is_active = $1 WHERE code = $2`, active, code)
	if err != nil {
		return fmt.Errorf("ошибка обновления ссылки: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка обновления ссылки: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// EnsureTemplate создаёт шаблон, либо возвращает существующий с тем же url_pattern
func (r *Repository) EnsureTemplate(ctx context.Context, t *model.Template) error {
	query := `
    INSERT INTO templates (name, url_pattern)
    VALUES ($1, $2)
    ON CONFLICT (url_pattern)
    DO UPDATE SET url_pattern = EXCLUDED.url_pattern
    RETURNING id, name, created_at, modified_at
`
	err := r.DB.QueryRowContext(ctx, query, t.Name, t.URLPattern).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.ModifiedAt)
	if err != nil {
		return fmt.Errorf("ошибка при сохранении шаблона: %w", err)
	}
	return nil
}

func (r *Repository) GetTemplate(ctx context.Context, id int64) (model.Template, error) {
	var t model.Template
	query := `SELECT id, name, url_pattern, created_at, modified_at FROM templates WHERE id = $1`

	err := r.DB.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.URLPattern, &t.CreatedAt, &t.ModifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, model.ErrNotFound
		}
		return t, fmt.Errorf("ошибка при получении шаблона: %w", err)
	}
	return t, nil
}

func (r *Repository) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name, url_pattern, created_at, modified_at FROM templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса шаблонов: %w", err)
	}
	defer rows.Close()

	var res []model.Template
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.URLPattern, &t.CreatedAt, &t.ModifiedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования: %w", err)
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// DeleteTemplate удаляет шаблон. Внешний ключ с RESTRICT не даёт удалить занятый.
func (r *Repository) DeleteTemplate(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления шаблона: %w", mapPgError(err, model.ErrTemplateInUse))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка удаления шаблона: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.DB.Close()
}
