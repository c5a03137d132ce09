package repository

import (
	"context"

	"github.com/Popolzen/shortlinks/internal/model"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_repository.go -package=mocks

// LinkRepository хранилище ссылок.
// Уникальность code обеспечивает само хранилище: при коллизии возвращается model.ErrCodeConflict.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	// CreateBatch сохраняет пачку атомарно, при конфликте не сохраняется ничего
	CreateBatch(ctx context.Context, links []*model.Link) error
	GetByCode(ctx context.Context, code string) (model.Link, error)
	Exists(ctx context.Context, code string) (bool, error)
	List(ctx context.Context) ([]model.Link, error)
	// ListAfter отдаёт до limit ссылок с id > afterID по возрастанию id
	ListAfter(ctx context.Context, afterID int64, limit int) ([]model.Link, error)
	Count(ctx context.Context) (int, error)
	SetActive(ctx context.Context, code string, active bool) error
}

// TemplateRepository хранилище шаблонов
type TemplateRepository interface {
	// EnsureTemplate создаёт шаблон, если шаблона с таким url_pattern ещё нет
	EnsureTemplate(ctx context.Context, t *model.Template) error
	GetTemplate(ctx context.Context, id int64) (model.Template, error)
	ListTemplates(ctx context.Context) ([]model.Template, error)
	// DeleteTemplate возвращает model.ErrTemplateInUse, если на шаблон ссылаются
	DeleteTemplate(ctx context.Context, id int64) error
}

// Repository всё хранилище целиком
type Repository interface {
	LinkRepository
	TemplateRepository
	Ping(ctx context.Context) error
	Close() error
}
