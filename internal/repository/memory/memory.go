package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Popolzen/shortlinks/internal/model"
)

// State снимок содержимого, используется файловым хранилищем
type State struct {
	Links     []model.Link     `json:"links"`
	Templates []model.Template `json:"templates"`
}

// Repository хранит ссылки и шаблоны в памяти процесса
type Repository struct {
	mu        sync.RWMutex
	links     []model.Link
	byCode    map[string]int
	templates map[int64]model.Template
	linkSeq   int64
	tmplSeq   int64
}

func NewRepository() *Repository {
	return &Repository{
		byCode:    map[string]int{},
		templates: map[int64]model.Template{},
	}
}

// NewFromState восстанавливает хранилище из снимка
func NewFromState(s State) *Repository {
	r := NewRepository()
	sort.Slice(s.Links, func(i, j int) bool { return s.Links[i].ID < s.Links[j].ID })
	for _, l := range s.Links {
		r.byCode[l.Code] = len(r.links)
		r.links = append(r.links, l)
		r.linkSeq = max(r.linkSeq, l.ID)
	}
	for _, t := range s.Templates {
		r.templates[t.ID] = t
		r.tmplSeq = max(r.tmplSeq, t.ID)
	}
	return r
}

// Snapshot копия текущего состояния
func (r *Repository) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := State{Links: append([]model.Link(nil), r.links...)}
	for _, t := range r.templates {
		s.Templates = append(s.Templates, t)
	}
	sort.Slice(s.Templates, func(i, j int) bool { return s.Templates[i].ID < s.Templates[j].ID })
	return s
}

func (r *Repository) Create(_ context.Context, link *model.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkLink(link); err != nil {
		return err
	}
	if _, taken := r.byCode[link.Code]; taken {
		return model.ErrCodeConflict
	}
	r.insert(link)
	return nil
}

func (r *Repository) CreateBatch(_ context.Context, links []*model.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		if err := r.checkLink(l); err != nil {
			return err
		}
		if _, taken := r.byCode[l.Code]; taken {
			return model.ErrCodeConflict
		}
		if _, dup := seen[l.Code]; dup {
			return model.ErrCodeConflict
		}
		seen[l.Code] = struct{}{}
	}
	for _, l := range links {
		r.insert(l)
	}
	return nil
}

// checkLink повторяет ограничения таблицы links
func (r *Repository) checkLink(link *model.Link) error {
	if link.Code == "" || len(link.Code) > model.MaxCodeLength {
		return model.NewValidationError("code", "длина кода должна быть от 1 до 50 символов")
	}
	if link.TemplateID != nil {
		if _, ok := r.templates[*link.TemplateID]; !ok {
			return model.NewValidationError("template", "шаблон не найден")
		}
	}
	return nil
}

func (r *Repository) insert(link *model.Link) {
	r.linkSeq++
	link.ID = r.linkSeq
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	r.byCode[link.Code] = len(r.links)
	r.links = append(r.links, *link)
}

func (r *Repository) GetByCode(_ context.Context, code string) (model.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byCode[code]
	if !ok {
		return model.Link{}, model.ErrNotFound
	}
	return r.links[i], nil
}

func (r *Repository) Exists(_ context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byCode[code]
	return ok, nil
}

func (r *Repository) List(_ context.Context) ([]model.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]model.Link{}, r.links...), nil
}

func (r *Repository) ListAfter(_ context.Context, afterID int64, limit int) ([]model.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// id растут монотонно, поэтому слайс уже отсортирован
	start := sort.Search(len(r.links), func(i int) bool { return r.links[i].ID > afterID })
	end := min(start+limit, len(r.links))
	return append([]model.Link{}, r.links[start:end]...), nil
}

func (r *Repository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.links), nil
}

func (r *Repository) SetActive(_ context.Context, code string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byCode[code]
	if !ok {
		return model.ErrNotFound
	}
	r.links[i].IsActive = active
	return nil
}

func (r *Repository) EnsureTemplate(_ context.Context, t *model.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.templates {
		if existing.URLPattern == t.URLPattern {
			*t = existing
			return nil
		}
	}
	r.tmplSeq++
	now := time.Now().UTC()
	t.ID = r.tmplSeq
	t.CreatedAt = now
	t.ModifiedAt = now
	r.templates[t.ID] = *t
	return nil
}

func (r *Repository) GetTemplate(_ context.Context, id int64) (model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return model.Template{}, model.ErrNotFound
	}
	return t, nil
}

func (r *Repository) ListTemplates(_ context.Context) ([]model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]model.Template, 0, len(r.templates))
	for _, t := range r.templates {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *Repository) DeleteTemplate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[id]; !ok {
		return model.ErrNotFound
	}
	for _, l := range r.links {
		if l.TemplateID != nil && *l.TemplateID == id {
			return model.ErrTemplateInUse
		}
	}
	delete(r.templates, id)
	return nil
}

func (r *Repository) Ping(context.Context) error {
	return nil
}

func (r *Repository) Close() error {
	return nil
}
