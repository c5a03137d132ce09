package filestorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/Popolzen/shortlinks/internal/repository/memory"
)

// Repository держит данные в памяти и после каждой записи сбрасывает снимок в JSON файл
type Repository struct {
	*memory.Repository
	path string
	// saveMu сериализует запись файла
	saveMu sync.Mutex
}

// NewRepository загружает данные из файла. Отсутствующий или битый файл даёт пустое хранилище.
func NewRepository(path string) *Repository {
	state, err := load(path)
	if err != nil {
		state = memory.State{}
	}
	return &Repository{
		Repository: memory.NewFromState(state),
		path:       path,
	}
}

// Open загружает данные из файла. Отсутствующий файл даёт пустое хранилище,
// а битый или нечитаемый файл возвращает ошибку, чтобы не затереть его пустым снимком.
func Open(path string) (*Repository, error) {
	state, err := load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("файл хранилища %s: %w", path, err)
	}
	return &Repository{
		Repository: memory.NewFromState(state),
		path:       path,
	}, nil
}

// load - загружает снимок из файла
func load(path string) (memory.State, error) {
	var state memory.State

	file, err := os.Open(path)
	if err != nil {
		return state, fmt.Errorf("ошибка открытия файла: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return state, fmt.Errorf("ошибка чтения файла: %w", err)
	}
	if len(data) == 0 {
		return state, nil
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("ошибка десериализации JSON: %w", err)
	}
	return state, nil
}

// SaveToFile записывает снимок через временный файл и rename
func (r *Repository) SaveToFile() error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	data, err := json.Marshal(r.Snapshot())
	if err != nil {
		return fmt.Errorf("ошибка сериализации JSON: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".storage-*.json")
	if err != nil {
		return fmt.Errorf("ошибка создания файла: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("ошибка записи файла: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("ошибка записи файла: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("ошибка сохранения файла: %w", err)
	}
	return nil
}

// persist сохраняет файл после успешной операции в памяти
func (r *Repository) persist(err error) error {
	if err != nil {
		return err
	}
	if err := r.SaveToFile(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *Repository) Create(ctx context.Context, link *model.Link) error {
	return r.persist(r.Repository.Create(ctx, link))
}

func (r *Repository) CreateBatch(ctx context.Context, links []*model.Link) error {
	return r.persist(r.Repository.CreateBatch(ctx, links))
}

func (r *Repository) SetActive(ctx context.Context, code string, active bool) error {
	return r.persist(r.Repository.SetActive(ctx, code, active))
}

func (r *Repository) EnsureTemplate(ctx context.Context, t *model.Template) error {
	return r.persist(r.Repository.EnsureTemplate(ctx, t))
}

func (r *Repository) DeleteTemplate(ctx context.Context, id int64) error {
	return r.persist(r.Repository.DeleteTemplate(ctx, id))
}

// Close сохраняет последнее состояние
func (r *Repository) Close() error {
	return r.SaveToFile()
}
