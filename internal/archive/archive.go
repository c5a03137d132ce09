// Package archive хранит готовые архивы экспорта в локальном каталоге.
// Архив лежит в {dir}/{job_id}.zip, отдаётся один раз и удаляется после чтения.
// Забытые архивы удаляет Sweep по TTL.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Popolzen/shortlinks/internal/model"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

const ext = ".zip"

// Store каталог архивов
type Store struct {
	dir string
	// reading архивы, которые сейчас отдаются клиенту
	reading mapset.Set[string]
	now     func() time.Time
}

// NewStore создаёт каталог, если его нет
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога экспорта: %w", err)
	}
	return &Store{dir: dir, reading: mapset.NewSet[string](), now: time.Now}, nil
}

// Dir каталог хранилища
func (s *Store) Dir() string {
	return s.dir
}

// Path путь к архиву задачи. id должен быть UUID, иначе путь не строится.
func (s *Store) Path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", model.NewValidationError("task_id", "некорректный идентификатор задачи")
	}
	return filepath.Join(s.dir, id+ext), nil
}

// Writer временный файл архива. Виден в хранилище только после Commit.
type Writer struct {
	*os.File
	final string
	done  bool
}

// Create открывает временный файл под архив задачи id
func (s *Store) Create(id string) (*Writer, error) {
	final, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(s.dir, "."+id+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	return &Writer{File: f, final: final}, nil
}

// Commit закрывает файл и переименовывает в итоговое имя, возвращает размер
func (w *Writer) Commit() (int64, error) {
	if w.done {
		return 0, errors.New("архив уже закрыт")
	}
	w.done = true

	info, err := w.Stat()
	if err != nil {
		w.File.Close()
		os.Remove(w.Name())
		return 0, fmt.Errorf("ошибка чтения размера архива: %w", err)
	}
	if err := w.File.Close(); err != nil {
		os.Remove(w.Name())
		return 0, fmt.Errorf("ошибка записи архива: %w", err)
	}
	if err := os.Rename(w.Name(), w.final); err != nil {
		os.Remove(w.Name())
		return 0, fmt.Errorf("ошибка сохранения архива: %w", err)
	}
	return info.Size(), nil
}

// Abort удаляет временный файл. После Commit ничего не делает.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.File.Close()
	os.Remove(w.Name())
}

// Reader архив, открытый на чтение. Close удаляет файл.
type Reader struct {
	*os.File
	Size  int64
	store *Store
	id    string
}

// Close закрывает и удаляет архив
func (r *Reader) Close() error {
	err := r.File.Close()
	if rmErr := os.Remove(r.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	r.store.reading.Remove(r.id)
	return err
}

// Take открывает архив для единственного чтения.
// model.ErrNotFound если архива нет или его уже забирают.
func (s *Store) Take(id string) (*Reader, error) {
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	if !s.reading.Add(id) {
		return nil, model.ErrNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		s.reading.Remove(id)
		if errors.Is(err, os.ErrNotExist) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка открытия архива: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		s.reading.Remove(id)
		return nil, fmt.Errorf("ошибка чтения архива: %w", err)
	}
	return &Reader{File: f, Size: info.Size(), store: s, id: id}, nil
}

// Exists лежит ли архив задачи
func (s *Store) Exists(id string) bool {
	path, err := s.Path(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Sweep удаляет архивы и брошенные временные файлы старше ttl.
// Архивы, которые сейчас читаются, не трогает. Возвращает число удалённых файлов.
func (s *Store) Sweep(ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения каталога экспорта: %w", err)
	}

	deadline := s.now().Add(-ttl)
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		isArchive := strings.HasSuffix(name, ext)
		isTemp := strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp")
		if !isArchive && !isTemp {
			continue
		}
		if isArchive && s.reading.Contains(strings.TrimSuffix(name, ext)) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(deadline) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// SaveTo забирает архив задачи и копирует в w
func (s *Store) SaveTo(id string, w io.Writer) (int64, error) {
	r, err := s.Take(id)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return io.Copy(w, r)
}
