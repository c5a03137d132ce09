package shortener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/Popolzen/shortlinks/internal/repository"
)

// maxCreateAttempts сколько раз пробуем вставить ссылку, если код успели занять между проверкой и вставкой
const maxCreateAttempts = 5

// maxNameLength длина колонки name в символах
const maxNameLength = 255

// LinkService операции над ссылками и шаблонами
type LinkService struct {
	repo  repository.Repository
	codes *CodeGenerator
}

func NewLinkService(repo repository.Repository, codes *CodeGenerator) *LinkService {
	return &LinkService{repo: repo, codes: codes}
}

// Codes генератор кодов сервиса
func (s *LinkService) Codes() *CodeGenerator {
	return s.codes
}

// Create создаёт ссылку из запроса. Если url пуст, он собирается из шаблона.
func (s *LinkService) Create(ctx context.Context, req model.LinkRequest) (model.Link, error) {
	tags, err := NormalizeTags(req.Tags)
	if err != nil {
		return model.Link{}, err
	}

	link := model.Link{
		URL:            strings.TrimSpace(req.URL),
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		Tags:           tags,
		TemplateID:     req.Template,
		TemplateFields: req.TemplateFields,
		IsActive:       true,
	}
	if utf8.RuneCountInString(link.Name) > maxNameLength {
		return model.Link{}, model.NewValidationError("name", "слишком длинное название")
	}

	if req.Template != nil {
		tpl, err := s.repo.GetTemplate(ctx, *req.Template)
		if errors.Is(err, model.ErrNotFound) {
			return model.Link{}, model.NewValidationError("template", "шаблон не найден")
		}
		if err != nil {
			return model.Link{}, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
		}
		if link.URL == "" {
			if link.URL, err = RenderTemplate(tpl.URLPattern, req.TemplateFields); err != nil {
				return model.Link{}, err
			}
		}
	}

	if err := ValidateURL(link.URL); err != nil {
		return model.Link{}, err
	}

	for range maxCreateAttempts {
		code, err := s.codes.Generate(ctx)
		if err != nil {
			return model.Link{}, err
		}
		link.Code = code

		err = s.repo.Create(ctx, &link)
		if errors.Is(err, model.ErrCodeConflict) {
			continue
		}
		if err != nil {
			return model.Link{}, err
		}
		return link, nil
	}

	return model.Link{}, fmt.Errorf("не удалось создать уникальную ссылку за %d попыток", maxCreateAttempts)
}

// Resolve находит активную ссылку по коду
func (s *LinkService) Resolve(ctx context.Context, code string) (model.Link, error) {
	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return model.Link{}, err
	}
	if !link.IsActive {
		return link, model.ErrLinkInactive
	}
	return link, nil
}

func (s *LinkService) List(ctx context.Context) ([]model.Link, error) {
	return s.repo.List(ctx)
}

func (s *LinkService) SetActive(ctx context.Context, code string, active bool) error {
	return s.repo.SetActive(ctx, code, active)
}

func (s *LinkService) Templates(ctx context.Context) ([]model.Template, error) {
	return s.repo.ListTemplates(ctx)
}

func (s *LinkService) DeleteTemplate(ctx context.Context, id int64) error {
	return s.repo.DeleteTemplate(ctx, id)
}

// SeedTemplates заводит стартовый набор шаблонов, повторный вызов ничего не дублирует
func (s *LinkService) SeedTemplates(ctx context.Context) ([]model.Template, error) {
	templates := model.DefaultTemplates()
	for i := range templates {
		if err := s.repo.EnsureTemplate(ctx, &templates[i]); err != nil {
			return nil, fmt.Errorf("шаблон %q: %w", templates[i].Name, err)
		}
	}
	return templates, nil
}

// ShortURL полная короткая ссылка: base + "/" + code
func ShortURL(base, code string) string {
	return strings.TrimRight(base, "/") + "/" + code
}
