package model

import "time"

// MaxCodeLength ограничение длины короткого кода
const MaxCodeLength = 50

// Link запись короткой ссылки
type Link struct {
	ID             int64             `json:"id"`
	URL            string            `json:"url"`
	Code           string            `json:"code"`
	Name           string            `json:"name,omitempty"`
	Description    string            `json:"description,omitempty"`
	Tags           string            `json:"tags,omitempty"`
	TemplateID     *int64            `json:"template,omitempty"`
	TemplateFields map[string]string `json:"template_fields,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	IsActive       bool              `json:"is_active"`
}

// Template шаблон ссылки с плейсхолдерами вида {имя}
type Template struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	URLPattern string    `json:"url_pattern"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// LinkRequest тело запроса на создание ссылки
type LinkRequest struct {
	URL            string            `json:"url"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Tags           string            `json:"tags"`
	Template       *int64            `json:"template"`
	TemplateFields map[string]string `json:"template_fields"`
}

// LinkResponse ответ на создание ссылки
type LinkResponse struct {
	Code        string `json:"code"`
	ShortURL    string `json:"short_url"`
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
}

// LinkSummary элемент списка ссылок, code уже с доменом
type LinkSummary struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tags        string    `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	IsActive    bool      `json:"is_active"`
}

// DefaultTemplates стартовый набор шаблонов
func DefaultTemplates() []Template {
	return []Template{
		{Name: "SPN токен гиперссылка и далее", URLPattern: "https://spnavigator.ru/t/{токен}?next={гиперссылка}%3F{параметры}"},
		{Name: "SPN токен гиперссылка источник", URLPattern: "https://spnavigator.ru/t/{токен}?next={гиперссылка}?src={источник}"},
		{Name: "_url_", URLPattern: "{гиперссылка}"},
		{Name: "_Универсальный с почтой_", URLPattern: "https://spnavigator.ru/utils/r/{проект}-{код рассылки}/{email}/{гиперссылка}"},
		{Name: "_Универсальный с телефоном_", URLPattern: "https://spnavigator.ru/utils/r/{проект}-{код рассылки}/{телефон}/{гиперссылка}"},
	}
}
