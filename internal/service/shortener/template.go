package shortener

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/Popolzen/shortlinks/internal/model"
)

const maxURLLength = 2048

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Placeholders имена плейсхолдеров шаблона в порядке появления, без повторов
func Placeholders(pattern string) []string {
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(pattern, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}

// RenderTemplate подставляет значения в шаблон. Все плейсхолдеры должны быть заполнены.
func RenderTemplate(pattern string, fields map[string]string) (string, error) {
	var missing []string
	for _, name := range Placeholders(pattern) {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", model.NewValidationError("template_fields", "не заполнены поля: "+strings.Join(missing, ", "))
	}

	return placeholderRe.ReplaceAllStringFunc(pattern, func(m string) string {
		return fields[m[1:len(m)-1]]
	}), nil
}

// ValidateURL проверяет адрес назначения: http(s), есть хост, не длиннее 2048
func ValidateURL(raw string) error {
	if raw == "" {
		return model.NewValidationError("url", "обязательное поле")
	}
	if len(raw) > maxURLLength {
		return model.NewValidationError("url", fmt.Sprintf("длина не больше %d символов", maxURLLength))
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.NewValidationError("url", "введите правильный URL")
	}
	return nil
}
