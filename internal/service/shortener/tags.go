package shortener

import (
	"strings"

	"github.com/Popolzen/shortlinks/internal/model"
)

const maxTagsLength = 255

// NormalizeTags проверяет список тегов через запятую: "a, b" -> "a,b".
// Пустой тег после trim (например "a, b,") - ошибка.
func NormalizeTags(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	tags := strings.Split(raw, ",")
	for i, tag := range tags {
		tags[i] = strings.TrimSpace(tag)
		if tags[i] == "" {
			return "", model.NewValidationError("tags", "отсутствует тег")
		}
	}
	res := strings.Join(tags, ",")
	if len(res) > maxTagsLength {
		return "", model.NewValidationError("tags", "слишком длинный список тегов")
	}
	return res, nil
}

// CleanTags мягкая версия для импорта: пустые теги выбрасываются
func CleanTags(raw string) string {
	var tags []string
	size := 0
	for tag := range strings.SplitSeq(raw, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		// теги, не влезающие в колонку, отбрасываются целиком
		if size+len(tag)+len(tags) > maxTagsLength {
			break
		}
		size += len(tag)
		tags = append(tags, tag)
	}
	return strings.Join(tags, ",")
}
