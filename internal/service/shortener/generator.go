package shortener

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Popolzen/shortlinks/internal/model"
	mapset "github.com/deckarep/golang-set/v2"
)

// DefaultCodeLength длина кода по умолчанию
const DefaultCodeLength = 6

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeChecker проверяет, занят ли код
type CodeChecker interface {
	Exists(ctx context.Context, code string) (bool, error)
}

// CodeGenerator выдаёт коды, которых ещё нет в хранилище
type CodeGenerator struct {
	checker CodeChecker
	length  int
}

func NewCodeGenerator(checker CodeChecker, length int) *CodeGenerator {
	if length <= 0 || length > model.MaxCodeLength {
		length = DefaultCodeLength
	}
	return &CodeGenerator{checker: checker, length: length}
}

// Generate подбирает свободный код. Без проверки в хранилище код не выдаётся.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	return g.GenerateExcluding(ctx, nil)
}

// GenerateExcluding как Generate, но пропускает коды из taken (уже выданные в текущей пачке)
func (g *CodeGenerator) GenerateExcluding(ctx context.Context, taken mapset.Set[string]) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code := randomCode(g.length)
		if taken != nil && taken.Contains(code) {
			continue
		}

		exists, err := g.checker.Exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
		}
		if !exists {
			return code, nil
		}
	}
}

// randomCode создает случайный код
func randomCode(length int) string {
	var result strings.Builder
	result.Grow(length)
	l := len(charset)

	for range length {
		result.WriteByte(charset[rand.IntN(l)])
	}

	return result.String()
}
