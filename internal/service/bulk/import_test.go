package bulk

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/Popolzen/shortlinks/internal/repository/memory"
	"github.com/Popolzen/shortlinks/internal/repository/mocks"
	"github.com/Popolzen/shortlinks/internal/service/shortener"
	"github.com/Popolzen/shortlinks/internal/sheet/sheettest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const testBase = "http://localhost:8080/"

func newImporter(repo *memory.Repository, opts ImportOptions) *Importer {
	return NewImporter(repo, shortener.NewCodeGenerator(repo, shortener.DefaultCodeLength), opts, zap.NewNop().Sugar())
}

// progressRecorder собирает все отчёты о прогрессе
type progressRecorder struct {
	items []model.Progress
}

func (p *progressRecorder) fn(pr model.Progress) {
	p.items = append(p.items, pr)
}

func (p *progressRecorder) last() model.Progress {
	return p.items[len(p.items)-1]
}

func TestImport_SkipsNonURLRows(t *testing.T) {
	repo := memory.NewRepository()
	data := sheettest.Build(t, []string{"url", "description"},
		[]any{"http://a.com", "d1"},
		[]any{"not-a-url", ""},
		[]any{"http://b.com", ""},
	)
	rec := &progressRecorder{}

	res, err := newImporter(repo, ImportOptions{}).Import(context.Background(), data, testBase, rec.fn)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.Created)
	require.Len(t, res.CreatedLinks, 2)
	assert.Equal(t, "http://a.com", res.CreatedLinks[0].OriginalURL)
	assert.Equal(t, "d1", res.CreatedLinks[0].Description)
	assert.Equal(t, "http://b.com", res.CreatedLinks[1].OriginalURL)
	for _, l := range res.CreatedLinks {
		assert.NotEqual(t, "not-a-url", l.OriginalURL)
		assert.Regexp(t, `^http://localhost:8080/[A-Za-z0-9]{6}$`, l.ShortURL)
	}

	assert.Equal(t, 3, rec.last().Total)
	assert.Equal(t, 100, rec.last().Percent)
	assert.Equal(t, StageImportReady, rec.last().Stage)

	count, _ := repo.Count(context.Background())
	assert.Equal(t, 2, count)
}

func TestImport_MissingURLColumn(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// к хранилищу не должно быть ни одного обращения
	repo := mocks.NewMockRepository(ctrl)
	im := NewImporter(repo, shortener.NewCodeGenerator(repo, 6), ImportOptions{}, zap.NewNop().Sugar())
	data := sheettest.Build(t, []string{"link", "description"}, []any{"http://a.com", "d"})
	rec := &progressRecorder{}

	_, err := im.Import(context.Background(), data, testBase, rec.fn)

	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "missing required column", ve.Message)
	assert.Empty(t, rec.items)
}

func TestImport_BatchesAndOrder(t *testing.T) {
	repo := memory.NewRepository()
	rows := make([][]any, 0, 25)
	for i := range 25 {
		rows = append(rows, []any{fmt.Sprintf("https://site.com/%d", i), "", "a, b,"})
	}
	data := sheettest.Build(t, []string{"url", "description", "tags"}, rows...)
	rec := &progressRecorder{}

	res, err := newImporter(repo, ImportOptions{BatchSize: 10, ProgressEvery: 5}).Import(context.Background(), data, testBase, rec.fn)

	require.NoError(t, err)
	require.Len(t, res.CreatedLinks, 25)
	for i, l := range res.CreatedLinks {
		assert.Equal(t, fmt.Sprintf("https://site.com/%d", i), l.OriginalURL)
		assert.Equal(t, "a,b", l.Tags)
	}

	var saves []model.Progress
	for _, p := range rec.items {
		if p.Stage == StageImportSave {
			saves = append(saves, p)
		}
	}
	// две полные пачки и остаток из 5 строк
	require.Len(t, saves, 3)
	assert.Equal(t, 25, saves[2].Current)
	assert.Equal(t, StageImportSave, rec.items[len(rec.items)-2].Stage)
	// 1 старт + 3 сохранения + отчёты каждые 5 строк, кроме строк со сбросом пачки + финал
	assert.Len(t, rec.items, 1+3+3+1)
}

func TestImport_RetryBatchOnConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockRepository(ctrl)
	repo.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil).AnyTimes()
	gomock.InOrder(
		repo.EXPECT().CreateBatch(gomock.Any(), gomock.Len(2)).Return(model.ErrCodeConflict),
		repo.EXPECT().CreateBatch(gomock.Any(), gomock.Len(2)).Return(nil),
	)
	im := NewImporter(repo, shortener.NewCodeGenerator(repo, 6), ImportOptions{}, zap.NewNop().Sugar())
	data := sheettest.Build(t, []string{"url"}, []any{"http://a.com"}, []any{"http://b.com"})

	res, err := im.Import(context.Background(), data, testBase, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
}

func TestImport_PartialCommitOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockRepository(ctrl)
	repo.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil).AnyTimes()
	gomock.InOrder(
		repo.EXPECT().CreateBatch(gomock.Any(), gomock.Len(2)).Return(nil),
		repo.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).Return(errors.New("connection reset")),
	)
	im := NewImporter(repo, shortener.NewCodeGenerator(repo, 6), ImportOptions{BatchSize: 2}, zap.NewNop().Sugar())
	data := sheettest.Build(t, []string{"url"},
		[]any{"http://a.com"}, []any{"http://b.com"}, []any{"http://c.com"},
	)

	res, err := im.Import(context.Background(), data, testBase, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	// первая пачка уже закоммичена и отражена в частичном результате
	assert.Equal(t, 2, res.Created)
}

func TestImport_StoreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockRepository(ctrl)
	repo.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, errors.New("dial tcp: refused"))
	im := NewImporter(repo, shortener.NewCodeGenerator(repo, 6), ImportOptions{}, zap.NewNop().Sugar())
	data := sheettest.Build(t, []string{"url"}, []any{"http://a.com"})

	_, err := im.Import(context.Background(), data, testBase, nil)

	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestImport_HyperlinkCell(t *testing.T) {
	repo := memory.NewRepository()
	data := sheettest.Build(t, []string{"url", "name"},
		[]any{sheettest.Link{Text: "Сайт", Target: "https://target.example/"}, "Главная"},
	)

	res, err := newImporter(repo, ImportOptions{}).Import(context.Background(), data, testBase, nil)

	require.NoError(t, err)
	require.Len(t, res.CreatedLinks, 1)
	assert.Equal(t, "https://target.example/", res.CreatedLinks[0].OriginalURL)

	links, _ := repo.List(context.Background())
	assert.Equal(t, "Главная", links[0].Name)
}
