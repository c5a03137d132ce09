package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/Popolzen/shortlinks/internal/config"
	"github.com/Popolzen/shortlinks/internal/handler"
	"github.com/Popolzen/shortlinks/internal/model"
	"github.com/Popolzen/shortlinks/internal/repository/memory"
	"github.com/Popolzen/shortlinks/internal/repository/mocks"
	"github.com/Popolzen/shortlinks/internal/service/shortener"
	"github.com/gin-gonic/gin"
	"go.uber.org/mock/gomock"
)

// setupService сервис ссылок поверх памяти
func setupService() *shortener.LinkService {
	gin.SetMode(gin.TestMode)
	repo := memory.NewRepository()
	return shortener.NewLinkService(repo, shortener.NewCodeGenerator(repo, shortener.DefaultCodeLength))
}

// ExampleCreateLinkHandler создание короткой ссылки через POST /links
func ExampleCreateLinkHandler() {
	svc := setupService()
	cfg := &config.Config{BaseURL: "http://localhost:8080"}

	router := gin.New()
	router.POST("/links", handler.CreateLinkHandler(svc, cfg, nil))

	body := `{"url": "https://example.com", "tags": "go, links"}`
	req := httptest.NewRequest(http.MethodPost, "/links", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp model.LinkResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)

	fmt.Printf("Status: %d\n", w.Code)
	fmt.Printf("Short URL format: %t\n", strings.HasPrefix(resp.ShortURL, "http://localhost:8080/"))
	fmt.Printf("Tags: %s\n", resp.Tags)

	// Output:
	// Status: 201
	// Short URL format: true
	// Tags: go,links
}

// ExampleRedirectHandler редирект на исходный адрес
func ExampleRedirectHandler() {
	ctrl := gomock.NewController(nil)
	defer ctrl.Finish()

	repo := mocks.NewMockRepository(ctrl)
	repo.EXPECT().GetByCode(gomock.Any(), "abc123").
		Return(model.Link{Code: "abc123", URL: "https://example.com", IsActive: true}, nil)

	svc := shortener.NewLinkService(repo, shortener.NewCodeGenerator(repo, shortener.DefaultCodeLength))
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/:code", handler.RedirectHandler(svc, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/abc123", nil))

	fmt.Printf("Status: %d\n", w.Code)
	fmt.Printf("Location header: %s\n", w.Header().Get("Location"))

	// Output:
	// Status: 302
	// Location header: https://example.com
}

// ExampleListLinksHandler список ссылок, код отдаётся вместе с доменом
func ExampleListLinksHandler() {
	ctrl := gomock.NewController(nil)
	defer ctrl.Finish()

	repo := mocks.NewMockRepository(ctrl)
	repo.EXPECT().List(gomock.Any()).Return([]model.Link{
		{ID: 1, Code: "abc123", URL: "https://a.com", IsActive: true},
		{ID: 2, Code: "def456", URL: "https://b.com", IsActive: false},
	}, nil)

	svc := shortener.NewLinkService(repo, shortener.NewCodeGenerator(repo, shortener.DefaultCodeLength))
	cfg := &config.Config{DomainName: "https://sh.rt"}
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/links", handler.ListLinksHandler(svc, cfg))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/links", nil))

	var list []model.LinkSummary
	_ = json.Unmarshal(w.Body.Bytes(), &list)

	fmt.Printf("Status: %d\n", w.Code)
	for _, l := range list {
		fmt.Printf("%s active=%t\n", l.Code, l.IsActive)
	}

	// Output:
	// Status: 200
	// https://sh.rt/abc123 active=true
	// https://sh.rt/def456 active=false
}
