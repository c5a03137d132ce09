package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const httpRetries = 3

// HTTPObserver наблюдатель, отправляющий на удалённый сервер
type HTTPObserver struct {
	url     string
	client  *http.Client
	backoff func() backoff.BackOff
	log     *zap.SugaredLogger
}

// NewHTTPObserver создаёт наблюдателя для отправки на HTTP endpoint
func NewHTTPObserver(url string, log *zap.SugaredLogger) *HTTPObserver {
	return &HTTPObserver{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return backoff.WithMaxRetries(b, httpRetries)
		},
		log: log,
	}
}

// Notify отправляет событие, повторяя при сетевых ошибках и ответах 5xx
func (h *HTTPObserver) Notify(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Errorw("audit http: ошибка сериализации", "error", err)
		return
	}

	send := func() error {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, h.url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := h.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("сервер вернул %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("сервер вернул %d", resp.StatusCode))
		}
		return nil
	}

	if err := backoff.Retry(send, h.backoff()); err != nil {
		h.log.Warnw("audit http: событие не доставлено", "url", h.url, "action", event.Action, "error", err)
	}
}

// Close для HTTP ничего не делает
func (h *HTTPObserver) Close() error {
	return nil
}
