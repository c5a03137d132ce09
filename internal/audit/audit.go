// Package audit рассылает события о ссылках и фоновых задачах наблюдателям.
package audit

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Action тип действия аудита
type Action string

const (
	ActionShorten  Action = "shorten"
	ActionFollow   Action = "follow"
	ActionImport   Action = "import"
	ActionExport   Action = "export"
	ActionDownload Action = "download"
)

// Event структура события аудита
type Event struct {
	Timestamp int64  `json:"ts"`
	Action    Action `json:"action"`
	Code      string `json:"code,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	URL       string `json:"url,omitempty"`
}

// NewEvent событие о конкретной ссылке
func NewEvent(action Action, code, url string) Event {
	return Event{
		Timestamp: time.Now().Unix(),
		Action:    action,
		Code:      code,
		URL:       url,
	}
}

// NewTaskEvent событие о фоновой задаче
func NewTaskEvent(action Action, taskID string) Event {
	return Event{
		Timestamp: time.Now().Unix(),
		Action:    action,
		TaskID:    taskID,
	}
}

type Observer interface {
	Notify(event Event)
	Close() error
}

const publishBuffer = 256

// Publisher доставляет события наблюдателям в отдельной горутине
type Publisher struct {
	mu          sync.RWMutex
	subscribers []Observer
	events      chan Event
	done        chan struct{}
	closed      bool
	log         *zap.SugaredLogger
}

func NewPublisher(log *zap.SugaredLogger) *Publisher {
	p := &Publisher{
		events: make(chan Event, publishBuffer),
		done:   make(chan struct{}),
		log:    log,
	}
	go p.loop()
	return p
}

func (p *Publisher) Subscribe(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.subscribers = append(p.subscribers, o)
}

// Publish не блокируется: при переполненном буфере событие теряется
func (p *Publisher) Publish(event Event) {
	if p == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- event:
	default:
		p.log.Warnw("буфер аудита переполнен, событие отброшено", "action", event.Action)
	}
}

func (p *Publisher) loop() {
	defer close(p.done)
	for event := range p.events {
		p.mu.RLock()
		for _, s := range p.subscribers {
			s.Notify(event)
		}
		p.mu.RUnlock()
	}
}

// Close доставляет оставшиеся события и закрывает всех наблюдателей
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.done

	p.mu.RLock()
	defer p.mu.RUnlock()
	var errs []error
	for _, obs := range p.subscribers {
		errs = append(errs, obs.Close())
	}
	return errors.Join(errs...)
}
