package archive

import (
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"
)

// Cleaner периодически чистит каталог экспорта по расписанию cron
type Cleaner struct {
	store *Store
	ttl   time.Duration
	cron  *cron.Cron
	log   *zap.SugaredLogger
}

// NewCleaner регистрирует задачу очистки. schedule в формате robfig/cron, например "@every 10m".
func NewCleaner(store *Store, ttl time.Duration, schedule string, log *zap.SugaredLogger) (*Cleaner, error) {
	c := &Cleaner{store: store, ttl: ttl, cron: cron.New(), log: log}
	if err := c.cron.AddFunc(schedule, c.Run); err != nil {
		return nil, err
	}
	return c, nil
}

// Run один проход очистки
func (c *Cleaner) Run() {
	removed, err := c.store.Sweep(c.ttl)
	if err != nil {
		c.log.Warnw("ошибка очистки архивов", "error", err, "removed", removed)
		return
	}
	if removed > 0 {
		c.log.Infow("удалены старые архивы", "removed", removed, "ttl", c.ttl)
	}
}

func (c *Cleaner) Start() {
	c.cron.Start()
}

func (c *Cleaner) Stop() {
	c.cron.Stop()
}
