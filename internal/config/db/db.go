package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Popolzen/shortlinks/internal/config"
	migration "github.com/Popolzen/shortlinks/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const pingTimeout = 5 * time.Second

// DataBase представляет подключение к базе данных
type DataBase struct {
	*sql.DB
}

// NewDataBase открывает пул соединений по DSN из конфигурации и проверяет его
func NewDataBase(ctx context.Context, c config.Config) (*DataBase, error) {
	db, err := sql.Open("pgx", c.DBurl)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть подключение: %w", err)
	}
	d := &DataBase{DB: db}
	if err := d.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Ping проверяет подключение к базе данных
func (d *DataBase) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := d.PingContext(ctx); err != nil {
		return fmt.Errorf("ошибка при подключении к БД: %w", err)
	}
	return nil
}

func (d *DataBase) Migrate() error {
	return migration.MigrateUp(d.DB)
}

// Rollback откатывает steps последних миграций
func (d *DataBase) Rollback(steps int) error {
	return migration.MigrateDown(d.DB, steps)
}

// Version текущая версия схемы
func (d *DataBase) Version() (uint, bool, error) {
	return migration.Version(d.DB)
}
