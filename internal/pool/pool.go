// Package pool типизированная обёртка над sync.Pool.
package pool

import "sync"

// Pool переиспользует объекты T. Перед возвратом в пул объект сбрасывается.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

// New создаёт пул: fn создаёт новый объект, reset очищает его перед Put
func New[T any](fn func() T, reset func(T)) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return fn()
			},
		},
		reset: reset,
	}
}

// Get возвращает объект из пула
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put сбрасывает объект и кладёт его в пул
func (p *Pool[T]) Put(x T) {
	if p.reset != nil {
		p.reset(x)
	}
	p.pool.Put(x)
}
