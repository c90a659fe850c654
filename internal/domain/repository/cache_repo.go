package repository

import (
	"time"
)

// CacheRepository определяет методы для работы с кешем.
// Кеш - вспомогательный слой (флаги выбывания, счетчики ответов,
// резервирование PIN через SetNX); источником истины остается БД.
type CacheRepository interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string) (string, error)
	Delete(key string) error
	Increment(key string) (int64, error)
	Expire(key string, expiration time.Duration) error
	SetJSON(key string, value interface{}, expiration time.Duration) error
	GetJSON(key string, dest interface{}) error
	Exists(key string) (bool, error)
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)
}
