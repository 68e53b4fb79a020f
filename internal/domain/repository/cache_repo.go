package repository

import (
	"time"
)

// CacheRepository is a thin key-value cache (Redis).
type CacheRepository interface {
	Set(key string, value interface{}, expiration time.Duration) error
	// Get returns apperrors.ErrNotFound for a missing key.
	Get(key string) (string, error)
	Delete(key string) error
	SetJSON(key string, value interface{}, expiration time.Duration) error
	GetJSON(key string, dest interface{}) error
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)
	// DeleteIfEquals removes key only while it still holds token (lock release).
	DeleteIfEquals(key, token string) (bool, error)
}
