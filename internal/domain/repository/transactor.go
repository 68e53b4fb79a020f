package repository

import (
	"context"

	"gorm.io/gorm"
)

// Transactor runs fn inside a database transaction. fn's error rolls everything back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}
