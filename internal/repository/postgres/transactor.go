package postgres

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Transactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTransaction begins a transaction, runs fn and commits. A panic or error rolls back.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	tx := t.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			log.Error().Msgf("[Transactor] panic recovered, transaction rolled back: %v", r)
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			log.Warn().Err(rbErr).Msg("[Transactor] rollback failed")
		}
		return err
	}
	if err = tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
