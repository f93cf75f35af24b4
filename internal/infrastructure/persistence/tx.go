package persistence

import (
	"context"

	"github.com/ledgerbridge/backend/internal/domain/shared"
	"gorm.io/gorm"
)

type txKey struct{}

// TxManager runs application work inside a single database transaction.
// Repositories built on the same *gorm.DB pick the transaction up from ctx.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager creates a TxManager
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// RunInTx executes fn in a transaction. A ctx that already carries one is
// reused, so nested calls join the outer transaction.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

var _ shared.TxRunner = (*TxManager)(nil)

// conn returns the transaction carried by ctx, or db bound to ctx
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

// versionConflict resolves a zero-row version-guarded update into
// ErrNotFound or ErrConcurrencyConflict
func versionConflict(db *gorm.DB, model any, where string, args ...any) error {
	var count int64
	if err := db.Model(model).Where(where, args...).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return shared.ErrConcurrencyConflict
}
