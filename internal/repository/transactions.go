package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"muscleai_backend/internal/model"
)

// InsertTransactionOnce appends a payment transaction. It reports false when a
// row with the same gateway payment id and status already exists.
func (s *Store) InsertTransactionOnce(ctx context.Context, txn *model.PaymentTransaction) (bool, error) {
	res := s.conn(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(txn)
	return res.RowsAffected > 0, res.Error
}

func (s *Store) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]model.PaymentTransaction, error) {
	var txns []model.PaymentTransaction
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("transaction_date DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}
