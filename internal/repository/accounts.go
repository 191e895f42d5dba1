package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"muscleai_backend/internal/model"
)

func (s *Store) CreateDeletionRequest(ctx context.Context, req *model.AccountDeletionRequest) error {
	return s.conn(ctx).Create(req).Error
}

func (s *Store) FindPendingDeletionRequest(ctx context.Context, userID uuid.UUID) (*model.AccountDeletionRequest, error) {
	var req model.AccountDeletionRequest
	err := s.conn(ctx).
		Where("user_id = ? AND status = ?", userID, model.DeletionPending).
		First(&req).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (s *Store) ListDeletionRequests(ctx context.Context, userID uuid.UUID) ([]model.AccountDeletionRequest, error) {
	var reqs []model.AccountDeletionRequest
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

// SetDeletionStatus moves a request from one status to another and reports
// whether a matching row was found.
func (s *Store) SetDeletionStatus(ctx context.Context, userID, id uuid.UUID, from, to model.DeletionStatus) (bool, error) {
	res := s.conn(ctx).Model(&model.AccountDeletionRequest{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, from).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

// RecordWebhookEvent notes a delivered event id. It reports false for a re-delivery.
func (s *Store) RecordWebhookEvent(ctx context.Context, evt *model.WebhookEvent) (bool, error) {
	res := s.conn(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(evt)
	return res.RowsAffected > 0, res.Error
}

// ForgetWebhookEvent removes a delivery record so the gateway's retry is processed.
func (s *Store) ForgetWebhookEvent(ctx context.Context, provider, eventID string) error {
	return s.conn(ctx).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Delete(&model.WebhookEvent{}).Error
}
