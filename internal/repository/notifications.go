package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"muscleai_backend/internal/model"
)

// CreateNotification inserts n. It reports false when n carries a dedupe key
// that was already used.
func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) (bool, error) {
	res := s.conn(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(n)
	return res.RowsAffected > 0, res.Error
}

func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error) {
	var items []model.Notification
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (s *Store) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id uuid.UUID, at time.Time) error {
	res := s.conn(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"read": true, "read_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := s.conn(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Updates(map[string]interface{}{"read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteNotification(ctx context.Context, userID, id uuid.UUID) error {
	res := s.conn(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
