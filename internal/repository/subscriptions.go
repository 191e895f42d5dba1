package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"muscleai_backend/internal/model"
)

func (s *Store) CreateSubscription(ctx context.Context, sub *model.UserSubscription) error {
	return s.conn(ctx).Omit("Plan").Create(sub).Error
}

func (s *Store) GetSubscription(ctx context.Context, id uuid.UUID) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	if err := s.conn(ctx).Preload("Plan").First(&sub, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// GetUserSubscription loads a row only if it belongs to userID.
func (s *Store) GetUserSubscription(ctx context.Context, id, userID uuid.UUID) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := s.conn(ctx).Preload("Plan").
		Where("id = ? AND user_id = ?", id, userID).
		First(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *Store) FindActiveSubscription(ctx context.Context, userID uuid.UUID) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := s.conn(ctx).Preload("Plan").
		Where("user_id = ? AND subscription_status = ?", userID, model.StatusActive).
		First(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// FindLatestSubscription returns the newest row for the user in any status.
func (s *Store) FindLatestSubscription(ctx context.Context, userID uuid.UUID) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := s.conn(ctx).Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *Store) FindByGatewaySubscriptionID(ctx context.Context, gatewayID string) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := s.conn(ctx).Preload("Plan").
		Where("gateway_subscription_id = ?", gatewayID).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *Store) FindLatestPending(ctx context.Context, userID uuid.UUID) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := s.conn(ctx).Preload("Plan").
		Where("user_id = ? AND subscription_status = ?", userID, model.StatusPending).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// LatestCustomerID returns the most recently stored gateway customer id for the
// user, or "" when none exists.
func (s *Store) LatestCustomerID(ctx context.Context, userID uuid.UUID, gateway string) (string, error) {
	var sub model.UserSubscription
	err := s.conn(ctx).
		Select("gateway_customer_id").
		Where("user_id = ? AND gateway = ? AND gateway_customer_id <> ''", userID, gateway).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if translate(err) == ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return sub.GatewayCustomerID, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return s.conn(ctx).Model(&model.UserSubscription{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// TransitionSubscription applies updates only while the row is still in status
// from and no event newer than occurredAt has been applied to it. It reports
// whether the row changed.
func (s *Store) TransitionSubscription(ctx context.Context, id uuid.UUID, from model.SubscriptionStatus, occurredAt time.Time, updates map[string]interface{}) (bool, error) {
	updates["last_event_at"] = occurredAt
	res := s.conn(ctx).Model(&model.UserSubscription{}).
		Where("id = ? AND subscription_status = ?", id, from).
		Where("last_event_at IS NULL OR last_event_at <= ?", occurredAt).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// IncrementUsage adds one analysis to an active row if it is still under limit.
func (s *Store) IncrementUsage(ctx context.Context, id uuid.UUID, limit int) (bool, error) {
	res := s.conn(ctx).Model(&model.UserSubscription{}).
		Where("id = ? AND subscription_status = ? AND analyses_used_this_month < ?", id, model.StatusActive, limit).
		UpdateColumn("analyses_used_this_month", gorm.Expr("analyses_used_this_month + 1"))
	return res.RowsAffected > 0, res.Error
}

// ListLapsed returns active rows past their paid cycle. See model.UserSubscription.Lapsed.
func (s *Store) ListLapsed(ctx context.Context, now time.Time, renewalGrace time.Duration) ([]model.UserSubscription, error) {
	var subs []model.UserSubscription
	err := s.conn(ctx).Preload("Plan").
		Where("subscription_status = ?", model.StatusActive).
		Where(s.conn(ctx).
			Where("auto_renewal_enabled = ? AND current_billing_cycle_end < ?", false, now).
			Or("auto_renewal_enabled = ? AND current_billing_cycle_end < ?", true, now.Add(-renewalGrace))).
		Find(&subs).Error
	return subs, err
}

// ListEndingWithin returns active rows whose cycle ends in (from, to].
func (s *Store) ListEndingWithin(ctx context.Context, from, to time.Time) ([]model.UserSubscription, error) {
	var subs []model.UserSubscription
	err := s.conn(ctx).Preload("Plan").
		Where("subscription_status = ? AND current_billing_cycle_end > ? AND current_billing_cycle_end <= ?",
			model.StatusActive, from, to).
		Find(&subs).Error
	return subs, err
}

// TouchEventTime records that an event at occurredAt was seen for the row even
// though it changed nothing, so older events arriving later are recognised as stale.
func (s *Store) TouchEventTime(ctx context.Context, id uuid.UUID, occurredAt time.Time) error {
	return s.conn(ctx).Model(&model.UserSubscription{}).
		Where("id = ?", id).
		Where("last_event_at IS NULL OR last_event_at < ?", occurredAt).
		UpdateColumn("last_event_at", occurredAt).Error
}

// SupersedeActive cancels every active row of userID other than keep and
// returns their ids.
func (s *Store) SupersedeActive(ctx context.Context, userID, keep uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	var subs []model.UserSubscription
	err := s.conn(ctx).
		Where("user_id = ? AND subscription_status = ? AND id <> ?", userID, model.StatusActive, keep).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(subs))
	for _, sub := range subs {
		meta := datatypes.JSONMap{}
		for k, v := range sub.Metadata {
			meta[k] = v
		}
		meta["superseded_by"] = keep.String()
		err := s.conn(ctx).Model(&model.UserSubscription{}).
			Where("id = ?", sub.ID).
			Updates(map[string]interface{}{
				"subscription_status":  model.StatusCancelled,
				"cancelled_at":         at,
				"auto_renewal_enabled": false,
				"metadata":             meta,
			}).Error
		if err != nil {
			return nil, err
		}
		ids = append(ids, sub.ID)
	}
	return ids, nil
}
