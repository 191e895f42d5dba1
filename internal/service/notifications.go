package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"muscleai_backend/internal/model"
	"muscleai_backend/internal/repository"
	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/email"
	"muscleai_backend/pkg/metrics"
	"muscleai_backend/pkg/streak"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationService writes in-app notifications and sends the matching
// emails. Lifecycle notices are best-effort: failures are logged, never returned
// to the operation that triggered them.
type NotificationService struct {
	store  *repository.Store
	mailer Mailer
	log    *slog.Logger
	clock  Clock
}

func NewNotificationService(store *repository.Store, mailer Mailer, log *slog.Logger, clock Clock) *NotificationService {
	return &NotificationService{store: store, mailer: mailer, log: log, clock: clock}
}

type CreateNotificationInput struct {
	Type        model.NotificationType `json:"type"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	ActionURL   string                 `json:"action_url"`
	ActionLabel string                 `json:"action_label"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	list, err := s.store.ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, apperror.Internal("", fmt.Errorf("list notifications: %w", err))
	}
	return list, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperror.Internal("", fmt.Errorf("count unread: %w", err))
	}
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.MarkNotificationRead(ctx, userID, id, s.clock.now()); err != nil {
		return notFound(err, "Notification not found")
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.store.MarkAllNotificationsRead(ctx, userID, s.clock.now())
	if err != nil {
		return 0, apperror.Internal("", fmt.Errorf("mark all read: %w", err))
	}
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.DeleteNotification(ctx, userID, id); err != nil {
		return notFound(err, "Notification not found")
	}
	return nil
}

// Create stores a notification supplied by the client.
func (s *NotificationService) Create(ctx context.Context, userID uuid.UUID, in CreateNotificationInput) (*model.Notification, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	if in.Type == "" {
		in.Type = model.NotificationSystem
	}
	if !in.Type.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("Invalid notification type: %s", in.Type))
	}
	if in.Title == "" || in.Message == "" {
		return nil, apperror.Validation("Title and message are required")
	}

	n := &model.Notification{
		UserID:   userID,
		Type:     in.Type,
		Title:    in.Title,
		Message:  in.Message,
		Metadata: datatypes.JSONMap(in.Metadata),
	}
	if in.ActionURL != "" {
		n.ActionURL = &in.ActionURL
	}
	if in.ActionLabel != "" {
		n.ActionLabel = &in.ActionLabel
	}
	if _, err := s.insert(ctx, n); err != nil {
		return nil, apperror.Internal("", err)
	}
	return n, nil
}

func (s *NotificationService) insert(ctx context.Context, n *model.Notification) (bool, error) {
	created, err := s.store.CreateNotification(ctx, n)
	if err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	if created {
		metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	}
	return created, nil
}

// notify writes a deduplicated notification and reports whether it is new.
func (s *NotificationService) notify(ctx context.Context, userID uuid.UUID, typ model.NotificationType, dedupe, title, message string, meta map[string]interface{}) bool {
	n := &model.Notification{
		UserID:   userID,
		Type:     typ,
		Title:    title,
		Message:  message,
		Metadata: datatypes.JSONMap(meta),
	}
	if dedupe != "" {
		n.DedupeKey = &dedupe
	}
	created, err := s.insert(ctx, n)
	if err != nil {
		s.log.Error("notification failed", "user_id", userID, "type", typ, "error", err)
		return false
	}
	return created
}

func (s *NotificationService) recipient(ctx context.Context, userID uuid.UUID) (*model.Profile, bool) {
	if s.mailer == nil {
		return nil, false
	}
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("could not load email recipient", "user_id", userID, "error", err)
		}
		return nil, false
	}
	if p.Email == "" {
		return nil, false
	}
	return p, true
}

func (s *NotificationService) sent(template string, userID uuid.UUID, err error) {
	if err != nil {
		metrics.EmailsSent.WithLabelValues(template, "error").Inc()
		s.log.Error("could not send email", "template", template, "user_id", userID, "error", err)
		return
	}
	metrics.EmailsSent.WithLabelValues(template, "ok").Inc()
}

func planName(sub *model.UserSubscription) string {
	if sub.Plan != nil {
		return string(sub.Plan.PlanName)
	}
	return "subscription"
}

// SubscriptionStarted emails the user once a payment activates or renews a row.
func (s *NotificationService) SubscriptionStarted(ctx context.Context, sub *model.UserSubscription, renewal bool) {
	p, ok := s.recipient(ctx, sub.UserID)
	if !ok {
		return
	}
	data := email.SubscriptionStartedData{
		Name:      p.DisplayName(),
		PlanName:  planName(sub),
		CycleEnd:  sub.CurrentBillingCycleEnd,
		IsRenewal: renewal,
	}
	if sub.Plan != nil {
		data.Price = "$" + sub.Plan.PlanPriceUSD.StringFixed(2)
		data.AnalysesLimit = sub.Plan.MonthlyAnalysesLimit
	}
	s.sent("subscription_started", sub.UserID, s.mailer.SendSubscriptionStartedEmail(ctx, p.Email, data))
}

func (s *NotificationService) SubscriptionCancelled(ctx context.Context, sub *model.UserSubscription, accessUntil time.Time) {
	message := fmt.Sprintf("Your %s plan has been cancelled.", planName(sub))
	if accessUntil.After(s.clock.now()) {
		message = fmt.Sprintf("Your %s plan has been cancelled. You have access until %s.", planName(sub), accessUntil.Format("January 2, 2006"))
	}
	created := s.notify(ctx, sub.UserID, model.NotificationSubscriptionCancelled,
		"cancelled:"+sub.ID.String(), "Subscription Cancelled", message,
		map[string]interface{}{"subscription_id": sub.ID.String(), "access_until": accessUntil.Format(time.RFC3339)})
	if !created {
		return
	}
	if p, ok := s.recipient(ctx, sub.UserID); ok {
		s.sent("subscription_cancelled", sub.UserID, s.mailer.SendSubscriptionCancelledEmail(ctx, p.Email, email.SubscriptionCancelledData{
			Name:        p.DisplayName(),
			PlanName:    planName(sub),
			AccessUntil: accessUntil,
		}))
	}
}

// PaymentFailed is keyed on the gateway payment id so a re-delivered failure
// does not notify twice.
func (s *NotificationService) PaymentFailed(ctx context.Context, sub *model.UserSubscription, paymentID, reason string) {
	message := fmt.Sprintf("We couldn't process the payment for your %s plan. Please update your payment method.", planName(sub))
	created := s.notify(ctx, sub.UserID, model.NotificationPaymentFailed,
		"payment_failed:"+paymentID, "Payment Failed", message,
		map[string]interface{}{"subscription_id": sub.ID.String(), "payment_id": paymentID, "reason": reason})
	if !created {
		return
	}
	if p, ok := s.recipient(ctx, sub.UserID); ok {
		s.sent("payment_failed", sub.UserID, s.mailer.SendPaymentFailedEmail(ctx, p.Email, email.PaymentFailedData{
			Name:     p.DisplayName(),
			PlanName: planName(sub),
			Reason:   reason,
		}))
	}
}

func (s *NotificationService) ExpiryWarning(ctx context.Context, sub *model.UserSubscription, days int) {
	message := fmt.Sprintf("Your %s plan expires in %d days. Renew to keep analysing your progress.", planName(sub), days)
	created := s.notify(ctx, sub.UserID, model.NotificationSubscriptionExpiry,
		fmt.Sprintf("expiry:%s:%d", sub.ID, days), "Subscription Expiring Soon", message,
		map[string]interface{}{"subscription_id": sub.ID.String(), "days_left": days})
	if !created {
		return
	}
	if p, ok := s.recipient(ctx, sub.UserID); ok {
		s.sent("subscription_expiry_warning", sub.UserID, s.mailer.SendSubscriptionExpiryWarning(ctx, p.Email, email.SubscriptionExpiryWarningData{
			Name:       p.DisplayName(),
			PlanName:   planName(sub),
			DaysLeft:   days,
			ExpiryDate: sub.CurrentBillingCycleEnd,
		}))
	}
}

func (s *NotificationService) SubscriptionExpired(ctx context.Context, sub *model.UserSubscription) {
	s.notify(ctx, sub.UserID, model.NotificationSubscriptionExpiry,
		"expired:"+sub.ID.String(), "Subscription Expired",
		fmt.Sprintf("Your %s plan has expired. Subscribe again to continue your analyses.", planName(sub)),
		map[string]interface{}{"subscription_id": sub.ID.String()})
}

// Achievement announces a milestone or a new personal best from a streak update.
func (s *NotificationService) Achievement(ctx context.Context, userID uuid.UUID, res streak.Result, date string) {
	if res.MilestoneAchieved != nil {
		if m, ok := streak.MilestoneAt(res.CurrentStreak); ok {
			s.notify(ctx, userID, model.NotificationAchievement,
				fmt.Sprintf("milestone:%s:%d:%s", userID, m.Days, date),
				m.Icon+" "+m.Title, m.Description,
				map[string]interface{}{"milestone_days": m.Days, "current_streak": res.CurrentStreak})
			return
		}
	}
	if res.IsNewRecord && res.CurrentStreak > 1 {
		s.notify(ctx, userID, model.NotificationAchievement,
			fmt.Sprintf("record:%s:%s", userID, date),
			"New Personal Best!",
			fmt.Sprintf("You've reached a %d-day streak, your longest yet.", res.CurrentStreak),
			map[string]interface{}{"current_streak": res.CurrentStreak})
	}
}

func (s *NotificationService) StreakReminder(ctx context.Context, userID uuid.UUID, current int, date string) bool {
	return s.notify(ctx, userID, model.NotificationReminder,
		fmt.Sprintf("reminder:%s:%s", userID, date),
		"Keep Your Streak Alive 🔥",
		fmt.Sprintf("You're on a %d-day streak. Analyze a photo today to keep it going!", current),
		map[string]interface{}{"current_streak": current})
}
