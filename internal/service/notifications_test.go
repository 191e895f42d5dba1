package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muscleai_backend/internal/model"
	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/config"
)

func TestNotificationLifecycle(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()

	_, err := e.notify.Create(ctx, e.user.ID, CreateNotificationInput{Type: "spam", Title: "x", Message: "y"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	_, err = e.notify.Create(ctx, e.user.ID, CreateNotificationInput{Title: "  "})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	first, err := e.notify.Create(ctx, e.user.ID, CreateNotificationInput{Title: "Welcome", Message: "Hello there"})
	require.NoError(t, err)
	assert.Equal(t, model.NotificationSystem, first.Type)
	_, err = e.notify.Create(ctx, e.user.ID, CreateNotificationInput{
		Type: model.NotificationReminder, Title: "Analyze", Message: "Time for a photo", ActionURL: "/analyze", ActionLabel: "Start",
	})
	require.NoError(t, err)

	count, err := e.notify.UnreadCount(ctx, e.user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	require.NoError(t, e.notify.MarkRead(ctx, e.user.ID, first.ID))
	count, err = e.notify.UnreadCount(ctx, e.user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	n, err := e.notify.MarkAllRead(ctx, e.user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	stranger := uuid.New()
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(e.notify.MarkRead(ctx, stranger, first.ID)))
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(e.notify.Delete(ctx, stranger, first.ID)))

	require.NoError(t, e.notify.Delete(ctx, e.user.ID, first.ID))
	list, err := e.notify.List(ctx, e.user.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Analyze", list[0].Title)
}

func TestExpiryWarningsAreDeduplicated(t *testing.T) {
	e := newTestEnv(t, config.CancelGrace)
	ctx := context.Background()
	e.seedSubscription(model.PlanPro, model.StatusActive)

	e.advance(23*24*time.Hour + time.Hour)
	report, err := e.expiry.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Warned)

	require.NoError(t, e.expiry.RunForUser(ctx, e.user.ID))
	notes := e.notifications(model.NotificationSubscriptionExpiry)
	require.Len(t, notes, 1)
	assert.EqualValues(t, 7, notes[0].Metadata["days_left"])
	assert.Equal(t, []string{"subscription_expiry_warning"}, e.mailer.Templates())

	e.advance(4 * 24 * time.Hour)
	_, err = e.expiry.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, e.notifications(model.NotificationSubscriptionExpiry), 2)
}
