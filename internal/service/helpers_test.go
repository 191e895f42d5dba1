package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"muscleai_backend/internal/model"
	"muscleai_backend/internal/repository"
	"muscleai_backend/internal/testutil"
	"muscleai_backend/pkg/cache"
	"muscleai_backend/pkg/config"
	"muscleai_backend/pkg/gateway"
)

type fakePhotos struct {
	objects   map[string][]byte
	deleted   []string
	uploadErr error
}

func (f *fakePhotos) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.objects[key] = body
	return "https://cdn.example.com/" + key, nil
}

func (f *fakePhotos) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	store  *repository.Store
	gw     *testutil.FakeGateway
	mailer *testutil.FakeMailer
	cache  *cache.Memory
	now    time.Time

	plans map[model.PlanName]*model.SubscriptionPlan
	user  *model.Profile

	notify     *NotificationService
	expiry     *ExpiryService
	subs       *SubscriptionService
	reconciler *Reconciler
	quota      *QuotaService
	streaks    *StreakService
	reminders  *ReminderService
	accounts   *AccountService
	analyses   *AnalysisService
	photos     *fakePhotos
}

var testStart = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T, policy config.CancellationPolicy) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	e := &testEnv{
		t:      t,
		db:     db,
		store:  repository.New(db),
		gw:     testutil.NewFakeGateway(),
		mailer: &testutil.FakeMailer{},
		cache:  cache.NewMemory(0),
		now:    testStart,
		photos: &fakePhotos{objects: map[string][]byte{}},
	}
	e.plans = testutil.SeedPlans(t, db)
	e.user = testutil.SeedProfile(t, db, "asha@example.com")

	log := testutil.Logger()
	clock := Clock(func() time.Time { return e.now })
	registry := gateway.NewRegistry(e.gw)

	e.notify = NewNotificationService(e.store, e.mailer, log, clock)
	e.expiry = NewExpiryService(e.store, e.notify, 48*time.Hour, log, clock)
	e.subs = NewSubscriptionService(e.store, registry, e.notify, e.expiry, SubscriptionOptions{
		Policy:      policy,
		CycleDays:   30,
		AppName:     "Muscle AI",
		CallbackURL: "https://api.example.com/functions/v1/payment-callback",
	}, log, clock)
	e.reconciler = NewReconciler(e.store, registry, e.notify, 30, log, clock)
	e.quota = NewQuotaService(e.store, e.expiry, log, clock)
	e.streaks = NewStreakService(e.store, e.cache, e.notify, log, clock)
	e.reminders = NewReminderService(e.store, e.notify, log, clock)
	e.accounts = NewAccountService(e.store, log)
	e.analyses = NewAnalysisService(e.store, e.quota, e.streaks, e.photos, log, clock)
	return e
}

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

// seedSubscription inserts a row for the env user, starting a cycle at e.now.
func (e *testEnv) seedSubscription(plan model.PlanName, status model.SubscriptionStatus, mutate ...func(*model.UserSubscription)) *model.UserSubscription {
	e.t.Helper()
	sub := &model.UserSubscription{
		UserID:                   e.user.ID,
		PlanID:                   e.plans[plan].ID,
		Status:                   status,
		Gateway:                  gateway.ProviderRazorpay,
		GatewaySubscriptionID:    "plink_seed_" + uuid.NewString()[:8],
		GatewayCustomerID:        "cust_seed",
		CurrentBillingCycleStart: e.now,
		CurrentBillingCycleEnd:   e.now.AddDate(0, 0, 30),
		SubscriptionStartDate:    e.now,
		AutoRenewalEnabled:       true,
		Metadata:                 datatypes.JSONMap{},
	}
	for _, m := range mutate {
		m(sub)
	}
	require.NoError(e.t, e.store.CreateSubscription(context.Background(), sub))
	return sub
}

func (e *testEnv) reload(id uuid.UUID) *model.UserSubscription {
	e.t.Helper()
	sub, err := e.store.GetSubscription(context.Background(), id)
	require.NoError(e.t, err)
	return sub
}

func (e *testEnv) notifications(typ model.NotificationType) []model.Notification {
	e.t.Helper()
	var list []model.Notification
	require.NoError(e.t, e.db.Where("user_id = ? AND type = ?", e.user.ID, typ).Find(&list).Error)
	return list
}

func (e *testEnv) transactions() []model.PaymentTransaction {
	e.t.Helper()
	var txns []model.PaymentTransaction
	require.NoError(e.t, e.db.Where("user_id = ?", e.user.ID).Order("created_at ASC").Find(&txns).Error)
	return txns
}

// query adapts a map to the lookup function gateways take.
func query(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func webhookBody(t *testing.T, evt gateway.Event) []byte {
	t.Helper()
	b, err := json.Marshal(evt)
	require.NoError(t, err)
	return b
}
