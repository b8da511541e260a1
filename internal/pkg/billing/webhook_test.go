package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/learnfox/LearnFox/app/models"
	"github.com/learnfox/LearnFox/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscriptionCheckoutEvent(eventID string, userID uint, start, end time.Time) Event {
	payload := fmt.Sprintf(`{
		"mode": "subscription",
		"user_id": %d,
		"customer": "cus_1",
		"subscription": "gwsub_1",
		"price": "price_pro_monthly",
		"period_start": %d,
		"period_end": %d
	}`, userID, start.Unix(), end.Unix())
	return Event{
		EventID:     eventID,
		Type:        EventCheckoutCompleted,
		OccurredAt:  start,
		PayloadJSON: []byte(payload),
	}
}

func TestProcessCheckoutCompletedCreatesSubscription(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice@example.com")
	repos := repository.NewRepositories(db)
	p := NewProcessor(db)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	res, err := p.Process(context.Background(), subscriptionCheckoutEvent("evt_1", user.ID, start, end), true)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)

	sub, err := repos.Subscription.GetOpenByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "pro", sub.PlanTier)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "gwsub_1", sub.GatewaySubscriptionID)

	stored, err := repos.User.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "pro", stored.Tier)
	assert.Equal(t, "cus_1", stored.GatewayCustomerID)
}

func TestProcessDuplicateEventIDIsNoOp(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice@example.com")
	repos := repository.NewRepositories(db)
	p := NewProcessor(db)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	ev := subscriptionCheckoutEvent("evt_1", user.ID, start, end)

	res, err := p.Process(context.Background(), ev, true)
	require.NoError(t, err)
	require.Equal(t, StatusApplied, res.Status)

	// Byte-identical redelivery is answered from the dedup store.
	res, err = p.Process(context.Background(), ev, true)
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, res.Status)

	var count int64
	require.NoError(t, db.Model(&models.SubscriptionRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	subs, err := repos.Subscription.ListByUserID(user.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
}

func TestProcessCheckoutReplayWithFreshEventID(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice@example.com")
	p := NewProcessor(db)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	res, err := p.Process(context.Background(), subscriptionCheckoutEvent("evt_1", user.ID, start, end), true)
	require.NoError(t, err)
	require.Equal(t, StatusApplied, res.Status)

	// Same checkout delivered under a new event id hits the unique open-slot
	// index instead of creating a second subscription.
	res, err = p.Process(context.Background(), subscriptionCheckoutEvent("evt_2", user.ID, start, end), true)
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)

	var count int64
	require.NoError(t, db.Model(&models.SubscriptionRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProcessRenewalAdvancesPeriodMonotonically(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice@example.com")
	repos := repository.NewRepositories(db)
	p := NewProcessor(db)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	_, err := p.Process(context.Background(), subscriptionCheckoutEvent("evt_1", user.ID, start, end), true)
	require.NoError(t, err)

	renewal := func(eventID string, s, e time.Time) Event {
		payload := fmt.Sprintf(`{"subscription":"gwsub_1","status":"active","period_start":%d,"period_end":%d}`, s.Unix(), e.Unix())
		return Event{EventID: eventID, Type: EventSubscriptionUpdated, OccurredAt: e, PayloadJSON: []byte(payload)}
	}

	nextEnd := end.AddDate(0, 1, 0)
	res, err := p.Process(context.Background(), renewal("evt_2", end, nextEnd), true)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)

	// A late redelivery of the previous cycle must not roll the period back.
	res, err = p.Process(context.Background(), renewal("evt_3", start, end), true)
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)

	sub, err := repos.Subscription.GetOpenByUserID(user.ID)
	require.NoError(t, err)
	assert.True(t, sub.CurrentPeriodEnd.Equal(nextEnd))
}

func TestProcessPaymentFailedThenRenewalRecovers(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice@example.com")
	repos := repository.NewRepositories(db)
	p := NewProcessor(db)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	_, err := p.Process(context.Background(), subscriptionCheckoutEvent("evt_1", user.ID, start, end), true)
	require.NoError(t, err)

	failed := Event{
		EventID:     "evt_2",
		Type:        EventInvoicePaymentFailed,
		OccurredAt:  end,
		PayloadJSON: []byte(`{"subscription":"gwsub_1","payment_id":"pay_f1","amount_cents":2999,"currency":"usd"}`),
	}
	res, err := p.Process(context.Background(), failed, true)
	require.NoError(t, err)
	require.Equal(t, StatusApplied, res.Status)

	sub, err := repos.Subscription.GetOpenByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)

	entry, err := repos.Ledger.GetByIdempotencyKey("pay_f1")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerStatusFailed, entry.Status)

	nextEnd := end.AddDate(0, 1, 0)
	renewal := Event{
		EventID:     "evt_3",
		Type:        EventSubscriptionUpdated,
		OccurredAt:  end,
		PayloadJSON: []byte(fmt.Sprintf(`{"subscription":"gwsub_1","status":"active","period_start":%d,"period_end":%d}`, end.Unix(), nextEnd.Unix())),
	}
	res, err = p.Process(context.Background(), renewal, true)
	require.NoError(t, err)
	require.Equal(t, StatusApplied, res.Status)

	sub, err = repos.Subscription.GetOpenByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
}

func TestProcessSubscriptionDeletedIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice@example.com")
	repos := repository.NewRepositories(db)
	p := NewProcessor(db)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	_, err := p.Process(context.Background(), subscriptionCheckoutEvent("evt_1", user.ID, start, end), true)
	require.NoError(t, err)

	deleted := func(eventID string) Event {
		return Event{
			EventID:     eventID,
			Type:        EventSubscriptionDeleted,
			OccurredAt:  end,
			PayloadJSON: []byte(`{"subscription":"gwsub_1"}`),
		}
	}

	res, err := p.Process(context.Background(), deleted("evt_2"), true)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)

	stored, err := repos.User.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "free", stored.Tier)

	// Redelivered deletion under a fresh event id lands in the absorbing
	// terminal state.
	res, err = p.Process(context.Background(), deleted("evt_3"), true)
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)

	subs, err := repos.Subscription.ListByUserID(user.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubscriptionStatusCanceled, subs[0].Status)
}

func TestProcessInvoicePaidWritesExactlyOneLedgerRow(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice@example.com")
	p := NewProcessor(db)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	_, err := p.Process(context.Background(), subscriptionCheckoutEvent("evt_1", user.ID, start, end), true)
	require.NoError(t, err)

	paid := func(eventID string) Event {
		return Event{
			EventID:     eventID,
			Type:        EventInvoicePaid,
			OccurredAt:  start,
			PayloadJSON: []byte(`{"subscription":"gwsub_1","payment_id":"pay_1","amount_cents":2999,"currency":"usd"}`),
		}
	}

	res, err := p.Process(context.Background(), paid("evt_2"), true)
	require.NoError(t, err)
	require.Equal(t, StatusApplied, res.Status)

	// Redelivery under a fresh event id dedups on the payment id instead.
	_, err = p.Process(context.Background(), paid("evt_3"), true)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Where("idempotency_key = ?", "pay_1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProcessChargeRefunded(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice@example.com")
	repos := repository.NewRepositories(db)
	p := NewProcessor(db)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	_, err := p.Process(context.Background(), subscriptionCheckoutEvent("evt_1", user.ID, start, end), true)
	require.NoError(t, err)

	paid := Event{
		EventID:     "evt_2",
		Type:        EventInvoicePaid,
		OccurredAt:  start,
		PayloadJSON: []byte(`{"subscription":"gwsub_1","payment_id":"pay_1","amount_cents":2999,"currency":"usd"}`),
	}
	_, err = p.Process(context.Background(), paid, true)
	require.NoError(t, err)

	refund := func(eventID, refundID string) Event {
		payload := fmt.Sprintf(`{"payment_id":"%s","refunded_payment_id":"pay_1","amount_cents":2999,"reason":"requested_by_customer"}`, refundID)
		return Event{EventID: eventID, Type: EventChargeRefunded, OccurredAt: start, PayloadJSON: []byte(payload)}
	}

	res, err := p.Process(context.Background(), refund("evt_3", "re_1"), true)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)

	entry, err := repos.Ledger.GetByIdempotencyKey("re_1")
	require.NoError(t, err)
	assert.Equal(t, int64(-2999), entry.AmountCents)

	// A second full refund exceeds the refundable balance and is durably
	// acknowledged without a write.
	res, err = p.Process(context.Background(), refund("evt_4", "re_2"), true)
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)
}

func TestProcessBookPurchaseGrantsOnce(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice@example.com")
	repos := repository.NewRepositories(db)
	p := NewProcessor(db)

	item := &models.Item{Title: "Anatomy Atlas", Slug: "anatomy-atlas", PriceCents: 1999}
	require.NoError(t, db.Create(item).Error)

	purchase := func(eventID string) Event {
		payload := fmt.Sprintf(`{"mode":"payment","user_id":%d,"item_id":%d,"payment_id":"pay_b1","amount_cents":1999,"currency":"usd"}`, user.ID, item.ID)
		return Event{EventID: eventID, Type: EventCheckoutCompleted, OccurredAt: time.Now(), PayloadJSON: []byte(payload)}
	}

	res, err := p.Process(context.Background(), purchase("evt_1"), true)
	require.NoError(t, err)
	require.Equal(t, StatusApplied, res.Status)

	_, err = p.Process(context.Background(), purchase("evt_2"), true)
	require.NoError(t, err)

	purchases, err := repos.Purchase.ListByUserID(user.ID)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, item.ID, purchases[0].ItemID)

	var count int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Where("idempotency_key = ?", "pay_b1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProcessUnknownEventTypeIsAcknowledged(t *testing.T) {
	db := newTestDB(t)
	p := NewProcessor(db)

	ev := Event{
		EventID:     "evt_1",
		Type:        "customer.updated",
		OccurredAt:  time.Now(),
		PayloadJSON: []byte(`{}`),
	}
	res, err := p.Process(context.Background(), ev, true)
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)

	repos := repository.NewRepositories(db)
	stored, err := repos.WebhookEvent.GetByEventID("evt_1")
	require.NoError(t, err)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestProcessEventWithoutIDDedupsOnPayloadHash(t *testing.T) {
	db := newTestDB(t)
	p := NewProcessor(db)

	ev := Event{
		Type:        "customer.updated",
		OccurredAt:  time.Now(),
		PayloadJSON: []byte(`{"customer":"cus_1"}`),
	}
	res, err := p.Process(context.Background(), ev, true)
	require.NoError(t, err)
	require.Equal(t, StatusIgnored, res.Status)

	res, err = p.Process(context.Background(), ev, true)
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, res.Status)
}

func TestProcessEventForUnknownReferencesIsAcknowledged(t *testing.T) {
	db := newTestDB(t)
	p := NewProcessor(db)

	// Renewal for a subscription this system never created.
	ev := Event{
		EventID:     "evt_1",
		Type:        EventSubscriptionUpdated,
		OccurredAt:  time.Now(),
		PayloadJSON: []byte(`{"subscription":"gwsub_unknown","status":"active","period_start":1,"period_end":2}`),
	}
	res, err := p.Process(context.Background(), ev, true)
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)

	// Checkout for a user this system cannot resolve.
	ev = Event{
		EventID:     "evt_2",
		Type:        EventCheckoutCompleted,
		OccurredAt:  time.Now(),
		PayloadJSON: []byte(`{"mode":"subscription","customer":"cus_unknown","price":"price_pro_monthly"}`),
	}
	res, err = p.Process(context.Background(), ev, true)
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)
}
