package entitlements

import (
	"testing"
	"time"

	"github.com/learnfox/LearnFox/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSubs struct {
	sub *models.SubscriptionRecord
}

func (f *fakeSubs) GetOpenByUserID(userID uint) (*models.SubscriptionRecord, error) {
	if f.sub == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.sub, nil
}

type fakePurchases struct {
	purchases []models.OneOffPurchase
}

func (f *fakePurchases) ListByUserID(userID uint) ([]models.OneOffPurchase, error) {
	return f.purchases, nil
}

type fakeItems struct {
	inclusive []uint
	items     map[uint]*models.Item
}

func (f *fakeItems) ListPremiumInclusiveIDs() ([]uint, error) {
	return f.inclusive, nil
}

func (f *fakeItems) GetByID(id uint) (*models.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

func openPro(status string) *models.SubscriptionRecord {
	end := time.Now().AddDate(0, 1, 0)
	return &models.SubscriptionRecord{
		UserID:           1,
		PlanTier:         string(PlanPro),
		Status:           status,
		CurrentPeriodEnd: &end,
	}
}

func TestResolveFreeWhenNoOpenSubscription(t *testing.T) {
	r := NewResolver(&fakeSubs{}, &fakePurchases{}, &fakeItems{inclusive: []uint{10}})

	ent, err := r.Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, PlanFree, ent.Tier)
	// Premium-inclusive items stay locked on the free tier.
	assert.Empty(t, ent.UnlockedItemIDs)
}

func TestResolvePaidTierUnlocksInclusiveItems(t *testing.T) {
	purchases := &fakePurchases{purchases: []models.OneOffPurchase{{UserID: 1, ItemID: 5}}}
	items := &fakeItems{inclusive: []uint{5, 10, 11}}
	r := NewResolver(&fakeSubs{sub: openPro(models.SubscriptionStatusActive)}, purchases, items)

	ent, err := r.Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, PlanPro, ent.Tier)
	// Union, no duplicates: the purchased item 5 appears once.
	assert.ElementsMatch(t, []uint{5, 10, 11}, ent.UnlockedItemIDs)
}

func TestResolvePastDueRetainsTier(t *testing.T) {
	// Past due is still an open record; the grace period keeps entitlements.
	r := NewResolver(&fakeSubs{sub: openPro(models.SubscriptionStatusPastDue)}, &fakePurchases{}, &fakeItems{})

	ent, err := r.Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, PlanPro, ent.Tier)
}

func TestResolvePurchasesSurviveWithoutSubscription(t *testing.T) {
	purchases := &fakePurchases{purchases: []models.OneOffPurchase{{UserID: 1, ItemID: 7}}}
	r := NewResolver(&fakeSubs{}, purchases, &fakeItems{inclusive: []uint{10}})

	ent, err := r.Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, PlanFree, ent.Tier)
	assert.Equal(t, []uint{7}, ent.UnlockedItemIDs)
}

func TestHasAccess(t *testing.T) {
	items := &fakeItems{
		items: map[uint]*models.Item{
			10: {ID: 10, PremiumInclusive: true},
			20: {ID: 20, PremiumInclusive: false},
		},
	}
	purchases := &fakePurchases{purchases: []models.OneOffPurchase{{UserID: 1, ItemID: 20}}}

	// Free user: only the individually purchased item.
	r := NewResolver(&fakeSubs{}, purchases, items)
	ok, err := r.HasAccess(1, 10)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = r.HasAccess(1, 20)
	require.NoError(t, err)
	assert.True(t, ok)

	// Subscriber: inclusive item unlocks too.
	r = NewResolver(&fakeSubs{sub: openPro(models.SubscriptionStatusActive)}, purchases, items)
	ok, err = r.HasAccess(1, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	// Unknown item is a plain no.
	ok, err = r.HasAccess(1, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNormalizeAndRank(t *testing.T) {
	assert.Equal(t, PlanPro, Normalize("  PRO "))
	assert.Equal(t, PlanPremium, Normalize("Premium"))
	assert.Equal(t, PlanFree, Normalize("something-else"))
	assert.Equal(t, PlanFree, Normalize(""))

	assert.True(t, Rank(PlanPremium) > Rank(PlanPro))
	assert.True(t, Rank(PlanPro) > Rank(PlanFree))

	assert.False(t, IsPaid(PlanFree))
	assert.True(t, IsPaid(PlanPro))
	assert.True(t, IsPaid(PlanPremium))
}
