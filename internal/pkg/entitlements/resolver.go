package entitlements

import (
	"errors"

	"github.com/learnfox/LearnFox/app/models"
	"gorm.io/gorm"
)

// SubscriptionSource yields the user's open (non-terminal) subscription, or
// gorm.ErrRecordNotFound when none exists.
type SubscriptionSource interface {
	GetOpenByUserID(userID uint) (*models.SubscriptionRecord, error)
}

// PurchaseSource yields all one-off purchases for a user.
type PurchaseSource interface {
	ListByUserID(userID uint) ([]models.OneOffPurchase, error)
}

// ItemSource yields item metadata needed for entitlement decisions.
type ItemSource interface {
	ListPremiumInclusiveIDs() ([]uint, error)
	GetByID(id uint) (*models.Item, error)
}

// Entitlement is the derived capability set for a user at one instant. It is
// never persisted; recomputing it on every check is what keeps it from
// drifting.
type Entitlement struct {
	Tier            Plan   `json:"tier"`
	UnlockedItemIDs []uint `json:"unlocked_item_ids"`
}

// Resolver derives entitlements from subscription and purchase state. It is
// a pure read path: no writes, safe to call on every access check, tolerant
// of momentarily stale subscription status.
type Resolver struct {
	subs      SubscriptionSource
	purchases PurchaseSource
	items     ItemSource
}

func NewResolver(subs SubscriptionSource, purchases PurchaseSource, items ItemSource) *Resolver {
	return &Resolver{subs: subs, purchases: purchases, items: items}
}

// Resolve returns the user's tier and the union of individually purchased
// items plus, for paid tiers, all premium-inclusive items.
func (r *Resolver) Resolve(userID uint) (*Entitlement, error) {
	tier := PlanFree
	sub, err := r.subs.GetOpenByUserID(userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// No non-terminal record means free tier by definition.
	} else {
		tier = Normalize(sub.PlanTier)
	}

	purchases, err := r.purchases.ListByUserID(userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{}, len(purchases))
	unlocked := make([]uint, 0, len(purchases))
	for _, p := range purchases {
		if _, ok := seen[p.ItemID]; ok {
			continue
		}
		seen[p.ItemID] = struct{}{}
		unlocked = append(unlocked, p.ItemID)
	}

	if IsPaid(tier) {
		inclusive, err := r.items.ListPremiumInclusiveIDs()
		if err != nil {
			return nil, err
		}
		for _, id := range inclusive {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			unlocked = append(unlocked, id)
		}
	}

	return &Entitlement{Tier: tier, UnlockedItemIDs: unlocked}, nil
}

// HasAccess answers the single-item question without materializing the full
// unlocked set.
func (r *Resolver) HasAccess(userID, itemID uint) (bool, error) {
	item, err := r.items.GetByID(itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	if item.PremiumInclusive {
		sub, err := r.subs.GetOpenByUserID(userID)
		if err == nil && IsPaid(Normalize(sub.PlanTier)) {
			return true, nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}
	}

	purchases, err := r.purchases.ListByUserID(userID)
	if err != nil {
		return false, err
	}
	for _, p := range purchases {
		if p.ItemID == itemID {
			return true, nil
		}
	}
	return false, nil
}
