package revenue

import (
	"encoding/json"
	"log"
	"time"

	"github.com/learnfox/LearnFox/app/models"
	"github.com/learnfox/LearnFox/app/repository"
	"github.com/learnfox/LearnFox/internal/pkg/cache"
	"github.com/shopspring/decimal"
)

const (
	cacheKeySnapshot = "revenue:snapshot"
	cacheExpiration  = 30 * time.Minute
)

// Snapshot is a read-only revenue rollup. It is derived reporting, never an
// input back into subscription state.
type Snapshot struct {
	MRRCents            int64     `json:"mrr_cents"`
	ARRCents            int64     `json:"arr_cents"`
	ActiveSubscriptions int64     `json:"active_subscriptions"`
	ChurnRate           float64   `json:"churn_rate"`
	WindowStart         time.Time `json:"window_start"`
	WindowEnd           time.Time `json:"window_end"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// Aggregator computes revenue rollups from the subscription table and the
// payment ledger. It has no write authority.
type Aggregator struct {
	subs repository.SubscriptionRepository
}

func NewAggregator(subs repository.SubscriptionRepository) *Aggregator {
	return &Aggregator{subs: subs}
}

// ComputeMRR sums open active subscriptions normalized to a monthly amount.
// Yearly amounts divide by twelve in decimal space and the total is rounded
// half-up once at the end.
func (a *Aggregator) ComputeMRR() (int64, int64, error) {
	subs, err := a.subs.ListOpen()
	if err != nil {
		return 0, 0, err
	}

	total := decimal.Zero
	var active int64
	twelve := decimal.NewFromInt(12)
	for _, sub := range subs {
		if sub.Status != models.SubscriptionStatusActive {
			continue
		}
		active++
		amount := decimal.NewFromInt(sub.AmountCents)
		if sub.BillingPeriod == models.BillingPeriodYearly {
			amount = amount.Div(twelve)
		}
		total = total.Add(amount)
	}
	return total.Round(0).IntPart(), active, nil
}

// ComputeChurn returns canceled-in-window / (open-at-end + canceled-in-window).
// Zero when the denominator is zero.
func (a *Aggregator) ComputeChurn(from, to time.Time) (float64, error) {
	canceled, err := a.subs.CountCanceledInWindow(from, to)
	if err != nil {
		return 0, err
	}
	subs, err := a.subs.ListOpen()
	if err != nil {
		return 0, err
	}
	denominator := int64(len(subs)) + canceled
	if denominator == 0 {
		return 0, nil
	}
	return float64(canceled) / float64(denominator), nil
}

// ComputeSnapshot builds the full rollup over the trailing 30-day window.
func (a *Aggregator) ComputeSnapshot(now time.Time) (*Snapshot, error) {
	mrr, active, err := a.ComputeMRR()
	if err != nil {
		return nil, err
	}
	windowStart := now.AddDate(0, 0, -30)
	churn, err := a.ComputeChurn(windowStart, now)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		MRRCents:            mrr,
		ARRCents:            mrr * 12,
		ActiveSubscriptions: active,
		ChurnRate:           churn,
		WindowStart:         windowStart,
		WindowEnd:           now,
		GeneratedAt:         now,
	}, nil
}

// CachedSnapshot serves the rollup from Redis when fresh, recomputing and
// re-caching on miss. Cache failures degrade to recomputation.
func (a *Aggregator) CachedSnapshot(now time.Time) (*Snapshot, error) {
	if raw, err := cache.Get(cacheKeySnapshot); err == nil && raw != "" {
		var snap Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err == nil {
			return &snap, nil
		}
	}

	snap, err := a.ComputeSnapshot(now)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(snap); err == nil {
		if err := cache.Set(cacheKeySnapshot, string(raw), cacheExpiration); err != nil {
			log.Printf("Failed to cache revenue snapshot: %v", err)
		}
	}
	return snap, nil
}
