package repository

import (
	"time"

	"github.com/learnfox/LearnFox/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByGatewayCustomerID(customerID string) (*models.User, error)
	Update(user *models.User) error
	SetTier(userID uint, tier string) error
	SetGatewayCustomerID(userID uint, customerID string) error
}

// SubscriptionRepository defines subscription persistence. Mutations that
// must survive concurrent writers are expressed as conditional operations
// (unique-slot insert, optimistic version update) rather than blind saves.
type SubscriptionRepository interface {
	// CreateIfNoOpen inserts a new open subscription row. It fails with a
	// duplicate-key error while the user already has a non-terminal row;
	// callers treat that as ErrDuplicateKey.
	CreateIfNoOpen(sub *models.SubscriptionRecord) error
	GetBySubscriptionID(subscriptionID string) (*models.SubscriptionRecord, error)
	GetByGatewaySubscriptionID(gatewaySubID string) (*models.SubscriptionRecord, error)
	GetOpenByUserID(userID uint) (*models.SubscriptionRecord, error)
	ListByUserID(userID uint) ([]models.SubscriptionRecord, error)
	// UpdateWithVersion persists all mutable fields if and only if the stored
	// row still carries sub.Version; on success sub.Version is advanced.
	// Returns ErrStaleRecord when another writer got there first.
	UpdateWithVersion(sub *models.SubscriptionRecord) error
	CountOpenByStatus(status string) (int64, error)
	ListOpen() ([]models.SubscriptionRecord, error)
	CountCanceledInWindow(from, to time.Time) (int64, error)
}

// LedgerRepository defines append-only payment ledger persistence.
type LedgerRepository interface {
	// AppendIfNew inserts the entry unless its idempotency key already
	// exists; it reports whether a row was created and returns the stored
	// row either way.
	AppendIfNew(entry *models.LedgerEntry) (bool, *models.LedgerEntry, error)
	GetByTransactionID(transactionID string) (*models.LedgerEntry, error)
	// GetByTransactionIDForUpdate loads the entry holding a row lock for the
	// rest of the transaction, so concurrent refund balance checks against
	// the same original charge serialize instead of both passing.
	GetByTransactionIDForUpdate(transactionID string) (*models.LedgerEntry, error)
	GetByIdempotencyKey(key string) (*models.LedgerEntry, error)
	ListByUserID(userID uint, offset, limit int) ([]models.LedgerEntry, error)
	// SumRefundedCents returns the total already refunded against the given
	// original transaction, as a positive number of cents.
	SumRefundedCents(originalTransactionID string) (int64, error)
}

// PurchaseRepository defines one-off purchase persistence.
type PurchaseRepository interface {
	// GrantIfAbsent inserts the purchase unless the (user, item) pair already
	// owns one; re-granting is reported as created=false, never an error.
	GrantIfAbsent(p *models.OneOffPurchase) (bool, *models.OneOffPurchase, error)
	ListByUserID(userID uint) ([]models.OneOffPurchase, error)
	GetByUserAndItem(userID, itemID uint) (*models.OneOffPurchase, error)
}

// WebhookEventRepository defines the processed-events dedup store.
type WebhookEventRepository interface {
	// CreateIfNew inserts the event unless its EventID was already recorded;
	// it reports whether the row is new and returns the stored row.
	CreateIfNew(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
	GetByEventID(eventID string) (*models.WebhookEvent, error)
}

// ItemRepository defines content item lookups.
type ItemRepository interface {
	Create(item *models.Item) error
	GetByID(id uint) (*models.Item, error)
	ListPremiumInclusiveIDs() ([]uint, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User         UserRepository
	Subscription SubscriptionRepository
	Ledger       LedgerRepository
	Purchase     PurchaseRepository
	WebhookEvent WebhookEventRepository
	Item         ItemRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Ledger:       NewLedgerRepository(db),
		Purchase:     NewPurchaseRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Item:         NewItemRepository(db),
	}
}
