package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/translator-checkout/internal/models"
)

var (
	// ErrTokenNotFound means a secure token matched no pricing record.
	ErrTokenNotFound = errors.New("no pricing record for token")
	// ErrTransactionNotFound means a transaction id matched no payment record.
	ErrTransactionNotFound = errors.New("no payment record for transaction")
)

// statusBelow lists, per target status, the statuses a record may move from.
// Everything else is a no-op, which makes SetStatus idempotent and keeps the
// unpaid -> pending/declined/failed -> paid ordering monotonic.
var statusBelow = map[string][]string{
	models.PaymentStatusPending:  {models.PaymentStatusUnpaid},
	models.PaymentStatusDeclined: {models.PaymentStatusUnpaid, models.PaymentStatusPending},
	models.PaymentStatusFailed:   {models.PaymentStatusUnpaid, models.PaymentStatusPending},
	models.PaymentStatusPaid: {
		models.PaymentStatusUnpaid,
		models.PaymentStatusPending,
		models.PaymentStatusDeclined,
		models.PaymentStatusFailed,
	},
}

// PaymentStore persists payment state for form entries.
type PaymentStore struct {
	db *gorm.DB
}

// NewPaymentStore constructs a PaymentStore.
func NewPaymentStore(db *gorm.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// ResolveToken maps a secure checkout token to its pricing record. When more
// than one entry carries the token the lowest entry id wins; this mirrors the
// upstream form plugin's behavior and is an accepted simplification.
func (s *PaymentStore) ResolveToken(ctx context.Context, token string) (*models.FormEntry, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}

	var entry models.FormEntry
	err := s.db.WithContext(ctx).
		Where("secure_token = ?", token).
		Order("entry_id asc").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return &entry, nil
}

// EnsureRecord creates the unpaid payment record for an entry if none exists
// yet, seeding amount and order id for later inspection. Safe to call on every
// capture attempt.
func (s *PaymentStore) EnsureRecord(ctx context.Context, entry *models.FormEntry, orderID string) error {
	record := models.PaymentRecord{
		EntryID:  entry.EntryID,
		Status:   models.PaymentStatusUnpaid,
		OrderID:  orderID,
		Amount:   entry.TotalPrice,
		Currency: entry.Currency,
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_id"}},
			DoNothing: true,
		}).
		Create(&record).Error
}

// RecordTransaction stores the transaction id observed for a capture attempt
// so a later webhook referencing it can be reconciled to the entry. No-op when
// the capture produced no transaction id. A record already in paid keeps the
// transaction id that paid it; a retried capture must not overwrite it.
func (s *PaymentStore) RecordTransaction(ctx context.Context, entryID int64, transactionID string) error {
	if transactionID == "" {
		return nil
	}

	return s.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("entry_id = ? AND status <> ?", entryID, models.PaymentStatusPaid).
		Update("transaction_id", transactionID).Error
}

// SetStatus moves the entry's payment record to the given status. The update
// only applies when the current status ranks strictly below the target, so
// repeated or out-of-order delivery of the same signal cannot downgrade a
// record or fire twice. The returned flag reports whether this call performed
// the transition.
func (s *PaymentStore) SetStatus(ctx context.Context, entryID int64, status, transactionID string) (bool, error) {
	from, ok := statusBelow[status]
	if !ok {
		return false, errors.New("unknown payment status: " + status)
	}

	updates := map[string]any{"status": status}
	if transactionID != "" {
		updates["transaction_id"] = transactionID
	}
	if status == models.PaymentStatusPaid {
		now := time.Now()
		updates["paid_at"] = &now
	}

	res := s.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("entry_id = ? AND status IN ?", entryID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// FindEntryByTransaction resolves a processor transaction id back to the form
// entry it was captured for. Used only by the webhook path.
func (s *PaymentStore) FindEntryByTransaction(ctx context.Context, transactionID string) (int64, error) {
	if transactionID == "" {
		return 0, ErrTransactionNotFound
	}

	var record models.PaymentRecord
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrTransactionNotFound
		}
		return 0, err
	}

	return record.EntryID, nil
}

// RecordWebhookEvent remembers a processed webhook delivery by provider event
// id. Returns false when the event was already seen. Events without an id
// cannot be deduplicated and count as first seen.
func (s *PaymentStore) RecordWebhookEvent(ctx context.Context, eventID, eventType, transactionID string) (bool, error) {
	if eventID == "" {
		return true, nil
	}

	event := models.WebhookEvent{
		EventID:       eventID,
		EventType:     eventType,
		TransactionID: transactionID,
		ProcessedAt:   time.Now(),
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&event)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// GetEntry returns the pricing record for an entry id.
func (s *PaymentStore) GetEntry(ctx context.Context, entryID int64) (*models.FormEntry, error) {
	var entry models.FormEntry
	err := s.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetRecord returns the payment record for an entry.
func (s *PaymentStore) GetRecord(ctx context.Context, entryID int64) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := s.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}
