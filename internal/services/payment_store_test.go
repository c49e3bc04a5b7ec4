package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/translator-checkout/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.FormEntry{},
		&models.PaymentRecord{},
		&models.WebhookEvent{},
	))

	return db
}

func seedEntry(t *testing.T, db *gorm.DB, entryID int64, token string, price float64) *models.FormEntry {
	t.Helper()

	entry := &models.FormEntry{
		EntryID:      entryID,
		SecureToken:  token,
		CustomerName: "Maria Lopez",
		TotalPrice:   price,
		Currency:     "USD",
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

func TestResolveToken(t *testing.T) {
	db := newTestDB(t)
	store := NewPaymentStore(db)
	ctx := context.Background()

	seedEntry(t, db, 42, "abc", 19.99)

	entry, err := store.ResolveToken(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(42), entry.EntryID)
	assert.Equal(t, 19.99, entry.TotalPrice)

	_, err = store.ResolveToken(ctx, "nope")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = store.ResolveToken(ctx, "")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestResolveTokenFirstMatchWins(t *testing.T) {
	db := newTestDB(t)
	store := NewPaymentStore(db)

	seedEntry(t, db, 50, "dup", 10)
	seedEntry(t, db, 7, "dup", 25)

	entry, err := store.ResolveToken(context.Background(), "dup")
	require.NoError(t, err)
	assert.Equal(t, int64(7), entry.EntryID)
}

func TestSetStatusMonotonic(t *testing.T) {
	db := newTestDB(t)
	store := NewPaymentStore(db)
	ctx := context.Background()

	entry := seedEntry(t, db, 42, "abc", 19.99)
	require.NoError(t, store.EnsureRecord(ctx, entry, "O-1"))

	changed, err := store.SetStatus(ctx, 42, models.PaymentStatusPending, "")
	require.NoError(t, err)
	assert.True(t, changed)

	// Same transition again is a no-op.
	changed, err = store.SetStatus(ctx, 42, models.PaymentStatusPending, "")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = store.SetStatus(ctx, 42, models.PaymentStatusPaid, "T-1")
	require.NoError(t, err)
	assert.True(t, changed)

	// Paid is terminal: nothing downgrades it and repeating it reports no change.
	for _, status := range []string{
		models.PaymentStatusPending,
		models.PaymentStatusDeclined,
		models.PaymentStatusPaid,
	} {
		changed, err = store.SetStatus(ctx, 42, status, "T-1")
		require.NoError(t, err)
		assert.False(t, changed, "status %s must not change a paid record", status)
	}

	record, err := store.GetRecord(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, record.Status)
	assert.Equal(t, "T-1", record.TransactionID)
	assert.NotNil(t, record.PaidAt)
}

func TestSetStatusUnknownStatus(t *testing.T) {
	db := newTestDB(t)
	store := NewPaymentStore(db)

	_, err := store.SetStatus(context.Background(), 1, "refunded", "")
	assert.Error(t, err)
}

func TestRecordTransactionAndReverseLookup(t *testing.T) {
	db := newTestDB(t)
	store := NewPaymentStore(db)
	ctx := context.Background()

	entry := seedEntry(t, db, 42, "abc", 19.99)
	require.NoError(t, store.EnsureRecord(ctx, entry, "O-1"))

	// Absent transaction id is a harmless no-op.
	require.NoError(t, store.RecordTransaction(ctx, 42, ""))
	_, err := store.FindEntryByTransaction(ctx, "")
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	require.NoError(t, store.RecordTransaction(ctx, 42, "T-1"))
	require.NoError(t, store.RecordTransaction(ctx, 42, "T-1"))

	entryID, err := store.FindEntryByTransaction(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), entryID)

	_, err = store.FindEntryByTransaction(ctx, "T-unknown")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestRecordTransactionKeepsPaidTransaction(t *testing.T) {
	db := newTestDB(t)
	store := NewPaymentStore(db)
	ctx := context.Background()

	entry := seedEntry(t, db, 42, "abc", 19.99)
	require.NoError(t, store.EnsureRecord(ctx, entry, "O-1"))
	require.NoError(t, store.RecordTransaction(ctx, 42, "T-1"))

	changed, err := store.SetStatus(ctx, 42, models.PaymentStatusPaid, "T-1")
	require.NoError(t, err)
	require.True(t, changed)

	// A retried capture producing a fresh transaction id must not replace
	// the one that actually paid the entry.
	require.NoError(t, store.RecordTransaction(ctx, 42, "T-2"))

	record, err := store.GetRecord(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "T-1", record.TransactionID)

	entryID, err := store.FindEntryByTransaction(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), entryID)
}

func TestEnsureRecordIdempotent(t *testing.T) {
	db := newTestDB(t)
	store := NewPaymentStore(db)
	ctx := context.Background()

	entry := seedEntry(t, db, 42, "abc", 19.99)
	require.NoError(t, store.EnsureRecord(ctx, entry, "O-1"))
	require.NoError(t, store.EnsureRecord(ctx, entry, "O-2"))

	var count int64
	require.NoError(t, db.Model(&models.PaymentRecord{}).Where("entry_id = ?", 42).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	record, err := store.GetRecord(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "O-1", record.OrderID)
	assert.Equal(t, models.PaymentStatusUnpaid, record.Status)
}

func TestRecordWebhookEventDedupe(t *testing.T) {
	db := newTestDB(t)
	store := NewPaymentStore(db)
	ctx := context.Background()

	first, err := store.RecordWebhookEvent(ctx, "WH-1", "PAYMENT.CAPTURE.COMPLETED", "T-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.RecordWebhookEvent(ctx, "WH-1", "PAYMENT.CAPTURE.COMPLETED", "T-1")
	require.NoError(t, err)
	assert.False(t, again)

	// Events without an id cannot be deduplicated.
	anon, err := store.RecordWebhookEvent(ctx, "", "PAYMENT.CAPTURE.COMPLETED", "T-1")
	require.NoError(t, err)
	assert.True(t, anon)
}
