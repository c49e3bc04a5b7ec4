package models

import "time"

// Payment status values. Transitions are monotonic: unpaid may move to
// pending, declined, failed or paid, and paid is never downgraded.
const (
	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusPending  = "pending"
	PaymentStatusDeclined = "declined"
	PaymentStatusFailed   = "failed"
	PaymentStatusPaid     = "paid"
)

// PaymentRecord stores the current payment state for one form entry.
type PaymentRecord struct {
	BaseModel
	EntryID       int64      `gorm:"uniqueIndex" json:"entry_id"`
	Status        string     `gorm:"index" json:"status"`
	TransactionID string     `gorm:"column:transaction_id;index" json:"transaction_id"`
	OrderID       string     `json:"order_id"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	PaidAt        *time.Time `json:"paid_at"`
}

// WebhookEvent records processed processor webhook deliveries so redelivered
// events can be recognized by their provider event id.
type WebhookEvent struct {
	EventID       string    `gorm:"primaryKey;size:128" json:"event_id"`
	EventType     string    `gorm:"size:64;index" json:"event_type"`
	TransactionID string    `gorm:"column:transaction_id;index" json:"transaction_id"`
	ProcessedAt   time.Time `json:"processed_at"`
}
