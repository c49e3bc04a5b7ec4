package services

import (
	"context"
	"log"

	"github.com/example/translator-checkout/internal/models"
)

// WebhookEventCaptureCompleted is the only processor event this service acts
// on; everything else is acknowledged without state changes so the processor
// stops redelivering it.
const WebhookEventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"

// Processor is the slice of the payment processor API the checkout flow needs.
type Processor interface {
	CreateOrder(ctx context.Context, amount float64) (*OrderResult, error)
	CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error)
	GenerateClientToken(ctx context.Context) (string, error)
}

// Store is the slice of the payment store the checkout flow needs.
type Store interface {
	ResolveToken(ctx context.Context, token string) (*models.FormEntry, error)
	GetEntry(ctx context.Context, entryID int64) (*models.FormEntry, error)
	EnsureRecord(ctx context.Context, entry *models.FormEntry, orderID string) error
	RecordTransaction(ctx context.Context, entryID int64, transactionID string) error
	SetStatus(ctx context.Context, entryID int64, status, transactionID string) (bool, error)
	FindEntryByTransaction(ctx context.Context, transactionID string) (int64, error)
	RecordWebhookEvent(ctx context.Context, eventID, eventType, transactionID string) (bool, error)
}

// PaymentNotifier dispatches the post-payment emails.
type PaymentNotifier interface {
	PaymentReceived(ctx context.Context, entry *models.FormEntry, transactionID string) error
}

// WebhookEvent is the processor's asynchronous capture notification.
type WebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"resource"`
}

// CheckoutService sequences token resolution, processor calls, payment-state
// persistence and notification dispatch for one checkout. The synchronous
// capture response and the asynchronous webhook are two independent completion
// signals; whichever observes COMPLETED first performs the single transition
// to paid and fires the notifications, the other becomes a no-op.
type CheckoutService struct {
	store     Store
	processor Processor
	notifier  PaymentNotifier
}

// NewCheckoutService constructs a CheckoutService.
func NewCheckoutService(store Store, processor Processor, notifier PaymentNotifier) *CheckoutService {
	return &CheckoutService{store: store, processor: processor, notifier: notifier}
}

// ClientToken returns a fresh processor client token for the checkout page.
func (s *CheckoutService) ClientToken(ctx context.Context) (string, error) {
	return s.processor.GenerateClientToken(ctx)
}

// CreateOrder resolves the secure token to its pricing record and opens an
// order at the processor for that amount. Payment state is not touched; the
// entry stays unpaid until a capture attempt.
func (s *CheckoutService) CreateOrder(ctx context.Context, secureToken string) (*OrderResult, error) {
	entry, err := s.store.ResolveToken(ctx, secureToken)
	if err != nil {
		return nil, err
	}

	log.Printf("[Checkout] creating order for entry %d, amount %.2f", entry.EntryID, entry.TotalPrice)

	return s.processor.CreateOrder(ctx, entry.TotalPrice)
}

// CaptureOrder finalizes the payment for an order. The observed transaction id
// is recorded before the outcome is inspected, so a webhook referencing it can
// always be reconciled no matter how the signals interleave. Store and
// notification failures after a confirmed capture are logged and swallowed:
// the processor has the money, so the buyer must see success, and the webhook
// redelivery provides the persistence retry.
func (s *CheckoutService) CaptureOrder(ctx context.Context, orderID, secureToken string) (*CaptureResult, error) {
	entry, err := s.store.ResolveToken(ctx, secureToken)
	if err != nil {
		return nil, err
	}

	result, err := s.processor.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.store.EnsureRecord(ctx, entry, orderID); err != nil {
		log.Printf("[Checkout] ensure payment record failed for entry %d: %v", entry.EntryID, err)
	}
	if err := s.store.RecordTransaction(ctx, entry.EntryID, result.TransactionID); err != nil {
		log.Printf("[Checkout] record transaction %q failed for entry %d: %v", result.TransactionID, entry.EntryID, err)
	}

	switch result.Status {
	case CaptureStatusCompleted:
		if err := s.markPaid(ctx, entry, result.TransactionID); err != nil {
			log.Printf("[Checkout] set paid failed for entry %d: %v", entry.EntryID, err)
		}
	case CaptureStatusDeclined:
		if _, err := s.store.SetStatus(ctx, entry.EntryID, models.PaymentStatusDeclined, result.TransactionID); err != nil {
			log.Printf("[Checkout] set declined failed for entry %d: %v", entry.EntryID, err)
		}
	case CaptureStatusPending:
		if _, err := s.store.SetStatus(ctx, entry.EntryID, models.PaymentStatusPending, result.TransactionID); err != nil {
			log.Printf("[Checkout] set pending failed for entry %d: %v", entry.EntryID, err)
		}
	default:
		// Inconclusive or an unrecognized processor status: leave the record
		// as it is and wait for the webhook to settle it.
		log.Printf("[Checkout] capture of order %s for entry %d inconclusive, status %q", orderID, entry.EntryID, result.Status)
	}

	return result, nil
}

// HandleWebhook reconciles an asynchronous capture notification. An unknown
// transaction id returns ErrTransactionNotFound, which the handler reports as
// 400: the webhook beat the synchronous capture path, and the processor will
// redeliver.
func (s *CheckoutService) HandleWebhook(ctx context.Context, event WebhookEvent) error {
	if event.EventType != WebhookEventCaptureCompleted || event.Resource.Status != CaptureStatusCompleted {
		log.Printf("[Webhook] ignoring event %q (%s)", event.EventType, event.Resource.Status)
		return nil
	}

	entryID, err := s.store.FindEntryByTransaction(ctx, event.Resource.ID)
	if err != nil {
		return err
	}

	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}

	if err := s.markPaid(ctx, entry, event.Resource.ID); err != nil {
		// Surfaced to the handler as a 500 so the processor redelivers. The
		// event is ledgered only after the transition commits, so the retry
		// is not treated as a replay.
		return err
	}

	firstSeen, err := s.store.RecordWebhookEvent(ctx, event.ID, event.EventType, event.Resource.ID)
	if err != nil {
		log.Printf("[Webhook] record event %s failed: %v", event.ID, err)
	} else if !firstSeen {
		log.Printf("[Webhook] event %s redelivered", event.ID)
	}

	return nil
}

// markPaid performs the single transition to paid and, only when this call was
// the one that transitioned, dispatches the notifications. A store failure is
// returned without touching the notifier; the transition did not happen.
func (s *CheckoutService) markPaid(ctx context.Context, entry *models.FormEntry, transactionID string) error {
	changed, err := s.store.SetStatus(ctx, entry.EntryID, models.PaymentStatusPaid, transactionID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	log.Printf("[Checkout] entry %d paid, transaction %s", entry.EntryID, transactionID)

	if err := s.notifier.PaymentReceived(ctx, entry, transactionID); err != nil {
		// The payment already succeeded; notification problems must not
		// surface to the buyer.
		log.Printf("[Checkout] notification dispatch failed for entry %d: %v", entry.EntryID, err)
	}

	return nil
}
