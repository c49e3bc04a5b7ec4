package services

import (
	"context"
	"errors"
	"log"

	"github.com/example/translator-checkout/internal/models"
)

// EntryDirectory resolves buyer contact details and the submitted document
// for a form entry.
type EntryDirectory interface {
	EntryEmail(ctx context.Context, entryID int64) (string, error)
	EntryAttachment(ctx context.Context, entryID int64) (*EntryAttachment, error)
}

// MailSender delivers the two payment emails.
type MailSender interface {
	SendBuyerReceipt(to string, entry *models.FormEntry, transactionID string) error
	SendSellerNotice(entry *models.FormEntry, buyerEmail, transactionID string, attachment *EntryAttachment) error
}

// Notifier resolves the buyer address and deliverable file for a paid entry
// and sends the buyer receipt plus the seller notice. Callers fire it after
// the payment is final; its errors are for logging only and must never fail
// the checkout.
type Notifier struct {
	directory EntryDirectory
	mailer    MailSender
}

// NewNotifier constructs a Notifier.
func NewNotifier(directory EntryDirectory, mailer MailSender) *Notifier {
	return &Notifier{directory: directory, mailer: mailer}
}

// PaymentReceived sends both notifications for a freshly paid entry. Partial
// failures are logged and joined into the returned error; the seller notice is
// still attempted when the buyer address cannot be resolved.
func (n *Notifier) PaymentReceived(ctx context.Context, entry *models.FormEntry, transactionID string) error {
	var errs []error

	buyerEmail, err := n.directory.EntryEmail(ctx, entry.EntryID)
	if err != nil {
		log.Printf("[Notify] buyer email lookup failed for entry %d: %v", entry.EntryID, err)
		errs = append(errs, err)
	}

	attachment, err := n.directory.EntryAttachment(ctx, entry.EntryID)
	if err != nil {
		// The seller notice still goes out without the document.
		log.Printf("[Notify] attachment lookup failed for entry %d: %v", entry.EntryID, err)
		errs = append(errs, err)
	}

	if buyerEmail != "" {
		if err := n.mailer.SendBuyerReceipt(buyerEmail, entry, transactionID); err != nil {
			log.Printf("[Notify] buyer receipt failed for entry %d: %v", entry.EntryID, err)
			errs = append(errs, err)
		}
	}

	if err := n.mailer.SendSellerNotice(entry, buyerEmail, transactionID, attachment); err != nil {
		log.Printf("[Notify] seller notice failed for entry %d: %v", entry.EntryID, err)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
