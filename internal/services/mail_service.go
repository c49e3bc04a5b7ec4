package services

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/example/translator-checkout/internal/models"
)

// Mailer sends buyer and seller notifications over SMTP.
type Mailer struct {
	dialer      *gomail.Dialer
	from        string
	sellerEmail string
}

// NewMailer constructs a Mailer for the given SMTP account.
func NewMailer(host string, port int, username, password, from, sellerEmail string) *Mailer {
	return &Mailer{
		dialer:      gomail.NewDialer(host, port, username, password),
		from:        from,
		sellerEmail: sellerEmail,
	}
}

// SendBuyerReceipt confirms a completed payment to the buyer.
func (m *Mailer) SendBuyerReceipt(to string, entry *models.FormEntry, transactionID string) error {
	name := strings.TrimSpace(entry.CustomerName)
	if name == "" {
		name = "there"
	}

	body := fmt.Sprintf(`Hi %s,

We received your payment of %s for translation order #%d.
Transaction reference: %s

We will start working on your translation right away and send the finished
document to this address.

Comprehensive Translator`,
		name, formatAmount(entry.TotalPrice, entry.Currency), entry.EntryID, transactionID)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("Payment received for translation order #%d", entry.EntryID))
	msg.SetBody("text/plain", body)

	return m.dialer.DialAndSend(msg)
}

// SendSellerNotice tells the seller a paid order is ready to work on, with the
// submitted document attached when available.
func (m *Mailer) SendSellerNotice(entry *models.FormEntry, buyerEmail, transactionID string, attachment *EntryAttachment) error {
	if m.sellerEmail == "" {
		return nil
	}

	body := fmt.Sprintf(`New paid translation order.

Entry:       #%d
Customer:    %s <%s>
Amount:      %s
Transaction: %s

The submitted document is attached.`,
		entry.EntryID, entry.CustomerName, buyerEmail,
		formatAmount(entry.TotalPrice, entry.Currency), transactionID)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.sellerEmail)
	msg.SetHeader("Subject", fmt.Sprintf("Paid order #%d (%s)", entry.EntryID, formatAmount(entry.TotalPrice, entry.Currency)))
	msg.SetBody("text/plain", body)

	if attachment != nil {
		data := attachment.Data
		msg.Attach(attachment.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	return m.dialer.DialAndSend(msg)
}

func formatAmount(amount float64, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}
