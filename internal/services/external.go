package services

import (
	"github.com/sirupsen/logrus"
)

// Notifier delivers customer-facing messages (payment reminders, settlement
// decisions). Delivery is fire-and-forget: a failed notification is logged
// and never rolls back the state change that triggered it.
type Notifier interface {
	Notify(customerID, kind, message string) error
}

// FileStore persists uploaded proof-of-payment attachments and returns a
// stable URL for them.
type FileStore interface {
	Store(data []byte, mimeType string) (string, error)
	Retrieve(url string) ([]byte, error)
}

// CapabilityChecker decides whether an actor may perform an action. The
// booking engine only asks the question; the identity system owns the answer.
type CapabilityChecker interface {
	Can(actorID, action string) bool
}

// PaymentInitiator starts a hosted-checkout payment and returns the URL the
// customer is redirected to. Settlement arrives later through the webhook.
type PaymentInitiator interface {
	Initiate(amount float64, currency, reference, returnURL string) (string, error)
}

// LogNotifier is a Notifier that writes to the structured log. It stands in
// until an SMS or push channel is wired up.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification
func (n *LogNotifier) Notify(customerID, kind, message string) error {
	n.logger.WithFields(logrus.Fields{
		"customer_id": customerID,
		"kind":        kind,
	}).Info(message)
	return nil
}
