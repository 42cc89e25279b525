package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"loans/internal/core"
)

// PaymentRecordedMessage announces a newly recorded payment and the status it
// produced for its loan at recording time.
type PaymentRecordedMessage struct {
	PaymentID   int64       `json:"payment_id"`
	LoanID      int64       `json:"loan_id"`
	PaymentDate string      `json:"payment_date"`
	Status      core.Status `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
}

// NewPaymentRecordedMessage builds the event for payment p classified as status.
func NewPaymentRecordedMessage(p core.Payment, status core.Status) *PaymentRecordedMessage {
	return &PaymentRecordedMessage{
		PaymentID:   p.ID,
		LoanID:      p.LoanID,
		PaymentDate: p.PaymentDate.String(),
		Status:      status,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *PaymentRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PaymentRecordedMessageFromJSON decodes and sanity-checks a message body.
func PaymentRecordedMessageFromJSON(data []byte) (*PaymentRecordedMessage, error) {
	var msg PaymentRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.PaymentID <= 0 || msg.LoanID <= 0 {
		return nil, errors.New("message is missing payment or loan id")
	}
	return &msg, nil
}
