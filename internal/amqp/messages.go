package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"finreport/internal/report"
)

// ReportMessage is the body published for every generated report.
type ReportMessage struct {
	ID        string          `json:"id"`
	Operation string          `json:"operation"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// NewReportMessage encodes r into a message with a fresh ID.
func NewReportMessage(r report.Report) (*ReportMessage, error) {
	body, err := report.Encode(r.Payload)
	if err != nil {
		return nil, err
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return &ReportMessage{
		ID:        uuid.NewString(),
		Operation: r.Operation,
		Name:      r.ResolvedName(),
		CreatedAt: created,
		Payload:   body,
	}, nil
}

// ToJSON converts the message to JSON bytes
func (m *ReportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportMessageFromJSON decodes a message published by Publisher.
func ReportMessageFromJSON(data []byte) (*ReportMessage, error) {
	var msg ReportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
