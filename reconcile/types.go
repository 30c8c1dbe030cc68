package reconcile

import (
	"encoding/json"
	"time"

	"bitbucket.org/standupsync/tickets_backend/models"
	"github.com/shopspring/decimal"
)

// PlatformSale is a transient snapshot of one order as reported by an external
// ticketing platform. It is never persisted as its own entity; it only
// materializes into a ledger row if imported.
type PlatformSale struct {
	OrderId       string          `json:"orderId"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	CustomerEmail string          `json:"customerEmail"`
	CustomerName  string          `json:"customerName"`
	PurchaseDate  time.Time       `json:"purchaseDate"`
	Quantity      int             `json:"quantity"`
	TicketType    string          `json:"ticketType"`
}

func encodePlatformSale(sale PlatformSale) []byte {
	b, _ := json.Marshal(sale)
	return b
}

func decodePlatformSale(raw []byte) (PlatformSale, bool) {
	var sale PlatformSale
	if len(raw) == 0 {
		return sale, false
	}
	if err := json.Unmarshal(raw, &sale); err != nil {
		return sale, false
	}
	return sale, true
}

func encodeLocalSale(sale models.TicketSale) []byte {
	b, _ := json.Marshal(sale)
	return b
}

func decodeLocalSale(raw []byte) (models.TicketSale, bool) {
	var sale models.TicketSale
	if len(raw) == 0 {
		return sale, false
	}
	if err := json.Unmarshal(raw, &sale); err != nil {
		return sale, false
	}
	return sale, true
}

func encodeDifference(diff models.Difference) []byte {
	b, _ := json.Marshal(diff)
	return b
}

func decodeDifference(raw []byte) (models.Difference, bool) {
	var diff models.Difference
	if len(raw) == 0 {
		return diff, false
	}
	if err := json.Unmarshal(raw, &diff); err != nil {
		return diff, false
	}
	return diff, true
}

// TriggerRunRequest is the HTTP payload for a manually triggered run.
type TriggerRunRequest struct {
	// Optional per-call overrides; zero values fall back to the service config.
	AutoImportMissingSales *bool `json:"autoImportMissingSales"`
}

// RunPubSubPayload is the message body for asynchronously triggered runs.
type RunPubSubPayload struct {
	EventId       string `json:"event_id"`
	TriggeredBy   string `json:"triggered_by"`
	CorrelationId string `json:"correlation_id"`
}

// PubSubPushEnvelope is the push-subscription wrapper Google delivers.
type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}
