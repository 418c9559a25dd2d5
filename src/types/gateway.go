package types

const (
	CHARGE_SUCCEEDED = "succeeded"

	MetaReservationID = "reservationId"
	MetaTableID       = "tableId"
	MetaFromTableID   = "fromTableId"
	MetaPurpose       = "purpose"
	MetaDelta         = "delta"

	PurposeTableChange = "table_change"
)

// Charge is the gateway's view of a payment. Amount is in currency units.
type Charge struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       float64
	Currency     string
	Metadata     map[string]string
}

type GatewayRefund struct {
	ID     string
	Status string
	Amount float64
}

type ChargeRequest struct {
	Amount         float64
	Currency       string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

type RefundRequest struct {
	ChargeID       string
	Amount         float64
	Reason         string
	Metadata       map[string]string
	IdempotencyKey string
}
