package domain

import "encoding/json"

// OrderKind tags the exchange wrapper an order must be routed through. The
// set is closed: any tag outside it is rejected with ErrUnsupportedOrderKind
// rather than falling through to a default wrapper.
type OrderKind string

const (
	OrderKindZeroExV1 OrderKind = "0x_v1"
	OrderKindZeroExV2 OrderKind = "0x_v2"
	OrderKindOasisV1  OrderKind = "oasis_v1"
	OrderKindOasisV2  OrderKind = "oasis_v2"
)

// Order is an exchange order as received from the order-execution subsystem.
// RawData holds the venue-specific order object verbatim; the exchange
// wrapper for the order's kind knows how to encode it to calldata bytes.
type Order struct {
	ID      string
	Kind    OrderKind
	RawData json.RawMessage
}
