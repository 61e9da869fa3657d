// Package exchange routes orders to the exchange wrapper matching their
// kind. The wrapper set is closed: ZeroEx v1/v2 and Oasis v1/v2. An order
// tagged with anything else is a hard error for that operation; there is no
// safe fallback encoding.
package exchange

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/marginview/marginview/internal/domain"
)

// Wrapper is one exchange-wrapper capability: it knows its on-chain contract
// address and how to encode an order of its kind into calldata bytes.
type Wrapper interface {
	Kind() domain.OrderKind
	Address() common.Address
	OrderBytes(order domain.Order) ([]byte, error)
}

// Addresses holds the deployed wrapper contract addresses.
type Addresses struct {
	ZeroExV1 common.Address
	ZeroExV2 common.Address
	OasisV1  common.Address
	OasisV2  common.Address
}

// Registry resolves the wrapper for an order kind.
type Registry struct {
	wrappers map[domain.OrderKind]Wrapper
}

// NewRegistry builds a Registry over the four known wrapper kinds.
func NewRegistry(addrs Addresses) *Registry {
	wrappers := map[domain.OrderKind]Wrapper{
		domain.OrderKindZeroExV1: &zeroExWrapper{kind: domain.OrderKindZeroExV1, address: addrs.ZeroExV1},
		domain.OrderKindZeroExV2: &zeroExWrapper{kind: domain.OrderKindZeroExV2, address: addrs.ZeroExV2},
		domain.OrderKindOasisV1:  &oasisWrapper{kind: domain.OrderKindOasisV1, address: addrs.OasisV1},
		domain.OrderKindOasisV2:  &oasisWrapper{kind: domain.OrderKindOasisV2, address: addrs.OasisV2},
	}
	return &Registry{wrappers: wrappers}
}

// ForKind returns the wrapper for the given order kind, or
// domain.ErrUnsupportedOrderKind for any tag outside the known set.
func (r *Registry) ForKind(kind domain.OrderKind) (Wrapper, error) {
	w, ok := r.wrappers[kind]
	if !ok {
		return nil, fmt.Errorf("exchange: kind %q: %w", kind, domain.ErrUnsupportedOrderKind)
	}
	return w, nil
}

// OrderBytes encodes the order with the wrapper for its kind.
func (r *Registry) OrderBytes(order domain.Order) ([]byte, error) {
	w, err := r.ForKind(order.Kind)
	if err != nil {
		return nil, err
	}
	return w.OrderBytes(order)
}

// zeroExOrder is the venue order object carried in Order.RawData for the
// ZeroEx wrappers.
type zeroExOrder struct {
	Maker           string `json:"maker"`
	Taker           string `json:"taker"`
	MakerToken      string `json:"makerTokenAddress"`
	TakerToken      string `json:"takerTokenAddress"`
	MakerAmount     string `json:"makerTokenAmount"`
	TakerAmount     string `json:"takerTokenAmount"`
	ExpirationUnix  string `json:"expirationUnixTimestampSec"`
	Salt            string `json:"salt"`
	SignatureV      uint8  `json:"v"`
	SignatureR      string `json:"r"`
	SignatureS      string `json:"s"`
}

type zeroExWrapper struct {
	kind    domain.OrderKind
	address common.Address
}

func (w *zeroExWrapper) Kind() domain.OrderKind   { return w.kind }
func (w *zeroExWrapper) Address() common.Address  { return w.address }

// OrderBytes packs the ZeroEx order fields as 32-byte words in declaration
// order, followed by the signature.
func (w *zeroExWrapper) OrderBytes(order domain.Order) ([]byte, error) {
	var o zeroExOrder
	if err := json.Unmarshal(order.RawData, &o); err != nil {
		return nil, fmt.Errorf("exchange: decode %s order %s: %w", w.kind, order.ID, err)
	}

	out := make([]byte, 0, 9*32+1)
	out = append(out, common.LeftPadBytes(common.HexToAddress(o.Maker).Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(common.HexToAddress(o.Taker).Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(common.HexToAddress(o.MakerToken).Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(common.HexToAddress(o.TakerToken).Bytes(), 32)...)

	for _, field := range []struct{ name, value string }{
		{"makerTokenAmount", o.MakerAmount},
		{"takerTokenAmount", o.TakerAmount},
		{"expirationUnixTimestampSec", o.ExpirationUnix},
		{"salt", o.Salt},
	} {
		n, ok := new(big.Int).SetString(field.value, 10)
		if !ok {
			return nil, fmt.Errorf("exchange: order %s: invalid %s %q", order.ID, field.name, field.value)
		}
		out = append(out, common.LeftPadBytes(n.Bytes(), 32)...)
	}

	out = append(out, o.SignatureV)
	out = append(out, common.FromHex(o.SignatureR)...)
	out = append(out, common.FromHex(o.SignatureS)...)
	return out, nil
}

// oasisOrder carries only the on-chain order id.
type oasisOrder struct {
	ID string `json:"id"`
}

type oasisWrapper struct {
	kind    domain.OrderKind
	address common.Address
}

func (w *oasisWrapper) Kind() domain.OrderKind  { return w.kind }
func (w *oasisWrapper) Address() common.Address { return w.address }

// OrderBytes encodes the Oasis order id as a single uint256 word.
func (w *oasisWrapper) OrderBytes(order domain.Order) ([]byte, error) {
	var o oasisOrder
	if err := json.Unmarshal(order.RawData, &o); err != nil {
		return nil, fmt.Errorf("exchange: decode %s order %s: %w", w.kind, order.ID, err)
	}
	id, ok := new(big.Int).SetString(o.ID, 10)
	if !ok {
		return nil, fmt.Errorf("exchange: order %s: invalid oasis id %q", order.ID, o.ID)
	}
	return common.LeftPadBytes(id.Bytes(), 32), nil
}
