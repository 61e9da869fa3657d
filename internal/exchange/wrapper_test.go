package exchange

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marginview/marginview/internal/domain"
)

func testRegistry() *Registry {
	return NewRegistry(Addresses{
		ZeroExV1: common.HexToAddress("0x0000000000000000000000000000000000000001"),
		ZeroExV2: common.HexToAddress("0x0000000000000000000000000000000000000002"),
		OasisV1:  common.HexToAddress("0x0000000000000000000000000000000000000003"),
		OasisV2:  common.HexToAddress("0x0000000000000000000000000000000000000004"),
	})
}

func TestForKindKnownSet(t *testing.T) {
	r := testRegistry()

	for _, kind := range []domain.OrderKind{
		domain.OrderKindZeroExV1,
		domain.OrderKindZeroExV2,
		domain.OrderKindOasisV1,
		domain.OrderKindOasisV2,
	} {
		w, err := r.ForKind(kind)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, w.Kind())
	}
}

func TestForKindUnsupported(t *testing.T) {
	r := testRegistry()

	_, err := r.ForKind(domain.OrderKind("uniswap_v2"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedOrderKind)
}

func TestOasisOrderBytes(t *testing.T) {
	r := testRegistry()

	raw, _ := json.Marshal(map[string]string{"id": "123456"})
	got, err := r.OrderBytes(domain.Order{
		ID:      "order-1",
		Kind:    domain.OrderKindOasisV1,
		RawData: raw,
	})
	require.NoError(t, err)
	require.Len(t, got, 32)
	assert.Equal(t, int64(123456), new(big.Int).SetBytes(got).Int64())
}

func TestZeroExOrderBytes(t *testing.T) {
	r := testRegistry()

	raw, _ := json.Marshal(map[string]any{
		"maker":                      "0x1111111111111111111111111111111111111111",
		"taker":                      "0x2222222222222222222222222222222222222222",
		"makerTokenAddress":          "0x3333333333333333333333333333333333333333",
		"takerTokenAddress":          "0x4444444444444444444444444444444444444444",
		"makerTokenAmount":           "1000",
		"takerTokenAmount":           "2000",
		"expirationUnixTimestampSec": "1555059600",
		"salt":                       "42",
		"v":                          27,
		"r":                          "0xaa00000000000000000000000000000000000000000000000000000000000000",
		"s":                          "0xbb00000000000000000000000000000000000000000000000000000000000000",
	})

	got, err := r.OrderBytes(domain.Order{
		ID:      "order-2",
		Kind:    domain.OrderKindZeroExV2,
		RawData: raw,
	})
	require.NoError(t, err)
	// 8 words + v byte + r + s
	assert.Equal(t, 8*32+1+2*32, len(got))
	assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.BytesToAddress(got[:32]))
}

func TestZeroExOrderBytesBadAmount(t *testing.T) {
	r := testRegistry()

	raw, _ := json.Marshal(map[string]any{
		"maker":            "0x1111111111111111111111111111111111111111",
		"makerTokenAmount": "not-a-number",
	})
	_, err := r.OrderBytes(domain.Order{ID: "order-3", Kind: domain.OrderKindZeroExV1, RawData: raw})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrUnsupportedOrderKind))
}

func TestIsUserCancelled(t *testing.T) {
	assert.True(t, domain.IsUserCancelled(errors.New("MetaMask Tx Signature: User denied transaction signature.")))
	assert.False(t, domain.IsUserCancelled(errors.New("nonce too low")))
	assert.False(t, domain.IsUserCancelled(nil))
}
