package instruction

import (
	"testing"

	"settlement-sol/internal/program/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 对闭集内每个变体验证 Decode(Encode(x)) == x，覆盖边界值（0、u64 最大值、双布尔状态）。
func TestInstructionRoundTrip(t *testing.T) {
	maxU64 := ^uint64(0)
	uri := state.UriFromString("ipfs://QmExample")

	cases := []Instruction{
		InitCharter{
			ExpansionRate:           state.Rate{Amount: 1, Decimals: 2},
			PaymentContributionRate: state.Rate{Amount: 20, Decimals: 2},
			VoteContributionRate:    state.Rate{Amount: 50, Decimals: 2},
			Uri:                     uri,
		},
		InitCharter{
			ExpansionRate: state.Rate{Amount: maxU64, Decimals: 255},
		},
		SetCharterRates{
			ExpansionRate:           state.Rate{},
			PaymentContributionRate: state.Rate{Amount: maxU64, Decimals: 255},
			VoteContributionRate:    state.Rate{Amount: 1, Decimals: 1},
		},
		SetCharterDeposits{},
		SetCharterAuthority{},
		SetCharterUri{Uri: uri},
		InitListing{Price: 0, IsAvailable: false, IsRefundable: false, IsConsumable: false},
		InitListing{Price: maxU64, IsAvailable: true, IsRefundable: true, IsConsumable: true, Uri: uri},
		SetListingPrice{Price: 0},
		SetListingPrice{Price: maxU64},
		SetListingUri{Uri: uri},
		SetListingAvailability{IsAvailable: true},
		SetListingAvailability{IsAvailable: false},
		SetListingDeposits{},
		SetListingAuthority{},
		Purchase{Nonce: 0, Quantity: 0},
		Purchase{Nonce: maxU64, Quantity: maxU64},
		SetReceiptCashable{},
		Cash{},
		Cancel{},
		Consume{Quantity: 1},
		Consume{Quantity: maxU64},
	}

	for _, ix := range cases {
		encoded := ix.Encode()
		require.NotEmpty(t, encoded)
		assert.Equal(t, ix.Tag(), encoded[0], "首字节必须是判别 tag")

		decoded, err := Decode(encoded)
		require.NoError(t, err, "tag=%d", ix.Tag())
		assert.Equal(t, ix, decoded, "tag=%d 往返必须相等", ix.Tag())
	}
}

func TestDecodeRejectsEmptyData(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrInvalidInstruction)

	_, err = Decode([]byte{})
	assert.ErrorIs(t, err, ErrInvalidInstruction)
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	_, err := Decode([]byte{0xFF})
	assert.ErrorIs(t, err, ErrInvalidInstruction)
}

// 载荷长度与 tag 的期望不精确相等时必须整体拒绝。
func TestDecodeRejectsWrongLength(t *testing.T) {
	for _, ix := range []Instruction{
		InitCharter{}, SetCharterRates{}, SetCharterUri{},
		InitListing{}, SetListingPrice{}, SetListingUri{}, SetListingAvailability{},
		Purchase{}, Consume{},
	} {
		encoded := ix.Encode()

		_, err := Decode(encoded[:len(encoded)-1])
		assert.ErrorIs(t, err, ErrInvalidInstruction, "tag=%d 截断必须拒绝", ix.Tag())

		_, err = Decode(append(append([]byte(nil), encoded...), 0))
		assert.ErrorIs(t, err, ErrInvalidInstruction, "tag=%d 多余字节必须拒绝", ix.Tag())
	}

	// 无载荷变体带上任何字节都必须拒绝
	for _, ix := range []Instruction{
		SetCharterDeposits{}, SetCharterAuthority{}, SetListingDeposits{},
		SetListingAuthority{}, SetReceiptCashable{}, Cash{}, Cancel{},
	} {
		_, err := Decode([]byte{ix.Tag(), 0})
		assert.ErrorIs(t, err, ErrInvalidInstruction, "tag=%d", ix.Tag())
	}
}

func TestDecodeRejectsInvalidBoolByte(t *testing.T) {
	_, err := Decode([]byte{TagSetListingAvailability, 2})
	assert.ErrorIs(t, err, ErrInvalidInstruction, "布尔字节只允许 0 或 1")
}
