package instruction

import (
	"encoding/binary"
	"errors"
	"fmt"

	"settlement-sol/internal/program/state"
)

// 指令线格式：data[0] 为判别 tag，其余为该 tag 专属的定宽小端字段。
// 解码是全函数：长度与 tag 不精确匹配的缓冲区一律拒绝。
// 对任意变体恒有 Decode(x.Encode()) == x。

var ErrInvalidInstruction = errors.New("invalid instruction")

const (
	TagInitCharter byte = iota
	TagSetCharterRates
	TagSetCharterDeposits
	TagSetCharterAuthority
	TagSetCharterUri
	TagInitListing
	TagSetListingPrice
	TagSetListingUri
	TagSetListingAvailability
	TagSetListingDeposits
	TagSetListingAuthority
	TagPurchase
	TagSetReceiptCashable
	TagCash
	TagCancel
	TagConsume
)

// Instruction 是闭集指令变体的公共接口。
type Instruction interface {
	Tag() byte
	Encode() []byte
}

type InitCharter struct {
	ExpansionRate           state.Rate
	PaymentContributionRate state.Rate
	VoteContributionRate    state.Rate
	Uri                     state.Uri
}

type SetCharterRates struct {
	ExpansionRate           state.Rate
	PaymentContributionRate state.Rate
	VoteContributionRate    state.Rate
}

// SetCharterDeposits 的新国库账户通过账户列表传入，无数据字段。
type SetCharterDeposits struct{}

type SetCharterAuthority struct{}

type SetCharterUri struct {
	Uri state.Uri
}

type InitListing struct {
	Price        uint64
	IsAvailable  bool
	IsRefundable bool
	IsConsumable bool
	Uri          state.Uri
}

type SetListingPrice struct {
	Price uint64
}

type SetListingUri struct {
	Uri state.Uri
}

type SetListingAvailability struct {
	IsAvailable bool
}

type SetListingDeposits struct{}

type SetListingAuthority struct{}

type Purchase struct {
	Nonce    uint64 // receipt 地址派生种子
	Quantity uint64
}

type SetReceiptCashable struct{}

type Cash struct{}

type Cancel struct{}

type Consume struct {
	Quantity uint64
}

func (InitCharter) Tag() byte            { return TagInitCharter }
func (SetCharterRates) Tag() byte        { return TagSetCharterRates }
func (SetCharterDeposits) Tag() byte     { return TagSetCharterDeposits }
func (SetCharterAuthority) Tag() byte    { return TagSetCharterAuthority }
func (SetCharterUri) Tag() byte          { return TagSetCharterUri }
func (InitListing) Tag() byte            { return TagInitListing }
func (SetListingPrice) Tag() byte        { return TagSetListingPrice }
func (SetListingUri) Tag() byte          { return TagSetListingUri }
func (SetListingAvailability) Tag() byte { return TagSetListingAvailability }
func (SetListingDeposits) Tag() byte     { return TagSetListingDeposits }
func (SetListingAuthority) Tag() byte    { return TagSetListingAuthority }
func (Purchase) Tag() byte               { return TagPurchase }
func (SetReceiptCashable) Tag() byte     { return TagSetReceiptCashable }
func (Cash) Tag() byte                   { return TagCash }
func (Cancel) Tag() byte                 { return TagCancel }
func (Consume) Tag() byte                { return TagConsume }

func appendRate(buf []byte, r state.Rate) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, r.Amount)
	return append(buf, r.Decimals)
}

func readRate(data []byte) state.Rate {
	return state.Rate{
		Amount:   binary.LittleEndian.Uint64(data[0:8]),
		Decimals: data[8],
	}
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func readBool(b byte) (bool, error) {
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: bool byte must be 0 or 1, got %d", ErrInvalidInstruction, b)
	}
}

func (ix InitCharter) Encode() []byte {
	buf := make([]byte, 0, 1+3*state.RateLen+state.UriLen)
	buf = append(buf, TagInitCharter)
	buf = appendRate(buf, ix.ExpansionRate)
	buf = appendRate(buf, ix.PaymentContributionRate)
	buf = appendRate(buf, ix.VoteContributionRate)
	return append(buf, ix.Uri[:]...)
}

func (ix SetCharterRates) Encode() []byte {
	buf := make([]byte, 0, 1+3*state.RateLen)
	buf = append(buf, TagSetCharterRates)
	buf = appendRate(buf, ix.ExpansionRate)
	buf = appendRate(buf, ix.PaymentContributionRate)
	return appendRate(buf, ix.VoteContributionRate)
}

func (SetCharterDeposits) Encode() []byte  { return []byte{TagSetCharterDeposits} }
func (SetCharterAuthority) Encode() []byte { return []byte{TagSetCharterAuthority} }

func (ix SetCharterUri) Encode() []byte {
	buf := make([]byte, 0, 1+state.UriLen)
	buf = append(buf, TagSetCharterUri)
	return append(buf, ix.Uri[:]...)
}

func (ix InitListing) Encode() []byte {
	buf := make([]byte, 0, 1+8+3+state.UriLen)
	buf = append(buf, TagInitListing)
	buf = binary.LittleEndian.AppendUint64(buf, ix.Price)
	buf = appendBool(buf, ix.IsAvailable)
	buf = appendBool(buf, ix.IsRefundable)
	buf = appendBool(buf, ix.IsConsumable)
	return append(buf, ix.Uri[:]...)
}

func (ix SetListingPrice) Encode() []byte {
	buf := make([]byte, 0, 1+8)
	buf = append(buf, TagSetListingPrice)
	return binary.LittleEndian.AppendUint64(buf, ix.Price)
}

func (ix SetListingUri) Encode() []byte {
	buf := make([]byte, 0, 1+state.UriLen)
	buf = append(buf, TagSetListingUri)
	return append(buf, ix.Uri[:]...)
}

func (ix SetListingAvailability) Encode() []byte {
	return appendBool([]byte{TagSetListingAvailability}, ix.IsAvailable)
}

func (SetListingDeposits) Encode() []byte  { return []byte{TagSetListingDeposits} }
func (SetListingAuthority) Encode() []byte { return []byte{TagSetListingAuthority} }

func (ix Purchase) Encode() []byte {
	buf := make([]byte, 0, 1+16)
	buf = append(buf, TagPurchase)
	buf = binary.LittleEndian.AppendUint64(buf, ix.Nonce)
	return binary.LittleEndian.AppendUint64(buf, ix.Quantity)
}

func (SetReceiptCashable) Encode() []byte { return []byte{TagSetReceiptCashable} }
func (Cash) Encode() []byte               { return []byte{TagCash} }
func (Cancel) Encode() []byte             { return []byte{TagCancel} }

func (ix Consume) Encode() []byte {
	buf := make([]byte, 0, 1+8)
	buf = append(buf, TagConsume)
	return binary.LittleEndian.AppendUint64(buf, ix.Quantity)
}

// Decode 将指令字节缓冲区解析为唯一对应的变体。
// 长度与 tag 的期望载荷不精确相等时返回 ErrInvalidInstruction。
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrInvalidInstruction)
	}
	tag, body := data[0], data[1:]

	expectLen := func(n int) error {
		if len(body) != n {
			return fmt.Errorf("%w: tag=%d payload length %d, want %d", ErrInvalidInstruction, tag, len(body), n)
		}
		return nil
	}

	switch tag {
	case TagInitCharter:
		if err := expectLen(3*state.RateLen + state.UriLen); err != nil {
			return nil, err
		}
		ix := InitCharter{
			ExpansionRate:           readRate(body[0:9]),
			PaymentContributionRate: readRate(body[9:18]),
			VoteContributionRate:    readRate(body[18:27]),
		}
		copy(ix.Uri[:], body[27:])
		return ix, nil

	case TagSetCharterRates:
		if err := expectLen(3 * state.RateLen); err != nil {
			return nil, err
		}
		return SetCharterRates{
			ExpansionRate:           readRate(body[0:9]),
			PaymentContributionRate: readRate(body[9:18]),
			VoteContributionRate:    readRate(body[18:27]),
		}, nil

	case TagSetCharterDeposits:
		if err := expectLen(0); err != nil {
			return nil, err
		}
		return SetCharterDeposits{}, nil

	case TagSetCharterAuthority:
		if err := expectLen(0); err != nil {
			return nil, err
		}
		return SetCharterAuthority{}, nil

	case TagSetCharterUri:
		if err := expectLen(state.UriLen); err != nil {
			return nil, err
		}
		var ix SetCharterUri
		copy(ix.Uri[:], body)
		return ix, nil

	case TagInitListing:
		if err := expectLen(8 + 3 + state.UriLen); err != nil {
			return nil, err
		}
		ix := InitListing{Price: binary.LittleEndian.Uint64(body[0:8])}
		var err error
		if ix.IsAvailable, err = readBool(body[8]); err != nil {
			return nil, err
		}
		if ix.IsRefundable, err = readBool(body[9]); err != nil {
			return nil, err
		}
		if ix.IsConsumable, err = readBool(body[10]); err != nil {
			return nil, err
		}
		copy(ix.Uri[:], body[11:])
		return ix, nil

	case TagSetListingPrice:
		if err := expectLen(8); err != nil {
			return nil, err
		}
		return SetListingPrice{Price: binary.LittleEndian.Uint64(body)}, nil

	case TagSetListingUri:
		if err := expectLen(state.UriLen); err != nil {
			return nil, err
		}
		var ix SetListingUri
		copy(ix.Uri[:], body)
		return ix, nil

	case TagSetListingAvailability:
		if err := expectLen(1); err != nil {
			return nil, err
		}
		available, err := readBool(body[0])
		if err != nil {
			return nil, err
		}
		return SetListingAvailability{IsAvailable: available}, nil

	case TagSetListingDeposits:
		if err := expectLen(0); err != nil {
			return nil, err
		}
		return SetListingDeposits{}, nil

	case TagSetListingAuthority:
		if err := expectLen(0); err != nil {
			return nil, err
		}
		return SetListingAuthority{}, nil

	case TagPurchase:
		if err := expectLen(16); err != nil {
			return nil, err
		}
		return Purchase{
			Nonce:    binary.LittleEndian.Uint64(body[0:8]),
			Quantity: binary.LittleEndian.Uint64(body[8:16]),
		}, nil

	case TagSetReceiptCashable:
		if err := expectLen(0); err != nil {
			return nil, err
		}
		return SetReceiptCashable{}, nil

	case TagCash:
		if err := expectLen(0); err != nil {
			return nil, err
		}
		return Cash{}, nil

	case TagCancel:
		if err := expectLen(0); err != nil {
			return nil, err
		}
		return Cancel{}, nil

	case TagConsume:
		if err := expectLen(8); err != nil {
			return nil, err
		}
		return Consume{Quantity: binary.LittleEndian.Uint64(body)}, nil
	}

	return nil, fmt.Errorf("%w: unknown tag %d", ErrInvalidInstruction, tag)
}
