package state

import (
	"fmt"

	"settlement-sol/internal/types"

	"github.com/near/borsh-go"
)

// 账户记录统一布局：data[0] 为类型 tag，其余为 borsh 定长编码的记录体。
// 字段顺序是兼容性契约的一部分，禁止调整。
const (
	TagCharter byte = 1
	TagListing byte = 2
	TagReceipt byte = 3
)

// 各记录的账户数据总长度（含 tag 前缀）。
const (
	CharterDataLen = 1 + 1 + 3*RateLen + 4*32 + UriLen // 285
	ListingDataLen = 1 + 2 + 5*32 + 8 + 2 + UriLen     // 301
	ReceiptDataLen = 1 + 3 + 4*32 + 3*8                // 156
)

// UriLen 是链下元数据指针的定长字节数，不足部分填 0。
const UriLen = 128

type Uri [UriLen]byte

func UriFromString(s string) Uri {
	var u Uri
	copy(u[:], s)
	return u
}

func (u Uri) String() string {
	end := len(u)
	for end > 0 && u[end-1] == 0 {
		end--
	}
	return string(u[:end])
}

// Charter 是治理级经济参数记录，所有 listing 通过 Charter 字段关联到它。
type Charter struct {
	IsInitialized           bool
	ExpansionRate           Rate         // 每单位 contribution 铸造的投票 token 数
	PaymentContributionRate Rate         // cash 时划入国库的支付比例，取值 [0,1]
	VoteContributionRate    Rate         // 投票 token 划入国库的比例，取值 [0,1]
	Authority               types.Pubkey // 唯一可变更本记录的签名者
	Mint                    types.Pubkey // 治理投票 token mint
	PaymentDeposit          types.Pubkey // 国库 WSOL token account
	VoteDeposit             types.Pubkey // 国库投票 token account
	Uri                     Uri
}

// Listing 是一个可售卖条目。
type Listing struct {
	IsInitialized  bool
	IsAvailable    bool
	Charter        types.Pubkey
	Authority      types.Pubkey
	Price          uint64 // 单价（最小单位）
	Mint           types.Pubkey
	PaymentDeposit types.Pubkey
	VoteDeposit    types.Pubkey
	IsRefundable   bool
	IsConsumable   bool
	Uri            Uri
}

// Receipt 是一次购买的托管记录，从 purchase 存续到 cash 或 cancel。
// cash / cancel 都会关闭账户（数据清零、lamports 回收），关闭后不可复用。
type Receipt struct {
	IsInitialized       bool
	IsRefundable        bool
	IsCashable          bool // refundable 购买创建时为 false，须由 listing authority 显式放行
	Listing             types.Pubkey
	Purchaser           types.Pubkey
	Cashier             types.Pubkey
	ListingTokenAccount types.Pubkey // license token 的接收账户
	Quantity            uint64
	Price               uint64 // 购买时锁定的单价，与 listing.Price 后续变动解耦
	Nonce               uint64 // receipt 地址派生种子，唯一性由调用方保证
}

func pack(tag byte, v interface{}, wantLen int) ([]byte, error) {
	body, err := borsh.Serialize(v)
	if err != nil {
		return nil, fmt.Errorf("serialize record tag=%d: %w", tag, err)
	}
	buf := make([]byte, 0, 1+len(body))
	buf = append(buf, tag)
	buf = append(buf, body...)
	if len(buf) != wantLen {
		return nil, fmt.Errorf("record tag=%d: packed %d bytes, want %d", tag, len(buf), wantLen)
	}
	return buf, nil
}

func unpack(tag byte, data []byte, wantLen int, v interface{}) error {
	if len(data) != wantLen {
		return fmt.Errorf("record tag=%d: data length %d, want %d", tag, len(data), wantLen)
	}
	if data[0] != tag {
		return fmt.Errorf("record tag mismatch: got %d, want %d", data[0], tag)
	}
	if err := borsh.Deserialize(v, data[1:]); err != nil {
		return fmt.Errorf("deserialize record tag=%d: %w", tag, err)
	}
	return nil
}

// store 将记录原地写回账户数据缓冲区（长度必须精确匹配）。
func store(tag byte, v interface{}, wantLen int, dst []byte) error {
	buf, err := pack(tag, v, wantLen)
	if err != nil {
		return err
	}
	if len(dst) != wantLen {
		return fmt.Errorf("record tag=%d: account data length %d, want %d", tag, len(dst), wantLen)
	}
	copy(dst, buf)
	return nil
}

func (c *Charter) Pack() ([]byte, error)  { return pack(TagCharter, *c, CharterDataLen) }
func (c *Charter) Store(dst []byte) error { return store(TagCharter, *c, CharterDataLen, dst) }

func UnpackCharter(data []byte) (*Charter, error) {
	var c Charter
	if err := unpack(TagCharter, data, CharterDataLen, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (l *Listing) Pack() ([]byte, error)  { return pack(TagListing, *l, ListingDataLen) }
func (l *Listing) Store(dst []byte) error { return store(TagListing, *l, ListingDataLen, dst) }

func UnpackListing(data []byte) (*Listing, error) {
	var l Listing
	if err := unpack(TagListing, data, ListingDataLen, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Receipt) Pack() ([]byte, error)  { return pack(TagReceipt, *r, ReceiptDataLen) }
func (r *Receipt) Store(dst []byte) error { return store(TagReceipt, *r, ReceiptDataLen, dst) }

func UnpackReceipt(data []byte) (*Receipt, error) {
	var r Receipt
	if err := unpack(TagReceipt, data, ReceiptDataLen, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
