package runtime

import (
	"encoding/binary"
	"errors"
	"fmt"

	"settlement-sol/internal/consts"
	"settlement-sol/internal/types"
)

// SPL Token 账户与 mint 的原始字节布局。
// 布局参考 token program 的链上定义，字段偏移是兼容性契约。
const (
	TokenAccountDataLen = 165
	MintDataLen         = 82
)

// token account 的 state 字段取值。
const (
	AccountStateUninitialized byte = 0
	AccountStateInitialized   byte = 1
	AccountStateFrozen        byte = 2
)

var (
	ErrNotTokenAccount        = errors.New("not a token account")
	ErrNotMintAccount         = errors.New("not a mint account")
	ErrTokenOwnerMismatch     = errors.New("token owner mismatch")
	ErrTokenAuthorityInvalid  = errors.New("token authority invalid")
	ErrTokenMintMismatch      = errors.New("token mint mismatch")
	ErrTokenAccountFrozen     = errors.New("token account frozen")
	ErrTokenAccountNotFrozen  = errors.New("token account not frozen")
	ErrTokenInsufficientFunds = errors.New("insufficient token funds")
	ErrTokenNonZeroBalance    = errors.New("token account balance not zero")
	ErrTokenAmountOverflow    = errors.New("token amount overflow")
)

// token account 布局偏移：
//   [0:32]    mint
//   [32:64]   owner
//   [64:72]   amount (u64 LE)
//   [72:76]   delegate option
//   [76:108]  delegate
//   [108]     state
//   [109:113] isNative option
//   [113:121] isNative
//   [121:129] delegated amount
//   [129:133] close authority option
//   [133:165] close authority

func TokenAccountMint(data []byte) types.Pubkey {
	var p types.Pubkey
	copy(p[:], data[0:32])
	return p
}

func TokenAccountOwner(data []byte) types.Pubkey {
	var p types.Pubkey
	copy(p[:], data[32:64])
	return p
}

func TokenAccountAmount(data []byte) uint64 {
	return binary.LittleEndian.Uint64(data[64:72])
}

func setTokenAccountAmount(data []byte, amount uint64) {
	binary.LittleEndian.PutUint64(data[64:72], amount)
}

func TokenAccountState(data []byte) byte {
	return data[108]
}

func setTokenAccountState(data []byte, state byte) {
	data[108] = state
}

// mint 布局偏移：
//   [0:4]   mint authority option
//   [4:36]  mint authority
//   [36:44] supply (u64 LE)
//   [44]    decimals
//   [45]    isInitialized
//   [46:50] freeze authority option
//   [50:82] freeze authority

// MintAuthorityOf 读取 mint 的铸币权限；option 为 0 时表示权限已废弃。
func MintAuthorityOf(data []byte) (types.Pubkey, bool) {
	if binary.LittleEndian.Uint32(data[0:4]) == 0 {
		return types.Pubkey{}, false
	}
	var p types.Pubkey
	copy(p[:], data[4:36])
	return p, true
}

func FreezeAuthorityOf(data []byte) (types.Pubkey, bool) {
	if binary.LittleEndian.Uint32(data[46:50]) == 0 {
		return types.Pubkey{}, false
	}
	var p types.Pubkey
	copy(p[:], data[50:82])
	return p, true
}

func MintSupply(data []byte) uint64 {
	return binary.LittleEndian.Uint64(data[36:44])
}

func setMintSupply(data []byte, supply uint64) {
	binary.LittleEndian.PutUint64(data[36:44], supply)
}

func MintDecimals(data []byte) uint8 {
	return data[44]
}

// TokenEngine 是结算算法调用的 token 划转权限（对应链上对 token program 的 CPI）。
// authority 参数是本次操作的签名权限：用户签名的操作由校验层确认签名者，
// PDA 权限由处理器现场重算后传入。
type TokenEngine interface {
	Transfer(src, dest *AccountInfo, authority types.Pubkey, amount uint64) error
	MintTo(mint, dest *AccountInfo, authority types.Pubkey, amount uint64) error
	Burn(src, mint *AccountInfo, authority types.Pubkey, amount uint64) error
	FreezeAccount(acct, mint *AccountInfo, authority types.Pubkey) error
	ThawAccount(acct, mint *AccountInfo, authority types.Pubkey) error
	CloseAccount(acct, dest *AccountInfo, authority types.Pubkey) error
}

// SPLTokenEngine 在进程内对账户字节布局执行 token program 语义，供测试 harness 使用。
type SPLTokenEngine struct{}

func expectTokenAccount(info *AccountInfo) error {
	if info.Owner != consts.TokenProgram || len(info.Data) != TokenAccountDataLen {
		return fmt.Errorf("%w: %s", ErrNotTokenAccount, info.Key)
	}
	return nil
}

func expectMintAccount(info *AccountInfo) error {
	if info.Owner != consts.TokenProgram || len(info.Data) != MintDataLen {
		return fmt.Errorf("%w: %s", ErrNotMintAccount, info.Key)
	}
	return nil
}

func (SPLTokenEngine) Transfer(src, dest *AccountInfo, authority types.Pubkey, amount uint64) error {
	if err := expectTokenAccount(src); err != nil {
		return err
	}
	if err := expectTokenAccount(dest); err != nil {
		return err
	}
	if TokenAccountOwner(src.Data) != authority {
		return fmt.Errorf("%w: src=%s authority=%s", ErrTokenOwnerMismatch, src.Key, authority)
	}
	if TokenAccountMint(src.Data) != TokenAccountMint(dest.Data) {
		return fmt.Errorf("%w: src=%s dest=%s", ErrTokenMintMismatch, src.Key, dest.Key)
	}
	if TokenAccountState(src.Data) == AccountStateFrozen || TokenAccountState(dest.Data) == AccountStateFrozen {
		return ErrTokenAccountFrozen
	}
	srcAmount := TokenAccountAmount(src.Data)
	if srcAmount < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrTokenInsufficientFunds, srcAmount, amount)
	}
	destAmount := TokenAccountAmount(dest.Data)
	if destAmount+amount < destAmount {
		return ErrTokenAmountOverflow
	}
	setTokenAccountAmount(src.Data, srcAmount-amount)
	setTokenAccountAmount(dest.Data, destAmount+amount)
	return nil
}

func (SPLTokenEngine) MintTo(mint, dest *AccountInfo, authority types.Pubkey, amount uint64) error {
	if err := expectMintAccount(mint); err != nil {
		return err
	}
	if err := expectTokenAccount(dest); err != nil {
		return err
	}
	mintAuthority, ok := MintAuthorityOf(mint.Data)
	if !ok || mintAuthority != authority {
		return fmt.Errorf("%w: mint=%s", ErrTokenAuthorityInvalid, mint.Key)
	}
	if TokenAccountMint(dest.Data) != mint.Key {
		return fmt.Errorf("%w: dest=%s mint=%s", ErrTokenMintMismatch, dest.Key, mint.Key)
	}
	if TokenAccountState(dest.Data) == AccountStateFrozen {
		return ErrTokenAccountFrozen
	}
	supply := MintSupply(mint.Data)
	if supply+amount < supply {
		return ErrTokenAmountOverflow
	}
	destAmount := TokenAccountAmount(dest.Data)
	if destAmount+amount < destAmount {
		return ErrTokenAmountOverflow
	}
	setMintSupply(mint.Data, supply+amount)
	setTokenAccountAmount(dest.Data, destAmount+amount)
	return nil
}

func (SPLTokenEngine) Burn(src, mint *AccountInfo, authority types.Pubkey, amount uint64) error {
	if err := expectTokenAccount(src); err != nil {
		return err
	}
	if err := expectMintAccount(mint); err != nil {
		return err
	}
	if TokenAccountOwner(src.Data) != authority {
		return fmt.Errorf("%w: src=%s authority=%s", ErrTokenOwnerMismatch, src.Key, authority)
	}
	if TokenAccountMint(src.Data) != mint.Key {
		return fmt.Errorf("%w: src=%s mint=%s", ErrTokenMintMismatch, src.Key, mint.Key)
	}
	if TokenAccountState(src.Data) == AccountStateFrozen {
		return ErrTokenAccountFrozen
	}
	srcAmount := TokenAccountAmount(src.Data)
	if srcAmount < amount {
		return fmt.Errorf("%w: have %d, burn %d", ErrTokenInsufficientFunds, srcAmount, amount)
	}
	setTokenAccountAmount(src.Data, srcAmount-amount)
	setMintSupply(mint.Data, MintSupply(mint.Data)-amount)
	return nil
}

func (SPLTokenEngine) FreezeAccount(acct, mint *AccountInfo, authority types.Pubkey) error {
	if err := expectTokenAccount(acct); err != nil {
		return err
	}
	if err := expectMintAccount(mint); err != nil {
		return err
	}
	freezeAuthority, ok := FreezeAuthorityOf(mint.Data)
	if !ok || freezeAuthority != authority {
		return fmt.Errorf("%w: mint=%s", ErrTokenAuthorityInvalid, mint.Key)
	}
	if TokenAccountMint(acct.Data) != mint.Key {
		return fmt.Errorf("%w: acct=%s mint=%s", ErrTokenMintMismatch, acct.Key, mint.Key)
	}
	if TokenAccountState(acct.Data) == AccountStateFrozen {
		return ErrTokenAccountFrozen
	}
	setTokenAccountState(acct.Data, AccountStateFrozen)
	return nil
}

func (SPLTokenEngine) ThawAccount(acct, mint *AccountInfo, authority types.Pubkey) error {
	if err := expectTokenAccount(acct); err != nil {
		return err
	}
	if err := expectMintAccount(mint); err != nil {
		return err
	}
	freezeAuthority, ok := FreezeAuthorityOf(mint.Data)
	if !ok || freezeAuthority != authority {
		return fmt.Errorf("%w: mint=%s", ErrTokenAuthorityInvalid, mint.Key)
	}
	if TokenAccountState(acct.Data) != AccountStateFrozen {
		return ErrTokenAccountNotFrozen
	}
	setTokenAccountState(acct.Data, AccountStateInitialized)
	return nil
}

func (SPLTokenEngine) CloseAccount(acct, dest *AccountInfo, authority types.Pubkey) error {
	if err := expectTokenAccount(acct); err != nil {
		return err
	}
	if TokenAccountOwner(acct.Data) != authority {
		return fmt.Errorf("%w: acct=%s authority=%s", ErrTokenOwnerMismatch, acct.Key, authority)
	}
	if TokenAccountAmount(acct.Data) != 0 {
		return fmt.Errorf("%w: acct=%s", ErrTokenNonZeroBalance, acct.Key)
	}
	dest.Lamports += acct.Lamports
	acct.Lamports = 0
	for i := range acct.Data {
		acct.Data[i] = 0
	}
	return nil
}
