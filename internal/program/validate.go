package program

import (
	"fmt"

	"settlement-sol/internal/consts"
	"settlement-sol/internal/program/runtime"
	"settlement-sol/internal/program/state"
	"settlement-sol/internal/types"
)

// 校验层：所有检查只读不写，第一处失败立即短路。
// 账户列表由调用方完全控制，任何字段在这里确认过之前不可信。

func expectAccounts(accounts []*runtime.AccountInfo, n int) error {
	if len(accounts) < n {
		return fmt.Errorf("%w: got %d, want %d", ErrNotEnoughAccounts, len(accounts), n)
	}
	return nil
}

func expectSigner(info *runtime.AccountInfo) error {
	if !info.IsSigner {
		return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, info.Key)
	}
	return nil
}

func expectProgramOwned(env *Env, info *runtime.AccountInfo) error {
	if info.Owner != env.ProgramID {
		return fmt.Errorf("%w: account=%s owner=%s", ErrIllegalOwner, info.Key, info.Owner)
	}
	return nil
}

// expectAuthority 要求 signer 账户既签名又等于记录的 authority 字段。
func expectAuthority(signer *runtime.AccountInfo, required types.Pubkey) error {
	if err := expectSigner(signer); err != nil {
		return err
	}
	if signer.Key != required {
		return fmt.Errorf("%w: signer=%s required=%s", ErrUnauthorizedAuthority, signer.Key, required)
	}
	return nil
}

func expectKey(info *runtime.AccountInfo, want types.Pubkey, sentinel error) error {
	if info.Key != want {
		return fmt.Errorf("%w: got %s, want %s", sentinel, info.Key, want)
	}
	return nil
}

// expectTokenAccountMint 解码 token account 内嵌的 mint 字段并比对。
func expectTokenAccountMint(info *runtime.AccountInfo, mint types.Pubkey, sentinel error) error {
	if info.Owner != consts.TokenProgram || len(info.Data) != runtime.TokenAccountDataLen {
		return fmt.Errorf("%w: %s is not a token account", sentinel, info.Key)
	}
	if got := runtime.TokenAccountMint(info.Data); got != mint {
		return fmt.Errorf("%w: account=%s mint=%s, want %s", sentinel, info.Key, got, mint)
	}
	return nil
}

// expectPaymentAccount 结算货币账户必须持有 wrapped SOL。
func expectPaymentAccount(info *runtime.AccountInfo) error {
	return expectTokenAccountMint(info, consts.WSOLMint, ErrTokenMintNotSupported)
}

// expectDerived 按种子公式重算派生地址并逐字节比对，绝不信任传入地址。
func expectDerived(info *runtime.AccountInfo, derived types.Pubkey) error {
	if info.Key != derived {
		return fmt.Errorf("%w: derived address mismatch, got %s, want %s", ErrInvalidArgument, info.Key, derived)
	}
	return nil
}

func expectTokenProgram(info *runtime.AccountInfo) error {
	if info.Key != consts.TokenProgram {
		return fmt.Errorf("%w: expected token program, got %s", ErrInvalidArgument, info.Key)
	}
	return nil
}

// expectUninitialized 要求记录账户 data 长度精确且尚未写入任何 tag。
func expectUninitialized(env *Env, info *runtime.AccountInfo, wantLen int) error {
	if err := expectProgramOwned(env, info); err != nil {
		return err
	}
	if len(info.Data) != wantLen {
		return fmt.Errorf("%w: account=%s data length %d, want %d", ErrInvalidArgument, info.Key, len(info.Data), wantLen)
	}
	if info.Data[0] != 0 {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInitialized, info.Key)
	}
	return nil
}

func loadCharter(env *Env, info *runtime.AccountInfo) (*state.Charter, error) {
	if err := expectProgramOwned(env, info); err != nil {
		return nil, err
	}
	charter, err := state.UnpackCharter(info.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: charter %s: %v", ErrAccountNotInitialized, info.Key, err)
	}
	if !charter.IsInitialized {
		return nil, fmt.Errorf("%w: charter %s", ErrAccountNotInitialized, info.Key)
	}
	return charter, nil
}

func loadListing(env *Env, info *runtime.AccountInfo) (*state.Listing, error) {
	if err := expectProgramOwned(env, info); err != nil {
		return nil, err
	}
	listing, err := state.UnpackListing(info.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", ErrAccountNotInitialized, info.Key, err)
	}
	if !listing.IsInitialized {
		return nil, fmt.Errorf("%w: listing %s", ErrAccountNotInitialized, info.Key)
	}
	return listing, nil
}

// loadReceipt 对已关闭（数据清零）的 receipt 同样返回未初始化错误，
// 这正是 cash / cancel 只能发生一次的执行点。
func loadReceipt(env *Env, info *runtime.AccountInfo) (*state.Receipt, error) {
	if err := expectProgramOwned(env, info); err != nil {
		return nil, err
	}
	receipt, err := state.UnpackReceipt(info.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: receipt %s: %v", ErrAccountNotInitialized, info.Key, err)
	}
	if !receipt.IsInitialized {
		return nil, fmt.Errorf("%w: receipt %s", ErrAccountNotInitialized, info.Key)
	}
	return receipt, nil
}

// expectEscrowAccount 校验托管账户：必须是 WSOL token account，
// 且其 owner 等于按 receipt 派生的托管权限。返回重算出的托管权限地址。
func expectEscrowAccount(env *Env, escrow *runtime.AccountInfo, receipt types.Pubkey) (types.Pubkey, error) {
	if err := expectPaymentAccount(escrow); err != nil {
		return types.Pubkey{}, err
	}
	authority, _, err := runtime.EscrowAuthority(env.ProgramID, receipt)
	if err != nil {
		return types.Pubkey{}, err
	}
	if runtime.TokenAccountOwner(escrow.Data) != authority {
		return types.Pubkey{}, fmt.Errorf("%w: escrow %s owner is not the derived escrow authority", ErrUnauthorizedAuthority, escrow.Key)
	}
	return authority, nil
}

func validateContributionRates(rates ...state.Rate) error {
	for _, r := range rates {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}
	return nil
}

func mulQuantity(price, quantity uint64) (uint64, error) {
	if quantity != 0 && price > ^uint64(0)/quantity {
		return 0, fmt.Errorf("%w: %d * %d", ErrAmountOverflow, price, quantity)
	}
	return price * quantity, nil
}
