package program

import (
	"fmt"

	"settlement-sol/internal/program/instruction"
	"settlement-sol/internal/program/runtime"
	"settlement-sol/internal/program/state"
)

// Listing 指令组。除 InitListing 外全部由 listing.Authority 签名门禁。

// processInitListing 账户布局：
//
//	0. listing            (writable, program-owned, 未初始化)
//	1. authority          (signer)
//	2. charter            (program-owned, 已初始化)
//	3. mint               license token mint
//	4. mint_authority     ["mint_authority", mint] 派生地址
//	5. payment_deposit    lister 的 WSOL token account
//	6. vote_deposit       lister 的投票 token account
func processInitListing(env *Env, accounts []*runtime.AccountInfo, ix instruction.InitListing) error {
	if err := expectAccounts(accounts, 7); err != nil {
		return err
	}
	listingInfo, authority, charterInfo := accounts[0], accounts[1], accounts[2]
	mint, mintAuthorityInfo := accounts[3], accounts[4]
	paymentDeposit, voteDeposit := accounts[5], accounts[6]

	if err := expectUninitialized(env, listingInfo, state.ListingDataLen); err != nil {
		return err
	}
	if err := expectSigner(authority); err != nil {
		return err
	}
	charter, err := loadCharter(env, charterInfo)
	if err != nil {
		return err
	}

	// license mint 的铸币与冻结权限必须都是按该 mint 派生的程序地址，
	// 否则 lister 可以绕过程序随意增发或解冻 license。
	derived, _, err := runtime.MintAuthority(env.ProgramID, mint.Key)
	if err != nil {
		return err
	}
	if err := expectDerived(mintAuthorityInfo, derived); err != nil {
		return err
	}
	if len(mint.Data) != runtime.MintDataLen {
		return fmt.Errorf("%w: %s is not a mint account", ErrInvalidArgument, mint.Key)
	}
	if got, ok := runtime.MintAuthorityOf(mint.Data); !ok || got != derived {
		return fmt.Errorf("%w: mint authority of %s is not the derived address", ErrUnauthorizedAuthority, mint.Key)
	}
	if got, ok := runtime.FreezeAuthorityOf(mint.Data); !ok || got != derived {
		return fmt.Errorf("%w: freeze authority of %s is not the derived address", ErrUnauthorizedAuthority, mint.Key)
	}

	if err := expectPaymentAccount(paymentDeposit); err != nil {
		return err
	}
	if err := expectTokenAccountMint(voteDeposit, charter.Mint, ErrTokenMintNotSupported); err != nil {
		return err
	}

	listing := state.Listing{
		IsInitialized:  true,
		IsAvailable:    ix.IsAvailable,
		Charter:        charterInfo.Key,
		Authority:      authority.Key,
		Price:          ix.Price,
		Mint:           mint.Key,
		PaymentDeposit: paymentDeposit.Key,
		VoteDeposit:    voteDeposit.Key,
		IsRefundable:   ix.IsRefundable,
		IsConsumable:   ix.IsConsumable,
		Uri:            ix.Uri,
	}
	return listing.Store(listingInfo.Data)
}

// processSetListingPrice 账户布局：0. listing (writable)  1. authority (signer)
func processSetListingPrice(env *Env, accounts []*runtime.AccountInfo, ix instruction.SetListingPrice) error {
	if err := expectAccounts(accounts, 2); err != nil {
		return err
	}
	listingInfo := accounts[0]
	listing, err := loadListing(env, listingInfo)
	if err != nil {
		return err
	}
	if err := expectAuthority(accounts[1], listing.Authority); err != nil {
		return err
	}

	listing.Price = ix.Price
	return listing.Store(listingInfo.Data)
}

// processSetListingUri 账户布局：0. listing (writable)  1. authority (signer)
func processSetListingUri(env *Env, accounts []*runtime.AccountInfo, ix instruction.SetListingUri) error {
	if err := expectAccounts(accounts, 2); err != nil {
		return err
	}
	listingInfo := accounts[0]
	listing, err := loadListing(env, listingInfo)
	if err != nil {
		return err
	}
	if err := expectAuthority(accounts[1], listing.Authority); err != nil {
		return err
	}

	listing.Uri = ix.Uri
	return listing.Store(listingInfo.Data)
}

// processSetListingAvailability 账户布局：0. listing (writable)  1. authority (signer)
// 下架（IsAvailable=false）是 listing 的逻辑退役方式，记录本身从不删除。
func processSetListingAvailability(env *Env, accounts []*runtime.AccountInfo, ix instruction.SetListingAvailability) error {
	if err := expectAccounts(accounts, 2); err != nil {
		return err
	}
	listingInfo := accounts[0]
	listing, err := loadListing(env, listingInfo)
	if err != nil {
		return err
	}
	if err := expectAuthority(accounts[1], listing.Authority); err != nil {
		return err
	}

	listing.IsAvailable = ix.IsAvailable
	return listing.Store(listingInfo.Data)
}

// processSetListingDeposits 账户布局：
//
//	0. listing            (writable)
//	1. authority          (signer)
//	2. charter            listing 关联的 charter
//	3. payment_deposit    新 WSOL token account
//	4. vote_deposit       新投票 token account
func processSetListingDeposits(env *Env, accounts []*runtime.AccountInfo) error {
	if err := expectAccounts(accounts, 5); err != nil {
		return err
	}
	listingInfo, charterInfo := accounts[0], accounts[2]
	paymentDeposit, voteDeposit := accounts[3], accounts[4]

	listing, err := loadListing(env, listingInfo)
	if err != nil {
		return err
	}
	if err := expectAuthority(accounts[1], listing.Authority); err != nil {
		return err
	}
	if err := expectKey(charterInfo, listing.Charter, ErrListingHasUnexpectedCharter); err != nil {
		return err
	}
	charter, err := loadCharter(env, charterInfo)
	if err != nil {
		return err
	}
	if err := expectPaymentAccount(paymentDeposit); err != nil {
		return err
	}
	if err := expectTokenAccountMint(voteDeposit, charter.Mint, ErrTokenMintNotSupported); err != nil {
		return err
	}

	listing.PaymentDeposit = paymentDeposit.Key
	listing.VoteDeposit = voteDeposit.Key
	return listing.Store(listingInfo.Data)
}

// processSetListingAuthority 账户布局：
//
//	0. listing        (writable)
//	1. authority      当前 authority (signer)
//	2. new_authority  新 authority（无需签名）
func processSetListingAuthority(env *Env, accounts []*runtime.AccountInfo) error {
	if err := expectAccounts(accounts, 3); err != nil {
		return err
	}
	listingInfo := accounts[0]
	listing, err := loadListing(env, listingInfo)
	if err != nil {
		return err
	}
	if err := expectAuthority(accounts[1], listing.Authority); err != nil {
		return err
	}

	listing.Authority = accounts[2].Key
	return listing.Store(listingInfo.Data)
}
