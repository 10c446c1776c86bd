package program

import (
	"settlement-sol/internal/program/instruction"
	"settlement-sol/internal/program/runtime"
	"settlement-sol/internal/program/state"
)

// Charter 指令组。除 InitCharter 外全部由 charter.Authority 签名门禁。

// processInitCharter 账户布局：
//
//	0. charter           (writable, program-owned, 未初始化)
//	1. authority         (signer)
//	2. mint              治理投票 token mint
//	3. payment_deposit   国库 WSOL token account
//	4. vote_deposit      国库投票 token account
func processInitCharter(env *Env, accounts []*runtime.AccountInfo, ix instruction.InitCharter) error {
	if err := expectAccounts(accounts, 5); err != nil {
		return err
	}
	charterInfo, authority := accounts[0], accounts[1]
	mint, paymentDeposit, voteDeposit := accounts[2], accounts[3], accounts[4]

	if err := expectUninitialized(env, charterInfo, state.CharterDataLen); err != nil {
		return err
	}
	if err := expectSigner(authority); err != nil {
		return err
	}
	if err := validateContributionRates(ix.PaymentContributionRate, ix.VoteContributionRate); err != nil {
		return err
	}
	if err := expectPaymentAccount(paymentDeposit); err != nil {
		return err
	}
	if err := expectTokenAccountMint(voteDeposit, mint.Key, ErrTokenMintNotSupported); err != nil {
		return err
	}

	charter := state.Charter{
		IsInitialized:           true,
		ExpansionRate:           ix.ExpansionRate,
		PaymentContributionRate: ix.PaymentContributionRate,
		VoteContributionRate:    ix.VoteContributionRate,
		Authority:               authority.Key,
		Mint:                    mint.Key,
		PaymentDeposit:          paymentDeposit.Key,
		VoteDeposit:             voteDeposit.Key,
		Uri:                     ix.Uri,
	}
	return charter.Store(charterInfo.Data)
}

// processSetCharterRates 账户布局：0. charter (writable)  1. authority (signer)
func processSetCharterRates(env *Env, accounts []*runtime.AccountInfo, ix instruction.SetCharterRates) error {
	if err := expectAccounts(accounts, 2); err != nil {
		return err
	}
	charterInfo := accounts[0]
	charter, err := loadCharter(env, charterInfo)
	if err != nil {
		return err
	}
	if err := expectAuthority(accounts[1], charter.Authority); err != nil {
		return err
	}
	if err := validateContributionRates(ix.PaymentContributionRate, ix.VoteContributionRate); err != nil {
		return err
	}

	charter.ExpansionRate = ix.ExpansionRate
	charter.PaymentContributionRate = ix.PaymentContributionRate
	charter.VoteContributionRate = ix.VoteContributionRate
	return charter.Store(charterInfo.Data)
}

// processSetCharterDeposits 账户布局：
//
//	0. charter           (writable)
//	1. authority         (signer)
//	2. payment_deposit   新国库 WSOL token account
//	3. vote_deposit      新国库投票 token account
func processSetCharterDeposits(env *Env, accounts []*runtime.AccountInfo) error {
	if err := expectAccounts(accounts, 4); err != nil {
		return err
	}
	charterInfo, paymentDeposit, voteDeposit := accounts[0], accounts[2], accounts[3]
	charter, err := loadCharter(env, charterInfo)
	if err != nil {
		return err
	}
	if err := expectAuthority(accounts[1], charter.Authority); err != nil {
		return err
	}
	if err := expectPaymentAccount(paymentDeposit); err != nil {
		return err
	}
	if err := expectTokenAccountMint(voteDeposit, charter.Mint, ErrTokenMintNotSupported); err != nil {
		return err
	}

	charter.PaymentDeposit = paymentDeposit.Key
	charter.VoteDeposit = voteDeposit.Key
	return charter.Store(charterInfo.Data)
}

// processSetCharterAuthority 账户布局：
//
//	0. charter        (writable)
//	1. authority      当前 authority (signer)
//	2. new_authority  新 authority（无需签名）
func processSetCharterAuthority(env *Env, accounts []*runtime.AccountInfo) error {
	if err := expectAccounts(accounts, 3); err != nil {
		return err
	}
	charterInfo := accounts[0]
	charter, err := loadCharter(env, charterInfo)
	if err != nil {
		return err
	}
	if err := expectAuthority(accounts[1], charter.Authority); err != nil {
		return err
	}

	charter.Authority = accounts[2].Key
	return charter.Store(charterInfo.Data)
}

// processSetCharterUri 账户布局：0. charter (writable)  1. authority (signer)
func processSetCharterUri(env *Env, accounts []*runtime.AccountInfo, ix instruction.SetCharterUri) error {
	if err := expectAccounts(accounts, 2); err != nil {
		return err
	}
	charterInfo := accounts[0]
	charter, err := loadCharter(env, charterInfo)
	if err != nil {
		return err
	}
	if err := expectAuthority(accounts[1], charter.Authority); err != nil {
		return err
	}

	charter.Uri = ix.Uri
	return charter.Store(charterInfo.Data)
}
