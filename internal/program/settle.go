package program

import (
	"settlement-sol/internal/program/instruction"
	"settlement-sol/internal/program/runtime"
	"settlement-sol/internal/program/state"
	"settlement-sol/internal/types"
)

// Receipt 状态机：
//
//	Purchased(IsCashable=false) → Cashable → Cashed（终态，账户关闭）
//	Purchased / Cashable        → Cancelled（终态，账户关闭）
//
// 关闭即数据清零 + lamports 回收，loadReceipt 对关闭账户失败，
// 因此 cash 与 cancel 天然互斥且各自最多发生一次。

// mintLicense 铸造 license token 并冻结接收账户（license 不可转让）。
// 同一账户可能因此前的购买已处于冻结态，铸造前需要先解冻。
func mintLicense(env *Env, mint, dest *runtime.AccountInfo, mintAuthority types.Pubkey, amount uint64) error {
	if runtime.TokenAccountState(dest.Data) == runtime.AccountStateFrozen {
		if err := env.Token.ThawAccount(dest, mint, mintAuthority); err != nil {
			return err
		}
	}
	if err := env.Token.MintTo(mint, dest, mintAuthority, amount); err != nil {
		return err
	}
	return env.Token.FreezeAccount(dest, mint, mintAuthority)
}

// burnLicense 销毁持有者账户中 amount 枚 license token，余额不为零时重新冻结。
func burnLicense(env *Env, mint, src *runtime.AccountInfo, mintAuthority types.Pubkey, amount uint64) error {
	if runtime.TokenAccountState(src.Data) == runtime.AccountStateFrozen {
		if err := env.Token.ThawAccount(src, mint, mintAuthority); err != nil {
			return err
		}
	}
	if err := env.Token.Burn(src, mint, runtime.TokenAccountOwner(src.Data), amount); err != nil {
		return err
	}
	if runtime.TokenAccountAmount(src.Data) > 0 {
		return env.Token.FreezeAccount(src, mint, mintAuthority)
	}
	return nil
}

// closeRecord 关闭一个记录账户：数据清零，lamports 归还给 dest。
func closeRecord(record, dest *runtime.AccountInfo) {
	dest.Lamports += record.Lamports
	record.Lamports = 0
	for i := range record.Data {
		record.Data[i] = 0
	}
}

// processPurchase 账户布局：
//
//	0. purchaser              (signer, writable)
//	1. cashier                指定的结算中间方（无需签名）
//	2. listing                (program-owned)
//	3. receipt                (writable, program-owned, 未初始化，地址 = ["receipt", listing, nonce])
//	4. escrow                 (writable) 托管 WSOL token account，owner 必须是 ["escrow", receipt] 派生地址
//	5. payment                (writable) purchaser 的 WSOL token account
//	6. listing_token_account  (writable) license token 接收账户
//	7. listing_mint           (writable)
//	8. mint_authority         ["mint_authority", listing_mint] 派生地址
//	9. token_program
func processPurchase(env *Env, accounts []*runtime.AccountInfo, ix instruction.Purchase) error {
	if err := expectAccounts(accounts, 10); err != nil {
		return err
	}
	purchaser, cashier, listingInfo, receiptInfo := accounts[0], accounts[1], accounts[2], accounts[3]
	escrow, payment, listingTokenAccount := accounts[4], accounts[5], accounts[6]
	listingMint, mintAuthorityInfo, tokenProgram := accounts[7], accounts[8], accounts[9]

	if err := expectSigner(purchaser); err != nil {
		return err
	}
	listing, err := loadListing(env, listingInfo)
	if err != nil {
		return err
	}
	if !listing.IsAvailable {
		return ErrListingUnavailable
	}
	if ix.Quantity == 0 {
		return ErrInvalidArgument
	}
	if err := expectKey(listingMint, listing.Mint, ErrListingHasUnexpectedMint); err != nil {
		return err
	}
	if err := expectTokenProgram(tokenProgram); err != nil {
		return err
	}

	// receipt 地址必须按 nonce 重算匹配，nonce 重复会派生出同一地址并在此被拒。
	derivedReceipt, _, err := runtime.ReceiptAddress(env.ProgramID, listingInfo.Key, ix.Nonce)
	if err != nil {
		return err
	}
	if err := expectDerived(receiptInfo, derivedReceipt); err != nil {
		return err
	}
	if err := expectUninitialized(env, receiptInfo, state.ReceiptDataLen); err != nil {
		return err
	}

	// 托管账户的 owner 必须是按 receipt 派生的托管权限：
	// 资金自此处于程序托管之下，不属于任何单一参与方。
	if _, err := expectEscrowAccount(env, escrow, receiptInfo.Key); err != nil {
		return err
	}
	if err := expectPaymentAccount(payment); err != nil {
		return err
	}
	if err := expectTokenAccountMint(listingTokenAccount, listing.Mint, ErrListingHasUnexpectedMint); err != nil {
		return err
	}

	total, err := mulQuantity(listing.Price, ix.Quantity)
	if err != nil {
		return err
	}
	if err := env.Token.Transfer(payment, escrow, purchaser.Key, total); err != nil {
		return err
	}

	// refundable listing 的 license 即买即发（冻结），款项留在托管等退款窗口结束；
	// 非 refundable 则 license 推迟到 cash 时铸造。
	if listing.IsRefundable {
		mintAuthority, _, err := runtime.MintAuthority(env.ProgramID, listing.Mint)
		if err != nil {
			return err
		}
		if err := expectDerived(mintAuthorityInfo, mintAuthority); err != nil {
			return err
		}
		if err := mintLicense(env, listingMint, listingTokenAccount, mintAuthority, ix.Quantity); err != nil {
			return err
		}
	}

	receipt := state.Receipt{
		IsInitialized:       true,
		IsRefundable:        listing.IsRefundable,
		IsCashable:          !listing.IsRefundable,
		Listing:             listingInfo.Key,
		Purchaser:           purchaser.Key,
		Cashier:             cashier.Key,
		ListingTokenAccount: listingTokenAccount.Key,
		Quantity:            ix.Quantity,
		Price:               listing.Price,
		Nonce:               ix.Nonce,
	}
	return receipt.Store(receiptInfo.Data)
}

// processSetReceiptCashable 账户布局：
//
//	0. authority  listing 的 authority (signer)
//	1. listing
//	2. receipt    (writable)
//
// refundable 购买的退款窗口由此结束。
func processSetReceiptCashable(env *Env, accounts []*runtime.AccountInfo) error {
	if err := expectAccounts(accounts, 3); err != nil {
		return err
	}
	listingInfo, receiptInfo := accounts[1], accounts[2]

	receipt, err := loadReceipt(env, receiptInfo)
	if err != nil {
		return err
	}
	if err := expectKey(listingInfo, receipt.Listing, ErrReceiptHasUnexpectedListing); err != nil {
		return err
	}
	listing, err := loadListing(env, listingInfo)
	if err != nil {
		return err
	}
	if err := expectAuthority(accounts[0], listing.Authority); err != nil {
		return err
	}

	receipt.IsCashable = true
	return receipt.Store(receiptInfo.Data)
}

// processCash 账户布局：
//
//	 0. cashier                 (signer, writable) 回收关闭账户的 lamports
//	 1. receipt                 (writable)
//	 2. listing
//	 3. charter
//	 4. escrow                  (writable)
//	 5. listing_payment_deposit (writable)
//	 6. charter_payment_deposit (writable)
//	 7. listing_vote_deposit    (writable)
//	 8. charter_vote_deposit    (writable)
//	 9. charter_mint            (writable) 投票 token mint
//	10. charter_mint_authority  ["mint_authority", charter_mint] 派生地址
//	11. listing_mint            (writable)
//	12. listing_mint_authority  ["mint_authority", listing_mint] 派生地址
//	13. listing_token_account   (writable)
//	14. token_program
//
// 这是协议中唯一不可逆的价值分配步骤，只能发生一次（由 receipt 关闭保证）。
func processCash(env *Env, accounts []*runtime.AccountInfo) error {
	if err := expectAccounts(accounts, 15); err != nil {
		return err
	}
	cashier, receiptInfo, listingInfo, charterInfo := accounts[0], accounts[1], accounts[2], accounts[3]
	escrow := accounts[4]
	listingPaymentDeposit, charterPaymentDeposit := accounts[5], accounts[6]
	listingVoteDeposit, charterVoteDeposit := accounts[7], accounts[8]
	charterMint, charterMintAuthorityInfo := accounts[9], accounts[10]
	listingMint, listingMintAuthorityInfo := accounts[11], accounts[12]
	listingTokenAccount, tokenProgram := accounts[13], accounts[14]

	receipt, err := loadReceipt(env, receiptInfo)
	if err != nil {
		return err
	}
	if !receipt.IsCashable {
		return ErrReceiptNotCashable
	}
	if err := expectSigner(cashier); err != nil {
		return err
	}
	if err := expectKey(cashier, receipt.Cashier, ErrReceiptHasUnexpectedCashier); err != nil {
		return err
	}
	if err := expectKey(listingInfo, receipt.Listing, ErrReceiptHasUnexpectedListing); err != nil {
		return err
	}
	listing, err := loadListing(env, listingInfo)
	if err != nil {
		return err
	}
	if err := expectKey(charterInfo, listing.Charter, ErrListingHasUnexpectedCharter); err != nil {
		return err
	}
	charter, err := loadCharter(env, charterInfo)
	if err != nil {
		return err
	}
	if err := expectKey(listingPaymentDeposit, listing.PaymentDeposit, ErrListingHasUnexpectedDeposit); err != nil {
		return err
	}
	if err := expectKey(listingVoteDeposit, listing.VoteDeposit, ErrListingHasUnexpectedDeposit); err != nil {
		return err
	}
	if err := expectKey(charterPaymentDeposit, charter.PaymentDeposit, ErrCharterHasUnexpectedDeposit); err != nil {
		return err
	}
	if err := expectKey(charterVoteDeposit, charter.VoteDeposit, ErrCharterHasUnexpectedDeposit); err != nil {
		return err
	}
	if err := expectKey(charterMint, charter.Mint, ErrCharterHasUnexpectedMint); err != nil {
		return err
	}
	if err := expectKey(listingMint, listing.Mint, ErrListingHasUnexpectedMint); err != nil {
		return err
	}
	if err := expectKey(listingTokenAccount, receipt.ListingTokenAccount, ErrReceiptHasUnexpectedTokenAccount); err != nil {
		return err
	}
	if err := expectTokenProgram(tokenProgram); err != nil {
		return err
	}
	escrowAuthority, err := expectEscrowAccount(env, escrow, receiptInfo.Key)
	if err != nil {
		return err
	}
	if err := expectPaymentAccount(listingPaymentDeposit); err != nil {
		return err
	}
	if err := expectPaymentAccount(charterPaymentDeposit); err != nil {
		return err
	}
	if err := expectTokenAccountMint(listingVoteDeposit, charter.Mint, ErrTokenMintNotSupported); err != nil {
		return err
	}
	if err := expectTokenAccountMint(charterVoteDeposit, charter.Mint, ErrTokenMintNotSupported); err != nil {
		return err
	}

	charterMintAuthority, _, err := runtime.MintAuthority(env.ProgramID, charter.Mint)
	if err != nil {
		return err
	}
	if err := expectDerived(charterMintAuthorityInfo, charterMintAuthority); err != nil {
		return err
	}
	listingMintAuthority, _, err := runtime.MintAuthority(env.ProgramID, listing.Mint)
	if err != nil {
		return err
	}
	if err := expectDerived(listingMintAuthorityInfo, listingMintAuthority); err != nil {
		return err
	}

	// 非 refundable 路径的 license 推迟到此刻铸造并冻结。
	if !receipt.IsRefundable {
		if err := mintLicense(env, listingMint, listingTokenAccount, listingMintAuthority, receipt.Quantity); err != nil {
			return err
		}
	}

	// 结算金额使用购买时锁定的单价，listing 之后的改价不影响在途 receipt。
	total, err := mulQuantity(receipt.Price, receipt.Quantity)
	if err != nil {
		return err
	}
	deposit, contribution := state.SplitByRate(total, charter.PaymentContributionRate)
	if err := env.Token.Transfer(escrow, listingPaymentDeposit, escrowAuthority, deposit); err != nil {
		return err
	}
	if err := env.Token.Transfer(escrow, charterPaymentDeposit, escrowAuthority, contribution); err != nil {
		return err
	}
	// 托管账户内超出结算额的残余（如有）划给 lister，保证账户可关闭。
	if residual := runtime.TokenAccountAmount(escrow.Data); residual > 0 {
		if err := env.Token.Transfer(escrow, listingPaymentDeposit, escrowAuthority, residual); err != nil {
			return err
		}
	}

	// 投票 token 铸造量由国库 contribution 与扩张率决定，再按投票费率二次切分。
	votes := state.ApplyRate(contribution, charter.ExpansionRate)
	voteDeposit, voteContribution := state.SplitByRate(votes, charter.VoteContributionRate)
	if err := env.Token.MintTo(charterMint, listingVoteDeposit, charterMintAuthority, voteDeposit); err != nil {
		return err
	}
	if err := env.Token.MintTo(charterMint, charterVoteDeposit, charterMintAuthority, voteContribution); err != nil {
		return err
	}

	if err := env.Token.CloseAccount(escrow, cashier, escrowAuthority); err != nil {
		return err
	}
	closeRecord(receiptInfo, cashier)
	return nil
}

// processCancel 账户布局：
//
//	0. purchaser              (signer, writable) 退款与 lamports 的接收方
//	1. receipt                (writable)
//	2. listing
//	3. escrow                 (writable)
//	4. payment                (writable) purchaser 的 WSOL token account
//	5. listing_token_account  (writable)
//	6. listing_mint           (writable)
//	7. mint_authority         ["mint_authority", listing_mint] 派生地址
//	8. token_program
func processCancel(env *Env, accounts []*runtime.AccountInfo) error {
	if err := expectAccounts(accounts, 9); err != nil {
		return err
	}
	purchaser, receiptInfo, listingInfo := accounts[0], accounts[1], accounts[2]
	escrow, payment, listingTokenAccount := accounts[3], accounts[4], accounts[5]
	listingMint, mintAuthorityInfo, tokenProgram := accounts[6], accounts[7], accounts[8]

	receipt, err := loadReceipt(env, receiptInfo)
	if err != nil {
		return err
	}
	if err := expectSigner(purchaser); err != nil {
		return err
	}
	if err := expectKey(purchaser, receipt.Purchaser, ErrReceiptHasUnexpectedPurchaser); err != nil {
		return err
	}
	if err := expectKey(listingInfo, receipt.Listing, ErrReceiptHasUnexpectedListing); err != nil {
		return err
	}
	listing, err := loadListing(env, listingInfo)
	if err != nil {
		return err
	}
	if err := expectKey(listingTokenAccount, receipt.ListingTokenAccount, ErrReceiptHasUnexpectedTokenAccount); err != nil {
		return err
	}
	if err := expectKey(listingMint, listing.Mint, ErrListingHasUnexpectedMint); err != nil {
		return err
	}
	if err := expectTokenProgram(tokenProgram); err != nil {
		return err
	}
	if err := expectPaymentAccount(payment); err != nil {
		return err
	}
	escrowAuthority, err := expectEscrowAccount(env, escrow, receiptInfo.Key)
	if err != nil {
		return err
	}

	// refundable 路径的 license 已在 purchase 时发放，退款前先销毁。
	if receipt.IsRefundable {
		mintAuthority, _, err := runtime.MintAuthority(env.ProgramID, listing.Mint)
		if err != nil {
			return err
		}
		if err := expectDerived(mintAuthorityInfo, mintAuthority); err != nil {
			return err
		}
		if err := burnLicense(env, listingMint, listingTokenAccount, mintAuthority, receipt.Quantity); err != nil {
			return err
		}
	}

	// 托管余额全额退还 purchaser。
	if balance := runtime.TokenAccountAmount(escrow.Data); balance > 0 {
		if err := env.Token.Transfer(escrow, payment, escrowAuthority, balance); err != nil {
			return err
		}
	}
	if err := env.Token.CloseAccount(escrow, purchaser, escrowAuthority); err != nil {
		return err
	}
	closeRecord(receiptInfo, purchaser)
	return nil
}

// processConsume 账户布局：
//
//	0. authority       listing 的 authority (signer)
//	1. listing
//	2. listing_mint    (writable)
//	3. mint_authority  ["mint_authority", listing_mint] 派生地址
//	4. holder          (writable) 被核销的 license token account
//	5. token_program
//
// 按量核销 license，不触碰 receipt，仅对 IsConsumable 的 listing 合法。
func processConsume(env *Env, accounts []*runtime.AccountInfo, ix instruction.Consume) error {
	if err := expectAccounts(accounts, 6); err != nil {
		return err
	}
	listingInfo, listingMint := accounts[1], accounts[2]
	mintAuthorityInfo, holder, tokenProgram := accounts[3], accounts[4], accounts[5]

	listing, err := loadListing(env, listingInfo)
	if err != nil {
		return err
	}
	if err := expectAuthority(accounts[0], listing.Authority); err != nil {
		return err
	}
	if !listing.IsConsumable {
		return ErrListingNotConsumable
	}
	if err := expectKey(listingMint, listing.Mint, ErrListingHasUnexpectedMint); err != nil {
		return err
	}
	if err := expectTokenProgram(tokenProgram); err != nil {
		return err
	}
	if err := expectTokenAccountMint(holder, listing.Mint, ErrListingHasUnexpectedMint); err != nil {
		return err
	}

	mintAuthority, _, err := runtime.MintAuthority(env.ProgramID, listing.Mint)
	if err != nil {
		return err
	}
	if err := expectDerived(mintAuthorityInfo, mintAuthority); err != nil {
		return err
	}
	return burnLicense(env, listingMint, holder, mintAuthority, ix.Quantity)
}
