package program

import (
	"encoding/binary"
	"testing"

	"settlement-sol/internal/consts"
	"settlement-sol/internal/program/instruction"
	"settlement-sol/internal/program/runtime"
	"settlement-sol/internal/program/state"
	"settlement-sol/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pk(b byte) types.Pubkey {
	var p types.Pubkey
	p[0] = b
	p[31] = b
	return p
}

// newMintAccount 构造 82 字节 mint：铸币与冻结权限同为 authority。
func newMintAccount(key, authority types.Pubkey, decimals uint8) *runtime.AccountInfo {
	data := make([]byte, runtime.MintDataLen)
	binary.LittleEndian.PutUint32(data[0:4], 1)
	copy(data[4:36], authority[:])
	data[44] = decimals
	data[45] = 1
	binary.LittleEndian.PutUint32(data[46:50], 1)
	copy(data[50:82], authority[:])
	return &runtime.AccountInfo{Key: key, Owner: consts.TokenProgram, Data: data}
}

// newTokenAccount 构造 165 字节 token account，state=initialized。
func newTokenAccount(key, mint, owner types.Pubkey, amount uint64) *runtime.AccountInfo {
	data := make([]byte, runtime.TokenAccountDataLen)
	copy(data[0:32], mint[:])
	copy(data[32:64], owner[:])
	binary.LittleEndian.PutUint64(data[64:72], amount)
	data[108] = runtime.AccountStateInitialized
	return &runtime.AccountInfo{Key: key, Owner: consts.TokenProgram, Data: data, Lamports: 2_039_280}
}

func newRecordAccount(key, programID types.Pubkey, size int) *runtime.AccountInfo {
	return &runtime.AccountInfo{Key: key, Owner: programID, Data: make([]byte, size), Lamports: 1_000_000}
}

// fixture 搭建一套完整的市场：charter + listing + 参与方账户，
// 所有状态变更都通过 bank.Execute 走真实指令路径。
type fixture struct {
	t    *testing.T
	bank *runtime.Bank
	env  *Env

	charterKey, charterAuthority                           types.Pubkey
	charterMint, charterPaymentDeposit, charterVoteDeposit types.Pubkey
	listingKey, listingAuthority                           types.Pubkey
	listingMint, listingPaymentDeposit, listingVoteDeposit types.Pubkey
	purchaser, cashier, payment, license                   types.Pubkey
}

type fixtureOpts struct {
	price        uint64
	isRefundable bool
	isConsumable bool

	expansionRate           state.Rate
	paymentContributionRate state.Rate
	voteContributionRate    state.Rate
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	programID := pk(0x01)
	f := &fixture{
		t:    t,
		bank: runtime.NewBank(),
		env:  &Env{ProgramID: programID, Token: runtime.SPLTokenEngine{}},

		charterKey:            pk(0x10),
		charterAuthority:      pk(0x11),
		charterMint:           pk(0x12),
		charterPaymentDeposit: pk(0x13),
		charterVoteDeposit:    pk(0x14),
		listingKey:            pk(0x20),
		listingAuthority:      pk(0x21),
		listingMint:           pk(0x22),
		listingPaymentDeposit: pk(0x23),
		listingVoteDeposit:    pk(0x24),
		purchaser:             pk(0x30),
		cashier:               pk(0x31),
		payment:               pk(0x32),
		license:               pk(0x33),
	}

	// 钱包与 token program
	for _, key := range []types.Pubkey{f.charterAuthority, f.listingAuthority, f.purchaser, f.cashier} {
		f.bank.SetAccount(&runtime.AccountInfo{Key: key, Owner: consts.SystemProgram, Lamports: 10_000_000})
	}
	f.bank.SetAccount(&runtime.AccountInfo{Key: consts.TokenProgram})

	// mint 权限都是按 mint 派生的程序地址
	charterMintAuthority, _, err := runtime.MintAuthority(programID, f.charterMint)
	require.NoError(t, err)
	listingMintAuthority, _, err := runtime.MintAuthority(programID, f.listingMint)
	require.NoError(t, err)
	f.bank.SetAccount(newMintAccount(f.charterMint, charterMintAuthority, 0))
	f.bank.SetAccount(newMintAccount(f.listingMint, listingMintAuthority, 0))
	f.bank.SetAccount(&runtime.AccountInfo{Key: charterMintAuthority})
	f.bank.SetAccount(&runtime.AccountInfo{Key: listingMintAuthority})

	// 国库与 lister 的存款账户、purchaser 的资金与 license 账户
	f.bank.SetAccount(newTokenAccount(f.charterPaymentDeposit, consts.WSOLMint, f.charterAuthority, 0))
	f.bank.SetAccount(newTokenAccount(f.charterVoteDeposit, f.charterMint, f.charterAuthority, 0))
	f.bank.SetAccount(newTokenAccount(f.listingPaymentDeposit, consts.WSOLMint, f.listingAuthority, 0))
	f.bank.SetAccount(newTokenAccount(f.listingVoteDeposit, f.charterMint, f.listingAuthority, 0))
	f.bank.SetAccount(newTokenAccount(f.payment, consts.WSOLMint, f.purchaser, 1_000_000))
	f.bank.SetAccount(newTokenAccount(f.license, f.listingMint, f.purchaser, 0))

	// init_charter
	f.bank.SetAccount(newRecordAccount(f.charterKey, programID, state.CharterDataLen))
	err = f.execute(instruction.InitCharter{
		ExpansionRate:           opts.expansionRate,
		PaymentContributionRate: opts.paymentContributionRate,
		VoteContributionRate:    opts.voteContributionRate,
		Uri:                     state.UriFromString("ipfs://charter"),
	}, []runtime.AccountMeta{
		{Key: f.charterKey, IsWritable: true},
		{Key: f.charterAuthority, IsSigner: true},
		{Key: f.charterMint},
		{Key: f.charterPaymentDeposit},
		{Key: f.charterVoteDeposit},
	})
	require.NoError(t, err)

	// init_listing
	f.bank.SetAccount(newRecordAccount(f.listingKey, programID, state.ListingDataLen))
	err = f.execute(instruction.InitListing{
		Price:        opts.price,
		IsAvailable:  true,
		IsRefundable: opts.isRefundable,
		IsConsumable: opts.isConsumable,
		Uri:          state.UriFromString("ipfs://listing"),
	}, []runtime.AccountMeta{
		{Key: f.listingKey, IsWritable: true},
		{Key: f.listingAuthority, IsSigner: true},
		{Key: f.charterKey},
		{Key: f.listingMint},
		{Key: listingMintAuthority},
		{Key: f.listingPaymentDeposit},
		{Key: f.listingVoteDeposit},
	})
	require.NoError(t, err)

	return f
}

func (f *fixture) execute(ix instruction.Instruction, metas []runtime.AccountMeta) error {
	return f.bank.Execute(metas, func(accounts []*runtime.AccountInfo) error {
		return Process(f.env, accounts, ix.Encode())
	})
}

func (f *fixture) amount(key types.Pubkey) uint64 {
	return runtime.TokenAccountAmount(f.bank.Account(key).Data)
}

func (f *fixture) listing() *state.Listing {
	listing, err := state.UnpackListing(f.bank.Account(f.listingKey).Data)
	require.NoError(f.t, err)
	return listing
}

func (f *fixture) mintAuthorityOf(mint types.Pubkey) types.Pubkey {
	authority, _, err := runtime.MintAuthority(f.env.ProgramID, mint)
	require.NoError(f.t, err)
	return authority
}

// preparePurchase 预创建 receipt（PDA 地址、清零数据）与对应托管账户。
func (f *fixture) preparePurchase(nonce uint64, escrowKeyByte byte) (receiptKey, escrowKey types.Pubkey) {
	receiptKey, _, err := runtime.ReceiptAddress(f.env.ProgramID, f.listingKey, nonce)
	require.NoError(f.t, err)
	escrowAuthority, _, err := runtime.EscrowAuthority(f.env.ProgramID, receiptKey)
	require.NoError(f.t, err)

	escrowKey = pk(escrowKeyByte)
	f.bank.SetAccount(newRecordAccount(receiptKey, f.env.ProgramID, state.ReceiptDataLen))
	f.bank.SetAccount(newTokenAccount(escrowKey, consts.WSOLMint, escrowAuthority, 0))
	return receiptKey, escrowKey
}

func (f *fixture) purchase(nonce, quantity uint64, receiptKey, escrowKey types.Pubkey) error {
	return f.execute(instruction.Purchase{Nonce: nonce, Quantity: quantity}, []runtime.AccountMeta{
		{Key: f.purchaser, IsSigner: true, IsWritable: true},
		{Key: f.cashier},
		{Key: f.listingKey},
		{Key: receiptKey, IsWritable: true},
		{Key: escrowKey, IsWritable: true},
		{Key: f.payment, IsWritable: true},
		{Key: f.license, IsWritable: true},
		{Key: f.listingMint, IsWritable: true},
		{Key: f.mintAuthorityOf(f.listingMint)},
		{Key: consts.TokenProgram},
	})
}

func (f *fixture) setReceiptCashable(receiptKey types.Pubkey, signer types.Pubkey) error {
	return f.execute(instruction.SetReceiptCashable{}, []runtime.AccountMeta{
		{Key: signer, IsSigner: true},
		{Key: f.listingKey},
		{Key: receiptKey, IsWritable: true},
	})
}

func (f *fixture) cash(receiptKey, escrowKey types.Pubkey) error {
	return f.execute(instruction.Cash{}, []runtime.AccountMeta{
		{Key: f.cashier, IsSigner: true, IsWritable: true},
		{Key: receiptKey, IsWritable: true},
		{Key: f.listingKey},
		{Key: f.charterKey},
		{Key: escrowKey, IsWritable: true},
		{Key: f.listingPaymentDeposit, IsWritable: true},
		{Key: f.charterPaymentDeposit, IsWritable: true},
		{Key: f.listingVoteDeposit, IsWritable: true},
		{Key: f.charterVoteDeposit, IsWritable: true},
		{Key: f.charterMint, IsWritable: true},
		{Key: f.mintAuthorityOf(f.charterMint)},
		{Key: f.listingMint, IsWritable: true},
		{Key: f.mintAuthorityOf(f.listingMint)},
		{Key: f.license, IsWritable: true},
		{Key: consts.TokenProgram},
	})
}

func (f *fixture) cancel(receiptKey, escrowKey types.Pubkey) error {
	return f.execute(instruction.Cancel{}, []runtime.AccountMeta{
		{Key: f.purchaser, IsSigner: true, IsWritable: true},
		{Key: receiptKey, IsWritable: true},
		{Key: f.listingKey},
		{Key: escrowKey, IsWritable: true},
		{Key: f.payment, IsWritable: true},
		{Key: f.license, IsWritable: true},
		{Key: f.listingMint, IsWritable: true},
		{Key: f.mintAuthorityOf(f.listingMint)},
		{Key: consts.TokenProgram},
	})
}

func defaultOpts() fixtureOpts {
	return fixtureOpts{
		price:                   1000,
		expansionRate:           state.Rate{Amount: 1, Decimals: 2},  // 0.01
		paymentContributionRate: state.Rate{Amount: 20, Decimals: 2}, // 0.20
		voteContributionRate:    state.Rate{Amount: 50, Decimals: 2}, // 0.50
	}
}

func TestPurchaseEscrowsFunds(t *testing.T) {
	f := newFixture(t, defaultOpts())
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)

	require.NoError(t, f.purchase(1, 2, receiptKey, escrowKey))

	assert.Equal(t, uint64(2000), f.amount(escrowKey), "款项进入托管而非直接分配")
	assert.Equal(t, uint64(998_000), f.amount(f.payment))
	assert.Equal(t, uint64(0), f.amount(f.license), "非 refundable 购买不提前发放 license")

	receipt, err := state.UnpackReceipt(f.bank.Account(receiptKey).Data)
	require.NoError(t, err)
	assert.True(t, receipt.IsCashable, "非 refundable 购买立即可结算")
	assert.False(t, receipt.IsRefundable)
	assert.Equal(t, uint64(1000), receipt.Price, "单价在购买时锁定")
	assert.Equal(t, uint64(2), receipt.Quantity)
	assert.Equal(t, f.cashier, receipt.Cashier)
}

func TestPurchaseUnavailableListingFails(t *testing.T) {
	f := newFixture(t, defaultOpts())
	require.NoError(t, f.execute(instruction.SetListingAvailability{IsAvailable: false}, []runtime.AccountMeta{
		{Key: f.listingKey, IsWritable: true},
		{Key: f.listingAuthority, IsSigner: true},
	}))

	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)
	err := f.purchase(1, 1, receiptKey, escrowKey)
	assert.ErrorIs(t, err, ErrListingUnavailable)

	assert.Equal(t, uint64(1_000_000), f.amount(f.payment), "失败的 purchase 不得发生任何划转")
	assert.Equal(t, uint64(0), f.amount(escrowKey))
}

func TestPurchaseWithoutSignatureFails(t *testing.T) {
	f := newFixture(t, defaultOpts())
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)

	err := f.execute(instruction.Purchase{Nonce: 1, Quantity: 1}, []runtime.AccountMeta{
		{Key: f.purchaser, IsWritable: true}, // 故意不签名
		{Key: f.cashier},
		{Key: f.listingKey},
		{Key: receiptKey, IsWritable: true},
		{Key: escrowKey, IsWritable: true},
		{Key: f.payment, IsWritable: true},
		{Key: f.license, IsWritable: true},
		{Key: f.listingMint, IsWritable: true},
		{Key: f.mintAuthorityOf(f.listingMint)},
		{Key: consts.TokenProgram},
	})
	assert.ErrorIs(t, err, ErrMissingRequiredSignature)
}

func TestPurchaseRejectsForeignPaymentMint(t *testing.T) {
	f := newFixture(t, defaultOpts())
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)

	// 用非 WSOL 的 token account 付款
	foreignPayment := pk(0xE2)
	f.bank.SetAccount(newTokenAccount(foreignPayment, f.charterMint, f.purchaser, 1_000_000))
	err := f.execute(instruction.Purchase{Nonce: 1, Quantity: 1}, []runtime.AccountMeta{
		{Key: f.purchaser, IsSigner: true, IsWritable: true},
		{Key: f.cashier},
		{Key: f.listingKey},
		{Key: receiptKey, IsWritable: true},
		{Key: escrowKey, IsWritable: true},
		{Key: foreignPayment, IsWritable: true},
		{Key: f.license, IsWritable: true},
		{Key: f.listingMint, IsWritable: true},
		{Key: f.mintAuthorityOf(f.listingMint)},
		{Key: consts.TokenProgram},
	})
	assert.ErrorIs(t, err, ErrTokenMintNotSupported)
}

func TestPurchaseRejectsWrongReceiptAddress(t *testing.T) {
	f := newFixture(t, defaultOpts())
	_, escrowKey := f.preparePurchase(1, 0xE1)

	// receipt 地址与 nonce=2 的派生结果不符
	wrongReceipt, _, err := runtime.ReceiptAddress(f.env.ProgramID, f.listingKey, 1)
	require.NoError(t, err)
	err = f.purchase(2, 1, wrongReceipt, escrowKey)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRefundablePurchaseMintsFrozenLicense(t *testing.T) {
	opts := defaultOpts()
	opts.isRefundable = true
	f := newFixture(t, opts)
	receiptKey, escrowKey := f.preparePurchase(7, 0xE1)

	require.NoError(t, f.purchase(7, 3, receiptKey, escrowKey))

	license := f.bank.Account(f.license)
	assert.Equal(t, uint64(3), runtime.TokenAccountAmount(license.Data), "refundable 购买即买即发 license")
	assert.Equal(t, runtime.AccountStateFrozen, runtime.TokenAccountState(license.Data), "license 账户必须冻结（不可转让）")

	receipt, err := state.UnpackReceipt(f.bank.Account(receiptKey).Data)
	require.NoError(t, err)
	assert.False(t, receipt.IsCashable, "refundable 购买需显式放行后才可结算")
}

func TestCashRequiresCashable(t *testing.T) {
	opts := defaultOpts()
	opts.isRefundable = true
	f := newFixture(t, opts)
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)
	require.NoError(t, f.purchase(1, 1, receiptKey, escrowKey))

	err := f.cash(receiptKey, escrowKey)
	assert.ErrorIs(t, err, ErrReceiptNotCashable)
	assert.Equal(t, uint64(1000), f.amount(escrowKey), "失败的 cash 不得动托管资金")

	// listing authority 放行后可结算
	require.NoError(t, f.setReceiptCashable(receiptKey, f.listingAuthority))
	require.NoError(t, f.cash(receiptKey, escrowKey))
}

func TestSetReceiptCashableWrongAuthority(t *testing.T) {
	opts := defaultOpts()
	opts.isRefundable = true
	f := newFixture(t, opts)
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)
	require.NoError(t, f.purchase(1, 1, receiptKey, escrowKey))

	err := f.setReceiptCashable(receiptKey, f.purchaser)
	assert.ErrorIs(t, err, ErrUnauthorizedAuthority)
}

// 端到端结算：expansion=0.01，payment contribution=0.20，vote contribution=0.50，
// price=1000，quantity=1 → 托管 1000；cash 后 lister 得 800，国库得 200，
// 投票 token 铸 200*0.01=2，再按 0.5 切分为 1/1。
func TestCashSplitsPayment(t *testing.T) {
	f := newFixture(t, defaultOpts())
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)
	require.NoError(t, f.purchase(1, 1, receiptKey, escrowKey))
	require.NoError(t, f.cash(receiptKey, escrowKey))

	assert.Equal(t, uint64(800), f.amount(f.listingPaymentDeposit))
	assert.Equal(t, uint64(200), f.amount(f.charterPaymentDeposit))
	assert.Equal(t, uint64(1), f.amount(f.listingVoteDeposit))
	assert.Equal(t, uint64(1), f.amount(f.charterVoteDeposit))

	// 非 refundable 路径在 cash 时补发 license 并冻结
	license := f.bank.Account(f.license)
	assert.Equal(t, uint64(1), runtime.TokenAccountAmount(license.Data))
	assert.Equal(t, runtime.AccountStateFrozen, runtime.TokenAccountState(license.Data))

	// 托管账户与 receipt 均已关闭，lamports 归 cashier
	assert.Equal(t, uint64(0), f.bank.Account(escrowKey).Lamports)
	assert.Equal(t, uint64(0), f.bank.Account(receiptKey).Lamports)
	assert.Greater(t, f.bank.Account(f.cashier).Lamports, uint64(10_000_000))
}

func TestCashOnlyOnce(t *testing.T) {
	f := newFixture(t, defaultOpts())
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)
	require.NoError(t, f.purchase(1, 1, receiptKey, escrowKey))
	require.NoError(t, f.cash(receiptKey, escrowKey))

	listerBalance := f.amount(f.listingPaymentDeposit)
	err := f.cash(receiptKey, escrowKey)
	assert.ErrorIs(t, err, ErrAccountNotInitialized, "关闭后的 receipt 不可再次结算")
	assert.Equal(t, listerBalance, f.amount(f.listingPaymentDeposit), "重复 cash 不得再分配价值")
}

func TestCashWrongCashierFails(t *testing.T) {
	f := newFixture(t, defaultOpts())
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)
	require.NoError(t, f.purchase(1, 1, receiptKey, escrowKey))

	metas := []runtime.AccountMeta{
		{Key: f.purchaser, IsSigner: true, IsWritable: true}, // 非指定 cashier
		{Key: receiptKey, IsWritable: true},
		{Key: f.listingKey},
		{Key: f.charterKey},
		{Key: escrowKey, IsWritable: true},
		{Key: f.listingPaymentDeposit, IsWritable: true},
		{Key: f.charterPaymentDeposit, IsWritable: true},
		{Key: f.listingVoteDeposit, IsWritable: true},
		{Key: f.charterVoteDeposit, IsWritable: true},
		{Key: f.charterMint, IsWritable: true},
		{Key: f.mintAuthorityOf(f.charterMint)},
		{Key: f.listingMint, IsWritable: true},
		{Key: f.mintAuthorityOf(f.listingMint)},
		{Key: f.license, IsWritable: true},
		{Key: consts.TokenProgram},
	}
	err := f.execute(instruction.Cash{}, metas)
	assert.ErrorIs(t, err, ErrReceiptHasUnexpectedCashier)
}

func TestCancelRefundsAndBurnsLicense(t *testing.T) {
	opts := defaultOpts()
	opts.isRefundable = true
	f := newFixture(t, opts)
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)
	require.NoError(t, f.purchase(1, 3, receiptKey, escrowKey))
	require.Equal(t, uint64(3), f.amount(f.license))

	require.NoError(t, f.cancel(receiptKey, escrowKey))

	assert.Equal(t, uint64(0), f.amount(f.license), "cancel 后 purchaser 不得继续持有 license")
	assert.Equal(t, uint64(1_000_000), f.amount(f.payment), "托管款全额退回")
	assert.Equal(t, uint64(0), f.bank.Account(escrowKey).Lamports)

	err := f.cancel(receiptKey, escrowKey)
	assert.ErrorIs(t, err, ErrAccountNotInitialized, "cancel 是终态，不可重复")
}

func TestCancelByNonPurchaserFails(t *testing.T) {
	opts := defaultOpts()
	opts.isRefundable = true
	f := newFixture(t, opts)
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)
	require.NoError(t, f.purchase(1, 1, receiptKey, escrowKey))

	err := f.execute(instruction.Cancel{}, []runtime.AccountMeta{
		{Key: f.cashier, IsSigner: true, IsWritable: true}, // 非 purchaser
		{Key: receiptKey, IsWritable: true},
		{Key: f.listingKey},
		{Key: escrowKey, IsWritable: true},
		{Key: f.payment, IsWritable: true},
		{Key: f.license, IsWritable: true},
		{Key: f.listingMint, IsWritable: true},
		{Key: f.mintAuthorityOf(f.listingMint)},
		{Key: consts.TokenProgram},
	})
	assert.ErrorIs(t, err, ErrReceiptHasUnexpectedPurchaser)
}

func TestConsumeBurnsLicense(t *testing.T) {
	opts := defaultOpts()
	opts.isRefundable = true
	opts.isConsumable = true
	f := newFixture(t, opts)
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)
	require.NoError(t, f.purchase(1, 2, receiptKey, escrowKey))

	consume := func(quantity uint64, signer types.Pubkey) error {
		return f.execute(instruction.Consume{Quantity: quantity}, []runtime.AccountMeta{
			{Key: signer, IsSigner: true},
			{Key: f.listingKey},
			{Key: f.listingMint, IsWritable: true},
			{Key: f.mintAuthorityOf(f.listingMint)},
			{Key: f.license, IsWritable: true},
			{Key: consts.TokenProgram},
		})
	}

	require.NoError(t, consume(1, f.listingAuthority))
	license := f.bank.Account(f.license)
	assert.Equal(t, uint64(1), runtime.TokenAccountAmount(license.Data))
	assert.Equal(t, runtime.AccountStateFrozen, runtime.TokenAccountState(license.Data), "核销后剩余 license 仍不可转让")

	err := consume(1, f.purchaser)
	assert.ErrorIs(t, err, ErrUnauthorizedAuthority, "consume 由 listing authority 门禁")
}

func TestConsumeNonConsumableFails(t *testing.T) {
	opts := defaultOpts()
	opts.isRefundable = true
	f := newFixture(t, opts)
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)
	require.NoError(t, f.purchase(1, 1, receiptKey, escrowKey))

	err := f.execute(instruction.Consume{Quantity: 1}, []runtime.AccountMeta{
		{Key: f.listingAuthority, IsSigner: true},
		{Key: f.listingKey},
		{Key: f.listingMint, IsWritable: true},
		{Key: f.mintAuthorityOf(f.listingMint)},
		{Key: f.license, IsWritable: true},
		{Key: consts.TokenProgram},
	})
	assert.ErrorIs(t, err, ErrListingNotConsumable)
}

func TestListingMutationsRequireAuthority(t *testing.T) {
	f := newFixture(t, defaultOpts())

	// 非 authority 签名
	err := f.execute(instruction.SetListingPrice{Price: 1}, []runtime.AccountMeta{
		{Key: f.listingKey, IsWritable: true},
		{Key: f.purchaser, IsSigner: true},
	})
	assert.ErrorIs(t, err, ErrUnauthorizedAuthority)
	assert.Equal(t, uint64(1000), f.listing().Price, "越权修改后记录必须保持原值")

	// authority 在场但未签名
	err = f.execute(instruction.SetListingPrice{Price: 1}, []runtime.AccountMeta{
		{Key: f.listingKey, IsWritable: true},
		{Key: f.listingAuthority},
	})
	assert.ErrorIs(t, err, ErrMissingRequiredSignature)

	// 正常路径
	require.NoError(t, f.execute(instruction.SetListingPrice{Price: 2500}, []runtime.AccountMeta{
		{Key: f.listingKey, IsWritable: true},
		{Key: f.listingAuthority, IsSigner: true},
	}))
	assert.Equal(t, uint64(2500), f.listing().Price)
}

// 购买后改价不影响在途 receipt 的结算金额。
func TestCashUsesLockedPrice(t *testing.T) {
	f := newFixture(t, defaultOpts())
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)
	require.NoError(t, f.purchase(1, 1, receiptKey, escrowKey))

	require.NoError(t, f.execute(instruction.SetListingPrice{Price: 999_999}, []runtime.AccountMeta{
		{Key: f.listingKey, IsWritable: true},
		{Key: f.listingAuthority, IsSigner: true},
	}))

	require.NoError(t, f.cash(receiptKey, escrowKey))
	assert.Equal(t, uint64(800), f.amount(f.listingPaymentDeposit))
	assert.Equal(t, uint64(200), f.amount(f.charterPaymentDeposit))
}

func TestCharterAuthorityTransfer(t *testing.T) {
	f := newFixture(t, defaultOpts())
	newAuthority := pk(0x50)
	f.bank.SetAccount(&runtime.AccountInfo{Key: newAuthority, Owner: consts.SystemProgram})

	require.NoError(t, f.execute(instruction.SetCharterAuthority{}, []runtime.AccountMeta{
		{Key: f.charterKey, IsWritable: true},
		{Key: f.charterAuthority, IsSigner: true},
		{Key: newAuthority},
	}))

	// 旧 authority 失效
	err := f.execute(instruction.SetCharterUri{Uri: state.UriFromString("x")}, []runtime.AccountMeta{
		{Key: f.charterKey, IsWritable: true},
		{Key: f.charterAuthority, IsSigner: true},
	})
	assert.ErrorIs(t, err, ErrUnauthorizedAuthority)

	// 新 authority 生效
	require.NoError(t, f.execute(instruction.SetCharterUri{Uri: state.UriFromString("ipfs://v2")}, []runtime.AccountMeta{
		{Key: f.charterKey, IsWritable: true},
		{Key: newAuthority, IsSigner: true},
	}))
	charter, err := state.UnpackCharter(f.bank.Account(f.charterKey).Data)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://v2", charter.Uri.String())
}

func TestPurchaseRejectsNonceReuse(t *testing.T) {
	f := newFixture(t, defaultOpts())
	receiptKey, escrowKey := f.preparePurchase(1, 0xE1)
	require.NoError(t, f.purchase(1, 1, receiptKey, escrowKey))

	// 同一 nonce 派生同一 receipt 地址，已初始化账户被拒
	err := f.purchase(1, 1, receiptKey, escrowKey)
	assert.ErrorIs(t, err, ErrAccountAlreadyInitialized)
}
