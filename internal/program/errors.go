package program

import "errors"

// 授权失败 / 引用完整性失败 / 业务规则失败各自有独立哨兵，便于按关系定位。
// 指令内任何错误都会让宿主回滚全部写入，不存在部分提交。
var (
	// 授权失败
	ErrMissingRequiredSignature = errors.New("missing required signature")
	ErrIllegalOwner             = errors.New("account has illegal owner")
	ErrUnauthorizedAuthority    = errors.New("unauthorized authority")
	ErrInvalidArgument          = errors.New("invalid argument")

	// 引用完整性失败（按关系命名）
	ErrListingHasUnexpectedCharter      = errors.New("listing has unexpected charter")
	ErrListingHasUnexpectedMint         = errors.New("listing has unexpected mint")
	ErrListingHasUnexpectedDeposit      = errors.New("listing has unexpected deposit")
	ErrCharterHasUnexpectedMint         = errors.New("charter has unexpected mint")
	ErrCharterHasUnexpectedDeposit      = errors.New("charter has unexpected deposit")
	ErrReceiptHasUnexpectedListing      = errors.New("receipt has unexpected listing")
	ErrReceiptHasUnexpectedPurchaser    = errors.New("receipt has unexpected purchaser")
	ErrReceiptHasUnexpectedCashier      = errors.New("receipt has unexpected cashier")
	ErrReceiptHasUnexpectedTokenAccount = errors.New("receipt has unexpected token account")

	// 业务规则失败
	ErrTokenMintNotSupported     = errors.New("token mint not supported")
	ErrAccountAlreadyInitialized = errors.New("account already initialized")
	ErrAccountNotInitialized     = errors.New("account not initialized")
	ErrListingUnavailable        = errors.New("listing unavailable")
	ErrListingNotConsumable      = errors.New("listing not consumable")
	ErrReceiptNotCashable        = errors.New("receipt not cashable")
	ErrAmountOverflow            = errors.New("amount overflow")
	ErrNotEnoughAccounts         = errors.New("not enough accounts")
)
