package consts

const (
	ChainIDSolana uint32 = 100000
)

// PDA 种子前缀。派生地址永远按这些前缀现场重算比对，不落盘存储。
var (
	// listing mint 的铸币/冻结权限：["mint_authority", mint]
	SeedMintAuthority = []byte("mint_authority")

	// receipt 账户地址：["receipt", listing, nonce_le8]
	SeedReceipt = []byte("receipt")

	// receipt 对应托管资金的签名权限：["escrow", receipt]
	SeedEscrow = []byte("escrow")
)
