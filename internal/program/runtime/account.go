package runtime

import "settlement-sol/internal/types"

// AccountInfo 是宿主 VM 按指令传入的账户视图。
// 调用方完全控制账户列表，所以任何字段在校验通过前都不可信。
type AccountInfo struct {
	Key        types.Pubkey
	Lamports   uint64
	Data       []byte
	Owner      types.Pubkey // 账户的 owner program
	IsSigner   bool
	IsWritable bool
}

// AccountMeta 描述一次指令调用中账户的引用方式。
type AccountMeta struct {
	Key        types.Pubkey
	IsSigner   bool
	IsWritable bool
}
