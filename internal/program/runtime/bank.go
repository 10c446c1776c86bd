package runtime

import (
	"fmt"

	"settlement-sol/internal/types"
)

// Bank 是测试 harness 中的账户台账，模拟宿主 VM 的事务性执行：
// 指令要么完整提交，要么在出错时把涉及的账户全部回滚，不存在部分写入。
type Bank struct {
	accounts map[types.Pubkey]*AccountInfo
}

func NewBank() *Bank {
	return &Bank{accounts: make(map[types.Pubkey]*AccountInfo)}
}

// SetAccount 登记或覆盖一个账户。
func (b *Bank) SetAccount(info *AccountInfo) {
	b.accounts[info.Key] = info
}

func (b *Bank) Account(key types.Pubkey) *AccountInfo {
	return b.accounts[key]
}

type accountSnapshot struct {
	info     *AccountInfo
	lamports uint64
	owner    types.Pubkey
	data     []byte
}

// Execute 按账户引用列表构造指令视图并运行 process。
// 运行前对涉及账户做快照，process 返回错误时全部恢复（模拟指令级原子回滚）。
func (b *Bank) Execute(metas []AccountMeta, process func(accounts []*AccountInfo) error) error {
	accounts := make([]*AccountInfo, 0, len(metas))
	snapshots := make([]accountSnapshot, 0, len(metas))
	seen := make(map[types.Pubkey]bool, len(metas))

	for _, meta := range metas {
		info, ok := b.accounts[meta.Key]
		if !ok {
			return fmt.Errorf("bank: unknown account %s", meta.Key)
		}
		info.IsSigner = meta.IsSigner
		info.IsWritable = meta.IsWritable
		accounts = append(accounts, info)

		if !seen[meta.Key] {
			seen[meta.Key] = true
			snapshots = append(snapshots, accountSnapshot{
				info:     info,
				lamports: info.Lamports,
				owner:    info.Owner,
				data:     append([]byte(nil), info.Data...),
			})
		}
	}

	if err := process(accounts); err != nil {
		for _, snap := range snapshots {
			snap.info.Lamports = snap.lamports
			snap.info.Owner = snap.owner
			snap.info.Data = snap.data
		}
		return err
	}
	return nil
}
