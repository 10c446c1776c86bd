package program

import (
	"fmt"

	"settlement-sol/internal/program/instruction"
	"settlement-sol/internal/program/runtime"
	"settlement-sol/internal/types"
)

// Env 是一次指令执行的能力上下文：程序自身身份 + token 划转权限。
// 派生地址一律在执行中按种子重算，Env 不缓存任何派生键。
type Env struct {
	ProgramID types.Pubkey
	Token     runtime.TokenEngine
}

// Process 是结算程序入口：字节 → 指令 → 校验 → 结算。
// 任一步出错即返回，宿主负责回滚本指令内的全部写入。
func Process(env *Env, accounts []*runtime.AccountInfo, data []byte) error {
	ix, err := instruction.Decode(data)
	if err != nil {
		return err
	}

	switch ix := ix.(type) {
	case instruction.InitCharter:
		return processInitCharter(env, accounts, ix)
	case instruction.SetCharterRates:
		return processSetCharterRates(env, accounts, ix)
	case instruction.SetCharterDeposits:
		return processSetCharterDeposits(env, accounts)
	case instruction.SetCharterAuthority:
		return processSetCharterAuthority(env, accounts)
	case instruction.SetCharterUri:
		return processSetCharterUri(env, accounts, ix)
	case instruction.InitListing:
		return processInitListing(env, accounts, ix)
	case instruction.SetListingPrice:
		return processSetListingPrice(env, accounts, ix)
	case instruction.SetListingUri:
		return processSetListingUri(env, accounts, ix)
	case instruction.SetListingAvailability:
		return processSetListingAvailability(env, accounts, ix)
	case instruction.SetListingDeposits:
		return processSetListingDeposits(env, accounts)
	case instruction.SetListingAuthority:
		return processSetListingAuthority(env, accounts)
	case instruction.Purchase:
		return processPurchase(env, accounts, ix)
	case instruction.SetReceiptCashable:
		return processSetReceiptCashable(env, accounts)
	case instruction.Cash:
		return processCash(env, accounts)
	case instruction.Cancel:
		return processCancel(env, accounts)
	case instruction.Consume:
		return processConsume(env, accounts, ix)
	}
	return fmt.Errorf("%w: unhandled instruction %T", instruction.ErrInvalidInstruction, ix)
}
