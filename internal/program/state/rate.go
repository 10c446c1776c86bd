package state

import (
	"fmt"
	"math"
)

// RateLen 是 Rate 的 borsh 编码长度（u64 + u8）。
const RateLen = 9

// Rate 是定点数：实际值 = Amount / 10^Decimals。
// 与 token program 的 amount/decimals 约定一致。
type Rate struct {
	Amount   uint64
	Decimals uint8
}

// Float 将定点数转为 float64。
// 仅允许在费率乘法的瞬间转浮点，结果立即截断回整数 token 单位。
// 截断顺序是与已部署链上状态的兼容性契约，不得改为四舍五入。
func (r Rate) Float() float64 {
	return float64(r.Amount) / math.Pow10(int(r.Decimals))
}

// Validate 校验比例型费率必须落在 [0,1]。
func (r Rate) Validate() error {
	f := r.Float()
	if f < 0 || f > 1 {
		return fmt.Errorf("rate out of range [0,1]: %d/10^%d", r.Amount, r.Decimals)
	}
	return nil
}

// SplitByRate 按 contribution 费率切分 total：
//
//	deposit = trunc((1 - rate) * total)
//	contribution = total - deposit
//
// 恒有 deposit + contribution == total；浮点截断最多损失 1 个最小单位，
// 损失的那 1 单位落在 contribution 一侧（deposit 向下取整）。
func SplitByRate(total uint64, rate Rate) (deposit, contribution uint64) {
	deposit = uint64(float64(total) * (1.0 - rate.Float()))
	contribution = total - deposit
	return deposit, contribution
}

// ApplyRate 计算 trunc(rate * amount)，用于由 contribution 推导投票 token 铸造量。
func ApplyRate(amount uint64, rate Rate) uint64 {
	return uint64(rate.Float() * float64(amount))
}
