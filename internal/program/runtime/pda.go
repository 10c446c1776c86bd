package runtime

import (
	"encoding/binary"
	"fmt"

	"settlement-sol/internal/consts"
	"settlement-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
)

// 派生地址（PDA）只按文档化的种子序列现场重算，从不存储后信任。
// 种子公式：
//   mint authority:   ["mint_authority", mint]
//   receipt:          ["receipt", listing, nonce_le8]
//   escrow authority: ["escrow", receipt]

func findProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	pub, bump, err := common.FindProgramAddress(seeds, common.PublicKeyFromBytes(programID.Bytes()))
	if err != nil {
		return types.Pubkey{}, 0, fmt.Errorf("find program address: %w", err)
	}
	var p types.Pubkey
	copy(p[:], pub.Bytes())
	return p, bump, nil
}

// MintAuthority 派生某 mint 的铸币/冻结权限地址。
func MintAuthority(programID, mint types.Pubkey) (types.Pubkey, uint8, error) {
	return findProgramAddress([][]byte{consts.SeedMintAuthority, mint.Bytes()}, programID)
}

// ReceiptAddress 由 listing 与调用方提供的 nonce 派生 receipt 账户地址。
// nonce 的唯一性由调用方负责，重复的 nonce 会派生出同一地址。
func ReceiptAddress(programID, listing types.Pubkey, nonce uint64) (types.Pubkey, uint8, error) {
	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], nonce)
	return findProgramAddress([][]byte{consts.SeedReceipt, listing.Bytes(), nonceBytes[:]}, programID)
}

// EscrowAuthority 派生 receipt 托管资金的签名权限地址。
func EscrowAuthority(programID, receipt types.Pubkey) (types.Pubkey, uint8, error) {
	return findProgramAddress([][]byte{consts.SeedEscrow, receipt.Bytes()}, programID)
}
