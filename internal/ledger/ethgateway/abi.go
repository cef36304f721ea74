package ethgateway

import (
	"strings"

	"github.com/dmitrijs2005/giftvault/internal/ledger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const giftCardABI = `[
{"type":"function","name":"mintGiftCard","stateMutability":"nonpayable","outputs":[],"inputs":[
 {"name":"user","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"vendor","type":"string"},
 {"name":"expiryDate","type":"uint256"},{"name":"encryptedData","type":"string"}]},
{"type":"function","name":"sendGiftCard","stateMutability":"nonpayable","outputs":[],"inputs":[
 {"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}]},
{"type":"function","name":"getUserGiftCards","stateMutability":"view","inputs":[{"name":"user","type":"address"}],
 "outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"getTokenMetadata","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],
 "outputs":[{"name":"vendor","type":"string"},{"name":"expiryDate","type":"uint256"},{"name":"encryptedData","type":"string"}]}
]`

const onboardingABI = `[
{"type":"function","name":"applyForVendor","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"approveVendor","stateMutability":"nonpayable","inputs":[{"name":"vendor","type":"address"}],"outputs":[]},
{"type":"function","name":"rejectVendor","stateMutability":"nonpayable","inputs":[{"name":"vendor","type":"address"}],"outputs":[]},
{"type":"function","name":"isVendor","stateMutability":"view","inputs":[{"name":"account","type":"address"}],
 "outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"hasAppliedForVendor","stateMutability":"view","inputs":[{"name":"account","type":"address"}],
 "outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getVendorApplications","stateMutability":"view","inputs":[],
 "outputs":[{"name":"","type":"address[]"}]},
{"type":"function","name":"hasRole","stateMutability":"view","inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],
 "outputs":[{"name":"","type":"bool"}]}
]`

const vendorEntityABI = `[
{"type":"function","name":"mintVoucherOrCoupon","stateMutability":"nonpayable","outputs":[],"inputs":[
 {"name":"to","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"vendor","type":"string"},
 {"name":"value","type":"uint256"},{"name":"expiryDate","type":"uint256"},{"name":"tokenType","type":"uint8"},
 {"name":"remainingUses","type":"uint256"},{"name":"redeemableItems","type":"string[]"},
 {"name":"encryptedData","type":"string"},{"name":"amount","type":"uint256"}]},
{"type":"function","name":"getTokensByVendor","stateMutability":"view","inputs":[{"name":"vendor","type":"address"}],
 "outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"getTokenMetadata","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],
 "outputs":[{"name":"","type":"tuple","components":[
  {"name":"vendor","type":"string"},{"name":"value","type":"uint256"},{"name":"expiryDate","type":"uint256"},
  {"name":"tokenType","type":"uint8"},{"name":"remainingUses","type":"uint256"},{"name":"redeemableItems","type":"string[]"},
  {"name":"encryptedData","type":"string"},{"name":"amount","type":"uint256"}]}]}
]`

var (
	giftCardContract     = mustParseABI(giftCardABI)
	onboardingContract   = mustParseABI(onboardingABI)
	vendorEntityContract = mustParseABI(vendorEntityABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// roleID maps a role to its AccessControl identifier. The admin role is
// DEFAULT_ADMIN_ROLE (all zero), other roles are keccak256 of their name.
func roleID(role ledger.Role) [32]byte {
	if role == ledger.RoleAdmin {
		return common.Hash{}
	}
	return crypto.Keccak256Hash([]byte(role))
}
