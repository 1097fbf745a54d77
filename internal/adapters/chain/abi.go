package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const demoNFTABIJSON = `[
	{"type":"function","name":"mint","stateMutability":"payable","inputs":[{"name":"to","type":"address"}],"outputs":[]},
	{"type":"function","name":"mintForFree","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"}],"outputs":[]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"mintPrice","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const paymasterABIJSON = `[
	{"type":"function","name":"startGasSession","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"},{"name":"duration","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getSessionStatus","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"active","type":"bool"},{"name":"expiresAt","type":"uint256"}]}
]`

var (
	DemoNFTABI   = mustParseABI(demoNFTABIJSON)
	PaymasterABI = mustParseABI(paymasterABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("parse contract abi: " + err.Error())
	}
	return parsed
}
