package evm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// erc20ABIJSON is the subset of the ERC20 interface this system touches.
const erc20ABIJSON = `[
	{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse erc20 abi: %v", err))
	}
	return parsed
}

// packCall encodes a function call into ERC20 calldata.
func packCall(fn string, args ...interface{}) ([]byte, error) {
	data, err := erc20ABI.Pack(fn, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", fn, err)
	}
	return data, nil
}

// unpackResult decodes the return data of a read-only function.
func unpackResult(fn string, data []byte) ([]interface{}, error) {
	out, err := erc20ABI.Unpack(fn, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", fn, err)
	}
	return out, nil
}
