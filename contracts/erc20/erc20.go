// Package erc20 decodes ERC-20 token transfers from transaction calldata.
//
// Overview:
//
//	An inbound token transfer on the source chain is a transaction to the
//	token contract calling transfer(address to, uint256 amount). The undo
//	protocol reads the recipient and amount from the proven calldata rather
//	than trusting the amount a requester claims.
package erc20

import (
	"bytes"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ContractABI is the JSON ABI of the decoded token methods:
	//   - transfer(address to, uint256 amount): move tokens from the caller
	//   - transferFrom(address from, address to, uint256 amount): move approved tokens
	ContractABI string = "[{\"constant\":false,\"inputs\":[{\"internalType\":\"address\",\"name\":\"to\",\"type\":\"address\"},{\"internalType\":\"uint256\",\"name\":\"amount\",\"type\":\"uint256\"}],\"name\":\"transfer\",\"outputs\":[{\"internalType\":\"bool\",\"name\":\"\",\"type\":\"bool\"}],\"payable\":false,\"stateMutability\":\"nonpayable\",\"type\":\"function\"},{\"constant\":false,\"inputs\":[{\"internalType\":\"address\",\"name\":\"from\",\"type\":\"address\"},{\"internalType\":\"address\",\"name\":\"to\",\"type\":\"address\"},{\"internalType\":\"uint256\",\"name\":\"amount\",\"type\":\"uint256\"}],\"name\":\"transferFrom\",\"outputs\":[{\"internalType\":\"bool\",\"name\":\"\",\"type\":\"bool\"}],\"payable\":false,\"stateMutability\":\"nonpayable\",\"type\":\"function\"}]"

	// ErrNotTransfer is returned for calldata that is not a token transfer.
	ErrNotTransfer = errors.New("not an erc20 transfer")
)

var (
	contractABI abi.ABI

	// Method IDs are the first 4 bytes of the keccak256 hash of the function signature.
	transferMethodID     []byte // transfer(address,uint256)
	transferFromMethodID []byte // transferFrom(address,address,uint256)
)

func init() {
	var err error
	contractABI, err = abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		panic(err)
	}

	for name, constID := range map[string]*[]byte{
		"transfer":     &transferMethodID,
		"transferFrom": &transferFromMethodID,
	} {
		method, exist := contractABI.Methods[name]
		if !exist {
			panic("unknown erc20 method")
		}
		*constID = make([]byte, len(method.ID))
		copy(*constID, method.ID)
	}
}

// Transfer is a decoded token movement.
type Transfer struct {
	From   common.Address // zero for transfer(), the caller pays
	To     common.Address
	Amount *big.Int
}

// DecodeTransfer parses transfer or transferFrom calldata.
func DecodeTransfer(input []byte) (*Transfer, error) {
	if len(input) < 4 {
		return nil, ErrNotTransfer
	}
	var (
		name   string
		method = input[:4]
	)
	switch {
	case bytes.Equal(method, transferMethodID):
		name = "transfer"
	case bytes.Equal(method, transferFromMethodID):
		name = "transferFrom"
	default:
		return nil, ErrNotTransfer
	}
	args, err := contractABI.Methods[name].Inputs.Unpack(input[4:])
	if err != nil {
		return nil, err
	}

	t := new(Transfer)
	if name == "transferFrom" {
		t.From, args = args[0].(common.Address), args[1:]
	}
	t.To = args[0].(common.Address)
	t.Amount = args[1].(*big.Int)
	return t, nil
}

// PackTransfer builds transfer(to, amount) calldata.
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return contractABI.Pack("transfer", to, amount)
}

// PackTransferFrom builds transferFrom(from, to, amount) calldata.
func PackTransferFrom(from, to common.Address, amount *big.Int) ([]byte, error) {
	return contractABI.Pack("transferFrom", from, to, amount)
}
