package erc20

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestMethodIDs(t *testing.T) {
	require.Equal(t, crypto.Keccak256([]byte("transfer(address,uint256)"))[:4], transferMethodID)
	require.Equal(t, crypto.Keccak256([]byte("transferFrom(address,address,uint256)"))[:4], transferFromMethodID)
}

func TestDecodeTransfer(t *testing.T) {
	pool := common.HexToAddress("0x5000000000000000000000000000000000000005")
	alice := common.HexToAddress("0xa11ce00000000000000000000000000000000000")

	input, err := PackTransfer(pool, big.NewInt(5))
	require.NoError(t, err)
	tr, err := DecodeTransfer(input)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, tr.From)
	require.Equal(t, pool, tr.To)
	require.Equal(t, int64(5), tr.Amount.Int64())

	input, err = PackTransferFrom(alice, pool, big.NewInt(7))
	require.NoError(t, err)
	tr, err = DecodeTransfer(input)
	require.NoError(t, err)
	require.Equal(t, alice, tr.From)
	require.Equal(t, pool, tr.To)
	require.Equal(t, int64(7), tr.Amount.Int64())
}

func TestDecodeTransfer_Rejects(t *testing.T) {
	_, err := DecodeTransfer(nil)
	require.ErrorIs(t, err, ErrNotTransfer)

	_, err = DecodeTransfer([]byte{0xde, 0xad, 0xbe, 0xef})
	require.ErrorIs(t, err, ErrNotTransfer)

	// right selector, truncated arguments
	_, err = DecodeTransfer(append(common.CopyBytes(transferMethodID), make([]byte, 31)...))
	require.Error(t, err)
}
