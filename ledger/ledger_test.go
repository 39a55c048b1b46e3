package ledger

import (
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	tokenA = common.HexToAddress("0xa000000000000000000000000000000000000000")
	alice  = common.HexToAddress("0x0000000000000000000000000000000000a11ce0")
	pool   = common.HexToAddress("0x0000000000000000000000000000000000009001")
)

func balance(t *testing.T, l Ledger, asset, addr common.Address) int64 {
	b, err := l.BalanceOf(asset, addr)
	require.NoError(t, err)
	return b.Int64()
}

func TestMemoryLedger_Transfer(t *testing.T) {
	l := NewMemoryLedger()
	require.NoError(t, l.Mint(tokenA, alice, big.NewInt(10)))
	require.NoError(t, l.Mint(NativeAsset, alice, big.NewInt(3)))

	require.NoError(t, l.Transfer(tokenA, alice, pool, big.NewInt(5)))
	require.Equal(t, int64(5), balance(t, l, tokenA, alice))
	require.Equal(t, int64(5), balance(t, l, tokenA, pool))

	// assets are kept apart
	require.Equal(t, int64(3), balance(t, l, NativeAsset, alice))
	require.Zero(t, balance(t, l, NativeAsset, pool))

	err := l.Transfer(tokenA, pool, alice, big.NewInt(6))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, int64(5), balance(t, l, tokenA, pool))

	require.ErrorIs(t, l.Transfer(tokenA, alice, pool, big.NewInt(-1)), ErrInvalidAmount)
	require.ErrorIs(t, l.Transfer(tokenA, alice, pool, nil), ErrInvalidAmount)
}

func TestMemoryLedger_Overflow(t *testing.T) {
	l := NewMemoryLedger()
	maxBalance := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	require.NoError(t, l.Mint(tokenA, pool, maxBalance))
	require.ErrorIs(t, l.Mint(tokenA, pool, big.NewInt(1)), ErrBalanceOverflow)

	require.NoError(t, l.Mint(tokenA, alice, big.NewInt(1)))
	require.ErrorIs(t, l.Transfer(tokenA, alice, pool, big.NewInt(1)), ErrBalanceOverflow)
	require.Equal(t, int64(1), balance(t, l, tokenA, alice))

	require.ErrorIs(t, l.Mint(tokenA, alice, new(big.Int).Lsh(big.NewInt(1), 256)), ErrInvalidAmount)
}

func TestMemoryLedger_ConcurrentTransfers(t *testing.T) {
	l := NewMemoryLedger()
	require.NoError(t, l.Mint(tokenA, alice, big.NewInt(100)))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Transfer(tokenA, alice, pool, big.NewInt(1))
		}()
	}
	wg.Wait()
	require.Zero(t, balance(t, l, tokenA, alice))
	require.Equal(t, int64(100), balance(t, l, tokenA, pool))
}

func TestMemoryLedger_TransferBatch(t *testing.T) {
	require := require.New(t)
	feeTo := common.HexToAddress("0x0000000000000000000000000000000000009002")
	l := NewMemoryLedger()
	require.NoError(l.Mint(tokenA, pool, big.NewInt(10)))
	require.NoError(l.Mint(NativeAsset, alice, big.NewInt(3)))

	refund := []Move{
		{Asset: tokenA, From: pool, To: alice, Amount: big.NewInt(5)},
		{Asset: NativeAsset, From: alice, To: feeTo, Amount: big.NewInt(4)},
	}
	// the second leg fails, the first one is not applied either
	require.ErrorIs(l.TransferBatch(refund), ErrInsufficientBalance)
	require.Equal(int64(10), balance(t, l, tokenA, pool))
	require.Zero(balance(t, l, tokenA, alice))

	refund[1].Amount = big.NewInt(3)
	require.NoError(l.TransferBatch(refund))
	require.Equal(int64(5), balance(t, l, tokenA, pool))
	require.Equal(int64(5), balance(t, l, tokenA, alice))
	require.Equal(int64(3), balance(t, l, NativeAsset, feeTo))
	require.Zero(balance(t, l, NativeAsset, alice))

	// later legs see the effect of earlier ones
	chained := []Move{
		{Asset: tokenA, From: alice, To: feeTo, Amount: big.NewInt(5)},
		{Asset: tokenA, From: feeTo, To: pool, Amount: big.NewInt(5)},
	}
	require.NoError(l.TransferBatch(chained))
	require.Equal(int64(10), balance(t, l, tokenA, pool))

	require.NoError(l.TransferBatch(Reverse(chained)))
	require.NoError(l.TransferBatch(Reverse(refund)))
	require.Equal(int64(10), balance(t, l, tokenA, pool))
	require.Equal(int64(3), balance(t, l, NativeAsset, alice))
	require.Zero(balance(t, l, NativeAsset, feeTo))

	require.ErrorIs(l.TransferBatch([]Move{{Asset: tokenA, From: pool, To: alice}}), ErrInvalidAmount)
}

func TestMemoryLedger_BatchIsNeverSeenHalfApplied(t *testing.T) {
	l := NewMemoryLedger()
	require.NoError(t, l.Mint(tokenA, pool, big.NewInt(1000)))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = l.TransferBatch([]Move{
				{Asset: tokenA, From: pool, To: alice, Amount: big.NewInt(1)},
				{Asset: tokenA, From: alice, To: pool, Amount: big.NewInt(1)},
			})
		}
		close(done)
	}()
	for {
		select {
		case <-done:
			wg.Wait()
			return
		default:
			require.Equal(t, int64(1000), balance(t, l, tokenA, pool))
		}
	}
}
