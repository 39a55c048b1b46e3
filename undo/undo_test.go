package undo_test

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-ethrelay/contracts/erc20"
	"github.com/rony4d/go-ethrelay/ethrelay"
	"github.com/rony4d/go-ethrelay/evmcore"
	"github.com/rony4d/go-ethrelay/integration"
	"github.com/rony4d/go-ethrelay/inter"
	"github.com/rony4d/go-ethrelay/ledger"
	"github.com/rony4d/go-ethrelay/relayerr"
	"github.com/rony4d/go-ethrelay/undo"
)

var (
	token = evmcore.FakeAddress(2000)
	alice = evmcore.FakeAddress(1)
	bob   = evmcore.FakeAddress(2)
	carol = evmcore.FakeAddress(3)
)

// sent holds the transactions mined into the first relayed block.
type sent struct {
	toPool      *types.Transaction // alice: transfer(pool, 5)
	toBob       *types.Transaction // alice: transfer(bob, 5)
	native      *types.Transaction // alice: 7 wei to the pool
	fromCarol   *types.Transaction // alice: transferFrom(carol, pool, 5)
	unproven    *types.Transaction // alice: transfer(pool, 3), never proven
	block       idx.Block
	requiredFee *big.Int
	afterWindow inter.Timestamp
}

// newNet relays a block of transfers, finalizes it and proves every
// transaction in it except sent.unproven.
func newNet(t *testing.T, cfg integration.FakeNetConfig, l ledger.Ledger) (*integration.FakeNet, *sent) {
	t.Helper()
	require := require.New(t)

	net, err := integration.NewFakeNet(cfg, l)
	require.NoError(err)
	t.Cleanup(func() { net.Close() })

	require.NoError(net.SubmitDataset())
	require.NoError(net.Stake(big.NewInt(1e18)))

	key := evmcore.FakeKey(1)
	s := &sent{}
	s.toPool, err = net.SendToken(key, token, integration.FakePool, big.NewInt(5))
	require.NoError(err)
	s.toBob, err = net.SendToken(key, token, bob, big.NewInt(5))
	require.NoError(err)
	s.native = net.SendTx(key, integration.FakePool, big.NewInt(7), nil)
	data, err := erc20.PackTransferFrom(carol, integration.FakePool, big.NewInt(5))
	require.NoError(err)
	s.fromCarol = net.SendTx(key, token, new(big.Int), data)
	s.unproven, err = net.SendToken(key, token, integration.FakePool, big.NewInt(3))
	require.NoError(err)

	blocks, err := net.MineAndRelay(3)
	require.NoError(err)
	require.NoError(net.Finalize())
	s.block = idx.Block(blocks[0].NumberU64())

	for _, tx := range []*types.Transaction{s.toPool, s.toBob, s.native, s.fromCarol} {
		_, err := net.Prove(tx.Hash())
		require.NoError(err)
	}
	s.requiredFee = net.Txs.GetRequiredVerificationFee()

	h, err := net.Headers.CanonicalHeader(s.block)
	require.NoError(err)
	s.afterWindow = h.FinalizedAt + inter.Timestamp(net.Rules.Undo.Window) + 1
	return net, s
}

func fundedLedger(t *testing.T) *ledger.MemoryLedger {
	l := ledger.NewMemoryLedger()
	require.NoError(t, l.Mint(token, integration.FakePool, big.NewInt(100)))
	require.NoError(t, l.Mint(ledger.NativeAsset, integration.FakePool, big.NewInt(100)))
	require.NoError(t, l.Mint(ledger.NativeAsset, alice, big.NewInt(1e18)))
	return l
}

func balance(t *testing.T, l ledger.Ledger, asset, addr common.Address) int64 {
	b, err := l.BalanceOf(asset, addr)
	require.NoError(t, err)
	return b.Int64()
}

func TestUndoTransfer_rejections(t *testing.T) {
	funds := fundedLedger(t)
	net, s := newNet(t, integration.DefaultFakeNetConfig(), funds)
	fee := s.requiredFee

	tests := []struct {
		name     string
		tx       *types.Transaction
		amount   *big.Int
		by       common.Address
		block    idx.Block
		fee      *big.Int
		want     error
		category relayerr.Category
	}{
		{"fee too low", s.toPool, big.NewInt(5), alice, s.block, new(big.Int).Sub(fee, big.NewInt(1)), undo.ErrFeeTooLow, relayerr.EconomicGating},
		{"no fee", s.toPool, big.NewInt(5), alice, s.block, nil, undo.ErrFeeTooLow, relayerr.EconomicGating},
		{"unproven transaction", s.unproven, big.NewInt(3), alice, s.block, fee, undo.ErrProofMissing, relayerr.InputRejected},
		{"wrong block", s.toPool, big.NewInt(5), alice, s.block + 1, fee, undo.ErrProofMissing, relayerr.InputRejected},
		{"not the sender", s.toPool, big.NewInt(5), bob, s.block, fee, undo.ErrNotSender, relayerr.InputRejected},
		{"someone else's funds", s.fromCarol, big.NewInt(5), alice, s.block, fee, undo.ErrNotSender, relayerr.InputRejected},
		{"not paid to the pool", s.toBob, big.NewInt(5), alice, s.block, fee, undo.ErrNotPoolTransfer, relayerr.InputRejected},
		{"amount differs", s.toPool, big.NewInt(4), alice, s.block, fee, undo.ErrAmountMismatch, relayerr.ProofRejected},
		{"no amount", s.toPool, nil, alice, s.block, fee, undo.ErrAmountMismatch, relayerr.ProofRejected},
		{"native amount differs", s.native, big.NewInt(5), alice, s.block, fee, undo.ErrAmountMismatch, relayerr.ProofRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := inter.UndoTicket{TxHash: tt.tx.Hash(), Amount: tt.amount, RequestedBy: tt.by}
			err := net.Undo.UndoTransfer(ticket, tt.block, tt.fee)
			require.ErrorIs(t, err, tt.want)
			category, ok := relayerr.CategoryOf(err)
			require.True(t, ok)
			require.Equal(t, tt.category, category)

			done, err := net.Undo.IsUndone(tt.tx.Hash())
			require.NoError(t, err)
			require.False(t, done)
		})
	}

	require.Equal(t, int64(100), balance(t, funds, token, integration.FakePool))
	require.Equal(t, int64(100), balance(t, funds, ledger.NativeAsset, integration.FakePool))
	require.Equal(t, int64(0), balance(t, funds, ledger.NativeAsset, integration.FakeFeeRecipient))
}

func TestUndoTransfer_tokenAndNative(t *testing.T) {
	require := require.New(t)
	funds := fundedLedger(t)
	net, s := newNet(t, integration.DefaultFakeNetConfig(), funds)

	require.NoError(net.Undo.UndoTransfer(inter.UndoTicket{TxHash: s.toPool.Hash(), Amount: big.NewInt(5), RequestedBy: alice}, s.block, s.requiredFee))
	require.Equal(int64(5), balance(t, funds, token, alice))
	require.Equal(int64(95), balance(t, funds, token, integration.FakePool))

	// overpaying is accepted, the whole payment goes to the fee recipient
	overpaid := new(big.Int).Mul(s.requiredFee, big.NewInt(2))
	require.NoError(net.Undo.UndoTransfer(inter.UndoTicket{TxHash: s.native.Hash(), Amount: big.NewInt(7), RequestedBy: alice}, s.block, overpaid))
	require.Equal(int64(93), balance(t, funds, ledger.NativeAsset, integration.FakePool))

	paid := new(big.Int).Add(s.requiredFee, overpaid)
	require.Equal(paid.Int64(), balance(t, funds, ledger.NativeAsset, integration.FakeFeeRecipient))

	rec, err := net.Undo.UndoRecord(s.native.Hash())
	require.NoError(err)
	require.Equal(ledger.NativeAsset, rec.Asset)
	require.Equal(int64(7), rec.Amount.Int64())
	require.Zero(overpaid.Cmp(rec.FeePaid))

	txrec, err := net.Txs.TxRecord(s.native.Hash())
	require.NoError(err)
	require.Zero(overpaid.Cmp(txrec.FeePaid))

	// replay is reported before anything else is looked at
	err = net.Undo.UndoTransfer(inter.UndoTicket{TxHash: s.toPool.Hash(), Amount: big.NewInt(1), RequestedBy: bob}, s.block+1, nil)
	require.ErrorIs(err, undo.ErrAlreadyUndone)
	require.Equal(int64(5), balance(t, funds, token, alice))
}

func TestUndoTransfer_window(t *testing.T) {
	require := require.New(t)
	funds := fundedLedger(t)
	net, s := newNet(t, integration.DefaultFakeNetConfig(), funds)

	net.Clock.Set(s.afterWindow)
	err := net.Undo.UndoTransfer(inter.UndoTicket{TxHash: s.toPool.Hash(), Amount: big.NewInt(5), RequestedBy: alice}, s.block, s.requiredFee)
	require.ErrorIs(err, undo.ErrOutsideWindow)
	require.Equal(int64(100), balance(t, funds, token, integration.FakePool))
}

func TestUndoTransfer_windowOpensAtFinalization(t *testing.T) {
	require := require.New(t)
	funds := fundedLedger(t)
	net, err := integration.NewFakeNet(integration.DefaultFakeNetConfig(), funds)
	require.NoError(err)
	defer net.Close()
	require.NoError(net.SubmitDataset())
	require.NoError(net.Stake(big.NewInt(1e18)))

	tx, err := net.SendToken(evmcore.FakeKey(1), token, integration.FakePool, big.NewInt(5))
	require.NoError(err)
	blocks, err := net.MineAndRelay(3)
	require.NoError(err)
	number := idx.Block(blocks[0].NumberU64())
	h, err := net.Headers.CanonicalHeader(number)
	require.NoError(err)

	// finalized long after the lock expired, later than a whole window
	finalized := h.LockedUntil + 2*inter.Timestamp(net.Rules.Undo.Window)
	net.Clock.Set(finalized)
	require.NoError(net.Headers.Finalize(number))
	_, err = net.Prove(tx.Hash())
	require.NoError(err)

	h, err = net.Headers.CanonicalHeader(number)
	require.NoError(err)
	require.Equal(finalized, h.FinalizedAt)

	ticket := inter.UndoTicket{TxHash: tx.Hash(), Amount: big.NewInt(5), RequestedBy: alice}
	net.Clock.Set(finalized + inter.Timestamp(net.Rules.Undo.Window))
	require.NoError(net.Undo.UndoTransfer(ticket, number, net.Txs.GetRequiredVerificationFee()))
	require.Equal(int64(95), balance(t, funds, token, integration.FakePool))
}

func TestUndoTransfer_concurrentRequests(t *testing.T) {
	require := require.New(t)
	funds := fundedLedger(t)
	net, s := newNet(t, integration.DefaultFakeNetConfig(), funds)

	const workers = 8
	ticket := inter.UndoTicket{TxHash: s.toPool.Hash(), Amount: big.NewInt(5), RequestedBy: alice}
	errs := make([]error, workers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = net.Undo.UndoTransfer(ticket, s.block, s.requiredFee)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(err, undo.ErrAlreadyUndone)
	}
	require.Equal(1, succeeded)
	require.Equal(int64(95), balance(t, funds, token, integration.FakePool))
	require.Equal(int64(5), balance(t, funds, token, alice))
	require.Equal(s.requiredFee.Int64(), balance(t, funds, ledger.NativeAsset, integration.FakeFeeRecipient))
}

func TestUndoTransfer_amountSource(t *testing.T) {
	t.Run("value", func(t *testing.T) {
		cfg := integration.DefaultFakeNetConfig()
		cfg.AmountSource = ethrelay.AmountFromValue
		net, s := newNet(t, cfg, fundedLedger(t))

		// a token transfer pays the token contract, not the pool
		err := net.Undo.UndoTransfer(inter.UndoTicket{TxHash: s.toPool.Hash(), Amount: big.NewInt(5), RequestedBy: alice}, s.block, s.requiredFee)
		require.ErrorIs(t, err, undo.ErrNotPoolTransfer)
		require.NoError(t, net.Undo.UndoTransfer(inter.UndoTicket{TxHash: s.native.Hash(), Amount: big.NewInt(7), RequestedBy: alice}, s.block, s.requiredFee))
	})
	t.Run("calldata", func(t *testing.T) {
		cfg := integration.DefaultFakeNetConfig()
		cfg.AmountSource = ethrelay.AmountFromCalldata
		net, s := newNet(t, cfg, fundedLedger(t))

		err := net.Undo.UndoTransfer(inter.UndoTicket{TxHash: s.native.Hash(), Amount: big.NewInt(7), RequestedBy: alice}, s.block, s.requiredFee)
		require.ErrorIs(t, err, undo.ErrAmountMismatch)
		require.NoError(t, net.Undo.UndoTransfer(inter.UndoTicket{TxHash: s.toPool.Hash(), Amount: big.NewInt(5), RequestedBy: alice}, s.block, s.requiredFee))
	})
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Transfer(asset, from, to common.Address, amount *big.Int) error {
	args := m.Called(asset, from, to, amount)
	return args.Error(0)
}

func (m *mockLedger) BalanceOf(asset, addr common.Address) (*big.Int, error) {
	args := m.Called(asset, addr)
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockLedger) TransferBatch(moves []ledger.Move) error {
	args := m.Called(moves)
	return args.Error(0)
}

// refundOf matches the batch paying amount of token back to alice plus the fee.
func refundOf(amount int64) interface{} {
	return mock.MatchedBy(func(moves []ledger.Move) bool {
		return len(moves) == 2 &&
			moves[0] == ledger.Move{Asset: token, From: integration.FakePool, To: alice, Amount: moves[0].Amount} &&
			moves[0].Amount.Cmp(big.NewInt(amount)) == 0 &&
			moves[1].Asset == ledger.NativeAsset && moves[1].From == alice && moves[1].To == integration.FakeFeeRecipient
	})
}

func TestUndoTransfer_ledgerRejection(t *testing.T) {
	require := require.New(t)
	l := new(mockLedger)
	net, s := newNet(t, integration.DefaultFakeNetConfig(), l)

	failed := make(chan inter.UndoFailed, 1)
	sub := net.Undo.SubscribeUndoFailed(failed)
	defer sub.Unsubscribe()

	l.On("TransferBatch", refundOf(5)).Return(errors.New("account frozen")).Once()

	ticket := inter.UndoTicket{TxHash: s.toPool.Hash(), Amount: big.NewInt(5), RequestedBy: alice}
	err := net.Undo.UndoTransfer(ticket, s.block, s.requiredFee)
	require.ErrorIs(err, undo.ErrLedgerRejected)
	l.AssertExpectations(t)
	// refund and fee move together, no single leg is ever applied on its own
	l.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	select {
	case ev := <-failed:
		require.Equal(ticket.TxHash, ev.TxHash)
		require.Contains(ev.Reason, "account frozen")
	case <-time.After(time.Second):
		t.Fatal("no UndoFailed event")
	}

	// nothing was consumed, a later attempt may succeed
	done, err := net.Undo.IsUndone(ticket.TxHash)
	require.NoError(err)
	require.False(done)

	l.On("TransferBatch", refundOf(5)).Return(nil).Once()
	require.NoError(net.Undo.UndoTransfer(ticket, s.block, s.requiredFee))
	l.AssertExpectations(t)
	l.AssertNumberOfCalls(t, "TransferBatch", 2)
}
