package txverify_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-ethrelay/evmcore"
	"github.com/rony4d/go-ethrelay/integration"
	"github.com/rony4d/go-ethrelay/inter"
	"github.com/rony4d/go-ethrelay/txverify"
)

var (
	alice = evmcore.FakeAddress(1)
	bob   = evmcore.FakeAddress(2)
)

type testNet struct {
	*integration.FakeNet
	txs   []*types.Transaction
	block *evmcore.EvmBlock
}

// newTestNet relays one block with three transactions followed by two empty
// ones. Nothing is finalized.
func newTestNet(t *testing.T, cfg integration.FakeNetConfig) *testNet {
	t.Helper()
	require := require.New(t)

	net, err := integration.NewFakeNet(cfg, nil)
	require.NoError(err)
	t.Cleanup(func() { net.Close() })
	require.NoError(net.SubmitDataset())
	require.NoError(net.Stake(big.NewInt(1e18)))

	tn := &testNet{FakeNet: net}
	for i := 0; i < 3; i++ {
		tn.txs = append(tn.txs, net.SendTx(evmcore.FakeKey(1), bob, big.NewInt(int64(i+1)), []byte{byte(i)}))
	}
	blocks, err := net.MineAndRelay(3)
	require.NoError(err)
	tn.block = blocks[0]
	return tn
}

func (tn *testNet) proof(t *testing.T, index int) inter.TxProof {
	p, err := tn.block.ProveTx(index)
	require.NoError(t, err)
	return *p
}

func TestSubmitTxProof_requiresFinalHeader(t *testing.T) {
	require := require.New(t)
	tn := newTestNet(t, integration.DefaultFakeNetConfig())

	err := tn.Txs.SubmitTxProof(tn.proof(t, 0))
	require.ErrorIs(err, txverify.ErrHeaderNotFinal)

	require.NoError(tn.Finalize())
	p := tn.proof(t, 0)
	p.BlockNumber += 10
	require.ErrorIs(tn.Txs.SubmitTxProof(p), txverify.ErrHeaderNotFinal)

	require.NoError(tn.Txs.SubmitTxProof(tn.proof(t, 0)))
}

func TestSubmitTxProof_invalidProofs(t *testing.T) {
	tn := newTestNet(t, integration.DefaultFakeNetConfig())
	require.NoError(t, tn.Finalize())
	other := tn.proof(t, 1)

	tests := []struct {
		name   string
		tamper func(p *inter.TxProof)
	}{
		{"value does not hash to tx", func(p *inter.TxProof) {
			p.Value = append(hexutil.Bytes{}, p.Value...)
			p.Value[len(p.Value)-1] ^= 1
		}},
		{"other transaction at path", func(p *inter.TxProof) {
			p.TxHash, p.Value = other.TxHash, other.Value
		}},
		{"path not in trie", func(p *inter.TxProof) {
			p.Path = evmcore.TxTrieKey(7)
		}},
		{"nodes missing", func(p *inter.TxProof) {
			p.Nodes = p.Nodes[1:]
		}},
		{"wrong block", func(p *inter.TxProof) {
			p.BlockNumber++
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tn.proof(t, 0)
			tt.tamper(&p)
			require.ErrorIs(t, tn.Txs.SubmitTxProof(p), txverify.ErrInvalidProof)
		})
	}

	_, err := tn.Txs.TxRecord(tn.txs[0].Hash())
	require.ErrorIs(t, err, txverify.ErrNotFound)
}

func TestSubmitTxProof_once(t *testing.T) {
	require := require.New(t)
	tn := newTestNet(t, integration.DefaultFakeNetConfig())
	require.NoError(tn.Finalize())

	events := make(chan inter.SubmittedTx, 3)
	sub := tn.Txs.SubscribeSubmittedTx(events)
	defer sub.Unsubscribe()

	for i := range tn.txs {
		require.NoError(tn.Txs.SubmitTxProof(tn.proof(t, i)))
	}
	for i := range tn.txs {
		select {
		case ev := <-events:
			require.Equal(tn.txs[i].Hash(), ev.TxHash)
			require.Equal(idx.Block(tn.block.NumberU64()), ev.BlockNumber)
		case <-time.After(time.Second):
			t.Fatal("no SubmittedTx event")
		}
	}

	err := tn.Txs.SubmitTxProof(tn.proof(t, 1))
	require.ErrorIs(err, txverify.ErrDuplicateProof)

	rec, err := tn.Txs.TxRecord(tn.txs[1].Hash())
	require.NoError(err)
	require.True(rec.Proven)
	require.False(rec.HasMetadata)
	require.Zero(rec.FeePaid.Sign())
}

func TestSubmitTxMetaData(t *testing.T) {
	require := require.New(t)
	tn := newTestNet(t, integration.DefaultFakeNetConfig())
	require.NoError(tn.Finalize())

	tx := tn.txs[2]
	meta, err := tn.Metadata(tx)
	require.NoError(err)
	require.Equal(alice, meta.From)
	require.Equal(bob, meta.To)

	require.ErrorIs(tn.Txs.SubmitTxMetaData(tx.Hash(), meta), txverify.ErrUnknownProof)
	require.NoError(tn.Txs.SubmitTxProof(tn.proof(t, 2)))

	_, err = tn.Txs.GetTxMetaData(tx.Hash())
	require.ErrorIs(err, txverify.ErrNotFound)

	wrong := []inter.TxMetadata{
		{From: bob, To: meta.To, Input: meta.Input},
		{From: meta.From, To: alice, Input: meta.Input},
		{From: meta.From, To: meta.To, Input: []byte{9}},
	}
	for _, m := range wrong {
		require.ErrorIs(tn.Txs.SubmitTxMetaData(tx.Hash(), m), txverify.ErrMetadataMismatch)
	}

	require.NoError(tn.Txs.SubmitTxMetaData(tx.Hash(), meta))
	got, err := tn.Txs.GetTxMetaData(tx.Hash())
	require.NoError(err)
	require.Equal(meta.From, got.From)
	require.Equal(meta.To, got.To)
	require.Equal([]byte(meta.Input), []byte(got.Input))

	require.ErrorIs(tn.Txs.SubmitTxMetaData(tx.Hash(), meta), txverify.ErrMetadataAlreadySet)
	_, err = tn.Txs.GetTxMetaData(common.Hash{1})
	require.ErrorIs(err, txverify.ErrNotFound)
}

func TestGetRequiredVerificationFee(t *testing.T) {
	tn := newTestNet(t, integration.DefaultFakeNetConfig())
	economy := tn.Rules.Economy
	want := new(big.Int).Mul(economy.GasPrice, new(big.Int).SetUint64(economy.VerificationGas))
	require.Zero(t, want.Cmp(tn.Txs.GetRequiredVerificationFee()))

	cfg := integration.DefaultFakeNetConfig()
	cfg.Fee = txverify.FixedFee{Fee: big.NewInt(42)}
	fixed := newTestNet(t, cfg)
	require.Equal(t, int64(42), fixed.Txs.GetRequiredVerificationFee().Int64())
}
