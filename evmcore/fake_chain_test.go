package evmcore

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-ethrelay/ethash"
	"github.com/rony4d/go-ethrelay/ethrelay"
	"github.com/rony4d/go-ethrelay/relaydb"
)

func newTestChain(t *testing.T) *FakeChain {
	t.Helper()
	rules := ethrelay.FakeNetRules()
	return NewFakeChain(rules, ethash.NewFakeDataset(1, 64, 3), 30000, FakeGenesisTime, big.NewInt(4096))
}

func fakeTransfers(c *FakeChain, n int) types.Transactions {
	to := FakeAddress(100)
	txs := make(types.Transactions, n)
	for i := range txs {
		txs[i] = c.SignTx(FakeKey(1), &types.LegacyTx{
			Nonce:    uint64(i),
			GasPrice: big.NewInt(1),
			Gas:      21000,
			To:       &to,
			Value:    big.NewInt(int64(i + 1)),
		})
	}
	return txs
}

func TestFakeKey(t *testing.T) {
	require.Equal(t, FakeKey(3).D, FakeKey(3).D)
	require.NotEqual(t, FakeAddress(1), FakeAddress(2))
}

func TestNewEvmBlock_TxHash(t *testing.T) {
	c := newTestChain(t)
	empty := NewEvmBlock(c.Genesis(), nil)
	require.Equal(t, types.EmptyRootHash, empty.Header.TxHash)

	txs := fakeTransfers(c, 3)
	full := NewEvmBlock(c.Genesis(), txs)
	require.Equal(t, types.DeriveSha(txs, trie.NewStackTrie(nil)), full.Header.TxHash)
	// the source header is left untouched
	require.Equal(t, types.EmptyRootHash, c.Genesis().TxHash)
}

func TestDecodeHeader(t *testing.T) {
	c := newTestChain(t)
	raw := c.RawHeader(30000)
	h, err := DecodeHeader(raw)
	require.NoError(t, err)
	require.Equal(t, c.Genesis().Hash(), h.Hash())
	require.Equal(t, crypto.Keccak256Hash(raw), h.Hash())

	rh := ToRelayedHeader(h, raw)
	require.Equal(t, uint64(30000), uint64(rh.Number))
	require.Equal(t, h.Hash(), rh.Hash)
	require.Equal(t, raw, rh.Raw)

	_, err = DecodeHeader([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestProveTx(t *testing.T) {
	c := newTestChain(t)
	txs := fakeTransfers(c, 5)
	block, err := c.AddBlock(txs, 10, nil)
	require.NoError(t, err)

	for i, tx := range txs {
		proof, err := block.ProveTx(i)
		require.NoError(t, err)
		require.Equal(t, tx.Hash(), proof.TxHash)
		require.Equal(t, tx.Hash(), crypto.Keccak256Hash(proof.Value))
		require.Equal(t, block.NumberU64(), uint64(proof.BlockNumber))

		value, err := VerifyProof(block.Header.TxHash, proof.Path, proof.Nodes)
		require.NoError(t, err)
		require.Equal(t, []byte(proof.Value), value)

		decoded, err := DecodeTx(value)
		require.NoError(t, err)
		require.Equal(t, tx.Hash(), decoded.Hash())
	}

	_, err = block.ProveTx(5)
	require.Error(t, err)

	proof, err := block.ProveTx(2)
	require.NoError(t, err)

	// a proof does not verify under another root
	_, err = VerifyProof(c.Genesis().TxHash, proof.Path, proof.Nodes)
	require.Error(t, err)

	// nor with a node missing
	_, err = VerifyProof(block.Header.TxHash, proof.Path, proof.Nodes[:len(proof.Nodes)-1])
	require.Error(t, err)

	// nor along the path of a missing key
	_, err = VerifyProof(block.Header.TxHash, TxTrieKey(7), []hexutil.Bytes{proof.Nodes[0]})
	require.Error(t, err)
}

func TestFakeChain_SealsVerify(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	store := relaydb.New(relaydb.NewMemoryBackend())
	datasets := ethash.NewDatasetStore(store)
	for _, chunk := range c.dataset.Chunks(8) {
		require.NoError(datasets.SubmitChunk(chunk))
	}
	verifier := ethash.NewVerifier(store, ethrelay.FakeEthashRules())

	for i := 0; i < 3; i++ {
		block, err := c.AddBlock(nil, 5, nil)
		require.NoError(err)
		require.Equal(c.Block(block.NumberU64()-1).Header.Hash(), block.Header.ParentHash)

		lookup := c.Lookup(block.Header.Hash())
		require.NoError(store.View(func(r relaydb.Reader) error {
			return verifier.VerifySeal(r, block.Header, lookup)
		}))
	}
	require.Equal(uint64(30003), c.Head().NumberU64())
	require.Nil(c.Block(29999))
	require.Nil(c.Block(30004))
}

func TestFakeChain_Fork(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)
	for i := 0; i < 3; i++ {
		_, err := c.AddBlock(nil, 12, nil)
		require.NoError(err)
	}

	fork := c.Fork(30001)
	require.Equal(uint64(30001), fork.Head().NumberU64())

	// a shorter gap raises the difficulty above the original branch's
	b, err := fork.AddBlock(nil, 1, []byte("fork"))
	require.NoError(err)
	require.Equal(c.Block(30001).Header.Hash(), b.Header.ParentHash)
	require.NotEqual(c.Block(30002).Header.Hash(), b.Header.Hash())
	require.Equal(1, b.Header.Difficulty.Cmp(c.Block(30002).Header.Difficulty))

	// the original chain is not affected
	require.Equal(uint64(30003), c.Head().NumberU64())
}

func TestFakeChain_EpochBoundary(t *testing.T) {
	rules := ethrelay.FakeNetRules()
	c := NewFakeChain(rules, ethash.NewFakeDataset(1, 16, 1), 59999, FakeGenesisTime, big.NewInt(16))
	_, err := c.AddBlock(nil, 10, nil)
	require.Error(t, err)
	require.Equal(t, common.Hash{}, c.Head().Header.MixDigest)
}
