package integration

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/rony4d/go-ethrelay/contracts/erc20"
	"github.com/rony4d/go-ethrelay/ethash"
	"github.com/rony4d/go-ethrelay/ethrelay"
	"github.com/rony4d/go-ethrelay/ethrelay/genesis"
	"github.com/rony4d/go-ethrelay/evmcore"
	"github.com/rony4d/go-ethrelay/inter"
	"github.com/rony4d/go-ethrelay/ledger"
	"github.com/rony4d/go-ethrelay/txverify"
	"github.com/rony4d/go-ethrelay/undo"
	"github.com/rony4d/go-ethrelay/utils/clock"
)

// Well-known fake network accounts.
var (
	FakeRelayer      = evmcore.FakeAddress(0)
	FakePool         = evmcore.FakeAddress(1000)
	FakeFeeRecipient = evmcore.FakeAddress(1001)
)

const fakeTxGas = 100000

// FakeNetConfig describes a locally mined source chain and the relay following it.
type FakeNetConfig struct {
	GenesisNumber     uint64   // trusted genesis block, its epoch is the dataset's
	GenesisDifficulty *big.Int // also the genesis total difficulty
	DatasetRows       uint64
	BranchDepth       uint64
	ChunkSize         int    // nodes per dataset chunk
	BlockGap          uint64 // seconds between mined blocks
	Undo              undo.Config
	Fee               txverify.FeeOracle // nil prices fees by gas
	AmountSource      string             // overrides the rules' undo amount source when set
}

// DefaultFakeNetConfig returns a fake network starting at block 30000, the
// first block of epoch 1.
func DefaultFakeNetConfig() FakeNetConfig {
	return FakeNetConfig{
		GenesisNumber:     30000,
		GenesisDifficulty: big.NewInt(1024),
		DatasetRows:       64,
		BranchDepth:       3,
		ChunkSize:         4,
		BlockGap:          13,
		Undo: undo.Config{
			Pool:         FakePool,
			FeeRecipient: FakeFeeRecipient,
		},
	}
}

// FakeNet drives a relay node from a fake source chain: it mines blocks,
// signs transactions and submits datasets, headers and proofs the way an
// off-chain relayer would.
type FakeNet struct {
	*Node

	Config  FakeNetConfig
	Rules   ethrelay.Rules
	Chain   *evmcore.FakeChain
	Dataset *ethash.Dataset
	Clock   *clock.Manual

	pending types.Transactions
	nonces  map[common.Address]uint64

	log log.Logger
}

// NewFakeNet builds an in-memory relay over a fresh fake chain. The relay
// clock starts at the genesis timestamp.
//
// Parameters:
//   - cfg: Chain and dataset geometry
//   - l: Destination ledger; nil selects a fresh MemoryLedger
func NewFakeNet(cfg FakeNetConfig, l ledger.Ledger) (*FakeNet, error) {
	rules := ethrelay.FakeNetRules()
	if cfg.AmountSource != "" {
		rules.Undo.AmountSource = cfg.AmountSource
	}
	epoch := idx.Epoch(rules.Epoch(cfg.GenesisNumber))
	dataset := ethash.NewFakeDataset(epoch, cfg.DatasetRows, cfg.BranchDepth)
	chain := evmcore.NewFakeChain(rules, dataset, cfg.GenesisNumber, evmcore.FakeGenesisTime, cfg.GenesisDifficulty)

	gen, err := genesis.FromHeader(rules.Name, chain.Genesis(), cfg.GenesisDifficulty)
	if err != nil {
		return nil, err
	}
	clk := clock.NewManual(inter.FromUnix(int64(evmcore.FakeGenesisTime)))
	if l == nil {
		l = ledger.NewMemoryLedger()
	}
	node, err := MakeNode(Config{
		Rules:   rules,
		Genesis: gen,
		Storage: LitePreset(),
		Undo:    cfg.Undo,
		Fee:     cfg.Fee,
	}, l, clk)
	if err != nil {
		return nil, err
	}
	return &FakeNet{
		Node:    node,
		Config:  cfg,
		Rules:   rules,
		Chain:   chain,
		Dataset: dataset,
		Clock:   clk,
		nonces:  make(map[common.Address]uint64),
		log:     log.New("module", "fakenet"),
	}, nil
}

// SubmitDataset stores the whole epoch dataset, chunk by chunk.
func (f *FakeNet) SubmitDataset() error {
	for _, chunk := range f.Dataset.Chunks(f.Config.ChunkSize) {
		if err := f.Datasets.SubmitChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Stake deposits amount for the fake relayer.
func (f *FakeNet) Stake(amount *big.Int) error {
	return f.Stakes.Deposit(FakeRelayer, amount)
}

// SendTx signs a legacy transaction and queues it for the next mined block.
func (f *FakeNet) SendTx(key *ecdsa.PrivateKey, to common.Address, value *big.Int, data []byte) *types.Transaction {
	from := crypto.PubkeyToAddress(key.PublicKey)
	tx := f.Chain.SignTx(key, &types.LegacyTx{
		Nonce:    f.nonces[from],
		GasPrice: big.NewInt(1),
		Gas:      fakeTxGas,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	f.nonces[from]++
	f.pending = append(f.pending, tx)
	return tx
}

// SendToken queues an ERC-20 transfer(to, amount) call on token.
func (f *FakeNet) SendToken(key *ecdsa.PrivateKey, token, to common.Address, amount *big.Int) (*types.Transaction, error) {
	data, err := erc20.PackTransfer(to, amount)
	if err != nil {
		return nil, err
	}
	return f.SendTx(key, token, new(big.Int), data), nil
}

// Mine seals a block holding the queued transactions.
func (f *FakeNet) Mine() (*evmcore.EvmBlock, error) {
	b, err := f.Chain.AddBlock(f.pending, f.Config.BlockGap, nil)
	if err != nil {
		return nil, err
	}
	f.pending = nil
	return b, nil
}

// Relay submits a mined header. The relay clock is moved up to the header
// time first, as if the relayer submitted it right after it was mined.
func (f *FakeNet) Relay(b *evmcore.EvmBlock) error {
	raw, err := evmcore.EncodeHeader(b.Header)
	if err != nil {
		return err
	}
	f.Clock.Set(inter.FromUnix(int64(b.Header.Time)))
	return f.Headers.SubmitHeader(FakeRelayer, idx.Block(b.NumberU64()), raw, f.Chain.Lookup(b.Header.Hash()))
}

// MineAndRelay mines and relays n blocks. The queued transactions go into
// the first one.
func (f *FakeNet) MineAndRelay(n int) ([]*evmcore.EvmBlock, error) {
	blocks := make([]*evmcore.EvmBlock, 0, n)
	for i := 0; i < n; i++ {
		b, err := f.Mine()
		if err != nil {
			return blocks, err
		}
		if err := f.Relay(b); err != nil {
			return blocks, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Finalize waits out the lock of the last stored header and finalizes every
// pending header up to it.
func (f *FakeNet) Finalize() error {
	last, err := f.Headers.LastStored()
	if err != nil {
		return err
	}
	h, err := f.Headers.CanonicalHeader(last)
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("no canonical header at %d", last)
	}
	f.Clock.Set(h.LockedUntil)
	return f.Headers.Finalize(last)
}

// Locate returns the block holding txHash and the transaction's index in it.
func (f *FakeNet) Locate(txHash common.Hash) (*evmcore.EvmBlock, int, error) {
	first := f.Chain.Genesis().Number.Uint64()
	for n := f.Chain.Head().NumberU64(); n > first; n-- {
		b := f.Chain.Block(n)
		for i, tx := range b.Transactions {
			if tx.Hash() == txHash {
				return b, i, nil
			}
		}
	}
	return nil, 0, fmt.Errorf("transaction %x not mined", txHash)
}

// Prove submits the inclusion proof of a mined transaction followed by its
// metadata.
func (f *FakeNet) Prove(txHash common.Hash) (idx.Block, error) {
	b, index, err := f.Locate(txHash)
	if err != nil {
		return 0, err
	}
	proof, err := b.ProveTx(index)
	if err != nil {
		return 0, err
	}
	if err := f.Txs.SubmitTxProof(*proof); err != nil {
		return 0, err
	}
	meta, err := f.Metadata(b.Transactions[index])
	if err != nil {
		return 0, err
	}
	if err := f.Txs.SubmitTxMetaData(txHash, meta); err != nil {
		return 0, err
	}
	f.log.Debug("Transaction proven", "tx", txHash, "block", proof.BlockNumber, "index", index)
	return proof.BlockNumber, nil
}

// Metadata returns the metadata a relayer submits for tx.
func (f *FakeNet) Metadata(tx *types.Transaction) (inter.TxMetadata, error) {
	from, err := types.Sender(f.Rules.Signer(), tx)
	if err != nil {
		return inter.TxMetadata{}, err
	}
	meta := inter.TxMetadata{From: from, Input: common.CopyBytes(tx.Data())}
	if to := tx.To(); to != nil {
		meta.To = *to
	}
	return meta, nil
}
