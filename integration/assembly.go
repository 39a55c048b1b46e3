package integration

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/rony4d/go-ethrelay/ethash"
	"github.com/rony4d/go-ethrelay/ethrelay"
	"github.com/rony4d/go-ethrelay/ethrelay/genesis"
	"github.com/rony4d/go-ethrelay/ledger"
	"github.com/rony4d/go-ethrelay/relay"
	"github.com/rony4d/go-ethrelay/relaydb"
	"github.com/rony4d/go-ethrelay/txverify"
	"github.com/rony4d/go-ethrelay/undo"
	"github.com/rony4d/go-ethrelay/utils/clock"
)

// Config is everything needed to assemble a relay node.
type Config struct {
	Rules   ethrelay.Rules
	Genesis *genesis.Genesis
	Storage PresetConfig
	DataDir string
	Undo    undo.Config

	// Fee overrides the gas-priced verification fee when set.
	Fee txverify.FeeOracle
}

// Node is an assembled relay: one store shared by every component.
type Node struct {
	Store    *relaydb.Store
	Datasets *ethash.DatasetStore
	Seals    *ethash.Verifier
	Stakes   *relay.StakeLedger
	Headers  *relay.HeaderRelay
	Txs      *txverify.Verifier
	Undo     *undo.Protocol
	Ledger   ledger.Ledger
	Clock    clock.Clock
}

// MakeNode opens the store and wires the relay components over it.
//
// Parameters:
//   - cfg: Rules, trusted genesis, storage and undo accounts
//   - l: Destination ledger; nil selects a fresh MemoryLedger
//   - clk: Relay time source; nil selects the system clock
func MakeNode(cfg Config, l ledger.Ledger, clk clock.Clock) (*Node, error) {
	if cfg.Genesis == nil {
		return nil, fmt.Errorf("no genesis header")
	}
	if l == nil {
		l = ledger.NewMemoryLedger()
	}
	if clk == nil {
		clk = clock.System{}
	}
	store, err := OpenStore(cfg.Storage, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return NewNode(store, cfg, l, clk)
}

// NewNode wires the relay components over an open store. The store is
// closed if the relay refuses it.
func NewNode(store *relaydb.Store, cfg Config, l ledger.Ledger, clk clock.Clock) (*Node, error) {
	fees := cfg.Fee
	if fees == nil {
		fees = txverify.NewFeeOracle(cfg.Rules.Economy)
	}

	n := &Node{
		Store:    store,
		Datasets: ethash.NewDatasetStore(store),
		Seals:    ethash.NewVerifier(store, cfg.Rules.Ethash),
		Stakes:   relay.NewStakeLedger(store, cfg.Rules.Economy),
		Txs:      txverify.New(store, cfg.Rules, fees),
		Undo:     undo.New(store, cfg.Rules, fees, l, clk, cfg.Undo),
		Ledger:   l,
		Clock:    clk,
	}
	headers, err := relay.New(store, cfg.Rules, cfg.Genesis, n.Seals, n.Stakes, clk)
	if err != nil {
		store.Close()
		return nil, err
	}
	n.Headers = headers

	log.Info("Relay node assembled", "network", cfg.Rules.Name, "genesis", headers.GenesisNumber(),
		"storage", cfg.Storage.Name, "db", cfg.Storage.DBType, "pool", cfg.Undo.Pool)
	return n, nil
}

// Close stops event delivery and closes the store.
func (n *Node) Close() error {
	n.Headers.Close()
	n.Txs.Close()
	n.Undo.Close()
	return n.Store.Close()
}
