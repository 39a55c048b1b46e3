package launcher

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/rony4d/go-ethrelay/ethrelay"
	"github.com/rony4d/go-ethrelay/ethrelay/genesis"
	"github.com/rony4d/go-ethrelay/integration"
	"github.com/rony4d/go-ethrelay/txverify"
	"github.com/rony4d/go-ethrelay/undo"
)

// fakeRelayerStake covers far more fake blocks than a session mines.
var fakeRelayerStake = new(big.Int).Mul(big.NewInt(1e6), big.NewInt(1e18))

// relayNode is an assembled relay, plus the fake chain feeding it in
// fakenet mode.
type relayNode struct {
	*integration.Node

	fakenet *integration.FakeNet
	period  time.Duration

	quit chan struct{}
	wg   sync.WaitGroup
}

// makeRelayNode assembles the relay described by cfg. A disk-backed relay
// needs a genesis file; a fakenet relay derives its genesis from the fake
// chain.
func makeRelayNode(cfg Config) (*relayNode, error) {
	if cfg.Relay.FakeNet {
		return makeFakeRelayNode(cfg)
	}
	rules, ok := ethrelay.RulesByName(cfg.Relay.Network)
	if !ok {
		return nil, fmt.Errorf("unknown network %q", cfg.Relay.Network)
	}
	if cfg.Relay.GenesisPath == "" {
		return nil, errors.New("no trusted genesis, use --genesis")
	}
	gen, err := genesis.LoadFile(cfg.Relay.GenesisPath)
	if err != nil {
		return nil, err
	}
	if gen.Network != "" && gen.Network != rules.Name {
		return nil, fmt.Errorf("genesis is for network %q, not %q", gen.Network, rules.Name)
	}
	preset, err := storagePreset(cfg.Storage)
	if err != nil {
		return nil, err
	}
	node, err := integration.MakeNode(integration.Config{
		Rules:   rules,
		Genesis: gen,
		Storage: preset,
		DataDir: cfg.Node.DataDir,
		Undo:    undoConfig(cfg.Relay, common.Address{}, common.Address{}),
		Fee:     feeOracle(cfg.Relay),
	}, nil, nil)
	if err != nil {
		return nil, err
	}
	return &relayNode{Node: node, quit: make(chan struct{})}, nil
}

func makeFakeRelayNode(cfg Config) (*relayNode, error) {
	fakeCfg := integration.DefaultFakeNetConfig()
	fakeCfg.Undo = undoConfig(cfg.Relay, fakeCfg.Undo.Pool, fakeCfg.Undo.FeeRecipient)
	fakeCfg.Fee = feeOracle(cfg.Relay)

	net, err := integration.NewFakeNet(fakeCfg, nil)
	if err != nil {
		return nil, err
	}
	if err := net.SubmitDataset(); err != nil {
		net.Close()
		return nil, fmt.Errorf("fakenet dataset: %w", err)
	}
	if err := net.Stake(fakeRelayerStake); err != nil {
		net.Close()
		return nil, fmt.Errorf("fakenet stake: %w", err)
	}
	log.Info("Fake source chain ready", "genesis", net.Chain.Genesis().Number, "relayer", integration.FakeRelayer, "pool", fakeCfg.Undo.Pool)
	return &relayNode{
		Node:    net.Node,
		fakenet: net,
		period:  cfg.Relay.FakeNetPeriod,
		quit:    make(chan struct{}),
	}, nil
}

func storagePreset(cfg StorageConfig) (integration.PresetConfig, error) {
	preset, err := integration.GetPresetByName(cfg.Preset)
	if err != nil {
		return preset, err
	}
	integration.ApplyPreset(&preset, integration.PresetConfig{
		CacheMB:       cfg.CacheMB,
		Handles:       cfg.Handles,
		EnableMetrics: preset.EnableMetrics,
	})
	return preset, nil
}

// undoConfig takes the configured accounts, falling back to the given ones.
func undoConfig(cfg RelayConfig, pool, feeRecipient common.Address) undo.Config {
	if cfg.Pool != (common.Address{}) {
		pool = cfg.Pool
	}
	if cfg.FeeRecipient != (common.Address{}) {
		feeRecipient = cfg.FeeRecipient
	}
	return undo.Config{Pool: pool, FeeRecipient: feeRecipient}
}

func feeOracle(cfg RelayConfig) txverify.FeeOracle {
	if cfg.Fee == nil {
		return nil
	}
	return txverify.FixedFee{Fee: cfg.Fee}
}

// Start begins mining the fake chain, if there is one and it has a period.
func (n *relayNode) Start() {
	if n.fakenet == nil || n.period <= 0 {
		return
	}
	n.wg.Add(1)
	go n.mineLoop()
}

// mineLoop mines and relays one fake block per period. The fakenet clock
// follows the relayed header times, so headers become finalizable once
// enough later blocks were relayed.
func (n *relayNode) mineLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			blocks, err := n.fakenet.MineAndRelay(1)
			if err != nil {
				log.Error("Failed to relay fake block", "err", err)
				continue
			}
			b := blocks[0]
			log.Debug("Relayed fake block", "number", b.NumberU64(), "hash", b.Header.Hash(), "txs", len(b.Transactions))
		case <-n.quit:
			return
		}
	}
}

// Close stops mining and closes the relay.
func (n *relayNode) Close() error {
	close(n.quit)
	n.wg.Wait()
	return n.Node.Close()
}
