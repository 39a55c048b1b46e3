package launcher

import (
	"math/big"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-ethrelay/ethrelay/genesis"
	"github.com/rony4d/go-ethrelay/integration"
)

func fakeConfig(t *testing.T) Config {
	cfg := defaultConfig()
	cfg.Node.DataDir = t.TempDir()
	cfg.Relay.FakeNet = true
	cfg.Relay.Network = "fake"
	cfg.Storage.Preset = "lite"
	return cfg
}

// writeFakeGenesis stores the genesis of a fresh fake chain.
func writeFakeGenesis(t *testing.T) string {
	t.Helper()
	fakeCfg := integration.DefaultFakeNetConfig()
	net, err := integration.NewFakeNet(fakeCfg, nil)
	require.NoError(t, err)
	defer net.Close()

	gen, err := genesis.FromHeader(net.Rules.Name, net.Chain.Genesis(), fakeCfg.GenesisDifficulty)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, gen.WriteFile(path))
	return path
}

func TestMakeRelayNode_fakenetMines(t *testing.T) {
	require := require.New(t)
	cfg := fakeConfig(t)
	cfg.Relay.FakeNetPeriod = 10 * time.Millisecond
	cfg.Relay.Fee = big.NewInt(42)

	n, err := makeRelayNode(cfg)
	require.NoError(err)

	complete, err := n.Datasets.IsComplete(1)
	require.NoError(err)
	require.True(complete)
	stake, err := n.Stakes.StakeOf(integration.FakeRelayer)
	require.NoError(err)
	require.Zero(fakeRelayerStake.Cmp(stake.Amount))
	require.Equal(int64(42), n.Txs.GetRequiredVerificationFee().Int64())

	genesisNumber := n.Headers.GenesisNumber()
	n.Start()
	require.Eventually(func() bool {
		last, err := n.Headers.LastStored()
		return err == nil && last > genesisNumber+1
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(n.Close())
}

func TestMakeRelayNode_fromGenesisFile(t *testing.T) {
	require := require.New(t)
	path := writeFakeGenesis(t)

	cfg := defaultConfig()
	cfg.Node.DataDir = t.TempDir()
	cfg.Relay.Network = "fake"
	cfg.Relay.GenesisPath = path
	cfg.Storage.Preset = "badger"

	n, err := makeRelayNode(cfg)
	require.NoError(err)
	last, err := n.Headers.LastStored()
	require.NoError(err)
	require.Equal(n.Headers.GenesisNumber(), last)
	require.Equal(uint64(integration.DefaultFakeNetConfig().GenesisNumber), uint64(last))
	n.Start() // no fake chain, no-op
	require.NoError(n.Close())

	cfg.Relay.Network = "main"
	_, err = makeRelayNode(cfg)
	require.Error(err)

	cfg.Relay.Network = "fake"
	cfg.Relay.GenesisPath = ""
	_, err = makeRelayNode(cfg)
	require.Error(err)

	cfg.Relay.GenesisPath = path
	cfg.Storage.Preset = "archive"
	_, err = makeRelayNode(cfg)
	require.Error(err)
}

func TestStoragePreset(t *testing.T) {
	require := require.New(t)
	preset, err := storagePreset(StorageConfig{Preset: "default", CacheMB: 1024})
	require.NoError(err)
	require.Equal(integration.LevelDB, preset.DBType)
	require.Equal(1024, preset.CacheMB)
	require.Equal(integration.DefaultPreset().Handles, preset.Handles)

	_, err = storagePreset(StorageConfig{Preset: "pebble"})
	require.Error(err)
}

func TestStartServers_httpAndMetrics(t *testing.T) {
	require := require.New(t)
	cfg := fakeConfig(t)
	cfg.Node.RPC.HTTPEnabled = true
	cfg.Node.RPC.HTTPPort = 0
	cfg.Metrics.Enabled = true
	cfg.Metrics.HTTPPort = 0

	n, err := makeRelayNode(cfg)
	require.NoError(err)
	defer n.Close()

	srv, err := startServers(cfg, n.Node)
	require.NoError(err)
	defer srv.Stop()
	require.Len(srv.endpoints, 2)

	client, err := rpc.DialHTTP("http://" + srv.endpoints["HTTP"])
	require.NoError(err)
	defer client.Close()

	var last hexutil.Uint64
	require.NoError(client.Call(&last, "relay_lastStored"))
	require.Equal(uint64(n.Headers.GenesisNumber()), uint64(last))

	var complete bool
	require.NoError(client.Call(&complete, "relay_isDatasetComplete", hexutil.Uint64(1)))
	require.True(complete)

	resp, err := http.Get("http://" + srv.endpoints["metrics"] + "/debug/metrics/prometheus")
	require.NoError(err)
	resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)
}
