package integration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-ethrelay/ethrelay/genesis"
	"github.com/rony4d/go-ethrelay/inter"
	"github.com/rony4d/go-ethrelay/relaydb"
)

// TestDefaultPreset_hasReasonableDefaults guards the baseline values: if the
// defaults change, we want to know.
func TestDefaultPreset_hasReasonableDefaults(t *testing.T) {
	require := require.New(t)
	cfg := DefaultPreset()

	require.Equal("default", cfg.Name)
	require.Equal(LevelDB, cfg.DBType)
	require.True(cfg.CacheMB > 0 && cfg.CacheMB <= 10000, "CacheMB = %d", cfg.CacheMB)
	require.True(cfg.Handles > 0)
	require.False(cfg.EnableMetrics)
}

func TestPresets_haveDistinctValues(t *testing.T) {
	presets := []PresetConfig{DefaultPreset(), LitePreset(), FullPreset(), BadgerPreset()}
	seen := make(map[string]bool)
	for _, p := range presets {
		require.False(t, seen[p.Name], "duplicate preset %q", p.Name)
		seen[p.Name] = true

		byName, err := GetPresetByName(p.Name)
		require.NoError(t, err)
		require.Equal(t, p, byName)
	}
	require.Equal(t, MemoryDB, LitePreset().DBType)
	require.Equal(t, BadgerDB, BadgerPreset().DBType)
	require.Greater(t, FullPreset().CacheMB, DefaultPreset().CacheMB)
}

func TestGetPresetByName_invalidPreset(t *testing.T) {
	for _, name := range []string{"", "archive", "LITE"} {
		_, err := GetPresetByName(name)
		require.Error(t, err, name)
	}
}

func TestApplyPreset_partialOverride(t *testing.T) {
	target := DefaultPreset()
	ApplyPreset(&target, PresetConfig{CacheMB: 64, EnableMetrics: true})

	require.Equal(t, "default", target.Name)
	require.Equal(t, LevelDB, target.DBType)
	require.Equal(t, 64, target.CacheMB)
	require.Equal(t, DefaultPreset().Handles, target.Handles)
	require.True(t, target.EnableMetrics)

	ApplyPreset(&target, BadgerPreset())
	require.Equal(t, BadgerPreset().Name, target.Name)
	require.Equal(t, BadgerDB, target.DBType)
}

func TestOpenStore(t *testing.T) {
	for _, preset := range []PresetConfig{LitePreset(), DefaultPreset(), BadgerPreset()} {
		t.Run(preset.Name, func(t *testing.T) {
			require := require.New(t)
			dir := t.TempDir()

			store, err := OpenStore(preset, dir)
			require.NoError(err)
			require.NoError(store.Update(func(txn relaydb.Txn) error {
				return relaydb.WriteLastStored(txn, 42)
			}))
			var last uint64
			require.NoError(store.View(func(r relaydb.Reader) error {
				n, err := relaydb.ReadLastStored(r)
				last = uint64(n)
				return err
			}))
			require.Equal(uint64(42), last)
			require.NoError(store.Close())
		})
	}

	_, err := OpenStore(PresetConfig{DBType: "pebble"}, t.TempDir())
	require.Error(t, err)
}

func TestMakeNode_reopensDiskStore(t *testing.T) {
	require := require.New(t)

	net, err := NewFakeNet(DefaultFakeNetConfig(), nil)
	require.NoError(err)
	defer net.Close()

	dir := t.TempDir()
	cfg := Config{
		Rules:   net.Rules,
		Genesis: nil,
		Storage: DefaultPreset(),
		DataDir: dir,
	}
	_, err = MakeNode(cfg, nil, nil)
	require.Error(err, "genesis is required")

	gen, err := genesis.FromHeader(net.Rules.Name, net.Chain.Genesis(), net.Config.GenesisDifficulty)
	require.NoError(err)
	cfg.Genesis = gen
	node, err := MakeNode(cfg, nil, net.Clock)
	require.NoError(err)
	require.NoError(node.Close())

	// same rules and genesis reopen fine
	node, err = MakeNode(cfg, nil, net.Clock)
	require.NoError(err)
	require.Equal(uint64(gen.Number), uint64(node.Headers.GenesisNumber()))
	require.NoError(node.Close())

	// a different network does not
	other := cfg
	other.Rules = net.Rules.Copy()
	other.Rules.Name = "other"
	_, err = MakeNode(other, nil, net.Clock)
	require.Error(err)
}

func TestFakeNet_clockStartsAtGenesis(t *testing.T) {
	net, err := NewFakeNet(DefaultFakeNetConfig(), nil)
	require.NoError(t, err)
	defer net.Close()

	require.Equal(t, inter.FromUnix(int64(net.Chain.Genesis().Time)), net.Clock.Now())
}
