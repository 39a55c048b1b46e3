// Package integration assembles a relay node out of its components and
// provides the storage presets and the fake network driver used by the CLI
// and by end-to-end tests.
//
// Presets bundle the storage settings (backend, cache sizes, metrics) into
// named profiles so operators can pick one with a single flag:
//
//	preset := integration.LitePreset()    // in-memory, for development
//	preset := integration.DefaultPreset() // LevelDB on disk
//	preset := integration.BadgerPreset()  // Badger on disk
package integration

import (
	"fmt"
	"path/filepath"

	"github.com/rony4d/go-ethrelay/relaydb"
)

// Database backends a preset can select.
const (
	MemoryDB = "memory"
	LevelDB  = "ldb"
	BadgerDB = "badger"
)

// PresetConfig captures the storage parameters that vary across profiles.
type PresetConfig struct {
	Name          string // human-readable identifier (e.g., "lite", "full")
	DBType        string // one of MemoryDB, LevelDB, BadgerDB
	CacheMB       int    // memory allocated to database caches
	Handles       int    // open file handles for LevelDB
	EnableMetrics bool   // whether to collect and expose metrics
}

// DefaultPreset keeps relay state in LevelDB with moderate caches.
func DefaultPreset() PresetConfig {
	return PresetConfig{
		Name:          "default",
		DBType:        LevelDB,
		CacheMB:       256, // headers and dataset nodes are small
		Handles:       256,
		EnableMetrics: false,
	}
}

// LitePreset keeps everything in memory. State is lost on exit, which is what
// development and fake networks want.
func LitePreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "lite"
	cfg.DBType = MemoryDB
	cfg.CacheMB = 0
	cfg.Handles = 0
	cfg.EnableMetrics = true
	return cfg
}

// FullPreset is the production profile: LevelDB with large caches and metrics.
func FullPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "full"
	cfg.CacheMB = 2048 // a full mainnet epoch dataset keeps ~16M nodes hot
	cfg.Handles = 1024
	cfg.EnableMetrics = true
	return cfg
}

// BadgerPreset stores relay state in Badger.
func BadgerPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "badger"
	cfg.DBType = BadgerDB
	cfg.Handles = 0
	cfg.EnableMetrics = true
	return cfg
}

// GetPresetByName looks up a preset by its identifier.
//
// Example:
//
//	preset, err := integration.GetPresetByName("lite")
//	if err != nil {
//	    log.Crit("Bad preset", "err", err)
//	}
func GetPresetByName(name string) (PresetConfig, error) {
	switch name {
	case "lite":
		return LitePreset(), nil
	case "full":
		return FullPreset(), nil
	case "badger":
		return BadgerPreset(), nil
	case "default":
		return DefaultPreset(), nil
	default:
		return PresetConfig{}, fmt.Errorf("unknown preset: %q (valid: lite, full, badger, default)", name)
	}
}

// ApplyPreset merges a preset into an existing config. Zero-valued numeric
// and string fields of the preset leave the target untouched.
func ApplyPreset(target *PresetConfig, preset PresetConfig) {
	if preset.DBType != "" {
		target.DBType = preset.DBType
	}
	if preset.CacheMB > 0 {
		target.CacheMB = preset.CacheMB
	}
	if preset.Handles > 0 {
		target.Handles = preset.Handles
	}
	target.EnableMetrics = preset.EnableMetrics
	if preset.Name != "" {
		target.Name = preset.Name
	}
}

// OpenStore opens the relay store a preset describes under datadir.
func OpenStore(preset PresetConfig, datadir string) (*relaydb.Store, error) {
	var (
		backend relaydb.Backend
		err     error
	)
	switch preset.DBType {
	case MemoryDB:
		backend = relaydb.NewMemoryBackend()
	case LevelDB:
		backend, err = relaydb.NewLevelDBBackend(filepath.Join(datadir, "relaydb"), preset.CacheMB, preset.Handles)
	case BadgerDB:
		backend, err = relaydb.NewBadgerBackend(filepath.Join(datadir, "relaydb-badger"))
	default:
		return nil, fmt.Errorf("unknown database type %q", preset.DBType)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", preset.DBType, err)
	}
	return relaydb.New(backend), nil
}
