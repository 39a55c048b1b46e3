package launcher

import (
	"time"
)

// Defaults bundles the baseline configuration values the launcher uses
// before config files and flags override them.
type Defaults struct {
	Node    NodeDefaults
	Relay   RelayDefaults
	Storage StorageDefaults
	RPC     RPCDefaults
	Metrics MetricsDefaults
	Logging LoggingDefaults
}

// NodeDefaults captures top-level node settings (datadir, identity).
type NodeDefaults struct {
	DataDir string // filesystem root of the relay database, relative to the home directory
	Name    string // node identity shown in logs
}

// RelayDefaults selects the relayed chain.
type RelayDefaults struct {
	Network       string        // rules preset: main, test or fake
	FakeNetPeriod time.Duration // fakenet block interval, 0 leaves mining to RPC callers
}

// StorageDefaults configures database/cache behaviour.
type StorageDefaults struct {
	Preset  string // default, lite, full or badger
	CacheMB int    // LevelDB cache; ignored by the memory and badger backends
	Handles int    // LevelDB open file limit
}

// RPCDefaults captures HTTP/WS options.
type RPCDefaults struct {
	EnableHTTP bool
	HTTPAddr   string
	HTTPPort   int      // 18545 to avoid colliding with a source-chain node on 8545
	HTTPHosts  []string // virtual hostnames accepted in the Host header

	EnableWS bool
	WSAddr   string
	WSPort   int
}

type MetricsDefaults struct {
	Enable   bool
	HTTPAddr string
	HTTPPort int
}

type LoggingDefaults struct {
	Verbosity int    // geth levels: 0=crit .. 5=trace
	Format    string // text or json
	Color     bool
}

// DefaultConfig returns the baseline the flags in the flags package mirror.
func DefaultConfig() Defaults {
	return Defaults{
		Node: NodeDefaults{
			DataDir: ".ethrelay",
			Name:    "ethrelay",
		},
		Relay: RelayDefaults{
			Network: "main",
		},
		Storage: StorageDefaults{
			Preset:  "default",
			CacheMB: 256,
			Handles: 256,
		},
		RPC: RPCDefaults{
			EnableHTTP: false,
			HTTPAddr:   "127.0.0.1",
			HTTPPort:   18545,
			HTTPHosts:  []string{"localhost"},
			EnableWS:   false,
			WSAddr:     "127.0.0.1",
			WSPort:     18546,
		},
		Metrics: MetricsDefaults{
			Enable:   false,
			HTTPAddr: "127.0.0.1",
			HTTPPort: 6060,
		},
		Logging: LoggingDefaults{
			Verbosity: 3,
			Format:    "text",
			Color:     false,
		},
	}
}
