// This file maps CLI context and TOML config files to the launcher config.

package launcher

import (
	"bufio"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-ethrelay/ethrelay"
)

// Config aggregates every subsystem's configuration the launcher needs.
type Config struct {
	Node    NodeConfig
	Relay   RelayConfig
	Storage StorageConfig
	Metrics MetricsConfig
}

type NodeConfig struct {
	DataDir string
	Name    string
	RPC     RPCConfig
	Logging LoggingConfig
}

type RPCConfig struct {
	HTTPEnabled bool
	HTTPAddr    string
	HTTPPort    int
	HTTPCors    []string
	HTTPHosts   []string

	EnableWS  bool
	WSAddr    string
	WSPort    int
	WSOrigins []string
}

type LoggingConfig struct {
	Verbosity int
	Format    string
	Color     bool
	SentryDSN string
}

type RelayConfig struct {
	Network     string
	GenesisPath string

	FakeNet       bool
	FakeNetPeriod time.Duration

	Pool         common.Address
	FeeRecipient common.Address
	Fee          *big.Int `toml:",omitempty"` // nil selects the gas-priced fee
}

type StorageConfig struct {
	Preset  string
	CacheMB int
	Handles int
}

type MetricsConfig struct {
	Enabled  bool
	HTTPAddr string
	HTTPPort int
}

// tomlSettings keeps Go field names as TOML keys and rejects unknown keys.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		id := fmt.Sprintf("%s.%s", rt.String(), field)
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, id, link)
	},
}

// -----------------------------------------------------------------------------
// Default config + builders
// -----------------------------------------------------------------------------

// defaultConfig expands DefaultConfig into the launcher config, so this file
// stays in sync with defaults.go.
func defaultConfig() Config {
	d := DefaultConfig()
	return Config{
		Node: NodeConfig{
			DataDir: filepath.Join(GuessHomeDir(), d.Node.DataDir),
			Name:    d.Node.Name,
			RPC: RPCConfig{
				HTTPEnabled: d.RPC.EnableHTTP,
				HTTPAddr:    d.RPC.HTTPAddr,
				HTTPPort:    d.RPC.HTTPPort,
				HTTPHosts:   d.RPC.HTTPHosts,
				EnableWS:    d.RPC.EnableWS,
				WSAddr:      d.RPC.WSAddr,
				WSPort:      d.RPC.WSPort,
			},
			Logging: LoggingConfig{
				Verbosity: d.Logging.Verbosity,
				Format:    d.Logging.Format,
				Color:     d.Logging.Color,
			},
		},
		Relay: RelayConfig{
			Network:       d.Relay.Network,
			FakeNetPeriod: d.Relay.FakeNetPeriod,
		},
		Storage: StorageConfig{
			Preset:  d.Storage.Preset,
			CacheMB: d.Storage.CacheMB,
			Handles: d.Storage.Handles,
		},
		Metrics: MetricsConfig{
			Enabled:  d.Metrics.Enable,
			HTTPAddr: d.Metrics.HTTPAddr,
			HTTPPort: d.Metrics.HTTPPort,
		},
	}
}

// MakeAllConfigs merges defaults, the optional config file, and CLI
// overrides into a single config struct, then creates the data directory.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()

	if file := ctx.GlobalString("config"); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config file %s: %w", file, err)
		}
	}

	if err := applyCLIOverrides(ctx, &cfg); err != nil {
		return cfg, err
	}
	if _, ok := ethrelay.RulesByName(cfg.Relay.Network); !ok {
		return cfg, fmt.Errorf("unknown network %q (valid: main, test, fake)", cfg.Relay.Network)
	}

	if err := ensureDir(cfg.Node.DataDir); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// -----------------------------------------------------------------------------
// Config-file / CLI wiring
// -----------------------------------------------------------------------------

func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	return err
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) error {
	if ctx.GlobalIsSet("datadir") {
		cfg.Node.DataDir = resolvePath(ctx.GlobalString("datadir"))
	}
	if ctx.GlobalIsSet("identity") {
		cfg.Node.Name = ctx.GlobalString("identity")
	}

	if ctx.GlobalBool("http") {
		cfg.Node.RPC.HTTPEnabled = true
	}
	if ctx.GlobalIsSet("http.addr") {
		cfg.Node.RPC.HTTPAddr = ctx.GlobalString("http.addr")
	}
	if ctx.GlobalIsSet("http.port") {
		cfg.Node.RPC.HTTPPort = ctx.GlobalInt("http.port")
	}
	if ctx.GlobalIsSet("http.corsdomain") {
		cfg.Node.RPC.HTTPCors = splitCSV(ctx.GlobalString("http.corsdomain"))
	}
	if ctx.GlobalIsSet("http.vhosts") {
		cfg.Node.RPC.HTTPHosts = splitCSV(ctx.GlobalString("http.vhosts"))
	}
	if ctx.GlobalBool("ws") {
		cfg.Node.RPC.EnableWS = true
	}
	if ctx.GlobalIsSet("ws.addr") {
		cfg.Node.RPC.WSAddr = ctx.GlobalString("ws.addr")
	}
	if ctx.GlobalIsSet("ws.port") {
		cfg.Node.RPC.WSPort = ctx.GlobalInt("ws.port")
	}
	if ctx.GlobalIsSet("ws.origins") {
		cfg.Node.RPC.WSOrigins = splitCSV(ctx.GlobalString("ws.origins"))
	}

	if ctx.GlobalIsSet("log.format") {
		cfg.Node.Logging.Format = ctx.GlobalString("log.format")
	}
	if ctx.GlobalIsSet("log.verbosity") {
		cfg.Node.Logging.Verbosity = ctx.GlobalInt("log.verbosity")
	}
	if ctx.GlobalIsSet("log.color") {
		cfg.Node.Logging.Color = ctx.GlobalBool("log.color")
	}
	if ctx.GlobalIsSet("sentry.dsn") {
		cfg.Node.Logging.SentryDSN = ctx.GlobalString("sentry.dsn")
	}

	if ctx.GlobalBool("metrics") {
		cfg.Metrics.Enabled = true
	}
	if ctx.GlobalIsSet("metrics.addr") {
		cfg.Metrics.HTTPAddr = ctx.GlobalString("metrics.addr")
	}
	if ctx.GlobalIsSet("metrics.port") {
		cfg.Metrics.HTTPPort = ctx.GlobalInt("metrics.port")
	}

	if ctx.GlobalIsSet("network") {
		cfg.Relay.Network = ctx.GlobalString("network")
	}
	if ctx.GlobalIsSet("genesis") {
		cfg.Relay.GenesisPath = resolvePath(ctx.GlobalString("genesis"))
	}
	if ctx.GlobalBool("fakenet") {
		cfg.Relay.FakeNet = true
	}
	if ctx.GlobalIsSet("fakenet.period") {
		cfg.Relay.FakeNetPeriod = ctx.GlobalDuration("fakenet.period")
	}
	if cfg.Relay.FakeNet {
		// the fake chain only exists in memory, so does its relay
		cfg.Relay.Network = "fake"
		cfg.Storage.Preset = "lite"
	}
	if ctx.GlobalIsSet("relay.pool") {
		addr, err := parseAddress("relay.pool", ctx.GlobalString("relay.pool"))
		if err != nil {
			return err
		}
		cfg.Relay.Pool = addr
	}
	if ctx.GlobalIsSet("relay.feerecipient") {
		addr, err := parseAddress("relay.feerecipient", ctx.GlobalString("relay.feerecipient"))
		if err != nil {
			return err
		}
		cfg.Relay.FeeRecipient = addr
	}
	if ctx.GlobalIsSet("relay.fee") {
		fee, ok := new(big.Int).SetString(ctx.GlobalString("relay.fee"), 0)
		if !ok || fee.Sign() < 0 {
			return fmt.Errorf("invalid --relay.fee %q", ctx.GlobalString("relay.fee"))
		}
		cfg.Relay.Fee = fee
	}

	if ctx.GlobalIsSet("db.preset") {
		cfg.Storage.Preset = ctx.GlobalString("db.preset")
	}
	if ctx.GlobalIsSet("cache") {
		cfg.Storage.CacheMB = ctx.GlobalInt("cache")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func parseAddress(flag, raw string) (common.Address, error) {
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid --%s address %q", flag, raw)
	}
	return common.HexToAddress(raw), nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
