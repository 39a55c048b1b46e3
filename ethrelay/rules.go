// Package ethrelay defines the network rules of a relay deployment: which
// source chain is relayed and every consensus-critical parameter the relay
// checks headers, stakes, fees and undo windows against.
//
// This package provides:
//   - Source chain identification constants (MainNet, TestNet, FakeNet)
//   - Ethash rules (epoch length, difficulty adjustment, difficulty bomb)
//   - Header rules (lock period, future-time allowance, gas-limit bounds)
//   - Economic parameters (stake per relayed block, verification fee)
//   - Undo rules (undo window, how the transferred amount is read)
//
// The Rules type is persisted by the relay store on first start, so a data
// directory cannot be reopened with a different network by accident.
package ethrelay

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	ethparams "github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rlp"
)

// Source chain identification constants
const (
	// MainNetworkID is the chain ID of Ethereum mainnet
	MainNetworkID uint64 = 1

	// TestNetworkID is the chain ID of Ropsten, the long-lived Ethash testnet
	TestNetworkID uint64 = 3

	// FakeNetworkID is the chain ID of locally generated fake source chains
	FakeNetworkID uint64 = 1337

	// DefaultEpochLength is the number of blocks sharing one Ethash dataset
	DefaultEpochLength uint64 = 30000

	// DefaultVerificationGas is the gas a transaction verification costs,
	// priced at the configured gas price to get the verification fee
	DefaultVerificationGas uint64 = 300000
)

// How UndoRules.AmountSource reads the transferred amount from a proven transaction.
const (
	AmountFromCalldata = "calldata" // ERC-20 transfer(address,uint256) payload
	AmountFromValue    = "value"    // native value of the transaction
	AmountAuto         = "auto"     // calldata for token transfers, value otherwise
)

// RulesRLP is the RLP-serializable form of Rules, persisted by the relay store.
type RulesRLP struct {
	Name    string // network name identifier (e.g., "main", "test", "fake")
	ChainID uint64 // source chain ID, used to recover transaction senders

	// Ethash options - dataset epochs and difficulty adjustment
	Ethash EthashRules

	// Header options - lock period and header-level validity bounds
	Headers HeaderRules

	// Economy options - stake and verification fee
	Economy EconomyRules

	// Undo options - window and amount source
	Undo UndoRules
}

// Rules describes the complete configuration of a relay deployment.
//
// Note: When adding *big.Int fields make sure Copy() deep-copies them.
type Rules RulesRLP

// EthashRules defines the proof-of-work parameters of the source chain.
type EthashRules struct {
	// EpochLength is the number of blocks per dataset epoch
	EpochLength uint64

	// MinimumDifficulty is the floor of the difficulty adjustment
	MinimumDifficulty *big.Int

	// DifficultyBoundDivisor bounds a single adjustment to parent/divisor
	DifficultyBoundDivisor *big.Int

	// BlockTimeStep is the timestamp delta (seconds) per adjustment unit
	BlockTimeStep uint64

	// BombDelay is the number of blocks the difficulty bomb is pushed back
	BombDelay uint64
}

// HeaderRules defines the header-level checks of the relay.
type HeaderRules struct {
	// LockPeriod is the time a header stays Pending before it may be finalized
	LockPeriod time.Duration

	// AllowedFutureBlockTime is how far a header timestamp may run ahead of
	// the relay clock
	AllowedFutureBlockTime time.Duration

	// MinGasLimit and MaxGasLimit bound the gas limit of any header
	MinGasLimit uint64
	MaxGasLimit uint64

	// GasLimitBoundDivisor bounds the gas limit change to parent/divisor
	GasLimitBoundDivisor uint64

	// MaxExtraData is the maximum size (in bytes) of the header extra data
	MaxExtraData uint64
}

// EconomyRules contains the economic gating parameters.
type EconomyRules struct {
	// RequiredStakePerBlock is the deposit a submitter needs per block
	// relayed past the genesis header
	RequiredStakePerBlock *big.Int

	// VerificationGas and GasPrice price the verification fee
	VerificationGas uint64
	GasPrice        *big.Int
}

// UndoRules contains the undo protocol parameters.
type UndoRules struct {
	// Window is how long after a header's finalization its transfers can be undone
	Window time.Duration

	// AmountSource selects how the transferred amount is read, see AmountFrom*
	AmountSource string
}

var errNegativeSpan = errors.New("negative time span")

// headerRulesRLP is the persisted form of HeaderRules, spans in nanoseconds.
type headerRulesRLP struct {
	LockPeriod             uint64
	AllowedFutureBlockTime uint64
	MinGasLimit            uint64
	MaxGasLimit            uint64
	GasLimitBoundDivisor   uint64
	MaxExtraData           uint64
}

// undoRulesRLP is the persisted form of UndoRules.
type undoRulesRLP struct {
	Window       uint64
	AmountSource string
}

func encodeSpan(d time.Duration) (uint64, error) {
	if d < 0 {
		return 0, errNegativeSpan
	}
	return uint64(d), nil
}

func decodeSpan(v uint64) (time.Duration, error) {
	if v > math.MaxInt64 {
		return 0, errNegativeSpan
	}
	return time.Duration(v), nil
}

// EncodeRLP implements rlp.Encoder interface.
func (r HeaderRules) EncodeRLP(w io.Writer) error {
	lock, err := encodeSpan(r.LockPeriod)
	if err != nil {
		return err
	}
	future, err := encodeSpan(r.AllowedFutureBlockTime)
	if err != nil {
		return err
	}
	return rlp.Encode(w, &headerRulesRLP{
		LockPeriod:             lock,
		AllowedFutureBlockTime: future,
		MinGasLimit:            r.MinGasLimit,
		MaxGasLimit:            r.MaxGasLimit,
		GasLimitBoundDivisor:   r.GasLimitBoundDivisor,
		MaxExtraData:           r.MaxExtraData,
	})
}

// DecodeRLP implements rlp.Decoder interface.
func (r *HeaderRules) DecodeRLP(s *rlp.Stream) error {
	var dec headerRulesRLP
	if err := s.Decode(&dec); err != nil {
		return err
	}
	lock, err := decodeSpan(dec.LockPeriod)
	if err != nil {
		return err
	}
	future, err := decodeSpan(dec.AllowedFutureBlockTime)
	if err != nil {
		return err
	}
	*r = HeaderRules{
		LockPeriod:             lock,
		AllowedFutureBlockTime: future,
		MinGasLimit:            dec.MinGasLimit,
		MaxGasLimit:            dec.MaxGasLimit,
		GasLimitBoundDivisor:   dec.GasLimitBoundDivisor,
		MaxExtraData:           dec.MaxExtraData,
	}
	return nil
}

// EncodeRLP implements rlp.Encoder interface.
func (r UndoRules) EncodeRLP(w io.Writer) error {
	window, err := encodeSpan(r.Window)
	if err != nil {
		return err
	}
	return rlp.Encode(w, &undoRulesRLP{Window: window, AmountSource: r.AmountSource})
}

// DecodeRLP implements rlp.Decoder interface.
func (r *UndoRules) DecodeRLP(s *rlp.Stream) error {
	var dec undoRulesRLP
	if err := s.Decode(&dec); err != nil {
		return err
	}
	window, err := decodeSpan(dec.Window)
	if err != nil {
		return err
	}
	*r = UndoRules{Window: window, AmountSource: dec.AmountSource}
	return nil
}

// Signer returns the transaction signer of the source chain.
//
// Returns:
//   - types.Signer: accepts legacy, EIP-155 and typed transactions
func (r Rules) Signer() types.Signer {
	return types.LatestSignerForChainID(new(big.Int).SetUint64(r.ChainID))
}

// Epoch returns the dataset epoch a block belongs to.
func (r Rules) Epoch(number uint64) uint64 {
	return number / r.Ethash.EpochLength
}

// MainNetRules returns the rules for relaying Ethereum mainnet.
func MainNetRules() Rules {
	return Rules{
		Name:    "main",
		ChainID: MainNetworkID,
		Ethash:  DefaultEthashRules(),
		Headers: DefaultHeaderRules(),
		Economy: DefaultEconomyRules(),
		Undo:    DefaultUndoRules(),
	}
}

// TestNetRules returns the rules for relaying the Ethash testnet.
// Same parameters as mainnet, different chain ID.
func TestNetRules() Rules {
	rules := MainNetRules()
	rules.Name = "test"
	rules.ChainID = TestNetworkID
	return rules
}

// FakeNetRules returns the rules for locally generated source chains:
//   - Difficulty floor of 16 so headers are mined in a few hashimoto rounds
//   - Cheap stake and a short undo window
//   - Same lock period and gas-limit rules as mainnet
func FakeNetRules() Rules {
	return Rules{
		Name:    "fake",
		ChainID: FakeNetworkID,
		Ethash:  FakeEthashRules(),
		Headers: DefaultHeaderRules(),
		Economy: FakeEconomyRules(),
		Undo: UndoRules{
			Window:       1 * time.Hour,
			AmountSource: AmountAuto,
		},
	}
}

// DefaultEthashRules returns the Ethereum mainnet Ethash parameters.
func DefaultEthashRules() EthashRules {
	return EthashRules{
		EpochLength:            DefaultEpochLength,
		MinimumDifficulty:      new(big.Int).Set(ethparams.MinimumDifficulty),      // 131072
		DifficultyBoundDivisor: new(big.Int).Set(ethparams.DifficultyBoundDivisor), // 2048
		BlockTimeStep:          9,                                                  // Byzantium step
		BombDelay:              9700000,                                            // EIP-3554
	}
}

// FakeEthashRules lowers the difficulty floor so fake chains mine instantly.
func FakeEthashRules() EthashRules {
	cfg := DefaultEthashRules()
	cfg.MinimumDifficulty = big.NewInt(16)
	return cfg
}

// DefaultHeaderRules returns the header rules shared by every network.
func DefaultHeaderRules() HeaderRules {
	return HeaderRules{
		LockPeriod:             5 * time.Minute,
		AllowedFutureBlockTime: 15 * time.Second,
		MinGasLimit:            ethparams.MinGasLimit,          // 5000
		MaxGasLimit:            math.MaxInt64,                  // 2^63-1
		GasLimitBoundDivisor:   ethparams.GasLimitBoundDivisor, // 1024
		MaxExtraData:           ethparams.MaximumExtraDataSize, // 32 bytes
	}
}

// DefaultEconomyRules returns the mainnet economy configuration.
func DefaultEconomyRules() EconomyRules {
	return EconomyRules{
		RequiredStakePerBlock: big.NewInt(1e18), // 1 ether per relayed block
		VerificationGas:       DefaultVerificationGas,
		GasPrice:              big.NewInt(20e9), // 20 gwei
	}
}

// FakeEconomyRules returns a cheap economy for local testing.
func FakeEconomyRules() EconomyRules {
	cfg := DefaultEconomyRules()
	cfg.RequiredStakePerBlock = big.NewInt(1e15) // 0.001 ether
	cfg.GasPrice = big.NewInt(137140710)
	return cfg
}

// DefaultUndoRules returns a one-day undo window with automatic amount source.
func DefaultUndoRules() UndoRules {
	return UndoRules{
		Window:       24 * time.Hour,
		AmountSource: AmountAuto,
	}
}

// RulesByName looks up a preset by its network name.
func RulesByName(name string) (Rules, bool) {
	switch name {
	case "main":
		return MainNetRules(), true
	case "test":
		return TestNetRules(), true
	case "fake":
		return FakeNetRules(), true
	}
	return Rules{}, false
}

// Copy creates a deep copy of Rules.
//
// Returns:
//   - Rules: a new Rules instance sharing no pointers with r
func (r Rules) Copy() Rules {
	cp := r
	cp.Ethash.MinimumDifficulty = new(big.Int).Set(r.Ethash.MinimumDifficulty)
	cp.Ethash.DifficultyBoundDivisor = new(big.Int).Set(r.Ethash.DifficultyBoundDivisor)
	cp.Economy.RequiredStakePerBlock = new(big.Int).Set(r.Economy.RequiredStakePerBlock)
	cp.Economy.GasPrice = new(big.Int).Set(r.Economy.GasPrice)
	return cp
}

// String returns a JSON representation of Rules for logging.
func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}
