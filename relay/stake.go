package relay

import (
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/rony4d/go-ethrelay/ethrelay"
	"github.com/rony4d/go-ethrelay/inter"
	"github.com/rony4d/go-ethrelay/relaydb"
	"github.com/rony4d/go-ethrelay/relayerr"
)

var (
	depositMeter  = metrics.NewRegisteredMeter("relay/stake/deposits", nil)
	consumedBlock = metrics.NewRegisteredCounter("relay/stake/consumed", nil)
)

// StakeLedger tracks submitter collateral. Every stored header, competing
// ones included, consumes one covered block, and a deposit must always pay
// RequiredStakePerBlock for each covered block. On top of that, relaying
// block N needs RequiredStakePerBlock * (N - genesis). Deposits only grow.
type StakeLedger struct {
	store *relaydb.Store
	rules ethrelay.EconomyRules
	log   log.Logger
}

// NewStakeLedger creates a stake ledger over the shared relay store.
func NewStakeLedger(store *relaydb.Store, rules ethrelay.EconomyRules) *StakeLedger {
	return &StakeLedger{
		store: store,
		rules: rules,
		log:   log.New("module", "stake"),
	}
}

// Deposit adds amount to a submitter's stake.
func (s *StakeLedger) Deposit(submitter common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidDeposit
	}
	return s.store.Update(func(txn relaydb.Txn) error {
		stake, err := readStake(txn, submitter)
		if err != nil {
			return err
		}
		stake.Amount.Add(stake.Amount, amount)
		if err := relaydb.WriteStake(txn, stake); err != nil {
			return err
		}
		txn.OnCommit(func() {
			depositMeter.Mark(1)
			s.log.Debug("Stake deposited", "submitter", submitter, "amount", amount, "total", stake.Amount)
		})
		return nil
	})
}

// StakeOf returns a submitter's deposit, zero-valued if none was made.
func (s *StakeLedger) StakeOf(submitter common.Address) (stake *inter.StakeDeposit, err error) {
	err = s.store.View(func(r relaydb.Reader) error {
		stake, err = readStake(r, submitter)
		return err
	})
	return stake, err
}

// RequiredStake returns the deposit needed to relay the header at number.
func (s *StakeLedger) RequiredStake(genesis, number idx.Block) *big.Int {
	if number <= genesis {
		return new(big.Int)
	}
	return s.perBlock(uint64(number - genesis))
}

func (s *StakeLedger) perBlock(blocks uint64) *big.Int {
	required := new(big.Int).SetUint64(blocks)
	return required.Mul(required, s.rules.RequiredStakePerBlock)
}

// Check tells whether submitter may relay the header at number, given the
// blocks its deposit already covers.
func (s *StakeLedger) Check(submitter common.Address, number idx.Block) error {
	return s.store.View(func(r relaydb.Reader) error {
		return s.check(r, submitter, number)
	})
}

func (s *StakeLedger) check(r relaydb.Reader, submitter common.Address, number idx.Block) error {
	genesis, _, err := relaydb.ReadGenesisNumber(r)
	if err != nil {
		return err
	}
	stake, err := readStake(r, submitter)
	if err != nil {
		return err
	}
	required := s.RequiredStake(genesis, number)
	if stake.Amount.Cmp(required) < 0 {
		return relayerr.Wrap(ErrInsufficientStake, "have %v, need %v", stake.Amount, required)
	}
	covered := s.perBlock(stake.CoveredBlocks + 1)
	if stake.Amount.Cmp(covered) < 0 {
		return relayerr.Wrap(ErrInsufficientStake, "have %v, need %v to cover %d blocks", stake.Amount, covered, stake.CoveredBlocks+1)
	}
	return nil
}

// consume charges one covered block to the submitter.
func (s *StakeLedger) consume(txn relaydb.Txn, submitter common.Address) error {
	stake, err := readStake(txn, submitter)
	if err != nil {
		return err
	}
	stake.CoveredBlocks++
	if err := relaydb.WriteStake(txn, stake); err != nil {
		return err
	}
	txn.OnCommit(func() { consumedBlock.Inc(1) })
	return nil
}

func readStake(r relaydb.Reader, submitter common.Address) (*inter.StakeDeposit, error) {
	stake, err := relaydb.ReadStake(r, submitter)
	if err != nil {
		return nil, err
	}
	if stake == nil {
		stake = &inter.StakeDeposit{Submitter: submitter, Amount: new(big.Int)}
	}
	if stake.Amount == nil {
		stake.Amount = new(big.Int)
	}
	return stake, nil
}
