package txverify

import (
	"math/big"

	"github.com/rony4d/go-ethrelay/ethrelay"
)

// FeeOracle prices the verification of one transaction.
type FeeOracle interface {
	RequiredFee() *big.Int
}

// FixedFee charges the same amount for every verification.
type FixedFee struct {
	Fee *big.Int
}

func (f FixedFee) RequiredFee() *big.Int {
	return new(big.Int).Set(f.Fee)
}

// GasPriceFee charges gasPrice * verificationGas.
type GasPriceFee struct {
	GasPrice *big.Int
	Gas      uint64
}

func (f GasPriceFee) RequiredFee() *big.Int {
	fee := new(big.Int).SetUint64(f.Gas)
	return fee.Mul(fee, f.GasPrice)
}

// NewFeeOracle returns the gas-priced oracle of the economy rules.
func NewFeeOracle(rules ethrelay.EconomyRules) FeeOracle {
	return GasPriceFee{
		GasPrice: new(big.Int).Set(rules.GasPrice),
		Gas:      rules.VerificationGas,
	}
}
