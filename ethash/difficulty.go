// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package ethash

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/rony4d/go-ethrelay/ethrelay"
)

var (
	big1          = big.NewInt(1)
	big2          = big.NewInt(2)
	bigMinus99    = big.NewInt(-99)
	expDiffPeriod = big.NewInt(100000)
)

// CalcDifficulty is the difficulty adjustment algorithm. It returns the
// difficulty that a new block should have when created at time given the
// parent block's time and difficulty.
//
// The rules are Byzantium's, with the bomb pushed back by rules.BombDelay:
//
//	diff = parent_diff + (parent_diff / bound_divisor *
//	         max((2 if len(parent.uncles) else 1) - ((timestamp - parent.timestamp) // step), -99))
//	       + 2^(periodCount - 2)
func CalcDifficulty(rules ethrelay.EthashRules, time uint64, parent *types.Header) *big.Int {
	// Note, the calculations below looks at the parent number, which is 1 below
	// the block number. Thus we remove one from the delay given
	bombDelayFromParent := new(big.Int).SetUint64(rules.BombDelay)
	if bombDelayFromParent.Sign() > 0 {
		bombDelayFromParent.Sub(bombDelayFromParent, big1)
	}

	bigTime := new(big.Int).SetUint64(time)
	bigParentTime := new(big.Int).SetUint64(parent.Time)

	// holds intermediate values to make the algo easier to read & audit
	x := new(big.Int)
	y := new(big.Int)

	// (2 if len(parent_uncles) else 1) - (block_timestamp - parent_timestamp) // step
	x.Sub(bigTime, bigParentTime)
	x.Div(x, new(big.Int).SetUint64(rules.BlockTimeStep))
	if parent.UncleHash == types.EmptyUncleHash {
		x.Sub(big1, x)
	} else {
		x.Sub(big2, x)
	}
	// max((2 if len(parent_uncles) else 1) - (block_timestamp - parent_timestamp) // step, -99)
	if x.Cmp(bigMinus99) < 0 {
		x.Set(bigMinus99)
	}
	// parent_diff + (parent_diff / bound_divisor * max(...))
	y.Div(parent.Difficulty, rules.DifficultyBoundDivisor)
	x.Mul(y, x)
	x.Add(parent.Difficulty, x)

	// minimum difficulty can ever be (before exponential factor)
	if x.Cmp(rules.MinimumDifficulty) < 0 {
		x.Set(rules.MinimumDifficulty)
	}
	// calculate a fake block number for the ice-age delay
	fakeBlockNumber := new(big.Int)
	if parent.Number.Cmp(bombDelayFromParent) >= 0 {
		fakeBlockNumber = fakeBlockNumber.Sub(parent.Number, bombDelayFromParent)
	}
	// for the exponential factor
	periodCount := fakeBlockNumber
	periodCount.Div(periodCount, expDiffPeriod)

	// the exponential factor, commonly referred to as "the bomb"
	// diff = diff + 2^(periodCount - 2)
	if periodCount.Cmp(big1) > 0 {
		y.Sub(periodCount, big2)
		y.Exp(big2, y, nil)
		x.Add(x, y)
	}
	return x
}
