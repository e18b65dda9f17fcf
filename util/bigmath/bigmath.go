// Copyright 2024-2025, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package bigmath

import "math/big"

// BigZero returns a fresh huge equal to zero
func BigZero() *big.Int {
	return new(big.Int)
}

// BigEquals check huge equality
func BigEquals(first, second *big.Int) bool {
	return first.Cmp(second) == 0
}

// BigLessThan check if a huge is less than another
func BigLessThan(first, second *big.Int) bool {
	return first.Cmp(second) < 0
}

// BigGreaterThan check if a huge is greater than another
func BigGreaterThan(first, second *big.Int) bool {
	return first.Cmp(second) > 0
}

// BigMin the minimum of two huges
func BigMin(first, second *big.Int) *big.Int {
	if BigLessThan(first, second) {
		return new(big.Int).Set(first)
	}
	return new(big.Int).Set(second)
}

// BigMax the maximum of two huges
func BigMax(first, second *big.Int) *big.Int {
	if BigGreaterThan(first, second) {
		return new(big.Int).Set(first)
	}
	return new(big.Int).Set(second)
}

// BigAdd two huges
func BigAdd(augend *big.Int, addend *big.Int) *big.Int {
	return new(big.Int).Add(augend, addend)
}

// BigSub a huge from another
func BigSub(minuend *big.Int, subtrahend *big.Int) *big.Int {
	return new(big.Int).Sub(minuend, subtrahend)
}

// BigClampZero returns the value, or zero if the value is negative
func BigClampZero(value *big.Int) *big.Int {
	if value.Sign() < 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(value)
}

// BigCopyOrZero copies a huge, mapping nil to zero
func BigCopyOrZero(value *big.Int) *big.Int {
	if value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(value)
}
