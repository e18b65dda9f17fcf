// Copyright 2024-2025, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package bigmath

import (
	"math/big"
	"testing"
)

func TestBigMinMax(t *testing.T) {
	small := big.NewInt(7)
	large := big.NewInt(1e9)

	if !BigEquals(BigMax(small, large), large) {
		t.Fatal("expected max to pick the larger huge")
	}
	if !BigEquals(BigMin(small, large), small) {
		t.Fatal("expected min to pick the smaller huge")
	}

	// results must be copies, not aliases
	got := BigMax(small, large)
	got.SetInt64(0)
	if large.Int64() != 1e9 {
		t.Fatal("BigMax aliased its argument")
	}
}

func TestBigClampZero(t *testing.T) {
	if BigClampZero(big.NewInt(-5)).Sign() != 0 {
		t.Fatal("negative huge should clamp to zero")
	}
	if BigClampZero(big.NewInt(5)).Int64() != 5 {
		t.Fatal("positive huge should pass through")
	}
}

func TestBigCopyOrZero(t *testing.T) {
	if BigCopyOrZero(nil).Sign() != 0 {
		t.Fatal("nil should map to zero")
	}
	orig := big.NewInt(42)
	copied := BigCopyOrZero(orig)
	copied.SetInt64(0)
	if orig.Int64() != 42 {
		t.Fatal("BigCopyOrZero aliased its argument")
	}
}

func TestBigArithmetic(t *testing.T) {
	sum := BigAdd(big.NewInt(3), big.NewInt(4))
	if sum.Int64() != 7 {
		t.Fatal("bad sum", sum)
	}
	diff := BigSub(big.NewInt(3), big.NewInt(4))
	if diff.Int64() != -1 {
		t.Fatal("bad difference", diff)
	}
}
