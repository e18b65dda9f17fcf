// Copyright 2024-2025, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package oracle defines the gateway to the external optimistic oracle and to
// the wrapped-asset vault that holds the custody account's pooled funds.
// Neither interface owns any assertion state; every fault the oracle raises
// (unknown id, already settled, liveness violation, insufficient bond) is
// surfaced to the caller unmodified.
package oracle

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AssertionID is the opaque identifier the oracle assigns to a claim when it
// is submitted. Identifiers are never generated locally and never reused.
type AssertionID common.Hash

func (id AssertionID) Hash() common.Hash {
	return common.Hash(id)
}

func (id AssertionID) String() string {
	return common.Hash(id).Hex()
}

// ClaimRequest carries everything the oracle needs to open a new assertion.
type ClaimRequest struct {
	// Claim is the asserted statement. It is forwarded to the oracle and
	// emitted in the creation notification, never stored in the registry.
	Claim []byte
	// StakeOwner receives the bond back from the oracle if the claim holds.
	StakeOwner common.Address
	// CallbackTarget receives the resolution callbacks.
	CallbackTarget common.Address
	// Arbitrator decides disputed claims.
	Arbitrator common.Address
	// Liveness is the window during which the claim may be disputed. The
	// oracle alone enforces it.
	Liveness time.Duration
	// Asset is the wrapped token the bond is denominated in.
	Asset common.Address
	// Bond is the stake backing the claim.
	Bond *big.Int
	// Identifier and Domain tag the claim for the oracle's arbitration.
	Identifier common.Hash
	Domain     common.Hash
}

// Client is the four-operation contract this system depends on. Settle
// triggers the oracle's resolution callback synchronously before returning.
type Client interface {
	SubmitClaim(ctx context.Context, req *ClaimRequest) (AssertionID, error)
	SubmitDispute(ctx context.Context, id AssertionID, disputeOwner common.Address) error
	Settle(ctx context.Context, id AssertionID) error
	MinimumBond(ctx context.Context, asset common.Address) (*big.Int, error)
}

// Vault converts between the native asset and its wrapped form and moves
// funds out of custody. It is a trusted, always-available utility; the
// settlement engine holds no conversion logic of its own.
//
// WrappedBalance reads the custody account's pooled wrapped balance. The pool
// is shared by every live assertion, which is why settlement attributes
// proceeds by snapshot delta instead of reading the pool directly.
type Vault interface {
	Wrap(ctx context.Context, amount *big.Int) error
	Unwrap(ctx context.Context, amount *big.Int) error
	WrappedBalance(ctx context.Context) (*big.Int, error)
	TransferOut(ctx context.Context, to common.Address, amount *big.Int) error
}
