package claimmarket

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/claimstake/oracle"
	"github.com/offchainlabs/claimstake/util/bigmath"
)

type Status uint8

const (
	StatusActive Status = iota
	StatusDisputed
	StatusResolvedTrue
	StatusResolvedFalse
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s == StatusResolvedTrue || s == StatusResolvedFalse
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDisputed:
		return "disputed"
	case StatusResolvedTrue:
		return "resolved-true"
	case StatusResolvedFalse:
		return "resolved-false"
	default:
		return "unknown"
	}
}

// Assertion is the registry record for one claim. Records are never deleted;
// a withdrawn assertion stays on the ledger as its own audit trail.
//
// StakeReturned is nil until settlement completes, then set exactly once to
// the wrapped-asset delta the oracle paid back for this assertion. The payout
// is computed only from WagerAmount and StakeReturned, never from the pooled
// custody balance.
type Assertion struct {
	ID            oracle.AssertionID
	Claimant      common.Address
	CreatedAt     time.Time
	Status        Status
	StakeAmount   *big.Int
	WagerAmount   *big.Int
	Challenger    common.Address
	Withdrawn     bool
	StakeReturned *big.Int
}

// clone returns a snapshot safe to hand outside the registry lock.
func (a *Assertion) clone() *Assertion {
	out := *a
	out.StakeAmount = bigmath.BigCopyOrZero(a.StakeAmount)
	out.WagerAmount = bigmath.BigCopyOrZero(a.WagerAmount)
	if a.StakeReturned != nil {
		out.StakeReturned = new(big.Int).Set(a.StakeReturned)
	}
	return &out
}

// AuditStore receives write-behind copies of every record mutation. The
// in-memory registry stays authoritative; store failures are logged by the
// market and never fail the triggering operation.
type AuditStore interface {
	InsertAssertion(a *Assertion) error
	UpdateAssertion(a *Assertion) error
	InsertSettlement(id oracle.AssertionID, recipient common.Address, amount *big.Int) error
}
