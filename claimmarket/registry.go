// Package claimmarket implements the assertion lifecycle state machine and
// the settlement/custody engine. One party stakes value on the truth of a
// claim, any other party may contest it, and the external optimistic oracle
// decides who is right. The market stands in for both parties toward the
// oracle and tracks the real end users internally.
package claimmarket

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/pkg/errors"

	"github.com/offchainlabs/claimstake/events"
	"github.com/offchainlabs/claimstake/oracle"
	"github.com/offchainlabs/claimstake/util/bigmath"
)

var (
	createdCounter    = metrics.NewRegisteredCounter("claimstake/assertion/created", nil)
	disputedCounter   = metrics.NewRegisteredCounter("claimstake/assertion/disputed", nil)
	resolvedCounter   = metrics.NewRegisteredCounter("claimstake/assertion/resolved", nil)
	settledCounter    = metrics.NewRegisteredCounter("claimstake/assertion/settled", nil)
	withdrawnCounter  = metrics.NewRegisteredCounter("claimstake/assertion/withdrawn", nil)
	auditErrorCounter = metrics.NewRegisteredCounter("claimstake/audit/error", nil)
)

// Market owns every assertion record. All state transitions flow through it:
// Create and Dispute from end users, resolution from the oracle via the
// CallbackValidator, Settle and Withdraw from anyone willing to pay the
// operational cost.
//
// opMu serializes the custody-mutating operations for their full duration,
// which both rules out re-entrancy and makes each operation atomic with
// respect to the others. mu guards the record map with short critical
// sections so the oracle's resolution callback, which arrives synchronously
// from inside Settle, can transition status without touching opMu.
type Market struct {
	opMu sync.Mutex
	mu   sync.RWMutex

	assertions map[oracle.AssertionID]*Assertion

	client oracle.Client
	vault  oracle.Vault
	policy *BondPolicy
	pub    events.Publisher
	store  AuditStore

	custodian      common.Address
	callbackTarget common.Address
	arbitrator     common.Address
	asset          common.Address
	liveness       time.Duration
	identifier     common.Hash
	domain         common.Hash
}

func NewMarket(cfg *Config, client oracle.Client, vault oracle.Vault, pub events.Publisher, store AuditStore) (*Market, error) {
	defaultBond, err := cfg.defaultBond()
	if err != nil {
		return nil, err
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	asset := common.HexToAddress(cfg.Asset)
	return &Market{
		assertions:     make(map[oracle.AssertionID]*Assertion),
		client:         client,
		vault:          vault,
		policy:         NewBondPolicy(client, asset, defaultBond),
		pub:            pub,
		store:          store,
		custodian:      common.HexToAddress(cfg.Custodian),
		callbackTarget: common.HexToAddress(cfg.CallbackTarget),
		arbitrator:     common.HexToAddress(cfg.Arbitrator),
		asset:          asset,
		liveness:       cfg.Liveness,
		identifier:     tag32(cfg.Identifier),
		domain:         tag32(cfg.Domain),
	}, nil
}

// RequiredBond returns the effective bond for creating or disputing right
// now. The oracle's minimum is re-queried on every call.
func (m *Market) RequiredBond(ctx context.Context) (*big.Int, error) {
	return m.policy.RequiredBond(ctx)
}

// Assertion returns a snapshot of the full record.
func (m *Market) Assertion(id oracle.AssertionID) (*Assertion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assertions[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "assertion %v", id)
	}
	return a.clone(), nil
}

// Create opens a new assertion. totalValue must cover the required bond; the
// remainder becomes the wager held directly in custody. The stake is wrapped
// and delegated to the oracle, which assigns the identifier.
func (m *Market) Create(ctx context.Context, claimant common.Address, totalValue *big.Int, claim []byte) (oracle.AssertionID, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	bond, err := m.policy.RequiredBond(ctx)
	if err != nil {
		return oracle.AssertionID{}, err
	}
	if bigmath.BigLessThan(totalValue, bond) {
		return oracle.AssertionID{}, errors.Wrapf(ErrInsufficientFunds, "total %v below required bond %v", totalValue, bond)
	}
	stake := new(big.Int).Set(bond)
	wager := bigmath.BigSub(totalValue, stake)

	if err := m.vault.Wrap(ctx, stake); err != nil {
		return oracle.AssertionID{}, err
	}
	id, err := m.client.SubmitClaim(ctx, &oracle.ClaimRequest{
		Claim:          claim,
		StakeOwner:     m.custodian,
		CallbackTarget: m.callbackTarget,
		Arbitrator:     m.arbitrator,
		Liveness:       m.liveness,
		Asset:          m.asset,
		Bond:           stake,
		Identifier:     m.identifier,
		Domain:         m.domain,
	})
	if err != nil {
		// A failed call must leave no state effect: undo the conversion.
		if uerr := m.vault.Unwrap(ctx, stake); uerr != nil {
			log.Error("Could not unwind stake conversion after failed claim submission", "stake", stake, "err", uerr)
		}
		return oracle.AssertionID{}, err
	}

	a := &Assertion{
		ID:          id,
		Claimant:    claimant,
		CreatedAt:   time.Now(),
		Status:      StatusActive,
		StakeAmount: stake,
		WagerAmount: wager,
	}
	m.mu.Lock()
	m.assertions[id] = a
	snapshot := a.clone()
	m.mu.Unlock()

	createdCounter.Inc(1)
	log.Info("Assertion created", "id", id, "claimant", claimant, "stake", stake, "wager", wager)
	m.audit(func(s AuditStore) error { return s.InsertAssertion(snapshot) })

	n := events.NewNotification(events.KindCreated, id.Hash())
	n.Claimant = claimant.Hex()
	n.Stake = stake.String()
	n.Wager = wager.String()
	n.Claim = string(claim)
	m.pub.Publish(ctx, n)
	return id, nil
}

// Dispute contests an active assertion. The challenger's value must cover the
// required bond; any excess is returned immediately. The oracle enforces the
// liveness cutoff itself, so a late dispute fails through the gateway.
func (m *Market) Dispute(ctx context.Context, id oracle.AssertionID, challenger common.Address, value *big.Int) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	a, ok := m.assertions[id]
	var status Status
	var claimant common.Address
	if ok {
		status = a.Status
		claimant = a.Claimant
	}
	m.mu.RUnlock()

	if !ok {
		return errors.Wrapf(ErrNotFound, "assertion %v", id)
	}
	if status != StatusActive {
		return errors.Wrapf(ErrNotActive, "assertion %v is %v", id, status)
	}
	if challenger == claimant {
		return errors.Wrapf(ErrSelfDispute, "claimant %v cannot dispute its own assertion", challenger)
	}
	bond, err := m.policy.RequiredBond(ctx)
	if err != nil {
		return err
	}
	if bigmath.BigLessThan(value, bond) {
		return errors.Wrapf(ErrInsufficientFunds, "value %v below required bond %v", value, bond)
	}

	if err := m.vault.Wrap(ctx, bond); err != nil {
		return err
	}
	if err := m.client.SubmitDispute(ctx, id, m.custodian); err != nil {
		if uerr := m.vault.Unwrap(ctx, bond); uerr != nil {
			log.Error("Could not unwind bond conversion after failed dispute submission", "bond", bond, "err", uerr)
		}
		return err
	}

	m.mu.Lock()
	a.Challenger = challenger
	a.Status = StatusDisputed
	snapshot := a.clone()
	m.mu.Unlock()

	excess := bigmath.BigSub(value, bond)
	if excess.Sign() > 0 {
		if err := m.vault.TransferOut(ctx, challenger, excess); err != nil {
			return errors.Wrapf(ErrTransferFailed, "returning excess %v to challenger %v: %v", excess, challenger, err)
		}
	}

	disputedCounter.Inc(1)
	log.Info("Assertion disputed", "id", id, "challenger", challenger, "bond", bond)
	m.audit(func(s AuditStore) error { return s.UpdateAssertion(snapshot) })

	n := events.NewNotification(events.KindDisputed, id.Hash())
	n.Challenger = challenger.Hex()
	n.Bond = bond.String()
	m.pub.Publish(ctx, n)
	return nil
}

// applyResolution moves an assertion to its terminal status, exactly once.
// A second callback is a silent no-op no matter what verdict it carries, so
// replays can never flip a resolved assertion. Reached only through the
// CallbackValidator.
func (m *Market) applyResolution(ctx context.Context, id oracle.AssertionID, verdict bool) error {
	m.mu.Lock()
	a, ok := m.assertions[id]
	if !ok {
		m.mu.Unlock()
		return errors.Wrapf(ErrNotFound, "assertion %v", id)
	}
	if a.Status.Terminal() {
		m.mu.Unlock()
		log.Debug("Ignoring resolution callback for terminal assertion", "id", id, "status", a.Status, "verdict", verdict)
		return nil
	}
	if verdict {
		a.Status = StatusResolvedTrue
	} else {
		a.Status = StatusResolvedFalse
	}
	snapshot := a.clone()
	m.mu.Unlock()

	resolvedCounter.Inc(1)
	log.Info("Assertion resolved", "id", id, "verdict", verdict)
	m.audit(func(s AuditStore) error { return s.UpdateAssertion(snapshot) })

	n := events.NewNotification(events.KindResolved, id.Hash())
	n.Verdict = &verdict
	m.pub.Publish(ctx, n)
	return nil
}

// applyDisputeNotice is the safety net for disputes raised through the
// oracle directly rather than through Dispute. If our own dispute path
// already ran, this is a no-op; otherwise only the status moves and the
// challenger stays unrecorded.
func (m *Market) applyDisputeNotice(_ context.Context, id oracle.AssertionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assertions[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "assertion %v", id)
	}
	if a.Status != StatusActive {
		return nil
	}
	a.Status = StatusDisputed
	log.Warn("Dispute observed via oracle callback without a local dispute entry", "id", id)
	return nil
}

func (m *Market) audit(fn func(AuditStore) error) {
	if m.store == nil {
		return
	}
	if err := fn(m.store); err != nil {
		auditErrorCounter.Inc(1)
		log.Error("Audit store write failed", "err", err)
	}
}
