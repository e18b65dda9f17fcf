package claimmarket

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/offchainlabs/claimstake/events"
	"github.com/offchainlabs/claimstake/oracle"
	"github.com/offchainlabs/claimstake/util/bigmath"
)

// Settle asks the oracle to finalize an assertion and records the proceeds.
//
// The oracle pays settlement proceeds into the custody account's pooled
// wrapped balance, which is shared by every assertion. The only value
// guaranteed to belong to this assertion is the balance delta observed
// strictly around this one settle call, so that delta is what gets recorded
// as StakeReturned. The oracle's resolution callback fires synchronously
// inside the settle call, between the two snapshots.
func (m *Market) Settle(ctx context.Context, id oracle.AssertionID) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	a, ok := m.assertions[id]
	m.mu.RUnlock()
	if !ok {
		return errors.Wrapf(ErrNotFound, "assertion %v", id)
	}

	before, err := m.vault.WrappedBalance(ctx)
	if err != nil {
		return err
	}
	if err := m.client.Settle(ctx, id); err != nil {
		return err
	}
	after, err := m.vault.WrappedBalance(ctx)
	if err != nil {
		return err
	}
	returned := bigmath.BigClampZero(bigmath.BigSub(after, before))

	m.mu.Lock()
	if a.StakeReturned == nil {
		a.StakeReturned = returned
	}
	snapshot := a.clone()
	m.mu.Unlock()

	settledCounter.Inc(1)
	log.Info("Assertion settled", "id", id, "stakeReturned", returned, "status", snapshot.Status)
	m.audit(func(s AuditStore) error { return s.UpdateAssertion(snapshot) })
	return nil
}

// Withdraw releases the payout for a resolved assertion. Anyone may trigger
// it; the destination is always the computed winner. The withdrawn flag is
// set before any funds move, and is rolled back if the vault refuses the
// transfer so that a failed call leaves no state effect.
func (m *Market) Withdraw(ctx context.Context, id oracle.AssertionID) (common.Address, *big.Int, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	a, ok := m.assertions[id]
	if !ok {
		m.mu.Unlock()
		return common.Address{}, nil, errors.Wrapf(ErrNotFound, "assertion %v", id)
	}
	if !a.Status.Terminal() {
		m.mu.Unlock()
		return common.Address{}, nil, errors.Wrapf(ErrNotResolved, "assertion %v is %v", id, a.Status)
	}
	if a.Withdrawn {
		m.mu.Unlock()
		return common.Address{}, nil, errors.Wrapf(ErrAlreadyWithdrawn, "assertion %v", id)
	}

	// A false resolution with no recorded challenger routes funds back to
	// the claimant rather than stranding them. Defensive only: the oracle
	// does not resolve false without a dispute.
	winner := a.Claimant
	if a.Status == StatusResolvedFalse && a.Challenger != (common.Address{}) {
		winner = a.Challenger
	}
	stakeReturned := bigmath.BigCopyOrZero(a.StakeReturned)
	payout := bigmath.BigAdd(a.WagerAmount, stakeReturned)
	if payout.Sign() == 0 {
		m.mu.Unlock()
		return common.Address{}, nil, errors.Wrapf(ErrNothingToWithdraw, "assertion %v", id)
	}
	a.Withdrawn = true
	snapshot := a.clone()
	m.mu.Unlock()

	if err := m.release(ctx, winner, payout, stakeReturned); err != nil {
		m.mu.Lock()
		a.Withdrawn = false
		m.mu.Unlock()
		return common.Address{}, nil, err
	}

	withdrawnCounter.Inc(1)
	log.Info("Assertion payout withdrawn", "id", id, "recipient", winner, "amount", payout)
	m.audit(func(s AuditStore) error {
		if err := s.UpdateAssertion(snapshot); err != nil {
			return err
		}
		return s.InsertSettlement(id, winner, payout)
	})

	n := events.NewNotification(events.KindWithdrawn, id.Hash())
	n.Recipient = winner.Hex()
	n.Amount = payout.String()
	m.pub.Publish(ctx, n)
	return winner, payout, nil
}

// release converts the oracle proceeds back to the native asset and pays the
// winner. On failure the stake is re-wrapped so custody's books still match
// the ledger.
func (m *Market) release(ctx context.Context, winner common.Address, payout, stakeReturned *big.Int) error {
	if stakeReturned.Sign() > 0 {
		if err := m.vault.Unwrap(ctx, stakeReturned); err != nil {
			return errors.Wrapf(ErrTransferFailed, "unwrapping %v: %v", stakeReturned, err)
		}
	}
	if err := m.vault.TransferOut(ctx, winner, payout); err != nil {
		if stakeReturned.Sign() > 0 {
			if werr := m.vault.Wrap(ctx, stakeReturned); werr != nil {
				log.Error("Could not re-wrap stake after failed payout", "amount", stakeReturned, "err", werr)
			}
		}
		return errors.Wrapf(ErrTransferFailed, "paying %v to %v: %v", payout, winner, err)
	}
	return nil
}
