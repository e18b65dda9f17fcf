package claimmarket

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/pkg/errors"

	"github.com/offchainlabs/claimstake/oracle"
)

var unauthorizedCallbackCounter = metrics.NewRegisteredCounter("claimstake/callback/unauthorized", nil)

// CallbackValidator sits between the oracle and the registry. It is the only
// path by which a resolution can reach an assertion record, and it refuses
// every caller except the registered oracle address.
type CallbackValidator struct {
	market     *Market
	oracleAddr common.Address
}

func NewCallbackValidator(market *Market, oracleAddr common.Address) *CallbackValidator {
	return &CallbackValidator{
		market:     market,
		oracleAddr: oracleAddr,
	}
}

// OnResolved applies the oracle's verdict. Replays and late duplicates hit
// the registry's terminal-status no-op, so a second, differently-valued
// verdict can never flip an already-resolved assertion.
func (v *CallbackValidator) OnResolved(ctx context.Context, caller common.Address, id oracle.AssertionID, verdict bool) error {
	if caller != v.oracleAddr {
		unauthorizedCallbackCounter.Inc(1)
		return errors.Wrapf(ErrUnauthorized, "resolution callback from %v, oracle is %v", caller, v.oracleAddr)
	}
	return v.market.applyResolution(ctx, id, verdict)
}

// OnDisputed covers disputes raised through the oracle directly, bypassing
// the market's own dispute entry point. When the local path already ran it
// is a no-op.
func (v *CallbackValidator) OnDisputed(ctx context.Context, caller common.Address, id oracle.AssertionID) error {
	if caller != v.oracleAddr {
		unauthorizedCallbackCounter.Inc(1)
		return errors.Wrapf(ErrUnauthorized, "dispute callback from %v, oracle is %v", caller, v.oracleAddr)
	}
	return v.market.applyDisputeNotice(ctx, id)
}
