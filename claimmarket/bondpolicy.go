package claimmarket

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/claimstake/oracle"
	"github.com/offchainlabs/claimstake/util/bigmath"
)

// BondPolicy computes the stake required to create or dispute an assertion.
// The oracle's published minimum can move at any time, so it is queried fresh
// on every call; the policy holds no mutable state.
type BondPolicy struct {
	defaultBond *big.Int
	asset       common.Address
	client      oracle.Client
}

func NewBondPolicy(client oracle.Client, asset common.Address, defaultBond *big.Int) *BondPolicy {
	return &BondPolicy{
		defaultBond: new(big.Int).Set(defaultBond),
		asset:       asset,
		client:      client,
	}
}

func (p *BondPolicy) RequiredBond(ctx context.Context) (*big.Int, error) {
	minimum, err := p.client.MinimumBond(ctx, p.asset)
	if err != nil {
		return nil, err
	}
	return bigmath.BigMax(p.defaultBond, minimum), nil
}
