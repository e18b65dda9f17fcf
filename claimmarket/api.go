package claimmarket

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/offchainlabs/claimstake/oracle"
)

const Namespace = "claimstake"

// MarketAPI exposes the public operations over JSON-RPC under the
// "claimstake" namespace.
type MarketAPI struct {
	market *Market
}

func NewMarketAPI(market *Market) *MarketAPI {
	return &MarketAPI{market: market}
}

type JsonAssertion struct {
	Id            common.Hash    `json:"id"`
	Claimant      common.Address `json:"claimant"`
	CreatedAt     uint64         `json:"createdAt"`
	Status        string         `json:"status"`
	Stake         *hexutil.Big   `json:"stake"`
	Wager         *hexutil.Big   `json:"wager"`
	Challenger    common.Address `json:"challenger"`
	Withdrawn     bool           `json:"withdrawn"`
	StakeReturned *hexutil.Big   `json:"stakeReturned,omitempty"`
}

type JsonWithdrawal struct {
	Recipient common.Address `json:"recipient"`
	Amount    *hexutil.Big   `json:"amount"`
}

func assertionToJson(a *Assertion) *JsonAssertion {
	out := &JsonAssertion{
		Id:         a.ID.Hash(),
		Claimant:   a.Claimant,
		CreatedAt:  uint64(a.CreatedAt.Unix()),
		Status:     a.Status.String(),
		Stake:      (*hexutil.Big)(a.StakeAmount),
		Wager:      (*hexutil.Big)(a.WagerAmount),
		Challenger: a.Challenger,
		Withdrawn:  a.Withdrawn,
	}
	if a.StakeReturned != nil {
		out.StakeReturned = (*hexutil.Big)(a.StakeReturned)
	}
	return out
}

func (a *MarketAPI) Create(ctx context.Context, claimant common.Address, totalValue *hexutil.Big, claim string) (common.Hash, error) {
	id, err := a.market.Create(ctx, claimant, totalValue.ToInt(), []byte(claim))
	if err != nil {
		return common.Hash{}, err
	}
	return id.Hash(), nil
}

func (a *MarketAPI) Dispute(ctx context.Context, id common.Hash, challenger common.Address, value *hexutil.Big) error {
	return a.market.Dispute(ctx, oracle.AssertionID(id), challenger, value.ToInt())
}

func (a *MarketAPI) Settle(ctx context.Context, id common.Hash) error {
	return a.market.Settle(ctx, oracle.AssertionID(id))
}

func (a *MarketAPI) Withdraw(ctx context.Context, id common.Hash) (*JsonWithdrawal, error) {
	recipient, amount, err := a.market.Withdraw(ctx, oracle.AssertionID(id))
	if err != nil {
		return nil, err
	}
	return &JsonWithdrawal{
		Recipient: recipient,
		Amount:    (*hexutil.Big)(amount),
	}, nil
}

func (a *MarketAPI) RequiredBond(ctx context.Context) (*hexutil.Big, error) {
	bond, err := a.market.RequiredBond(ctx)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(bond), nil
}

func (a *MarketAPI) Assertion(_ context.Context, id common.Hash) (*JsonAssertion, error) {
	record, err := a.market.Assertion(oracle.AssertionID(id))
	if err != nil {
		return nil, err
	}
	return assertionToJson(record), nil
}
