// Copyright 2024-2025, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package oracle

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// Hand-written fragments covering exactly the oracle and vault methods the
// gateway uses, in place of full generated bindings.
const optimisticOracleABI = `[
	{"type":"function","name":"assertTruth","stateMutability":"nonpayable","inputs":[
		{"name":"claim","type":"bytes"},
		{"name":"asserter","type":"address"},
		{"name":"callbackRecipient","type":"address"},
		{"name":"escalationManager","type":"address"},
		{"name":"liveness","type":"uint64"},
		{"name":"currency","type":"address"},
		{"name":"bond","type":"uint256"},
		{"name":"identifier","type":"bytes32"},
		{"name":"domainId","type":"bytes32"}],
		"outputs":[{"name":"assertionId","type":"bytes32"}]},
	{"type":"function","name":"disputeAssertion","stateMutability":"nonpayable","inputs":[
		{"name":"assertionId","type":"bytes32"},
		{"name":"disputer","type":"address"}],"outputs":[]},
	{"type":"function","name":"settleAssertion","stateMutability":"nonpayable","inputs":[
		{"name":"assertionId","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"getMinimumBond","stateMutability":"view","inputs":[
		{"name":"currency","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"AssertionMade","anonymous":false,"inputs":[
		{"name":"assertionId","type":"bytes32","indexed":true},
		{"name":"asserter","type":"address","indexed":true}]},
	{"type":"event","name":"AssertionDisputed","anonymous":false,"inputs":[
		{"name":"assertionId","type":"bytes32","indexed":true},
		{"name":"disputer","type":"address","indexed":true}]},
	{"type":"event","name":"AssertionSettled","anonymous":false,"inputs":[
		{"name":"assertionId","type":"bytes32","indexed":true},
		{"name":"settlementResolution","type":"bool","indexed":false}]}
]`

const custodyVaultABI = `[
	{"type":"function","name":"wrap","stateMutability":"nonpayable","inputs":[
		{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"unwrap","stateMutability":"nonpayable","inputs":[
		{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"payout","stateMutability":"nonpayable","inputs":[
		{"name":"recipient","type":"address"},
		{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"wrappedBalance","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"uint256"}]}
]`

// ContractClient is the on-chain implementation of Client, bound to a
// deployed optimistic oracle.
type ContractClient struct {
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
	backend  *ethclient.Client
	txOpts   *bind.TransactOpts
}

func NewContractClient(address common.Address, backend *ethclient.Client, txOpts *bind.TransactOpts) (*ContractClient, error) {
	parsed, err := abi.JSON(strings.NewReader(optimisticOracleABI))
	if err != nil {
		return nil, err
	}
	return &ContractClient{
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:  backend,
		txOpts:   txOpts,
	}, nil
}

func (c *ContractClient) Address() common.Address {
	return c.address
}

func (c *ContractClient) transactOpts(ctx context.Context) *bind.TransactOpts {
	opts := *c.txOpts
	opts.Context = ctx
	return &opts
}

func (c *ContractClient) SubmitClaim(ctx context.Context, req *ClaimRequest) (AssertionID, error) {
	tx, err := c.contract.Transact(c.transactOpts(ctx), "assertTruth",
		req.Claim,
		req.StakeOwner,
		req.CallbackTarget,
		req.Arbitrator,
		uint64(req.Liveness/time.Second),
		req.Asset,
		req.Bond,
		[32]byte(req.Identifier),
		[32]byte(req.Domain),
	)
	if err != nil {
		return AssertionID{}, err
	}
	receipt, err := waitSuccessful(ctx, c.backend, tx)
	if err != nil {
		return AssertionID{}, err
	}
	// The oracle assigns the identifier; recover it from the AssertionMade log.
	topic := c.abi.Events["AssertionMade"].ID
	for _, entry := range receipt.Logs {
		if entry.Address == c.address && len(entry.Topics) >= 2 && entry.Topics[0] == topic {
			return AssertionID(entry.Topics[1]), nil
		}
	}
	return AssertionID{}, errors.Errorf("assertTruth succeeded in tx %v but emitted no AssertionMade log", tx.Hash())
}

func (c *ContractClient) SubmitDispute(ctx context.Context, id AssertionID, disputeOwner common.Address) error {
	tx, err := c.contract.Transact(c.transactOpts(ctx), "disputeAssertion", [32]byte(id), disputeOwner)
	if err != nil {
		return err
	}
	_, err = waitSuccessful(ctx, c.backend, tx)
	return err
}

func (c *ContractClient) Settle(ctx context.Context, id AssertionID) error {
	tx, err := c.contract.Transact(c.transactOpts(ctx), "settleAssertion", [32]byte(id))
	if err != nil {
		return err
	}
	_, err = waitSuccessful(ctx, c.backend, tx)
	return err
}

func (c *ContractClient) MinimumBond(ctx context.Context, asset common.Address) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getMinimumBond", asset); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// ContractVault is the on-chain implementation of Vault, bound to the custody
// vault contract that wraps, unwraps, and pays out the pooled funds.
type ContractVault struct {
	address  common.Address
	contract *bind.BoundContract
	backend  *ethclient.Client
	txOpts   *bind.TransactOpts
}

func NewContractVault(address common.Address, backend *ethclient.Client, txOpts *bind.TransactOpts) (*ContractVault, error) {
	parsed, err := abi.JSON(strings.NewReader(custodyVaultABI))
	if err != nil {
		return nil, err
	}
	return &ContractVault{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:  backend,
		txOpts:   txOpts,
	}, nil
}

func (v *ContractVault) transact(ctx context.Context, method string, args ...interface{}) error {
	opts := *v.txOpts
	opts.Context = ctx
	tx, err := v.contract.Transact(&opts, method, args...)
	if err != nil {
		return err
	}
	_, err = waitSuccessful(ctx, v.backend, tx)
	return err
}

func (v *ContractVault) Wrap(ctx context.Context, amount *big.Int) error {
	return v.transact(ctx, "wrap", amount)
}

func (v *ContractVault) Unwrap(ctx context.Context, amount *big.Int) error {
	return v.transact(ctx, "unwrap", amount)
}

func (v *ContractVault) TransferOut(ctx context.Context, to common.Address, amount *big.Int) error {
	return v.transact(ctx, "payout", to, amount)
}

func (v *ContractVault) WrappedBalance(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := v.contract.Call(&bind.CallOpts{Context: ctx}, &out, "wrappedBalance"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func waitSuccessful(ctx context.Context, backend *ethclient.Client, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, errors.Errorf("transaction %v reverted", tx.Hash())
	}
	return receipt, nil
}
