// Copyright 2024-2025, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package oracle

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
)

// ResolutionSink receives dispute and resolution notices observed on chain.
type ResolutionSink interface {
	OnResolved(ctx context.Context, caller common.Address, id AssertionID, verdict bool) error
	OnDisputed(ctx context.Context, caller common.Address, id AssertionID) error
}

// Scanner polls the chain for the oracle's dispute and settlement events and
// forwards them to the sink. It exists for transitions that do not originate
// from this process: a settleAssertion sent by a third party still has to
// reach the local records. Events for assertions the sink does not know are
// expected, since other parties share the same oracle deployment.
type Scanner struct {
	client       *ethclient.Client
	oracleAddr   common.Address
	sink         ResolutionSink
	pollInterval time.Duration

	oracleAbi     abi.ABI
	disputedTopic common.Hash
	settledTopic  common.Hash

	lastBlock uint64
}

func NewScanner(client *ethclient.Client, oracleAddr common.Address, sink ResolutionSink, pollInterval time.Duration) (*Scanner, error) {
	if pollInterval <= 0 {
		return nil, errors.New("scan interval must be greater than 0")
	}
	parsed, err := abi.JSON(strings.NewReader(optimisticOracleABI))
	if err != nil {
		return nil, err
	}
	return &Scanner{
		client:        client,
		oracleAddr:    oracleAddr,
		sink:          sink,
		pollInterval:  pollInterval,
		oracleAbi:     parsed,
		disputedTopic: parsed.Events["AssertionDisputed"].ID,
		settledTopic:  parsed.Events["AssertionSettled"].ID,
	}, nil
}

func (s *Scanner) Start(ctx context.Context) {
	go s.pollLoop(ctx)
}

func (s *Scanner) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.scanOnce(ctx); err != nil {
				log.Error("Scanning oracle events failed", "err", err)
			}
		}
	}
}

func (s *Scanner) scanOnce(ctx context.Context) error {
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return err
	}
	if s.lastBlock == 0 {
		// First poll establishes the starting point; history before the
		// daemon came up is not replayed.
		s.lastBlock = head
		return nil
	}
	if head <= s.lastBlock {
		return nil
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(s.lastBlock + 1),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{s.oracleAddr},
		Topics:    [][]common.Hash{{s.disputedTopic, s.settledTopic}},
	}
	entries, err := s.client.FilterLogs(ctx, query)
	if err != nil {
		return err
	}
	for i := range entries {
		s.handleLog(ctx, &entries[i])
	}
	s.lastBlock = head
	return nil
}

func (s *Scanner) handleLog(ctx context.Context, entry *types.Log) {
	if len(entry.Topics) < 2 {
		return
	}
	id := AssertionID(entry.Topics[1])
	switch entry.Topics[0] {
	case s.disputedTopic:
		if err := s.sink.OnDisputed(ctx, entry.Address, id); err != nil {
			log.Debug("Ignoring dispute event", "assertion", id, "err", err)
		}
	case s.settledTopic:
		vals, err := s.oracleAbi.Unpack("AssertionSettled", entry.Data)
		if err != nil || len(vals) != 1 {
			log.Error("Undecodable AssertionSettled event", "assertion", id, "err", err)
			return
		}
		verdict, ok := vals[0].(bool)
		if !ok {
			log.Error("Undecodable AssertionSettled event", "assertion", id)
			return
		}
		if err := s.sink.OnResolved(ctx, entry.Address, id, verdict); err != nil {
			log.Debug("Ignoring settlement event", "assertion", id, "err", err)
		}
	}
}
