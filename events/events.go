// Package events carries the fire-and-forget notifications the settlement
// engine emits for off-ledger indexing. Nothing in the core ever reads a
// notification back; a publisher that fails only logs.
package events

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
)

type Kind string

const (
	KindCreated   Kind = "assertion.created"
	KindDisputed  Kind = "assertion.disputed"
	KindResolved  Kind = "assertion.resolved"
	KindWithdrawn Kind = "assertion.withdrawn"
)

// Notification is the JSON envelope appended to the indexing stream. Amounts
// are decimal strings so indexers need no 256-bit integer support. The claim
// text appears only here, never in the registry record.
type Notification struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	AssertionID string    `json:"assertionId"`
	At          time.Time `json:"at"`

	Claimant   string `json:"claimant,omitempty"`
	Challenger string `json:"challenger,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
	Stake      string `json:"stake,omitempty"`
	Wager      string `json:"wager,omitempty"`
	Bond       string `json:"bond,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Verdict    *bool  `json:"verdict,omitempty"`
	Claim      string `json:"claim,omitempty"`
}

func NewNotification(kind Kind, assertionID common.Hash) *Notification {
	return &Notification{
		ID:          uuid.NewString(),
		Kind:        kind,
		AssertionID: assertionID.Hex(),
		At:          time.Now().UTC(),
	}
}

// Publisher delivers notifications somewhere external. Implementations must
// never fail the triggering operation: errors are logged and dropped.
type Publisher interface {
	Publish(ctx context.Context, n *Notification)
}

// NopPublisher drops every notification.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Notification) {}

// LogPublisher writes notifications to the structured log, which is enough
// for deployments without an indexing stream.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, n *Notification) {
	log.Info("assertion notification",
		"kind", n.Kind, "assertion", n.AssertionID, "claimant", n.Claimant,
		"challenger", n.Challenger, "recipient", n.Recipient, "amount", n.Amount)
}

// Publishers fans a notification out to several sinks.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, n *Notification) {
	for _, p := range ps {
		p.Publish(ctx, n)
	}
}
