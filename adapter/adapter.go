// Package adapter is the port between the accounting core and whatever
// actually moves an underlying asset in or out of the ledger.
//
// The core never touches external holdings directly. Take pays out through
// PayOut, Settle reads NotifyReceived, and an aborted session undoes both
// through the Reverse methods in reverse call order.
package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/flashledger/id"
	"github.com/xraph/flashledger/types"
)

var (
	// ErrInsufficientReserves is returned when a payout exceeds what the
	// adapter holds for the asset.
	ErrInsufficientReserves = errors.New("flashledger/adapter: insufficient reserves")

	// ErrInsufficientFunds is returned when an external account deposits
	// more than it holds.
	ErrInsufficientFunds = errors.New("flashledger/adapter: insufficient external funds")

	// ErrUnknownTransfer is returned when reversing a payout the adapter
	// never issued or already reversed.
	ErrUnknownTransfer = errors.New("flashledger/adapter: unknown transfer")

	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = errors.New("flashledger/adapter: amount must be positive")
)

// Transfer is a payout issued to an external recipient.
type Transfer struct {
	ID        id.TransferID `json:"id"`
	Asset     types.Asset   `json:"asset"`
	Recipient types.Owner   `json:"recipient"`
	Amount    int64         `json:"amount"`
	At        time.Time     `json:"at"`
}

// Receipt is inbound value recognized by a settle.
type Receipt struct {
	ID     id.ReceiptID `json:"id"`
	Asset  types.Asset  `json:"asset"`
	Amount int64        `json:"amount"`
	At     time.Time    `json:"at"`
}

// Adapter moves underlying assets. Every method is synchronous and either
// fully succeeds or leaves the adapter unchanged.
type Adapter interface {
	// PayOut sends amount of asset to recipient.
	PayOut(ctx context.Context, asset types.Asset, recipient types.Owner, amount int64) (Transfer, error)

	// NotifyReceived returns the amount of asset received since the last
	// checkpoint and advances the checkpoint past it.
	NotifyReceived(ctx context.Context, asset types.Asset) (int64, error)

	// Sync advances the checkpoint to the current holdings without
	// crediting anything, and returns the amount it skipped.
	Sync(ctx context.Context, asset types.Asset) (int64, error)

	// ReversePayOut undoes a payout returned by PayOut.
	ReversePayOut(ctx context.Context, t Transfer) error

	// ReverseReceipt moves the checkpoint back by amount, undoing a
	// NotifyReceived or Sync that advanced it.
	ReverseReceipt(ctx context.Context, asset types.Asset, amount int64) error
}

// Scoped is implemented by adapters that see external movements made while
// a session runs, such as a depositor paying in before Settle. The ledger
// calls BeginScope when a session opens and EndScope when it closes. An
// EndScope that is not committed returns those movements to their senders,
// after every payout and receipt of the session has been reversed.
type Scoped interface {
	BeginScope(ctx context.Context)
	EndScope(ctx context.Context, committed bool) error
}
