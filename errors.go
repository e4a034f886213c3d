package flashledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/flashledger/delta"
	"github.com/xraph/flashledger/types"
)

// Sentinel errors for common failure scenarios.
var (
	// Session errors
	ErrAlreadyOpen      = errors.New("flashledger: session already open")
	ErrNoActiveSession  = errors.New("flashledger: no active session")
	ErrUnresolvedDelta  = errors.New("flashledger: unresolved delta")
	ErrCallbackPanicked = errors.New("flashledger: session callback panicked")
	ErrRollbackFailed   = errors.New("flashledger: rollback failed")
	ErrNilCallback      = errors.New("flashledger: nil session callback")
	ErrLedgerStopped    = errors.New("flashledger: ledger stopped")

	// Accounting errors
	ErrInsufficientCredit       = errors.New("flashledger: insufficient credit")
	ErrInsufficientClaimBalance = errors.New("flashledger: insufficient claim balance")
	ErrNothingReceived          = errors.New("flashledger: nothing received")
	ErrTransferFailed           = errors.New("flashledger: transfer failed")
	ErrAuthorizationDenied      = errors.New("flashledger: authorization denied")
	ErrAmountOverflow           = types.ErrAmountOverflow
	ErrTooManyAssets            = delta.ErrTooManyAssets

	// Input errors
	ErrInvalidAmount = errors.New("flashledger: amount must be positive")
	ErrInvalidAsset  = errors.New("flashledger: invalid asset")
	ErrInvalidOwner  = errors.New("flashledger: invalid owner")

	// Store errors
	ErrStoreConflict = errors.New("flashledger: store write conflict")
	ErrStoreClosed   = errors.New("flashledger: store is closed")
	ErrNoAdapter     = errors.New("flashledger: no transfer adapter configured")
)

// UnresolvedDeltaError is returned by Open when a session ends with a
// nonzero delta. Asset and Amount report the lowest unresolved asset;
// Entries lists every one.
type UnresolvedDeltaError struct {
	Asset   types.Asset
	Amount  int64
	Entries []delta.Entry
}

func (e *UnresolvedDeltaError) Error() string {
	if len(e.Entries) <= 1 {
		return fmt.Sprintf("flashledger: unresolved delta: %s %d", e.Asset, e.Amount)
	}
	parts := make([]string, len(e.Entries))
	for i, en := range e.Entries {
		parts[i] = fmt.Sprintf("%s %d", en.Asset, en.Amount)
	}
	return "flashledger: unresolved delta: " + strings.Join(parts, ", ")
}

// Is reports whether target is ErrUnresolvedDelta.
func (e *UnresolvedDeltaError) Is(target error) bool {
	return target == ErrUnresolvedDelta
}

func newUnresolvedDeltaError(entries []delta.Entry) *UnresolvedDeltaError {
	return &UnresolvedDeltaError{
		Asset:   entries[0].Asset,
		Amount:  entries[0].Amount,
		Entries: entries,
	}
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("flashledger: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap returns the sentinel the failure maps to.
func (e ValidationError) Unwrap() error { return e.Err }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "flashledger: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("flashledger: %d errors occurred", len(e.Errors))
}

// Unwrap returns the collected errors for errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrorOrNil returns e if it holds any error, nil otherwise.
func (e MultiError) ErrorOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsSettlementError returns true if the error means the session could not
// settle its deltas.
func IsSettlementError(err error) bool {
	return errors.Is(err, ErrUnresolvedDelta) ||
		errors.Is(err, ErrInsufficientCredit) ||
		errors.Is(err, ErrInsufficientClaimBalance) ||
		errors.Is(err, ErrNothingReceived) ||
		errors.Is(err, ErrTransferFailed)
}

// IsInputError returns true if the error was caused by invalid arguments.
func IsInputError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidAsset) ||
		errors.Is(err, ErrInvalidOwner)
}

// IsRetryable returns true if the error is temporary and a fresh session
// may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAlreadyOpen) ||
		errors.Is(err, ErrStoreConflict) ||
		errors.Is(err, ErrTransferFailed)
}
