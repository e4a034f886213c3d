package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/flashledger/claim"
)

func TestClaimModelRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := toClaimModel(claim.Adjustment{Owner: "alice", Asset: "usdc", Amount: 42}, at)

	assert.Equal(t, "alice", m.Owner)
	assert.Equal(t, "usdc", m.Asset)
	assert.Equal(t, at, m.CreatedAt)
	assert.Equal(t, at, m.UpdatedAt)

	b := fromClaimModel(&m)
	require.NotNil(t, b)
	assert.Equal(t, "alice", string(b.Owner))
	assert.Equal(t, "usdc", string(b.Asset))
	assert.Equal(t, int64(42), b.Amount)
	assert.Equal(t, at, b.CreatedAt)
	assert.Equal(t, at, b.UpdatedAt)
}

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		err        error
		check      bool
		outOfRange bool
	}{
		{errors.New(`ERROR: new row for relation "flash_claims" violates check constraint "flash_claims_amount_check" (SQLSTATE 23514)`), true, false},
		{errors.New(`ERROR: bigint out of range (SQLSTATE 22003)`), false, true},
		{errors.New("connection refused"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.check, isCheckViolation(tt.err))
			assert.Equal(t, tt.outOfRange, isOutOfRange(tt.err))
		})
	}
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, isNoRows(sql.ErrNoRows))
	assert.True(t, isNoRows(fmt.Errorf("select claim: %w", sql.ErrNoRows)))
	assert.False(t, isNoRows(errors.New("no rows")))
}
