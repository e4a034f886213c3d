package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/types"
)

// ==================== Claim models ====================

type claimModel struct {
	grove.BaseModel `grove:"table:flash_claims"`

	Owner     string    `grove:"owner"      bson:"owner"`
	Asset     string    `grove:"asset"      bson:"asset"`
	Amount    int64     `grove:"amount"     bson:"amount"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func fromClaimModel(m *claimModel) *claim.Balance {
	b := &claim.Balance{
		Owner:  types.Owner(m.Owner),
		Asset:  types.Asset(m.Asset),
		Amount: m.Amount,
	}
	b.CreatedAt = m.CreatedAt
	b.UpdatedAt = m.UpdatedAt
	return b
}
