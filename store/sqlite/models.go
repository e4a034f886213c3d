package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/types"
)

type claimModel struct {
	grove.BaseModel `grove:"table:flash_claims"`

	Owner     string    `grove:"owner,pk"`
	Asset     string    `grove:"asset,pk"`
	Amount    int64     `grove:"amount"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toClaimModel(a claim.Adjustment, t time.Time) claimModel {
	return claimModel{
		Owner:     string(a.Owner),
		Asset:     string(a.Asset),
		Amount:    a.Amount,
		CreatedAt: t,
		UpdatedAt: t,
	}
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
