package mongo

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestFromClaimModel(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := fromClaimModel(&claimModel{
		Owner:     "alice",
		Asset:     "usdc",
		Amount:    42,
		CreatedAt: at,
		UpdatedAt: at.Add(time.Minute),
	})

	assert.Equal(t, "alice", string(b.Owner))
	assert.Equal(t, "usdc", string(b.Asset))
	assert.Equal(t, int64(42), b.Amount)
	assert.Equal(t, at, b.CreatedAt)
	assert.Equal(t, at.Add(time.Minute), b.UpdatedAt)
}

func TestClaimModelBSON(t *testing.T) {
	raw, err := bson.Marshal(claimModel{Owner: "bob", Asset: "eth", Amount: 7})
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, "bob", doc["owner"])
	assert.Equal(t, "eth", doc["asset"])
	assert.Equal(t, int64(7), doc["amount"])
	assert.Contains(t, doc, "updated_at")
}

func TestIsNoDocuments(t *testing.T) {
	assert.True(t, isNoDocuments(mongo.ErrNoDocuments))
	assert.True(t, isNoDocuments(fmt.Errorf("find claim: %w", mongo.ErrNoDocuments)))
	assert.False(t, isNoDocuments(errors.New("mongo: no documents in result")))
}

func TestMigrationIndexes(t *testing.T) {
	idx := migrationIndexes()
	require.Contains(t, idx, colClaims)
	require.Len(t, idx[colClaims], 2)

	unique := idx[colClaims][0]
	assert.Equal(t, bson.D{{Key: "owner", Value: 1}, {Key: "asset", Value: 1}}, unique.Keys)
	require.NotNil(t, unique.Options)
}
