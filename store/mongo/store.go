// Package mongo implements the claim store on MongoDB via Grove ORM.
//
// ApplyClaims runs inside a multi-document transaction, so the server must
// be a replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/store"
	"github.com/xraph/flashledger/types"
)

// Collection name constants.
const (
	colClaims = "flash_claims"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for the claim collection.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("flashledger/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Claim Store ====================

func (s *Store) GetClaim(ctx context.Context, owner types.Owner, asset types.Asset) (int64, error) {
	var m claimModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"owner": string(owner), "asset": string(asset)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("flashledger/mongo: get claim: %w", err)
	}
	return m.Amount, nil
}

func (s *Store) ListClaims(ctx context.Context, owner types.Owner, opts claim.ListOpts) ([]*claim.Balance, error) {
	var models []claimModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{"owner": string(owner), "amount": bson.M{"$gt": 0}}).
		Sort(bson.D{{Key: "asset", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("flashledger/mongo: list claims: %w", err)
	}

	result := make([]*claim.Balance, len(models))
	for i := range models {
		result[i] = fromClaimModel(&models[i])
	}
	return result, nil
}

func (s *Store) TotalSupply(ctx context.Context, asset types.Asset) (int64, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"asset": string(asset)}},
		bson.M{
			"$group": bson.M{
				"_id":   nil,
				"total": bson.M{"$sum": "$amount"},
			},
		},
	}

	cursor, err := s.mdb.Collection(colClaims).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("flashledger/mongo: total supply: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("flashledger/mongo: total supply decode: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

// ApplyClaims applies the batch in one transaction. Debits are guarded by
// an amount filter so a concurrent writer cannot push a balance negative.
func (s *Store) ApplyClaims(ctx context.Context, adj []claim.Adjustment) error {
	merged, err := claim.Merge(adj)
	if err != nil {
		return flashledger.ErrAmountOverflow
	}
	if len(merged) == 0 {
		return nil
	}

	coll := s.mdb.Collection(colClaims)
	sess, err := coll.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("flashledger/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		t := now()
		for _, a := range merged {
			if err := applyOne(ctx, coll, a, t); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, flashledger.ErrInsufficientClaimBalance) || errors.Is(err, flashledger.ErrAmountOverflow) {
			return err
		}
		return fmt.Errorf("flashledger/mongo: apply claims: %w", err)
	}
	return nil
}

func applyOne(ctx context.Context, coll *mongo.Collection, a claim.Adjustment, t time.Time) error {
	filter := bson.M{"owner": string(a.Owner), "asset": string(a.Asset)}
	update := bson.M{
		"$inc": bson.M{"amount": a.Amount},
		"$set": bson.M{"updated_at": t},
	}

	if a.Amount < 0 {
		need, ok := types.NegateAmount(a.Amount)
		if !ok {
			return flashledger.ErrAmountOverflow
		}
		filter["amount"] = bson.M{"$gte": need}
		res, err := coll.UpdateOne(ctx, filter, update)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: %s cannot cover %d %s",
				flashledger.ErrInsufficientClaimBalance, a.Owner, need, a.Asset)
		}
		return nil
	}

	update["$setOnInsert"] = bson.M{"created_at": t}
	_, err := coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for the claim collection.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colClaims: {
			{
				Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "asset", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "asset", Value: 1}}},
		},
	}
}
