package trust

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"veridex/internal/model"
)

const opTimeout = 10 * time.Second

// MongoBackend persists trust records in a MongoDB collection keyed by
// domain
type MongoBackend struct {
	collection *mongo.Collection
}

// NewMongoBackend wraps a collection as a trust backend
func NewMongoBackend(collection *mongo.Collection) *MongoBackend {
	return &MongoBackend{collection: collection}
}

// Get fetches one domain record, returning nil when the domain has no
// history yet
func (b *MongoBackend) Get(ctx context.Context, domain string) (*model.DomainTrustRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var record model.DomainTrustRecord
	err := b.collection.FindOne(ctx, bson.M{"_id": domain}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch trust record %s: %w", domain, err)
	}
	return &record, nil
}

// BatchUpsert writes all records in a single bulk operation
func (b *MongoBackend) BatchUpsert(ctx context.Context, records []model.DomainTrustRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	models := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": r.Domain}).
			SetReplacement(r).
			SetUpsert(true))
	}

	if _, err := b.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("bulk upsert trust records: %w", err)
	}
	return nil
}

// ListVoted returns every domain with at least minVotes accumulated
func (b *MongoBackend) ListVoted(ctx context.Context, minVotes int) ([]model.DomainTrustRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cursor, err := b.collection.Find(ctx, bson.M{"num_votes": bson.M{"$gte": minVotes}})
	if err != nil {
		return nil, fmt.Errorf("list trust records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []model.DomainTrustRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode trust records: %w", err)
	}
	return records, nil
}
