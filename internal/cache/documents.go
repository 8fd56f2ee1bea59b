// Package cache implements the tiered article cache: an exact-hash
// document lookup, a semantic scan over recent documents, and a
// vector-index nearest-neighbor tier with retention sweeping.
package cache

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

// DocumentStore is the persistence contract for article records
type DocumentStore interface {
	// Get returns the record for a content id, nil when absent
	Get(ctx context.Context, id string) (*model.ArticleRecord, error)

	// Upsert writes a record, replacing any existing one
	Upsert(ctx context.Context, record model.ArticleRecord) error

	// RecentWithEmbeddings returns records updated since the cutoff that
	// carry an embedding, for the semantic tier scan
	RecentWithEmbeddings(ctx context.Context, since time.Time) ([]model.ArticleRecord, error)

	// Bump atomically increments the view and report counters and
	// optionally sets the community flag
	Bump(ctx context.Context, id string, views, reports int, flagged *bool) error
}

// MongoDocuments stores article records in a MongoDB collection
type MongoDocuments struct {
	collection *mongo.Collection
}

// NewMongoDocuments wraps a collection as a document store
func NewMongoDocuments(collection *mongo.Collection) *MongoDocuments {
	return &MongoDocuments{collection: collection}
}

func (s *MongoDocuments) Get(ctx context.Context, id string) (*model.ArticleRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var record model.ArticleRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch article %s: %w", id, err)
	}
	return &record, nil
}

func (s *MongoDocuments) Upsert(ctx context.Context, record model.ArticleRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"_id": record.ID},
		record,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert article %s: %w", record.ID, err)
	}
	return nil
}

func (s *MongoDocuments) RecentWithEmbeddings(ctx context.Context, since time.Time) ([]model.ArticleRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"last_updated": bson.M{"$gte": since},
		"embedding":    bson.M{"$exists": true, "$ne": bson.A{}},
	}
	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("scan recent articles: %w", err)
	}
	defer cursor.Close(ctx)

	var records []model.ArticleRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode recent articles: %w", err)
	}
	return records, nil
}

func (s *MongoDocuments) Bump(ctx context.Context, id string, views, reports int, flagged *bool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"total_views": views, "total_reports": reports},
		"$set": bson.M{"last_updated": time.Now().UTC()},
	}
	if flagged != nil {
		update["$set"].(bson.M)["community_flagged"] = *flagged
	}

	if _, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("bump counters for %s: %w", id, err)
	}
	return nil
}
