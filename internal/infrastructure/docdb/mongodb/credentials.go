// Package mongodb provides the credentials collection implementation.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/obsidian-neural/loop-service/internal/domain/models"
)

// CredentialsCollectionName is the name of the credential ledger collection.
const CredentialsCollectionName = "api_keys"

// CredentialsCollection implements the docdb.CredentialsCollection interface
// for MongoDB. Debits rely on per-document atomicity of $inc, so concurrent
// debits for different digests never contend on a process-wide lock.
type CredentialsCollection struct {
	collection *mongo.Collection
}

// NewCredentialsCollection creates a new credentials collection wrapper.
func NewCredentialsCollection(db *mongo.Database) *CredentialsCollection {
	return &CredentialsCollection{
		collection: db.Collection(CredentialsCollectionName),
	}
}

// FindByDigest retrieves a credential record by its key digest.
func (c *CredentialsCollection) FindByDigest(ctx context.Context, digest string) (*models.CredentialRecord, error) {
	var record models.CredentialRecord
	err := c.collection.FindOne(ctx, bson.M{"_id": digest}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credential record: %w", err)
	}
	return &record, nil
}

// Create inserts a new credential record.
func (c *CredentialsCollection) Create(ctx context.Context, record *models.CredentialRecord) error {
	if record.Digest == "" {
		return fmt.Errorf("credential digest is required")
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := c.collection.InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to insert credential record: %w", err)
	}

	return nil
}

// Debit atomically increments the credits-used counter of one record.
func (c *CredentialsCollection) Debit(ctx context.Context, digest string, cost int64) error {
	result, err := c.collection.UpdateOne(ctx,
		bson.M{"_id": digest},
		bson.M{
			"$inc": bson.M{"creditsUsed": cost},
			"$set": bson.M{"lastUsed": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to debit credential: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("credential record not found")
	}
	return nil
}

// Count returns the number of provisioned credential records.
func (c *CredentialsCollection) Count(ctx context.Context) (int64, error) {
	count, err := c.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count credential records: %w", err)
	}
	return count, nil
}

// EnsureIndexes creates the indexes for the credentials collection.
func (c *CredentialsCollection) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName("idx_expires_at").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("idx_created_at"),
		},
	}

	_, err := c.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
