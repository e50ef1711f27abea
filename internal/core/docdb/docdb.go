// Package docdb defines the document database client interfaces.
package docdb

import (
	"context"

	"github.com/obsidian-neural/loop-service/internal/domain/models"
)

// Client is the document database client.
type Client interface {
	// Credentials returns the typed credentials collection.
	Credentials() CredentialsCollection

	// Ping verifies the database connection.
	Ping(ctx context.Context) error

	// EnsureIndexes creates all necessary indexes for all collections.
	EnsureIndexes(ctx context.Context) error

	// Close closes the database connection.
	Close(ctx context.Context) error
}

// CredentialsCollection provides access to the credential ledger.
// Only the credit authority may mutate credential records.
type CredentialsCollection interface {
	// FindByDigest retrieves a credential record by its key digest.
	// Returns nil (not an error) when no record matches.
	FindByDigest(ctx context.Context, digest string) (*models.CredentialRecord, error)

	// Create inserts a new credential record.
	Create(ctx context.Context, record *models.CredentialRecord) error

	// Debit atomically increments the credits-used counter of one record
	// and stamps its last-used timestamp. Concurrent debits for the same
	// digest must never lose an increment.
	Debit(ctx context.Context, digest string, cost int64) error

	// Count returns the number of provisioned credential records.
	Count(ctx context.Context) (int64, error)
}
