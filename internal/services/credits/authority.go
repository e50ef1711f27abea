// Package credits implements the credit-gated authorization ledger.
//
// Every generation request is checked against the credential ledger before
// any expensive work starts, and debited after a successful generation.
// Debits go through the document store's per-record atomic increment, so
// concurrent debits for the same credential never lose an update and debits
// for unrelated credentials never contend.
package credits

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/obsidian-neural/loop-service/internal/core/docdb"
	"github.com/obsidian-neural/loop-service/internal/domain/models"
)

// DefaultGenerationCost is the number of credits debited per generation.
const DefaultGenerationCost = 1

// Status is the outcome of a credential check.
type Status string

const (
	StatusOK        Status = "OK"
	StatusNotFound  Status = "NOT_FOUND"
	StatusExpired   Status = "EXPIRED"
	StatusExhausted Status = "EXHAUSTED"
)

// Result holds the outcome of a credential check together with the matched
// record (nil when no record matched).
type Result struct {
	Status Status
	Record *models.CredentialRecord
}

// Valid reports whether the credential passed all checks.
func (r Result) Valid() bool {
	return r.Status == StatusOK
}

// Authority validates credentials and debits usage.
type Authority interface {
	// Check validates a presented credential: existence, then expiry,
	// then exhaustion. The first failing condition wins.
	Check(ctx context.Context, apiKey string) (Result, error)

	// Debit records one generation against the credential. Only called
	// after a successful generation.
	Debit(ctx context.Context, apiKey string) error

	// Cost returns the per-generation credit cost.
	Cost() int64
}

// Digest returns the irreversible lookup digest for an API key.
func Digest(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// UserKey derives the stable, non-reversible session identity for an API
// key. It is a prefix of the full digest so the session keyspace stays
// decoupled from the ledger ids.
func UserKey(apiKey string) string {
	return Digest(apiKey)[:16]
}

// Ledger is the document-store-backed Authority used in gated mode.
type Ledger struct {
	credentials docdb.CredentialsCollection
	cost        int64
	now         func() time.Time
}

// LedgerConfig holds the configuration for the ledger authority.
type LedgerConfig struct {
	Credentials docdb.CredentialsCollection
	Cost        int64

	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// NewLedger creates a ledger-backed credit authority.
func NewLedger(cfg LedgerConfig) *Ledger {
	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultGenerationCost
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Ledger{
		credentials: cfg.Credentials,
		cost:        cost,
		now:         now,
	}
}

// Check validates a credential against the ledger.
func (l *Ledger) Check(ctx context.Context, apiKey string) (Result, error) {
	record, err := l.credentials.FindByDigest(ctx, Digest(apiKey))
	if err != nil {
		return Result{}, err
	}
	if record == nil {
		return Result{Status: StatusNotFound}, nil
	}
	if record.Expired(l.now().UTC()) {
		return Result{Status: StatusExpired, Record: record}, nil
	}
	if record.Exhausted() {
		return Result{Status: StatusExhausted, Record: record}, nil
	}
	return Result{Status: StatusOK, Record: record}, nil
}

// Debit records one generation against the credential.
func (l *Ledger) Debit(ctx context.Context, apiKey string) error {
	return l.credentials.Debit(ctx, Digest(apiKey), l.cost)
}

// Cost returns the per-generation credit cost.
func (l *Ledger) Cost() int64 {
	return l.cost
}

// Open is the development-mode Authority: every credential is accepted as
// unlimited and debits are no-ops. It is selected at process configuration
// time, never per request.
type Open struct {
	cost int64
}

// NewOpen creates an open-mode authority.
func NewOpen(cost int64) *Open {
	if cost == 0 {
		cost = DefaultGenerationCost
	}
	return &Open{cost: cost}
}

// Check accepts every credential as an unlimited record.
func (o *Open) Check(ctx context.Context, apiKey string) (Result, error) {
	return Result{
		Status: StatusOK,
		Record: &models.CredentialRecord{
			Name:      "dev-bypass",
			IsLimited: false,
		},
	}, nil
}

// Debit is a no-op in open mode.
func (o *Open) Debit(ctx context.Context, apiKey string) error {
	return nil
}

// Cost returns the per-generation credit cost.
func (o *Open) Cost() int64 {
	return o.cost
}
