package models

import "time"

// CredentialRecord is a provisioned API key as persisted in the ledger.
// The clear key value is never stored: Digest is the stable lookup id
// (SHA-256 of the key) and KeyEncrypted the AES-GCM ciphertext kept for
// operator recovery.
type CredentialRecord struct {
	Digest       string     `bson:"_id" json:"digest"`
	KeyEncrypted string     `bson:"keyEncrypted" json:"-"`
	Name         string     `bson:"name" json:"name"`
	IsLimited    bool       `bson:"isLimited" json:"isLimited"`
	TotalCredits int64      `bson:"totalCredits" json:"totalCredits"`
	CreditsUsed  int64      `bson:"creditsUsed" json:"creditsUsed"`
	ExpiresAt    *time.Time `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	CreatedAt    time.Time  `bson:"createdAt" json:"createdAt"`
	LastUsed     *time.Time `bson:"lastUsed,omitempty" json:"lastUsed,omitempty"`
}

// CreditsRemaining returns the remaining credits, or -1 for unlimited keys.
func (r *CredentialRecord) CreditsRemaining() int64 {
	if !r.IsLimited {
		return -1
	}
	remaining := r.TotalCredits - r.CreditsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the record has an expiration timestamp in the past.
func (r *CredentialRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// Exhausted reports whether a limited record has consumed its full quota.
func (r *CredentialRecord) Exhausted() bool {
	return r.IsLimited && r.CreditsUsed >= r.TotalCredits
}
