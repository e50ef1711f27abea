// Package models contains the domain models shared across services.
package models

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry in a session's conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session holds the bounded conversational state for one user.
// The first turn is always the system turn; the turn sequence is owned by
// the session store and must only be mutated under its lock.
type Session struct {
	UserKey      string
	Turns        []Turn
	LastActivity time.Time
}
