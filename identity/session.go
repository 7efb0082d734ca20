package identity

import (
	"time"

	"github.com/google/uuid"
)

// Session is the local representation of a signed-in principal.
//
// The ID is generated locally at bind time and is the canonical account
// key everywhere downstream. The provider's subject identifier is kept
// for account linking only; using it as the key duplicates accounts when
// the provider changes subject formats.
type Session struct {
	// Core identity
	ID              string
	ProviderSubject string
	Email           string
	DisplayName     string
	PhotoURL        string

	// Session management
	CreatedAt time.Time
}

// NewSession binds a provider identity assertion to a fresh local session.
func NewSession(providerSubject, email, displayName, photoURL string, now time.Time) *Session {
	return &Session{
		ID:              uuid.New().String(),
		ProviderSubject: providerSubject,
		Email:           email,
		DisplayName:     displayName,
		PhotoURL:        photoURL,
		CreatedAt:       now,
	}
}
