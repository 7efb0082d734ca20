package backend

import (
	"encoding/json"
	"time"
)

// UserData is the normalized identity payload submitted on account sync.
// PrimaryID is the locally-bound session ID, not the provider subject.
type UserData struct {
	PrimaryID      string         `json:"primaryId"`
	Email          string         `json:"email"`
	DisplayName    string         `json:"displayName"`
	PhotoURL       string         `json:"photoURL"`
	CalendarTokens CalendarTokens `json:"calendarTokens"`
}

// CalendarTokens is the calendar credential material handed to the backend.
type CalendarTokens struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// ProviderTokens mirrors the identity provider's token endpoint response.
type ProviderTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// AccountSyncPayload is the single normalized payload POSTed to the
// backend account endpoint.
type AccountSyncPayload struct {
	UserData UserData       `json:"userData"`
	Tokens   ProviderTokens `json:"tokens"`
}

// AccountSyncResult reports the backend's view of the account.
type AccountSyncResult struct {
	User      json.RawMessage `json:"user"`
	IsNewUser bool            `json:"isNewUser"`
}
