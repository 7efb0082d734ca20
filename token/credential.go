package token

import "time"

// Credential is the cached bearer credential for the active identity
// session. The persisted JSON shape is the device-store blob
// {token, expiresAt, refreshedAt}.
type Credential struct {
	Value       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

// Usable reports whether the credential can be reused: its decoded expiry
// must be more than the safety margin in the future.
func (c *Credential) Usable(now time.Time, safetyMargin time.Duration) bool {
	if c == nil || c.Value == "" {
		return false
	}
	return now.Add(safetyMargin).Before(c.ExpiresAt)
}
