// Package session persists the authenticated identity across process
// restarts. Storage is two-tiered: a sealed blob when at-rest protection is
// available, a plain blob otherwise, plus legacy flat keys kept for data
// written by older releases.
package session

import "time"

// Credential is the locally persisted representation of an authenticated
// identity. It is owned by the Store and mutated only by the auth session on
// successful sign-in, sign-up, or refresh.
type Credential struct {
	LocalID      string    `json:"local_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	SavedAt      time.Time `json:"saved_at"`
}

// IsAuthenticated reports whether the credential represents a signed-in
// identity. Presence of a non-empty LocalID and IDToken is the definition;
// it says nothing about whether the token is still valid remotely.
func (c *Credential) IsAuthenticated() bool {
	return c != nil && c.LocalID != "" && c.IDToken != ""
}
