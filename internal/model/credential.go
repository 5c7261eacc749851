package model

import "time"

// Credential stores the Gmail OAuth token pair for one owner.
type Credential struct {
	ID                   int
	OwnerID              string
	GoogleEmail          string
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt *time.Time
	LastSyncedAt         *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HasRefreshToken reports whether the credential can be refreshed at all.
func (c *Credential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}
