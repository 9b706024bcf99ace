// Package identity manages the durable visitor identifier and the per-page-load session.
package identity

import (
	"github.com/CartPulse/cartpulse-go/tracker/storage"
	"github.com/CartPulse/cartpulse-go/utils"
)

// LoadVisitorID returns the persisted visitor id, minting and persisting a
// new one when none exists. The id is immutable for the browser's lifetime
// absent a storage clear; a failed persist simply means a fresh id next load.
func LoadVisitorID(store storage.Store) string {
	if id, ok := store.Get(storage.VisitorIDKey); ok && id != "" {
		return id
	}

	id := utils.GenerateULID()
	store.Set(storage.VisitorIDKey, id)
	return id
}

// NewSessionID mints a fresh session identifier. Sessions are never
// persisted: one per tracker instance, correlating events server-side only.
func NewSessionID() string {
	return utils.GenerateULID()
}
