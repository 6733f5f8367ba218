package sessionstore

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/kadirpekel/coderkernel/pkg/id"
	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
)

// ShareService issues and resolves Shares: time-bounded, permissioned
// references to a Session.
type ShareService struct {
	mu     sync.RWMutex
	shares map[string]Share
}

// NewShareService constructs an empty ShareService.
func NewShareService() *ShareService {
	return &ShareService{shares: make(map[string]Share)}
}

// Create issues a new Share for sessionID with the given permissions,
// optionally expiring at expiresAt.
func (svc *ShareService) Create(sessionID string, perms Permissions, expiresAt *time.Time) Share {
	share := Share{
		ID:          id.New(),
		SessionID:   sessionID,
		Permissions: perms,
		ExpiresAt:   expiresAt,
	}
	svc.mu.Lock()
	svc.shares[share.ID] = share
	svc.mu.Unlock()
	return share
}

// Resolve looks up a Share by ID in constant time with respect to
// whether the ID exists: every candidate key is compared against id
// using a constant-time comparison, so a valid ID takes no less work
// than an invalid one.
func (svc *ShareService) Resolve(id string) (Share, error) {
	const op = "sessionstore.ShareService.Resolve"
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	var found Share
	var ok bool
	for key, share := range svc.shares {
		if subtle.ConstantTimeCompare([]byte(key), []byte(id)) == 1 {
			found, ok = share, true
		}
	}
	if !ok {
		return Share{}, kernelerr.New(op, kernelerr.NotFound)
	}
	if found.ExpiresAt != nil && time.Now().After(*found.ExpiresAt) {
		return Share{}, kernelerr.New(op, kernelerr.NotFound)
	}
	return found, nil
}

// CleanupExpiredShares removes every Share whose ExpiresAt has passed,
// returning the count removed.
func (svc *ShareService) CleanupExpiredShares() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	now := time.Now()
	var removed int
	for id, share := range svc.shares {
		if share.ExpiresAt != nil && now.After(*share.ExpiresAt) {
			delete(svc.shares, id)
			removed++
		}
	}
	return removed
}
