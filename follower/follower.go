// Package follower is the read side of the credential/consent store: which
// venue accounts exist, which one is the master, and each follower's
// credentials and risk configuration.
package follower

import (
	"context"
	"errors"
	"strings"

	"github.com/quantumalpha/replicator/risk"
	"github.com/quantumalpha/replicator/venue"
)

// StatusActive is the credential status required for replication.
const StatusActive = "ACTIVE"

// Account is one venue account known to the system. The master account is
// an Account like any other; designation is separate data.
type Account struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Credentials venue.Credentials `json:"credentials"`
	Status      string            `json:"status"`
	Consent     bool              `json:"consent"`
	Risk        risk.Config       `json:"risk_config"`
}

// Active reports whether the account may receive replicated orders:
// credentials marked ACTIVE and replication consent given.
func (a Account) Active() bool {
	return strings.EqualFold(a.Status, StatusActive) && a.Consent
}

// ErrAccountNotFound is returned for unknown account ids.
var ErrAccountNotFound = errors.New("account not found")

// Store is the engine's read-only view of account management. Writes happen
// elsewhere (the product's settings surface); concrete implementations also
// expose write helpers for operational tooling.
type Store interface {
	// ListAccounts returns every account with stored credentials,
	// master included.
	ListAccounts(ctx context.Context) ([]Account, error)
	// ListActiveFollowers returns the accounts eligible for replication:
	// active, consented, and not the master.
	ListActiveFollowers(ctx context.Context) ([]Account, error)
	// Get returns one account by id.
	Get(ctx context.Context, id string) (Account, error)
	// MasterAccountID returns the designated master account id, or ""
	// when none is configured.
	MasterAccountID(ctx context.Context) (string, error)
}
