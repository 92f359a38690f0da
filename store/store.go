package store

import (
	"context"
)

// DefaultAccount is the ledger account used by a single-user installation.
const DefaultAccount = "default"

// Store provides database access to all raw objects.
type Store struct {
	driver Driver

	account         string
	unembeddedLimit int
}

// New creates a new instance of Store.
func New(driver Driver) *Store {
	return &Store{
		driver:          driver,
		account:         DefaultAccount,
		unembeddedLimit: 500,
	}
}

// WithAccount returns a copy of the store bound to another ledger account.
func (s *Store) WithAccount(account string) *Store {
	clone := *s
	clone.account = account
	return &clone
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Remaining returns the remaining remote quota of the bound account.
func (s *Store) Remaining(ctx context.Context) (int, error) {
	return s.driver.RemainingQuota(ctx, s.account)
}

// Consume charges amount credits to the bound account.
// Returns ErrInsufficientCredits if the balance is too low; nothing is charged then.
func (s *Store) Consume(ctx context.Context, amount int) error {
	return s.driver.ConsumeQuota(ctx, s.account, amount)
}

// Grant adds amount credits to the bound account.
func (s *Store) Grant(ctx context.Context, amount int) error {
	return s.driver.GrantQuota(ctx, s.account, amount)
}

var (
	_ NodeStore   = (*Store)(nil)
	_ QuotaLedger = (*Store)(nil)
)
