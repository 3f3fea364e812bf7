package ledger

import (
	"fmt"
	"sync"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// Book owns one Account per known account id and tracks which one is
// active. Accounts are independent; only the active pointer is shared.
type Book struct {
	mu       sync.RWMutex
	accounts map[domain.AccountID]*Account
	active   domain.AccountID
}

// NewBook seeds every account from Defaults.
func NewBook(opts Options) *Book {
	b := &Book{
		accounts: make(map[domain.AccountID]*Account, 2),
		active:   domain.AnchorAccount,
	}
	for _, id := range domain.Accounts() {
		b.accounts[id] = NewAccount(Defaults(id), opts)
	}
	return b
}

// Account returns the handle for id.
func (b *Book) Account(id domain.AccountID) (*Account, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.accounts[id]
	if !ok {
		return nil, fmt.Errorf("ledger: account %q: %w", id, domain.ErrUnknownAccount)
	}
	return a, nil
}

// Set replaces the handle for id, used when an account is hydrated.
func (b *Book) Set(a *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[a.ID()] = a
}

// Active returns the active account id.
func (b *Book) Active() domain.AccountID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// SwitchAccount makes id the active account.
func (b *Book) SwitchAccount(id domain.AccountID) error {
	if _, err := domain.ParseAccountID(string(id)); err != nil {
		return fmt.Errorf("ledger: switch account: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = id
	return nil
}

// Snapshots returns a copy of every account in domain.Accounts order.
func (b *Book) Snapshots() []domain.AccountState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.AccountState, 0, len(b.accounts))
	for _, id := range domain.Accounts() {
		if a, ok := b.accounts[id]; ok {
			out = append(out, a.Snapshot())
		}
	}
	return out
}
