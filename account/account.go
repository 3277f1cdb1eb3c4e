// Package account implements the account store: the mapping from account
// identifier to Account record that the rest of the simulator reads and
// mutates.
package account

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// DefaultBalance is the starting token balance assigned to a freshly created
// account.
const DefaultBalance uint64 = 1_000_000_000_000

// DefaultStorageUsage is the storage usage (in bytes) assigned to an account
// on creation and on reset.
const DefaultStorageUsage uint64 = 60

// ErrUnknownAccount is returned by Get when the requested account was never
// added to the store.
var ErrUnknownAccount = errors.New("account: unknown account")

// ErrMissingContract is returned by NewAccount when a non-empty contract
// image path does not resolve to an existing file.
var ErrMissingContract = errors.New("account: missing contract image")

// Account is a single simulated account: balance, locked balance, storage
// usage, and opaque persisted state.
//
// State is kept only in its encoded form: EncodedState is what the VM Driver
// consumes and what the Step Executor commits on success. The key/value view
// handed to observers is not stored here; callers should treat EncodedState
// as opaque and go through the codec package to decode it.
type Account struct {
	AccountID     string
	ContractImage string // empty means a plain (client) account
	SignerKey     string

	Balance       uint64
	LockedBalance uint64
	StorageUsage  uint64

	// EncodedState is the driver-consumed representation of the account's
	// persisted contract storage.
	EncodedState []byte
}

// newAccount constructs an Account in its default, freshly-created state,
// using balance/storageUsage as the creation defaults.
func newAccount(id, contractImage string, balance, storageUsage uint64) *Account {
	return &Account{
		AccountID:     id,
		ContractImage: contractImage,
		SignerKey:     SignerKey(id),
		Balance:       balance,
		StorageUsage:  storageUsage,
	}
}

// reset restores an account to its default state without removing it from
// the store: balance goes back to balance, locked balance and state are
// cleared, and storage usage returns to storageUsage.
func (a *Account) reset(balance, storageUsage uint64) {
	a.Balance = balance
	a.LockedBalance = 0
	a.StorageUsage = storageUsage
	a.EncodedState = nil
}

// Store is the account store: a mapping from account identifier to Account,
// safe for use from a single simulator session. The scheduler drives
// execution serially (see §5 of the design), so the store's lock only
// guards against accidental concurrent access from callers outside the
// scheduler loop (e.g. a CLI goroutine inspecting state mid-session).
type Store struct {
	mu       sync.Mutex
	accounts map[string]*Account

	defaultBalance      uint64
	defaultStorageUsage uint64
}

// NewStore creates an empty account store using the package's default
// balance and storage usage for freshly created accounts.
func NewStore() *Store {
	return NewStoreWithDefaults(DefaultBalance, DefaultStorageUsage)
}

// NewStoreWithDefaults creates an empty account store whose accounts are
// created (and reset) with the given balance and storage usage, per the
// simulator's config.Config.DefaultBalance / DefaultStorageUsage.
func NewStoreWithDefaults(balance, storageUsage uint64) *Store {
	return &Store{
		accounts:            make(map[string]*Account),
		defaultBalance:      balance,
		defaultStorageUsage: storageUsage,
	}
}

// NewAccount explicitly creates an account with the given id and optional
// contract image path. If contractImage is non-empty and does not resolve
// to an existing file, creation fails with ErrMissingContract.
func (s *Store) NewAccount(id, contractImage string) (*Account, error) {
	if contractImage != "" {
		if _, err := os.Stat(contractImage); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrMissingContract, contractImage)
			}
			return nil, fmt.Errorf("account: stat contract image %s: %w", contractImage, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc := newAccount(id, contractImage, s.defaultBalance, s.defaultStorageUsage)
	s.accounts[id] = acc
	return acc, nil
}

// GetOrCreate returns the account for id, creating it with default fields
// (no contract image) if it does not yet exist.
func (s *Store) GetOrCreate(id string) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		acc = newAccount(id, "", s.defaultBalance, s.defaultStorageUsage)
		s.accounts[id] = acc
	}
	return acc
}

// Get returns the account for id, or ErrUnknownAccount if it was never
// added.
func (s *Store) Get(id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	return acc, nil
}

// Reset restores a single account to its default state. It is a no-op if
// the account does not exist.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc, ok := s.accounts[id]; ok {
		acc.reset(s.defaultBalance, s.defaultStorageUsage)
	}
}

// ResetAll restores every account in the store to its default state. No
// account is removed.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		acc.reset(s.defaultBalance, s.defaultStorageUsage)
	}
}

// Snapshot returns a shallow copy of every account currently in the store,
// keyed by account id. It is intended for inspection (e.g. the accountdb
// persistence layer or a CLI dump), not for mutation.
func (s *Store) Snapshot() map[string]Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Account, len(s.accounts))
	for id, acc := range s.accounts {
		out[id] = *acc
	}
	return out
}
