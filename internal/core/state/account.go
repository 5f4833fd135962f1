package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

const flagHibernated uint64 = 1 << 0

// AccountState is the value stored at an account key: the RLP list
// [nonce, balance, stateFlags], with stateFlags omitted when zero.
//
// The code hash is the hash of the value at the account's code key and the
// storage root is the node at its storage prefix, so neither is part of the
// record.
type AccountState struct {
	Nonce      uint64
	Balance    *uint256.Int
	StateFlags uint64 `rlp:"optional"`

	// Deleted marks an entry of an UpdateBatch that removes the account.
	Deleted bool `rlp:"-"`
}

// NewAccountState returns an account with zero nonce and balance.
func NewAccountState() *AccountState {
	return &AccountState{Balance: new(uint256.Int)}
}

// DecodeAccountState parses an account record.
func DecodeAccountState(data []byte) (*AccountState, error) {
	a := new(AccountState)
	if err := rlp.DecodeBytes(data, a); err != nil {
		return nil, fmt.Errorf("decode account state: %w", err)
	}
	if a.Balance == nil {
		a.Balance = new(uint256.Int)
	}
	return a, nil
}

// Encode returns the account record.
func (a *AccountState) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(a)
}

// Copy returns a deep copy of a.
func (a *AccountState) Copy() *AccountState {
	cpy := *a
	cpy.Balance = new(uint256.Int).Set(a.Balance)
	return &cpy
}

// IsHibernated reports whether the account is hibernated. A hibernated
// account exposes no code.
func (a *AccountState) IsHibernated() bool {
	return a.StateFlags&flagHibernated != 0
}

// Hibernate sets the hibernated flag.
func (a *AccountState) Hibernate() {
	a.StateFlags |= flagHibernated
}

// AddBalance adds v to the balance and returns the new balance.
func (a *AccountState) AddBalance(v *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a.Balance, v)
	if overflow {
		return nil, fmt.Errorf("%w: %s + %s", ErrBalanceOverflow, a.Balance, v)
	}
	a.Balance = sum
	return new(uint256.Int).Set(sum), nil
}

// SubBalance subtracts v from the balance and returns the new balance.
func (a *AccountState) SubBalance(v *uint256.Int) (*uint256.Int, error) {
	if a.Balance.Lt(v) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, a.Balance, v)
	}
	a.Balance = new(uint256.Int).Sub(a.Balance, v)
	return new(uint256.Int).Set(a.Balance), nil
}

// IncrementNonce adds one to the nonce and returns it.
func (a *AccountState) IncrementNonce() uint64 {
	a.Nonce++
	return a.Nonce
}

// String returns a short description for logs.
func (a *AccountState) String() string {
	return fmt.Sprintf("account{nonce:%d, balance:%s, hibernated:%t}", a.Nonce, a.Balance, a.IsHibernated())
}
