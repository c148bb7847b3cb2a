package types

import (
	"math/big"

	"chainforge/crypto"
)

// Account is the per-address ledger entry. It is created
// implicitly on first credit: an unknown address simply reads as the zero
// Account.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// ZeroAccount returns the implicit account value for an address never seen
// by the store.
func ZeroAccount() Account {
	return Account{Nonce: 0, Balance: big.NewInt(0)}
}

// Copy returns a deep copy of acct, safe to mutate independently.
func (acct Account) Copy() Account {
	bal := new(big.Int)
	if acct.Balance != nil {
		bal.Set(acct.Balance)
	}
	return Account{Nonce: acct.Nonce, Balance: bal}
}

// StateDelta is a batch of address -> new-account entries applied
// atomically by the store.
type StateDelta map[crypto.Address]Account
