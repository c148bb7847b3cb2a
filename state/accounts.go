package state

import (
	"chainforge/crypto"
	"chainforge/types"
)

// AccountView is a read-only account lookup, the same narrow capability
// mempool.AccountView names -- satisfied by both store.Store and Overlay,
// so proposal-building code can swap a store for a pending overlay.
type AccountView interface {
	GetAccount(addr crypto.Address) types.Account
}

// Overlay is a copy-on-write view over a base AccountView: reads fall
// through to base until an address is written locally. Proposal building
// accumulates writes here across many transactions without touching the
// store, then yields the accumulated StateDelta for one atomic commit.
type Overlay struct {
	base    AccountView
	touched types.StateDelta
}

func NewOverlay(base AccountView) *Overlay {
	return &Overlay{base: base, touched: make(types.StateDelta)}
}

func (o *Overlay) GetAccount(addr crypto.Address) types.Account {
	if acct, ok := o.touched[addr]; ok {
		return acct.Copy()
	}
	return o.base.GetAccount(addr)
}

func (o *Overlay) SetAccount(addr crypto.Address, acct types.Account) {
	o.touched[addr] = acct
}

// Delta returns every account touched since construction.
func (o *Overlay) Delta() types.StateDelta {
	out := make(types.StateDelta, len(o.touched))
	for addr, acct := range o.touched {
		out[addr] = acct
	}
	return out
}
