package state

import (
	"math/big"

	"chainforge/store"
	"chainforge/types"
)

func bigValue(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

// Executor is the pluggable external transaction-execution callback:
// execute(tx, pre_state_view) -> (post_state_delta, receipt), required to
// be deterministic. A failed execution does not abort the containing
// block -- the transaction is still included with a failure receipt, and
// BlockExecutor still charges its fee.
//
// A concrete implementation is selected at construction, never dispatched
// at runtime (no interface{} switch). EVM/WASM executor internals are
// explicitly out of scope; DefaultExecutor below implements the one
// concrete semantics this core needs to exercise the contract: plain
// value transfer.
type Executor interface {
	Execute(tx types.Transaction, view AccountView) (types.StateDelta, Receipt, error)
}

// Receipt mirrors store.Receipt minus BlockHeight, which the engine fills
// in once the containing block's slot is known.
type Receipt struct {
	Status bool
	GasUsed uint64
	Logs   []byte
}

func (r Receipt) WithHeight(height uint64) store.Receipt {
	return store.Receipt{Status: r.Status, GasUsed: r.GasUsed, BlockHeight: height, Logs: r.Logs}
}

// DefaultExecutor implements plain value transfer: debit sender's value
// and bump its nonce, credit the recipient. Fee charging is handled
// uniformly by BlockExecutor rather than here (see DESIGN.md), so every
// Executor implementation shares one fee/reward accounting path.
type DefaultExecutor struct{}

func NewDefaultExecutor() *DefaultExecutor { return &DefaultExecutor{} }

func (e *DefaultExecutor) Execute(tx types.Transaction, view AccountView) (types.StateDelta, Receipt, error) {
	delta := make(types.StateDelta)

	sender := view.GetAccount(tx.Sender)
	if tx.Nonce != sender.Nonce {
		return delta, Receipt{Status: false, GasUsed: tx.GasLimit}, nil
	}
	if sender.Balance.Cmp(tx.Cost()) < 0 {
		return delta, Receipt{Status: false, GasUsed: tx.GasLimit}, nil
	}

	sender.Nonce++
	sender.Balance.Sub(sender.Balance, bigValue(tx.Value))
	delta[tx.Sender] = sender

	if tx.To != nil {
		recipient := view.GetAccount(*tx.To)
		recipient.Balance.Add(recipient.Balance, bigValue(tx.Value))
		delta[*tx.To] = recipient
	}

	return delta, Receipt{Status: true, GasUsed: tx.GasLimit}, nil
}
