package rpc

import (
	"fmt"

	"chainforge/types"

	"github.com/tendermint/tendermint/libs/bytes"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

// ResultBroadcastTx is admit(tx)'s outcome, reported back to the submitter
// rather than swallowed.
type ResultBroadcastTx struct {
	Hash     bytes.HexBytes `json:"hash"`
	Accepted bool           `json:"accepted"`
	Reason   string         `json:"reason,omitempty"`
}

// BroadcastTx submits tx to the local pool and, if accepted, gossips it to
// peers for inclusion in a future proposal.
func BroadcastTx(ctx *rpctypes.Context, tx types.Transaction) (*ResultBroadcastTx, error) {
	hash := tx.Hash()
	result := env.Pool.Admit(tx)
	if !result.Ok() {
		return &ResultBroadcastTx{Hash: bytes.HexBytes(hash.Bytes()), Reason: result.Kind.String()}, nil
	}
	if env.Transport != nil {
		if err := env.Transport.BroadcastTransaction(&tx); err != nil {
			return nil, fmt.Errorf("admitted but failed to gossip: %w", err)
		}
	}
	return &ResultBroadcastTx{Hash: bytes.HexBytes(hash.Bytes()), Accepted: true}, nil
}

// ResultPoolStatus reports the pool's current occupancy.
type ResultPoolStatus struct {
	Size int `json:"size"`
}

func PoolStatus(ctx *rpctypes.Context) (*ResultPoolStatus, error) {
	return &ResultPoolStatus{Size: env.Pool.Size()}, nil
}
