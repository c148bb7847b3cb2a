package store

import (
	"math/big"
	"testing"

	"chainforge/crypto"
	"chainforge/types"

	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tm-db/memdb"
)

func newTestStore(t *testing.T) *KVStore {
	t.Helper()
	kv, err := NewKVStoreWithDB(memdb.NewDB(), log.NewNopLogger())
	require.NoError(t, err)
	return kv
}

func TestCommitBlockWritesEveryPart(t *testing.T) {
	kv := newTestStore(t)

	addr := crypto.Address{1}
	block := &types.Block{Header: types.Header{Slot: 1}}
	delta := types.StateDelta{addr: {Nonce: 1, Balance: big.NewInt(100)}}
	receipts := map[crypto.Hash]Receipt{{1}: {Status: true, GasUsed: 21, BlockHeight: 1}}

	require.NoError(t, kv.CommitBlock(block, nil, delta, receipts))

	require.Equal(t, uint64(1), kv.LatestHeight())
	require.Equal(t, uint64(1), kv.FinalizedHeight())
	require.Equal(t, uint64(100), kv.GetAccount(addr).Balance.Uint64())

	got, _, err := kv.GetBlockByHeight(1)
	require.NoError(t, err)
	require.Equal(t, block.Header.Slot, got.Header.Slot)

	r, err := kv.GetReceipt(crypto.Hash{1})
	require.NoError(t, err)
	require.True(t, r.Status)
}

func TestPutBlockRejectsFinalityViolation(t *testing.T) {
	kv := newTestStore(t)
	require.NoError(t, kv.SetFinalizedHeight(5))

	block := &types.Block{Header: types.Header{Slot: 3}}
	err := kv.PutBlock(block, nil)
	require.ErrorIs(t, err, ErrFinalityViolation)
}

func TestPutBlockRejectsAlreadyExists(t *testing.T) {
	kv := newTestStore(t)
	block := &types.Block{Header: types.Header{Slot: 1}}
	require.NoError(t, kv.PutBlock(block, nil))
	require.ErrorIs(t, kv.PutBlock(block, nil), ErrAlreadyExists)
}

func TestFinalizedHeightMonotonic(t *testing.T) {
	kv := newTestStore(t)
	require.NoError(t, kv.SetFinalizedHeight(5))
	require.ErrorIs(t, kv.SetFinalizedHeight(3), ErrNonMonotonic)
	require.Equal(t, uint64(5), kv.FinalizedHeight())
}

func TestGetAccountImplicitZero(t *testing.T) {
	kv := newTestStore(t)
	acct := kv.GetAccount(crypto.Address{9})
	require.Equal(t, uint64(0), acct.Nonce)
	require.Equal(t, uint64(0), acct.Balance.Uint64())
}

func TestGetBlockByHashNotFound(t *testing.T) {
	kv := newTestStore(t)
	_, _, err := kv.GetBlockByHash(crypto.Hash{1, 2, 3})
	require.ErrorIs(t, err, ErrNotFound)
}
