package privval

import (
	"path/filepath"
	"testing"

	"chainforge/types"

	"github.com/stretchr/testify/require"
)

func TestGenAndLoadFilePV(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "priv_validator_key.json")
	statePath := filepath.Join(dir, "priv_validator_state.json")

	generated, err := GenFilePV(keyPath, statePath)
	require.NoError(t, err)
	generated.Save()

	loaded, err := LoadFilePV(keyPath, statePath)
	require.NoError(t, err)
	require.Equal(t, generated.Address(), loaded.Address())
	require.Equal(t, generated.PubKey(), loaded.PubKey())
}

func TestSignVoteRefusesDoubleSign(t *testing.T) {
	dir := t.TempDir()
	pv, err := GenFilePV(filepath.Join(dir, "key.json"), filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	vote := &types.Vote{Kind: types.PrevoteKind, Slot: 5, Round: 0}
	require.NoError(t, pv.SignVote(vote))

	again := &types.Vote{Kind: types.PrevoteKind, Slot: 5, Round: 0, BlockHash: vote.BlockHash}
	require.ErrorIs(t, pv.SignVote(again), ErrDoubleSign)

	earlier := &types.Vote{Kind: types.PrecommitKind, Slot: 4, Round: 9}
	require.ErrorIs(t, pv.SignVote(earlier), ErrDoubleSign)

	precommit := &types.Vote{Kind: types.PrecommitKind, Slot: 5, Round: 0}
	require.NoError(t, pv.SignVote(precommit))

	nextRound := &types.Vote{Kind: types.PrevoteKind, Slot: 5, Round: 1}
	require.NoError(t, pv.SignVote(nextRound))
}

func TestSignHeaderRefusesDoubleSign(t *testing.T) {
	dir := t.TempDir()
	pv, err := GenFilePV(filepath.Join(dir, "key.json"), filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	h1 := &types.Header{Slot: 10}
	require.NoError(t, pv.SignHeader(h1))

	h2 := &types.Header{Slot: 10, BaseFee: 1}
	require.ErrorIs(t, pv.SignHeader(h2), ErrDoubleSign)

	h3 := &types.Header{Slot: 11}
	require.NoError(t, pv.SignHeader(h3))
}

func TestPersistedStateSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key.json")
	statePath := filepath.Join(dir, "state.json")

	pv, err := GenFilePV(keyPath, statePath)
	require.NoError(t, err)
	pv.Save()
	require.NoError(t, pv.SignVote(&types.Vote{Kind: types.PrecommitKind, Slot: 3, Round: 0}))

	restarted, err := LoadFilePV(keyPath, statePath)
	require.NoError(t, err)
	require.ErrorIs(t, restarted.SignVote(&types.Vote{Kind: types.PrecommitKind, Slot: 3, Round: 0}), ErrDoubleSign)
}
