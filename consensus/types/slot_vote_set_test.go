package types

import (
	"math/big"
	"testing"

	"chainforge/crypto"
	chaintypes "chainforge/types"

	"github.com/stretchr/testify/require"
)

func testValidatorSet(t *testing.T, n int) (*chaintypes.ValidatorSet, []crypto.KeyPair) {
	t.Helper()
	keys := make([]crypto.KeyPair, n)
	valz := make([]*chaintypes.Validator, n)
	for i := range keys {
		kp, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		keys[i] = kp
		valz[i] = chaintypes.NewValidator(kp.Public, big.NewInt(100), chaintypes.NewRational(0, 1))
	}
	return chaintypes.NewValidatorSet(1, valz), keys
}

func signedVote(t *testing.T, kp crypto.KeyPair, kind chaintypes.VoteKind, slot, round uint64, blockHash crypto.Hash) chaintypes.Vote {
	t.Helper()
	vote := chaintypes.Vote{Kind: kind, Slot: slot, Round: round, BlockHash: blockHash}
	require.NoError(t, vote.Sign(kp))
	return vote
}

func TestVoteSetAddVoteAccumulatesStake(t *testing.T) {
	vals, keys := testValidatorSet(t, 4)
	vs := NewVoteSet(vals, 5, 0, chaintypes.PrevoteKind)
	blockHash := crypto.Hash{0x01}

	for i := 0; i < 3; i++ {
		vote := signedVote(t, keys[i], chaintypes.PrevoteKind, 5, 0, blockHash)
		added, equiv, err := vs.AddVote(vote)
		require.NoError(t, err)
		require.Nil(t, equiv)
		require.True(t, added)
	}

	require.True(t, vs.HasQuorum(blockHash))
	hash, ok := vs.QuorumBlockHash()
	require.True(t, ok)
	require.Equal(t, blockHash, hash)
}

func TestVoteSetNoQuorumBelowThreshold(t *testing.T) {
	vals, keys := testValidatorSet(t, 4)
	vs := NewVoteSet(vals, 5, 0, chaintypes.PrevoteKind)
	blockHash := crypto.Hash{0x01}

	vote := signedVote(t, keys[0], chaintypes.PrevoteKind, 5, 0, blockHash)
	_, _, err := vs.AddVote(vote)
	require.NoError(t, err)

	require.False(t, vs.HasQuorum(blockHash))
	_, ok := vs.QuorumBlockHash()
	require.False(t, ok)
}

func TestVoteSetRejectsWrongView(t *testing.T) {
	vals, keys := testValidatorSet(t, 4)
	vs := NewVoteSet(vals, 5, 0, chaintypes.PrevoteKind)

	vote := signedVote(t, keys[0], chaintypes.PrevoteKind, 6, 0, crypto.Hash{0x01})
	_, _, err := vs.AddVote(vote)
	require.ErrorIs(t, err, ErrWrongView)
}

func TestVoteSetRejectsNonValidator(t *testing.T) {
	vals, _ := testValidatorSet(t, 4)
	vs := NewVoteSet(vals, 5, 0, chaintypes.PrevoteKind)

	outsider, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	vote := signedVote(t, outsider, chaintypes.PrevoteKind, 5, 0, crypto.Hash{0x01})
	_, _, err = vs.AddVote(vote)
	require.ErrorIs(t, err, ErrNotValidator)
}

func TestVoteSetDuplicateVoteIgnored(t *testing.T) {
	vals, keys := testValidatorSet(t, 4)
	vs := NewVoteSet(vals, 5, 0, chaintypes.PrevoteKind)
	blockHash := crypto.Hash{0x01}

	vote := signedVote(t, keys[0], chaintypes.PrevoteKind, 5, 0, blockHash)
	added, _, err := vs.AddVote(vote)
	require.NoError(t, err)
	require.True(t, added)

	added, equiv, err := vs.AddVote(vote)
	require.ErrorIs(t, err, ErrDuplicateVote)
	require.Nil(t, equiv)
	require.False(t, added)
}

func TestVoteSetDetectsEquivocation(t *testing.T) {
	vals, keys := testValidatorSet(t, 4)
	vs := NewVoteSet(vals, 5, 0, chaintypes.PrevoteKind)

	voteA := signedVote(t, keys[0], chaintypes.PrevoteKind, 5, 0, crypto.Hash{0x01})
	_, _, err := vs.AddVote(voteA)
	require.NoError(t, err)

	voteB := signedVote(t, keys[0], chaintypes.PrevoteKind, 5, 0, crypto.Hash{0x02})
	added, equiv, err := vs.AddVote(voteB)
	require.NoError(t, err)
	require.False(t, added)
	require.NotNil(t, equiv)
	require.Equal(t, crypto.AddressFromPubKey(keys[0].Public), equiv.Validator)
	require.Equal(t, voteA, equiv.VoteA)
	require.Equal(t, voteB, equiv.VoteB)
}

func TestSlotVotesLazilyCreatesRounds(t *testing.T) {
	vals, _ := testValidatorSet(t, 4)
	sv := NewSlotVotes(vals, 5)

	rv0 := sv.ForRound(0)
	require.NotNil(t, rv0)
	rv0Again := sv.ForRound(0)
	require.Same(t, rv0, rv0Again)

	rv1 := sv.ForRound(1)
	require.NotSame(t, rv0, rv1)
}

func TestVotesForReturnsOnlyMatchingHash(t *testing.T) {
	vals, keys := testValidatorSet(t, 4)
	vs := NewVoteSet(vals, 5, 0, chaintypes.PrecommitKind)

	hashA := crypto.Hash{0x01}
	hashB := crypto.Hash{0x02}
	_, _, err := vs.AddVote(signedVote(t, keys[0], chaintypes.PrecommitKind, 5, 0, hashA))
	require.NoError(t, err)
	_, _, err = vs.AddVote(signedVote(t, keys[1], chaintypes.PrecommitKind, 5, 0, hashA))
	require.NoError(t, err)
	_, _, err = vs.AddVote(signedVote(t, keys[2], chaintypes.PrecommitKind, 5, 0, hashB))
	require.NoError(t, err)

	votesForA := vs.VotesFor(hashA)
	require.Len(t, votesForA, 2)
	votesForB := vs.VotesFor(hashB)
	require.Len(t, votesForB, 1)
}
