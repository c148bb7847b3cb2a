package state

import (
	"math/big"
	"testing"

	"chainforge/crypto"
	"chainforge/mempool"
	"chainforge/types"

	"github.com/stretchr/testify/require"
)

type fixedAccounts struct {
	accounts map[crypto.Address]types.Account
}

func (f fixedAccounts) GetAccount(addr crypto.Address) types.Account {
	if a, ok := f.accounts[addr]; ok {
		return a.Copy()
	}
	return types.ZeroAccount()
}

func TestCreateProposalAndSettleHappyPath(t *testing.T) {
	// S1: 4 validators equal stake 100 each; A=1000, B=0, fee floor 1.
	kps := make([]crypto.KeyPair, 4)
	vals := make([]*types.Validator, 4)
	for i := range kps {
		kp, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		kps[i] = kp
		vals[i] = types.NewValidator(kp.Public, big.NewInt(100), types.NewRational(0, 100))
	}
	valSet := types.NewValidatorSet(1, vals)

	kpA, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	addrA := crypto.AddressFromPubKey(kpA.Public)
	addrB := crypto.Address{0xB}

	accounts := fixedAccounts{accounts: map[crypto.Address]types.Account{
		addrA: {Nonce: 0, Balance: big.NewInt(1000)},
	}}

	pool := mempool.NewListMempool(mempool.Config{MaxCapacity: 10, MaxPerSender: 10, MinFeePerGas: 1})
	pool.Reshape(accounts)

	tx := types.Transaction{Nonce: 0, To: &addrB, Value: 100, GasLimit: 21, MaxFeePerGas: 2, MaxPriorityFeePerGas: 1}
	require.NoError(t, tx.Sign(kpA))
	require.True(t, pool.Admit(tx).Ok())

	rewards := RewardParams{
		BaseReward:       big.NewInt(0),
		HalvingInterval:  1000,
		BurnFraction:     types.NewRational(1, 2),
		TreasuryFraction: types.NewRational(0, 1),
		TreasuryAddress:  crypto.Address{0xFE},
	}

	exec := NewBlockExecutor(pool, accounts, NewDefaultExecutor(), rewards)

	proposer := vals[(1+0)%4]
	block, err := exec.CreateProposal(crypto.Hash{}, 1, 0, proposer.Address, valSet, 1_000_000, 1)
	require.NoError(t, err)
	require.Len(t, block.Transactions, 1)
	require.Equal(t, proposer.Address, block.Header.Proposer)

	delta, receipts, err := exec.Settle(block, nil, valSet)
	require.NoError(t, err)
	require.Len(t, receipts, 1)

	got := delta[addrA]
	// balance = 1000 - value(100) - gas_used*effective_fee(21*1=21) = 879
	require.Equal(t, big.NewInt(879).String(), got.Balance.String())
	require.Equal(t, uint64(1), got.Nonce)
	require.Equal(t, big.NewInt(100).String(), delta[addrB].Balance.String())

	r := receipts[tx.Hash()]
	require.True(t, r.Status)
	require.Equal(t, uint64(21), r.GasUsed)
}

func TestApplyBlockDetectsStateRootMismatch(t *testing.T) {
	accounts := fixedAccounts{accounts: map[crypto.Address]types.Account{}}
	pool := mempool.NewListMempool(mempool.Config{MaxCapacity: 10, MaxPerSender: 10, MinFeePerGas: 1})
	exec := NewBlockExecutor(pool, accounts, NewDefaultExecutor(), RewardParams{BaseReward: big.NewInt(0), BurnFraction: types.NewRational(0, 1), TreasuryFraction: types.NewRational(0, 1)})

	block := &types.Block{Header: types.Header{StateRoot: crypto.Hash{1, 2, 3}}}
	_, _, err := exec.ApplyBlock(block)
	require.ErrorIs(t, err, ErrStateRootMismatch)
}
