package mempool

import (
	"math/big"
	"testing"

	"chainforge/crypto"
	"chainforge/types"

	"github.com/stretchr/testify/require"
)

type stubAccounts struct {
	accounts map[crypto.Address]types.Account
}

func (s stubAccounts) GetAccount(addr crypto.Address) types.Account {
	if a, ok := s.accounts[addr]; ok {
		return a
	}
	return types.ZeroAccount()
}

func signedTx(t *testing.T, kp crypto.KeyPair, nonce uint64, maxFee, priority uint64, gasLimit uint64, value uint64) types.Transaction {
	t.Helper()
	tx := types.Transaction{
		Nonce:                nonce,
		Value:                value,
		GasLimit:             gasLimit,
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: priority,
	}
	require.NoError(t, tx.Sign(kp))
	return tx
}

func TestAdmitAcceptsValidTx(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	addr := crypto.AddressFromPubKey(kp.Public)

	pool := NewListMempool(Config{MaxCapacity: 10, MaxPerSender: 10, MinFeePerGas: 1})
	pool.Reshape(stubAccounts{accounts: map[crypto.Address]types.Account{
		addr: {Nonce: 0, Balance: big.NewInt(1000)},
	}})

	tx := signedTx(t, kp, 0, 5, 2, 21, 10)
	result := pool.Admit(tx)
	require.True(t, result.Ok())
	require.Equal(t, 1, pool.Size())
}

func TestAdmitRejectsInsufficientBalance(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	addr := crypto.AddressFromPubKey(kp.Public)

	pool := NewListMempool(Config{MaxCapacity: 10, MaxPerSender: 10, MinFeePerGas: 1})
	pool.Reshape(stubAccounts{accounts: map[crypto.Address]types.Account{
		addr: {Nonce: 0, Balance: big.NewInt(50)},
	}})

	// gas_limit 21 * max_fee 3 + value 10 = 73 > balance 50.
	tx := signedTx(t, kp, 0, 3, 1, 21, 10)
	result := pool.Admit(tx)
	require.False(t, result.Ok())
	require.Equal(t, InsufficientBalance, result.Kind)
	require.Equal(t, 0, pool.Size())
}

func TestAdmitRejectsDuplicateHash(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	addr := crypto.AddressFromPubKey(kp.Public)

	pool := NewListMempool(Config{MaxCapacity: 10, MaxPerSender: 10, MinFeePerGas: 1})
	pool.Reshape(stubAccounts{accounts: map[crypto.Address]types.Account{
		addr: {Nonce: 0, Balance: big.NewInt(1000)},
	}})

	tx := signedTx(t, kp, 0, 5, 2, 21, 10)
	require.True(t, pool.Admit(tx).Ok())
	result := pool.Admit(tx)
	require.Equal(t, DuplicateHash, result.Kind)
}

func TestSelectForBlockOrdersBySenderNonceThenFee(t *testing.T) {
	kpA, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	kpB, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	addrA := crypto.AddressFromPubKey(kpA.Public)
	addrB := crypto.AddressFromPubKey(kpB.Public)

	pool := NewListMempool(Config{MaxCapacity: 10, MaxPerSender: 10, MinFeePerGas: 1})
	pool.Reshape(stubAccounts{accounts: map[crypto.Address]types.Account{
		addrA: {Nonce: 0, Balance: big.NewInt(10000)},
		addrB: {Nonce: 0, Balance: big.NewInt(10000)},
	}})

	// Same sender: tx1 (fee 5) at nonce 0, tx2 (fee 10) at nonce 1 -- nonce
	// contiguity must win over fee.
	tx1 := signedTx(t, kpA, 0, 5, 5, 21, 0)
	tx2 := signedTx(t, kpA, 1, 10, 10, 21, 0)
	require.True(t, pool.Admit(tx1).Ok())
	require.True(t, pool.Admit(tx2).Ok())

	selected := pool.SelectForBlock(1_000_000, 1)
	require.Len(t, selected, 2)
	require.Equal(t, tx1.Hash(), selected[0].Hash())
	require.Equal(t, tx2.Hash(), selected[1].Hash())

	pool.Remove([]crypto.Hash{tx1.Hash(), tx2.Hash()})

	// Distinct senders, both at nonce 0: higher fee selected first.
	txLow := signedTx(t, kpA, 0, 5, 5, 21, 0)
	txHigh := signedTx(t, kpB, 0, 10, 10, 21, 0)
	require.True(t, pool.Admit(txLow).Ok())
	require.True(t, pool.Admit(txHigh).Ok())

	selected = pool.SelectForBlock(1_000_000, 1)
	require.Len(t, selected, 2)
	require.Equal(t, txHigh.Hash(), selected[0].Hash())
	require.Equal(t, txLow.Hash(), selected[1].Hash())
}

func TestSelectForBlockSkipsBelowBaseFee(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	addr := crypto.AddressFromPubKey(kp.Public)

	pool := NewListMempool(Config{MaxCapacity: 10, MaxPerSender: 10, MinFeePerGas: 1})
	pool.Reshape(stubAccounts{accounts: map[crypto.Address]types.Account{
		addr: {Nonce: 0, Balance: big.NewInt(10000)},
	}})

	tx := signedTx(t, kp, 0, 5, 5, 21, 0)
	require.True(t, pool.Admit(tx).Ok())

	selected := pool.SelectForBlock(1_000_000, 10)
	require.Empty(t, selected)
}

func TestReshapeDropsStaleNonce(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	addr := crypto.AddressFromPubKey(kp.Public)

	pool := NewListMempool(Config{MaxCapacity: 10, MaxPerSender: 10, MinFeePerGas: 1})
	pool.Reshape(stubAccounts{accounts: map[crypto.Address]types.Account{
		addr: {Nonce: 0, Balance: big.NewInt(10000)},
	}})

	tx := signedTx(t, kp, 0, 5, 5, 21, 0)
	require.True(t, pool.Admit(tx).Ok())
	require.Equal(t, 1, pool.Size())

	pool.Reshape(stubAccounts{accounts: map[crypto.Address]types.Account{
		addr: {Nonce: 1, Balance: big.NewInt(10000)},
	}})
	require.Equal(t, 0, pool.Size())
}

func TestAdmitEvictsLowestFeeWhenFull(t *testing.T) {
	kpA, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	kpB, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	addrA := crypto.AddressFromPubKey(kpA.Public)
	addrB := crypto.AddressFromPubKey(kpB.Public)

	pool := NewListMempool(Config{MaxCapacity: 1, MaxPerSender: 10, MinFeePerGas: 1})
	pool.Reshape(stubAccounts{accounts: map[crypto.Address]types.Account{
		addrA: {Nonce: 0, Balance: big.NewInt(10000)},
		addrB: {Nonce: 0, Balance: big.NewInt(10000)},
	}})

	low := signedTx(t, kpA, 0, 3, 3, 21, 0)
	require.True(t, pool.Admit(low).Ok())

	high := signedTx(t, kpB, 0, 9, 9, 21, 0)
	result := pool.Admit(high)
	require.True(t, result.Ok())
	require.Equal(t, 1, pool.Size())
	require.True(t, pool.Has(high.Hash()))
	require.False(t, pool.Has(low.Hash()))

	// A tx that does not exceed the current lowest (now `high`) is rejected.
	another := signedTx(t, kpA, 0, 1, 1, 21, 0)
	result = pool.Admit(another)
	require.Equal(t, PoolFull, result.Kind)
}
