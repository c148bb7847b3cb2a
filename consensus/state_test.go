package consensus

import (
	"math/big"
	"testing"
	"time"

	"chainforge/crypto"
	"chainforge/gossip"
	"chainforge/mempool"
	"chainforge/privval"
	"chainforge/state"
	"chainforge/store"
	"chainforge/types"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
)

// network bundles one ConsensusState per validator, wired over an
// in-process gossip network, for end-to-end scenario tests.
type network struct {
	engines []*ConsensusState
	stores  []store.Store
	keys    []crypto.KeyPair
}

func newTestNetwork(t *testing.T, n int, cfg Config) *network {
	t.Helper()

	keys := make([]crypto.KeyPair, n)
	valz := make([]*types.Validator, n)
	for i := range keys {
		kp, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		keys[i] = kp
		valz[i] = types.NewValidator(kp.Public, big.NewInt(100), types.NewRational(0, 1))
	}
	vals := types.NewValidatorSet(1, valz)

	net := gossip.NewInProcNetwork(n)
	rewards := state.RewardParams{
		BaseReward:       big.NewInt(0),
		HalvingInterval:  1000,
		BurnFraction:     types.NewRational(1, 2),
		TreasuryFraction: types.NewRational(0, 1),
		TreasuryAddress:  crypto.Address{0xFE},
	}

	out := &network{stores: make([]store.Store, n), keys: keys}
	for i := 0; i < n; i++ {
		st := store.NewMockStore()
		out.stores[i] = st

		pool := mempool.NewListMempool(mempool.Config{MaxCapacity: 1000, MaxPerSender: 100, MinFeePerGas: 1})
		pool.Reshape(st)
		executor := state.NewDefaultExecutor()
		blockExec := state.NewBlockExecutor(pool, st, executor, rewards)

		pv := privval.NewFilePV(keys[i], "", "")

		cs := NewConsensusState(cfg, blockExec, st, pool, net.Transport(i), pv, vals)
		out.engines = append(out.engines, cs)
	}
	return out
}

func (net *network) start(t *testing.T) {
	t.Helper()
	for _, cs := range net.engines {
		require.NoError(t, cs.Start())
	}
}

func (net *network) stop() {
	for _, cs := range net.engines {
		_ = cs.Stop()
	}
}

func fastTestConfig() Config {
	return Config{
		ProposeTimeout:   150 * time.Millisecond,
		PrevoteTimeout:   100 * time.Millisecond,
		PrecommitTimeout: 100 * time.Millisecond,
		AllowEmptyBlocks: true,
		GasLimit:         1_000_000,
		BaseFee:          1,
	}
}

// TestHappyPathFinalizesSlotOne covers the happy path: four equal-stake
// validators, a funded sender, one valid transaction -- the network should
// finalize slot 1 with the transfer applied on every store.
func TestHappyPathFinalizesSlotOne(t *testing.T) {
	defer leaktest.Check(t)()

	net := newTestNetwork(t, 4, fastTestConfig())

	senderKP, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	sender := crypto.AddressFromPubKey(senderKP.Public)
	recipient := crypto.Address{0x01, 0x02, 0x03}

	for _, st := range net.stores {
		mst := st.(*store.MockStore)
		mst.SetAccount(sender, types.Account{Nonce: 0, Balance: big.NewInt(1000)})
	}

	tx := types.Transaction{
		Nonce: 0, To: &recipient, Value: 100,
		GasLimit: 21, MaxFeePerGas: 2, MaxPriorityFeePerGas: 1,
	}
	require.NoError(t, tx.Sign(senderKP))
	for _, cs := range net.engines {
		require.True(t, cs.pool.Admit(tx).Ok())
	}

	net.start(t)
	defer net.stop()

	require.Eventually(t, func() bool {
		for _, st := range net.stores {
			if st.FinalizedHeight() < 1 {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond)

	for _, st := range net.stores {
		acct := st.GetAccount(recipient)
		require.Equal(t, big.NewInt(100), acct.Balance)
	}
}

// TestSilentProposerAdvancesRound: if a validator's private key never
// gets wired to a live engine (simulating a silent proposer), the
// remaining honest validators still reach quorum on nil and advance
// rounds until a live proposer's turn arrives.
func TestSilentProposerAdvancesRound(t *testing.T) {
	net := newTestNetwork(t, 4, fastTestConfig())

	// Starve the network of one engine entirely (simulates a validator
	// that never proposes or votes): only start three of the four.
	for i, cs := range net.engines {
		if i == 3 {
			continue
		}
		require.NoError(t, cs.Start())
	}
	defer func() {
		for i, cs := range net.engines {
			if i == 3 {
				continue
			}
			_ = cs.Stop()
		}
	}()

	// Validator 3 is proposer for slot 3 (index (3+0)%4 == 3); since it
	// never runs, slot 3's round 0 must time out to nil and round 1 (whose
	// proposer is validator 0) finalizes it instead. Waiting past height 3
	// exercises that round advance.
	require.Eventually(t, func() bool {
		for i, st := range net.stores {
			if i == 3 {
				continue
			}
			if st.FinalizedHeight() < 3 {
				return false
			}
		}
		return true
	}, 15*time.Second, 20*time.Millisecond)
}
