package state

import (
	"errors"
	"math/big"

	"chainforge/crypto"
	"chainforge/mempool"
	"chainforge/store"
	"chainforge/types"

	"github.com/tendermint/tendermint/libs/log"
)

// BlockExecutor is the engine's propose/apply/settle capability: select
// candidates from the pool, execute each through an Executor, and settle
// fees and block rewards into the resulting state delta.
type BlockExecutor interface {
	// CreateProposal builds an unsigned block for (slot, round): selects
	// candidates from pool, executes each against a snapshot of accounts,
	// debits the fee each included tx owes at baseFee, and fills in
	// extrinsics_root/state_root over the resulting account map. The
	// caller (consensus engine) still signs the header, but Proposer is
	// set here since fee settlement pays it out and so must know it
	// before state_root is computed.
	CreateProposal(parentHash crypto.Hash, slot, round uint64, proposer crypto.Address, vals *types.ValidatorSet, gasLimit, baseFee uint64) (*types.Block, error)

	// ApplyBlock re-executes block against the current store view,
	// reproducing the same execution-plus-fee-settlement state CreateProposal
	// committed to, and returns the resulting delta and receipts -- used by
	// Prevote-phase local re-execution to check state_root/extrinsics_root
	// reproduction. It does not apply the block reward: that additionally
	// depends on the finality certificate, which does not exist yet at
	// Prevote time.
	ApplyBlock(block *types.Block) (types.StateDelta, map[crypto.Hash]store.Receipt, error)

	// Settle computes the full commit-time delta (the same execution + fee
	// settlement state_root commits to, plus the block reward split that
	// only cert makes knowable) for a block that has reached precommit
	// quorum, ready for store.CommitBlock.
	Settle(block *types.Block, cert *types.FinalityCertificate, vals *types.ValidatorSet) (types.StateDelta, map[crypto.Hash]store.Receipt, error)

	SetLogger(logger log.Logger)
}

var ErrStateRootMismatch = errors.New("block executor: state_root does not reproduce under local re-execution")

type blockExecutor struct {
	pool     mempool.Pool
	accounts AccountView
	executor Executor
	rewards  RewardParams

	logger log.Logger
}

func NewBlockExecutor(pool mempool.Pool, accounts AccountView, executor Executor, rewards RewardParams) BlockExecutor {
	return &blockExecutor{
		pool:     pool,
		accounts: accounts,
		executor: executor,
		rewards:  rewards,
		logger:   log.NewNopLogger(),
	}
}

func (exec *blockExecutor) SetLogger(logger log.Logger) {
	exec.logger = logger
}

func (exec *blockExecutor) CreateProposal(parentHash crypto.Hash, slot, round uint64, proposer crypto.Address, vals *types.ValidatorSet, gasLimit, baseFee uint64) (*types.Block, error) {
	candidates := exec.pool.SelectForBlock(gasLimit, baseFee)

	overlay := NewOverlay(exec.accounts)
	var included types.Transactions
	var gasUsed uint64
	totalFee := big.NewInt(0)
	for _, tx := range candidates {
		delta, receipt, err := exec.executor.Execute(tx, overlay)
		if err != nil {
			exec.logger.Error("execution error, skipping tx", "hash", tx.Hash(), "err", err)
			continue
		}
		for addr, acct := range delta {
			overlay.SetAccount(addr, acct)
		}
		included = append(included, tx)
		gasUsed += receipt.GasUsed
		totalFee.Add(totalFee, debitFee(overlay, tx, receipt.GasUsed, baseFee))
	}
	if totalFee.Sign() > 0 {
		SettleFees(overlay, proposer, totalFee, exec.rewards.BurnFraction)
	}

	header := types.Header{
		ParentHash:     parentHash,
		Slot:           slot,
		Epoch:          slot / epochLength(vals),
		ValidatorSetID: vals.ID,
		Proposer:       proposer,
		GasUsed:        gasUsed,
		BaseFee:        baseFee,
		StateRoot:      overlaySnapshotRoot(overlay),
	}
	return types.NewBlock(header, included), nil
}

// debitFee charges tx's effective fee under baseFee (gasUsed * effective
// fee per gas) from its sender in overlay and returns the amount charged,
// zero if tx's max fee no longer covers baseFee.
func debitFee(overlay *Overlay, tx types.Transaction, gasUsed uint64, baseFee uint64) *big.Int {
	fee, fits := tx.EffectiveFeePerGas(baseFee)
	if !fits {
		return big.NewInt(0)
	}
	txFee := new(big.Int).Mul(new(big.Int).SetUint64(fee), new(big.Int).SetUint64(gasUsed))
	sender := overlay.GetAccount(tx.Sender)
	sender.Balance.Sub(sender.Balance, txFee)
	overlay.SetAccount(tx.Sender, sender)
	return txFee
}

// epochLength is a placeholder until epoch rotation configuration is
// wired in from genesis/consensus params; an epoch spans as many slots as
// the set has validators (one full proposer rotation), which keeps
// Header.Epoch meaningful without inventing an unconfigured constant.
func epochLength(vals *types.ValidatorSet) uint64 {
	if vals.Size() == 0 {
		return 1
	}
	return uint64(vals.Size())
}

// overlaySnapshotRoot commits to the overlay's touched accounts, after tx
// execution and fee settlement have both been applied -- the full state
// transition a header's own contents determine. It does not cover the block
// reward split, which additionally depends on the finality certificate and
// so cannot be known until after the header is signed (see DESIGN.md).
// Because this core's Store is a plain KV map rather than a Merkle trie, the
// root is the Merkle root of (address, account) pairs touched by this
// block -- sufficient to detect divergent re-execution, the property
// Prevote relies on, without requiring full-state Merkleization.
type addrAccount struct {
	Addr crypto.Address `json:"address"`
	Acct types.Account  `json:"account"`
}

func overlaySnapshotRoot(overlay *Overlay) crypto.Hash {
	delta := overlay.Delta()
	if len(delta) == 0 {
		return crypto.Hash{}
	}
	entries := make([]addrAccount, 0, len(delta))
	for addr, acct := range delta {
		entries = append(entries, addrAccount{Addr: addr, Acct: acct})
	}
	sortKVs(entries)
	leaves := make([][]byte, len(entries))
	for i, e := range entries {
		leaves[i] = crypto.MustEncode(e)
	}
	return crypto.MerkleRoot(leaves)
}

func sortKVs(entries []addrAccount) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && lessAddr(entries[j].Addr, entries[j-1].Addr); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

func lessAddr(a, b crypto.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func (exec *blockExecutor) ApplyBlock(block *types.Block) (types.StateDelta, map[crypto.Hash]store.Receipt, error) {
	overlay := NewOverlay(exec.accounts)
	receipts := make(map[crypto.Hash]store.Receipt, len(block.Transactions))

	totalFee := big.NewInt(0)
	for _, tx := range block.Transactions {
		delta, receipt, err := exec.executor.Execute(tx, overlay)
		if err != nil {
			return nil, nil, err
		}
		for addr, acct := range delta {
			overlay.SetAccount(addr, acct)
		}
		receipts[tx.Hash()] = receipt.WithHeight(block.Header.Slot)
		totalFee.Add(totalFee, debitFee(overlay, tx, receipt.GasUsed, block.Header.BaseFee))
	}
	if totalFee.Sign() > 0 {
		SettleFees(overlay, block.Header.Proposer, totalFee, exec.rewards.BurnFraction)
	}

	if overlaySnapshotRoot(overlay) != block.Header.StateRoot {
		return nil, nil, ErrStateRootMismatch
	}

	return overlay.Delta(), receipts, nil
}

func (exec *blockExecutor) Settle(block *types.Block, cert *types.FinalityCertificate, vals *types.ValidatorSet) (types.StateDelta, map[crypto.Hash]store.Receipt, error) {
	overlay := NewOverlay(exec.accounts)
	receipts := make(map[crypto.Hash]store.Receipt, len(block.Transactions))

	totalFee := big.NewInt(0)
	for _, tx := range block.Transactions {
		delta, receipt, err := exec.executor.Execute(tx, overlay)
		if err != nil {
			return nil, nil, err
		}
		for addr, acct := range delta {
			overlay.SetAccount(addr, acct)
		}
		receipts[tx.Hash()] = receipt.WithHeight(block.Header.Slot)
		totalFee.Add(totalFee, debitFee(overlay, tx, receipt.GasUsed, block.Header.BaseFee))
	}

	proposerIdx, proposer := vals.GetByAddress(block.Header.Proposer)
	if proposerIdx < 0 {
		return nil, nil, errors.New("block executor: proposer not found in validator set")
	}

	if totalFee.Sign() > 0 {
		SettleFees(overlay, proposer.Address, totalFee, exec.rewards.BurnFraction)
	}

	reward := exec.rewards.BaseRewardForSlot(block.Header.Slot)
	SettleBlockReward(overlay, vals, proposer, cert, reward, exec.rewards.TreasuryFraction, exec.rewards.TreasuryAddress)

	return overlay.Delta(), receipts, nil
}
