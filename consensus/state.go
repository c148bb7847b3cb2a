package consensus

import (
	"sync"
	"time"

	cstype "chainforge/consensus/types"
	"chainforge/crypto"
	"chainforge/gossip"
	"chainforge/libs/metric"
	"chainforge/mempool"
	"chainforge/privval"
	"chainforge/state"
	"chainforge/store"
	"chainforge/types"

	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
)

// Phase re-exported for callers outside the engine that want to name a
// phase without importing consensus/types directly.
type Phase = cstype.Phase

const (
	PhasePropose   = cstype.PhasePropose
	PhasePrevote   = cstype.PhasePrevote
	PhasePrecommit = cstype.PhasePrecommit
	PhaseCommit    = cstype.PhaseCommit
)

// EvidenceReporter receives slashable equivocation evidence as the engine
// detects it.
// The default NoopEvidenceReporter simply drops it; a real deployment
// wires this to whatever off-core slashing module consumes evidence.
type EvidenceReporter interface {
	ReportEquivocation(ev cstype.Equivocation)
}

type noopEvidenceReporter struct{}

func (noopEvidenceReporter) ReportEquivocation(cstype.Equivocation) {}

// msgInfo is the unit of work the receive loop consumes: exactly one of
// proposal/vote is set.
type msgInfo struct {
	proposal *types.Block
	vote     *types.Vote
	peer     string
}

// ConsensusState is the slot-driven BFT state machine. A single receive
// loop (receiveRoutine) owns all mutation of RoundState and the current
// slot's votes; the gossip-draining loop and any RPC reader only ever
// reach the engine through peerMsgQueue or read-only snapshot methods, so
// the (slot, round, phase, deadline) record has exactly one owner.
type ConsensusState struct {
	service.BaseService

	config     Config
	blockExec  state.BlockExecutor
	blockStore store.Store
	pool       mempool.Pool
	transport  gossip.Transport
	privVal    privval.PrivValidator
	evidence   EvidenceReporter
	metric     *engineMetric
	events     *EventBus

	mtx sync.Mutex
	cstype.RoundState
	votes *cstype.SlotVotes

	timer *time.Timer

	peerMsgQueue     chan msgInfo
	internalMsgQueue chan msgInfo
}

// NewConsensusState wires the engine's collaborators. All of blockExec,
// blockStore, pool, transport, and privVal are constructor-injected
// capability interfaces, never looked up from ambient state.
func NewConsensusState(
	config Config,
	blockExec state.BlockExecutor,
	blockStore store.Store,
	pool mempool.Pool,
	transport gossip.Transport,
	privVal privval.PrivValidator,
	vals *types.ValidatorSet,
) *ConsensusState {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}

	cs := &ConsensusState{
		config:     config,
		blockExec:  blockExec,
		blockStore: blockStore,
		pool:       pool,
		transport:  transport,
		privVal:    privVal,
		evidence:   noopEvidenceReporter{},
		metric:     newEngineMetric(),
		events:     NewEventBus(),
		RoundState: cstype.RoundState{Validators: vals},
		timer:      timer,

		peerMsgQueue:     make(chan msgInfo, 256),
		internalMsgQueue: make(chan msgInfo, 256),
	}
	cs.BaseService = *service.NewBaseService(nil, "Consensus", cs)
	return cs
}

// SetEvidenceReporter overrides the default no-op evidence sink.
func (cs *ConsensusState) SetEvidenceReporter(r EvidenceReporter) {
	cs.evidence = r
}

func (cs *ConsensusState) SetLogger(logger log.Logger) {
	cs.Logger = logger
	cs.blockExec.SetLogger(logger)
}

// Metric returns a JSON snapshot of the engine's current (slot, round,
// phase), for the read-only RPC collaborator.
func (cs *ConsensusState) Metric() string {
	return cs.metric.JSONString()
}

// MetricItem exposes the engine's metric snapshot as a libs/metric.MetricItem
// so a node's metric.MetricSet can register it alongside other subsystems'
// metrics under a single label.
func (cs *ConsensusState) MetricItem() metric.MetricItem {
	return cs.metric
}

// RoundStateView is a point-in-time copy of the engine's (slot, round,
// phase), safe to read concurrently with the receive loop -- the read-only
// view RPC handlers need without taking cs.mtx themselves.
type RoundStateView struct {
	Slot  uint64
	Round uint64
	Phase string
}

func (cs *ConsensusState) RoundStateSnapshot() RoundStateView {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()
	return RoundStateView{Slot: cs.Slot, Round: cs.Round, Phase: cs.Phase.String()}
}

// Events returns the bus new commits are published to, for a subscriber
// (e.g. an RPC event feed) that wants to observe the chain without polling
// the store.
func (cs *ConsensusState) Events() *EventBus {
	return cs.events
}

// OnStart implements service.Service: it starts the receive loop and the
// gossip-draining loop, then enters the slot following whatever is
// currently the store's latest height.
func (cs *ConsensusState) OnStart() error {
	go cs.receiveRoutine()
	go cs.gossipRoutine()

	startSlot := cs.blockStore.LatestHeight() + 1
	if tip, _, err := cs.blockStore.GetBlockByHeight(cs.blockStore.LatestHeight()); err == nil && tip != nil {
		cs.LastCommitHash = tip.Hash()
	}

	cs.mtx.Lock()
	cs.enterNewSlot(startSlot)
	cs.mtx.Unlock()
	return nil
}

func (cs *ConsensusState) OnStop() {
	cs.Logger.Info("consensus engine stopped", "slot", cs.Slot, "round", cs.Round)
}

// gossipRoutine drains inbound gossip and dispatches proposals/votes to
// the engine's receive loop and transactions to the pool.
func (cs *ConsensusState) gossipRoutine() {
	for {
		select {
		case <-cs.Quit():
			return
		case msg, ok := <-cs.transport.Inbound():
			if !ok {
				return
			}
			switch msg.Kind {
			case gossip.ProposalMessageKind:
				cs.enqueuePeer(msgInfo{proposal: msg.Block, peer: msg.Peer})
			case gossip.VoteMessageKind:
				cs.enqueuePeer(msgInfo{vote: msg.Vote, peer: msg.Peer})
			case gossip.TransactionMessageKind:
				if msg.Transaction != nil {
					cs.pool.Admit(*msg.Transaction)
				}
			}
		}
	}
}

func (cs *ConsensusState) enqueuePeer(mi msgInfo) {
	select {
	case cs.peerMsgQueue <- mi:
	default:
		cs.Logger.Error("peer message queue full, dropping message", "peer", mi.peer)
	}
}

// receiveRoutine is the engine's single owner of RoundState: every
// mutation happens here, on messages or on phase timeout.
func (cs *ConsensusState) receiveRoutine() {
	for {
		select {
		case <-cs.Quit():
			return
		case mi := <-cs.peerMsgQueue:
			cs.handleMsg(mi)
		case mi := <-cs.internalMsgQueue:
			cs.handleMsg(mi)
		case <-cs.timer.C:
			cs.handleTimeout()
		}
	}
}

func (cs *ConsensusState) handleMsg(mi msgInfo) {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	switch {
	case mi.proposal != nil:
		cs.handleProposal(mi.proposal, mi.peer)
	case mi.vote != nil:
		cs.handleVote(mi.vote, mi.peer)
	}
}

func (cs *ConsensusState) handleTimeout() {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	switch cs.Phase {
	case PhasePropose:
		cs.Logger.Debug("propose timeout, prevoting nil", "slot", cs.Slot, "round", cs.Round)
		cs.enterPrevote()
	case PhasePrevote:
		cs.Logger.Debug("prevote timeout, precommitting nil", "slot", cs.Slot, "round", cs.Round)
		cs.enterPrecommit(crypto.Hash{})
	case PhasePrecommit:
		cs.Logger.Debug("precommit timeout, advancing round", "slot", cs.Slot, "round", cs.Round)
		cs.enterNewRound(cs.Round + 1)
	}
}

// handleProposal validates and accepts a peer's proposal for the current
// (slot, round): parent hash, slot, validator-set id, proposer identity
// and signature, structural well-formedness, and that state_root/
// extrinsics_root reproduce under local re-execution.
func (cs *ConsensusState) handleProposal(block *types.Block, peer string) {
	if cs.Phase != PhasePropose || cs.Proposal != nil {
		return
	}
	if block.Header.Slot != cs.Slot {
		cs.Logger.Debug("ignoring proposal for wrong slot", "got", block.Header.Slot, "want", cs.Slot, "peer", peer)
		return
	}
	if block.Header.ParentHash != cs.LastCommitHash {
		cs.Logger.Debug("ignoring proposal with wrong parent hash", "peer", peer)
		return
	}
	if block.Header.ValidatorSetID != cs.Validators.ID {
		cs.Logger.Debug("ignoring proposal for wrong validator set", "peer", peer)
		return
	}
	proposer := cs.Validators.Proposer(cs.Slot, cs.Round)
	if block.Header.Proposer != proposer.Address {
		cs.Logger.Debug("ignoring proposal from non-proposer", "peer", peer, "proposer", block.Header.Proposer)
		return
	}
	if !block.Header.VerifyProposerSignature(proposer.PubKey) {
		cs.Logger.Debug("ignoring proposal with bad signature", "peer", peer)
		return
	}
	if err := block.ValidateBasic(); err != nil {
		cs.Logger.Debug("ignoring structurally invalid proposal", "err", err, "peer", peer)
		return
	}
	if _, _, err := cs.blockExec.ApplyBlock(block); err != nil {
		cs.Logger.Debug("proposal does not reproduce under local re-execution", "err", err, "peer", peer)
		return
	}

	cs.Proposal = block
	cs.Logger.Info("accepted proposal", "slot", cs.Slot, "round", cs.Round, "hash", block.Hash())
	cs.enterPrevote()
}

// handleVote records a peer's vote, reports any equivocation it surfaces,
// and advances phase early when it completes quorum.
func (cs *ConsensusState) handleVote(vote *types.Vote, peer string) {
	if cs.votes == nil {
		return
	}
	rv := cs.votes.ForRound(vote.Round)
	vs := rv.Prevotes
	if vote.Kind == types.PrecommitKind {
		vs = rv.Precommits
	}

	added, equiv, err := vs.AddVote(*vote)
	if equiv != nil {
		cs.Logger.Error("equivocation detected", "validator", equiv.Validator, "slot", equiv.Slot, "round", equiv.Round, "kind", equiv.Kind)
		cs.evidence.ReportEquivocation(*equiv)
		return
	}
	if err != nil {
		cs.Logger.Debug("rejected vote", "err", err, "peer", peer)
		return
	}
	if !added || vote.Round != cs.Round {
		return
	}

	switch {
	case cs.Phase == PhasePrevote && vote.Kind == types.PrevoteKind:
		if hash, ok := vs.QuorumBlockHash(); ok {
			cs.enterPrecommit(hash)
		} else if vs.HasQuorum(crypto.Hash{}) {
			cs.enterPrecommit(crypto.Hash{})
		}
	case cs.Phase == PhasePrecommit && vote.Kind == types.PrecommitKind:
		if hash, ok := vs.QuorumBlockHash(); ok {
			cs.commit(hash)
		} else if vs.HasQuorum(crypto.Hash{}) {
			cs.enterNewRound(cs.Round + 1)
		}
	}
}

func (cs *ConsensusState) enterNewSlot(slot uint64) {
	cs.Slot = slot
	cs.Round = 0
	cs.LockedBlockHash = crypto.Hash{}
	cs.votes = cstype.NewSlotVotes(cs.Validators, slot)
	cs.Logger.Info("entering new slot", "slot", slot)
	cs.enterPropose()
}

func (cs *ConsensusState) enterNewRound(round uint64) {
	cs.Round = round
	cs.Proposal = nil
	cs.Logger.Info("entering new round", "slot", cs.Slot, "round", round)
	cs.enterPropose()
}

func (cs *ConsensusState) enterPropose() {
	cs.Phase = PhasePropose
	cs.Deadline = time.Now().Add(roundTimeout(cs.config.ProposeTimeout, cs.Round))
	proposer := cs.Validators.Proposer(cs.Slot, cs.Round)
	isProposer := proposer.Address == cs.privVal.Address()
	cs.metric.MarkRound(cs.Slot, cs.Round, cs.Phase, isProposer)
	cs.Logger.Debug("entering propose", "slot", cs.Slot, "round", cs.Round, "proposer", proposer.Address)

	if isProposer {
		cs.propose(proposer)
	}
	cs.resetTimer(roundTimeout(cs.config.ProposeTimeout, cs.Round))
}

// propose builds, signs and broadcasts a block for (slot, round); it also
// sets cs.Proposal directly so the proposer itself needs no round-trip
// through the gossip transport to see its own proposal.
func (cs *ConsensusState) propose(proposer *types.Validator) {
	block, err := cs.blockExec.CreateProposal(cs.LastCommitHash, cs.Slot, cs.Round, proposer.Address, cs.Validators, cs.config.GasLimit, cs.config.BaseFee)
	if err != nil {
		cs.Logger.Error("failed to build proposal", "err", err)
		return
	}
	if !cs.config.AllowEmptyBlocks && len(block.Transactions) == 0 {
		cs.Logger.Debug("skipping empty block proposal, allow_empty_blocks=false")
		return
	}
	if err := cs.privVal.SignHeader(&block.Header); err != nil {
		cs.Logger.Error("failed to sign proposal header", "err", err)
		return
	}

	cs.Proposal = block
	if err := cs.transport.BroadcastProposal(block); err != nil {
		cs.Logger.Error("failed to broadcast proposal", "err", err)
	}
	cs.Logger.Info("proposed block", "slot", cs.Slot, "round", cs.Round, "hash", block.Hash(), "txs", len(block.Transactions))
}

func (cs *ConsensusState) enterPrevote() {
	cs.Phase = PhasePrevote
	cs.Deadline = time.Now().Add(roundTimeout(cs.config.PrevoteTimeout, cs.Round))
	cs.metric.MarkRound(cs.Slot, cs.Round, cs.Phase, false)

	blockHash := crypto.Hash{}
	if cs.Proposal != nil {
		blockHash = cs.Proposal.Hash()
	}
	cs.castVote(types.PrevoteKind, blockHash)
	cs.resetTimer(roundTimeout(cs.config.PrevoteTimeout, cs.Round))

	rv := cs.votes.ForRound(cs.Round)
	if hash, ok := rv.Prevotes.QuorumBlockHash(); ok {
		cs.enterPrecommit(hash)
	} else if rv.Prevotes.HasQuorum(crypto.Hash{}) {
		cs.enterPrecommit(crypto.Hash{})
	}
}

func (cs *ConsensusState) enterPrecommit(hash crypto.Hash) {
	cs.Phase = PhasePrecommit
	cs.Deadline = time.Now().Add(roundTimeout(cs.config.PrecommitTimeout, cs.Round))
	cs.metric.MarkRound(cs.Slot, cs.Round, cs.Phase, false)
	if !hash.IsZero() {
		cs.LockedBlockHash = hash
	}

	cs.castVote(types.PrecommitKind, hash)
	cs.resetTimer(roundTimeout(cs.config.PrecommitTimeout, cs.Round))

	rv := cs.votes.ForRound(cs.Round)
	if qh, ok := rv.Precommits.QuorumBlockHash(); ok {
		cs.commit(qh)
	}
}

// castVote signs, records, and broadcasts this validator's own vote of
// kind for blockHash at the current (slot, round).
func (cs *ConsensusState) castVote(kind types.VoteKind, blockHash crypto.Hash) {
	vote := &types.Vote{Kind: kind, Slot: cs.Slot, Round: cs.Round, BlockHash: blockHash}
	if err := cs.privVal.SignVote(vote); err != nil {
		cs.Logger.Error("failed to sign vote", "err", err, "kind", kind)
		return
	}

	rv := cs.votes.ForRound(cs.Round)
	vs := rv.Prevotes
	if kind == types.PrecommitKind {
		vs = rv.Precommits
	}
	if _, _, err := vs.AddVote(*vote); err != nil {
		cs.Logger.Error("failed to record own vote", "err", err)
	}
	if err := cs.transport.BroadcastVote(vote); err != nil {
		cs.Logger.Error("failed to broadcast vote", "err", err)
	}
}

// commit finalizes block at hash: builds and validates the finality
// certificate, settles fees/rewards, writes everything atomically to the
// store, reshapes the pool against the new account view, and advances to
// the next slot.
//
// Any failure here -- unknown block, an invalid certificate, a settlement
// error, or a store failure -- is not fatal to the engine: the round
// simply advances and the slot is retried by a later round's quorum.
// A store failure aborts the commit without bumping finalized height;
// the next round retries it.
func (cs *ConsensusState) commit(hash crypto.Hash) {
	if cs.Proposal == nil || cs.Proposal.Hash() != hash {
		cs.Logger.Error("precommit quorum for unrecognized block, cannot finalize this round", "hash", hash)
		cs.enterNewRound(cs.Round + 1)
		return
	}
	block := cs.Proposal
	rv := cs.votes.ForRound(cs.Round)
	cert := &types.FinalityCertificate{
		Slot:       cs.Slot,
		Round:      cs.Round,
		BlockHash:  hash,
		Precommits: rv.Precommits.VotesFor(hash),
	}
	if err := cert.Validate(cs.Validators); err != nil {
		cs.Logger.Error("built an invalid finality certificate, retrying round", "err", err)
		cs.enterNewRound(cs.Round + 1)
		return
	}

	delta, receipts, err := cs.blockExec.Settle(block, cert, cs.Validators)
	if err != nil {
		cs.Logger.Error("settlement failed, retrying round", "err", err)
		cs.enterNewRound(cs.Round + 1)
		return
	}
	if err := cs.blockStore.CommitBlock(block, cert, delta, receipts); err != nil {
		cs.Logger.Error("store failure committing block, retrying round", "err", err)
		cs.enterNewRound(cs.Round + 1)
		return
	}

	hashes := make([]crypto.Hash, len(block.Transactions))
	for i := range block.Transactions {
		hashes[i] = block.Transactions[i].Hash()
	}
	cs.pool.Remove(hashes)
	cs.pool.Reshape(cs.blockStore)

	cs.Phase = PhaseCommit
	cs.LastCommitHash = hash
	cs.metric.MarkCommit(time.Now())
	cs.Logger.Info("committed block", "slot", cs.Slot, "round", cs.Round, "hash", hash, "txs", len(block.Transactions))
	cs.events.Publish(CommitEvent{Block: block, Cert: cert})

	cs.enterNewSlot(cs.Slot + 1)
}

func (cs *ConsensusState) resetTimer(d time.Duration) {
	if !cs.timer.Stop() {
		select {
		case <-cs.timer.C:
		default:
		}
	}
	cs.timer.Reset(d)
}
