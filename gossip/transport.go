package gossip

import "chainforge/types"

// Transport is the narrow, one-way gossip capability the engine and pool
// broadcast through and receive inbound messages from, keeping them
// decoupled from the network layer. Delivery is unreliable and
// unordered -- callers must not assume a broadcast message arrives.
type Transport interface {
	BroadcastProposal(block *types.Block) error
	BroadcastVote(vote *types.Vote) error
	BroadcastTransaction(tx *types.Transaction) error

	// Inbound is the single channel of messages arriving from peers, for
	// a dispatcher task to drain and route to the engine or pool.
	Inbound() <-chan InboundMessage
}

// MessageKind distinguishes the three inbound message kinds.
type MessageKind int

const (
	ProposalMessageKind MessageKind = iota + 1
	VoteMessageKind
	TransactionMessageKind
)

// InboundMessage wraps exactly one of Proposal/Vote/Transaction, tagged by
// Kind, plus the originating peer for reputation accounting.
type InboundMessage struct {
	Kind   MessageKind
	Peer   string
	Block       *types.Block
	Vote        *types.Vote
	Transaction *types.Transaction
}
