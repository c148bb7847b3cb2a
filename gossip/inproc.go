package gossip

import "chainforge/types"

// InProcNetwork wires a set of InProcTransports together in-process, for
// engine tests and the S4/S5/S6 simulated-network scenarios
// that need several validators exchanging messages without a real p2p
// stack.
type InProcNetwork struct {
	transports []*InProcTransport
}

func NewInProcNetwork(n int) *InProcNetwork {
	net := &InProcNetwork{}
	net.transports = make([]*InProcTransport, n)
	for i := range net.transports {
		net.transports[i] = &InProcTransport{
			network: net,
			self:    i,
			inbound: make(chan InboundMessage, 1024),
		}
	}
	return net
}

func (net *InProcNetwork) Transport(i int) *InProcTransport {
	return net.transports[i]
}

func (net *InProcNetwork) broadcast(from int, msg InboundMessage) {
	for i, t := range net.transports {
		if i == from {
			continue
		}
		select {
		case t.inbound <- msg:
		default:
			// Unreliable/unordered delivery: a full inbound queue simply
			// drops the message rather than blocking the sender.
		}
	}
}

// InProcTransport implements Transport over Go channels, self-addressed as
// peer index i.
type InProcTransport struct {
	network *InProcNetwork
	self    int
	inbound chan InboundMessage
}

func (t *InProcTransport) BroadcastProposal(block *types.Block) error {
	t.network.broadcast(t.self, InboundMessage{Kind: ProposalMessageKind, Block: block})
	return nil
}

func (t *InProcTransport) BroadcastVote(vote *types.Vote) error {
	t.network.broadcast(t.self, InboundMessage{Kind: VoteMessageKind, Vote: vote})
	return nil
}

func (t *InProcTransport) BroadcastTransaction(tx *types.Transaction) error {
	t.network.broadcast(t.self, InboundMessage{Kind: TransactionMessageKind, Transaction: tx})
	return nil
}

func (t *InProcTransport) Inbound() <-chan InboundMessage {
	return t.inbound
}

var _ Transport = (*InProcTransport)(nil)
