package gossip

import (
	"fmt"

	"chainforge/types"

	tmjson "github.com/tendermint/tendermint/libs/json"
	"github.com/tendermint/tendermint/p2p"
)

// Channel IDs for the three message kinds this reactor carries, unified
// under one reactor rather than split across per-subsystem reactors.
const (
	ProposalChannel = byte(0x21)
	VoteChannel      = byte(0x22)
	TxChannel        = byte(0x23)

	maxMsgSize = 1 << 20
)

// P2PTransport adapts tendermint/p2p's Switch/Reactor machinery to the
// Transport interface, the one concrete network implementation of it.
type P2PTransport struct {
	p2p.BaseReactor

	inbound chan InboundMessage
}

func NewP2PTransport() *P2PTransport {
	t := &P2PTransport{inbound: make(chan InboundMessage, 4096)}
	t.BaseReactor = *p2p.NewBaseReactor("Gossip", t)
	return t
}

// GetChannels implements p2p.Reactor.
func (t *P2PTransport) GetChannels() []*p2p.ChannelDescriptor {
	return []*p2p.ChannelDescriptor{
		{ID: ProposalChannel, Priority: 10, SendQueueCapacity: 100, RecvMessageCapacity: maxMsgSize},
		{ID: VoteChannel, Priority: 10, SendQueueCapacity: 100, RecvMessageCapacity: maxMsgSize},
		{ID: TxChannel, Priority: 5, SendQueueCapacity: 1000, RecvMessageCapacity: maxMsgSize},
	}
}

// InitPeer implements p2p.Reactor.
func (t *P2PTransport) InitPeer(peer p2p.Peer) p2p.Peer { return peer }

// AddPeer implements p2p.Reactor.
func (t *P2PTransport) AddPeer(peer p2p.Peer) {}

// RemovePeer implements p2p.Reactor.
func (t *P2PTransport) RemovePeer(peer p2p.Peer, reason interface{}) {}

// Receive implements p2p.Reactor: decode by channel and forward to the
// single inbound queue, tagging the sender for reputation accounting.
func (t *P2PTransport) Receive(chID byte, src p2p.Peer, msgBytes []byte) {
	peerID := ""
	if src != nil {
		peerID = string(src.ID())
	}
	switch chID {
	case ProposalChannel:
		var block types.Block
		if err := tmjson.Unmarshal(msgBytes, &block); err != nil {
			t.Logger.Error("decode proposal failed", "peer", peerID, "err", err)
			return
		}
		t.deliver(InboundMessage{Kind: ProposalMessageKind, Peer: peerID, Block: &block})
	case VoteChannel:
		var vote types.Vote
		if err := tmjson.Unmarshal(msgBytes, &vote); err != nil {
			t.Logger.Error("decode vote failed", "peer", peerID, "err", err)
			return
		}
		t.deliver(InboundMessage{Kind: VoteMessageKind, Peer: peerID, Vote: &vote})
	case TxChannel:
		var tx types.Transaction
		if err := tmjson.Unmarshal(msgBytes, &tx); err != nil {
			t.Logger.Error("decode tx failed", "peer", peerID, "err", err)
			return
		}
		t.deliver(InboundMessage{Kind: TransactionMessageKind, Peer: peerID, Transaction: &tx})
	default:
		t.Logger.Error(fmt.Sprintf("unknown channel %X", chID))
	}
}

func (t *P2PTransport) deliver(msg InboundMessage) {
	select {
	case t.inbound <- msg:
	default:
		t.Logger.Error("inbound queue full, dropping message", "kind", msg.Kind)
	}
}

func (t *P2PTransport) Inbound() <-chan InboundMessage {
	return t.inbound
}

func (t *P2PTransport) BroadcastProposal(block *types.Block) error {
	bz, err := tmjson.Marshal(block)
	if err != nil {
		return err
	}
	t.Switch.Broadcast(ProposalChannel, bz)
	return nil
}

func (t *P2PTransport) BroadcastVote(vote *types.Vote) error {
	bz, err := tmjson.Marshal(vote)
	if err != nil {
		return err
	}
	t.Switch.Broadcast(VoteChannel, bz)
	return nil
}

func (t *P2PTransport) BroadcastTransaction(tx *types.Transaction) error {
	bz, err := tmjson.Marshal(tx)
	if err != nil {
		return err
	}
	t.Switch.Broadcast(TxChannel, bz)
	return nil
}

var _ Transport = (*P2PTransport)(nil)
