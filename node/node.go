package node

import (
	"fmt"
	"strings"

	"chainforge/gossip"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/p2p/conn"
	"github.com/tendermint/tendermint/version"
)

// Provider builds a Node from a config and a logger.
type Provider func(*cfg.Config, log.Logger) (*Node, error)

// Node is the composition root's p2p half: the Switch/Transport pair and
// the single gossip.P2PTransport reactor that carries proposals, votes,
// and transactions between peers. Everything engine-, pool-, and
// store-side is wired by the caller before NewNode and handed in as the
// reactor; Node itself only owns the network stack.
type Node struct {
	service.BaseService

	config *cfg.Config

	transport *p2p.MultiplexTransport
	sw        *p2p.Switch
	nodeInfo  p2p.NodeInfo
	nodeKey   *p2p.NodeKey

	gossipReactor *gossip.P2PTransport
}

type Option func(*Node)

// DefaultNewNode loads or generates this node's p2p identity and builds a
// Node with a fresh gossip.P2PTransport; callers needing to share that
// transport with a ConsensusState/Pool should use NewNode directly.
func DefaultNewNode(config *cfg.Config, logger log.Logger) (*Node, error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return nil, err
	}
	return NewNode(config, nodeKey, gossip.NewP2PTransport(), logger)
}

func createTransport(nodeInfo p2p.NodeInfo, nodeKey *p2p.NodeKey) *p2p.MultiplexTransport {
	mConnConfig := conn.DefaultMConnConfig()
	return p2p.NewMultiplexTransport(nodeInfo, *nodeKey, mConnConfig)
}

func createSwitch(
	config *cfg.Config,
	transport p2p.Transport,
	reactor *gossip.P2PTransport,
	nodeInfo p2p.NodeInfo,
	nodeKey *p2p.NodeKey,
	p2pLogger log.Logger,
) *p2p.Switch {
	sw := p2p.NewSwitch(config.P2P, transport)
	sw.SetLogger(p2pLogger)
	sw.AddReactor("GOSSIP", reactor)
	sw.SetNodeInfo(nodeInfo)
	sw.SetNodeKey(nodeKey)

	p2pLogger.Info("P2P Node ID", "ID", nodeKey.ID(), "file", config.NodeKeyFile())
	return sw
}

func makeNodeInfo(config *cfg.Config, nodeKey *p2p.NodeKey, reactor *gossip.P2PTransport) (p2p.NodeInfo, error) {
	var channels []byte
	for _, ch := range reactor.GetChannels() {
		channels = append(channels, ch.ID)
	}

	nodeInfo := p2p.DefaultNodeInfo{
		ProtocolVersion: p2p.NewProtocolVersion(8, 11, 0),
		DefaultNodeID:   nodeKey.ID(),
		Network:         "chainforge",
		Version:         version.TMCoreSemVer,
		Channels:        channels,
		Moniker:         config.Moniker,
		Other: p2p.DefaultNodeInfoOther{
			TxIndex:    "off",
			RPCAddress: config.RPC.ListenAddress,
		},
	}

	lAddr := config.P2P.ExternalAddress
	if lAddr == "" {
		lAddr = config.P2P.ListenAddress
	}
	nodeInfo.ListenAddr = lAddr

	return nodeInfo, nodeInfo.Validate()
}

// NewNode wires reactor (already holding the mempool/engine it feeds) into
// a Switch and MultiplexTransport as the node's single registered reactor.
func NewNode(config *cfg.Config, nodeKey *p2p.NodeKey, reactor *gossip.P2PTransport, logger log.Logger, options ...Option) (*Node, error) {
	reactor.SetLogger(logger)
	p2pLogger := logger.With("module", "p2p")

	nodeInfo, err := makeNodeInfo(config, nodeKey, reactor)
	if err != nil {
		return nil, err
	}

	transport := createTransport(nodeInfo, nodeKey)
	sw := createSwitch(config, transport, reactor, nodeInfo, nodeKey, p2pLogger)

	node := &Node{
		config:        config,
		transport:     transport,
		sw:            sw,
		nodeInfo:      nodeInfo,
		nodeKey:       nodeKey,
		gossipReactor: reactor,
	}
	node.BaseService = *service.NewBaseService(logger, "Node", node)
	for _, option := range options {
		option(node)
	}
	return node, nil
}

func (n *Node) Switch() *p2p.Switch { return n.sw }

func (n *Node) NodeInfo() p2p.NodeInfo { return n.nodeInfo }

func (n *Node) GossipTransport() *gossip.P2PTransport { return n.gossipReactor }

func (n *Node) OnStart() error {
	addr, err := p2p.NewNetAddressString(p2p.IDAddressString(n.nodeKey.ID(), n.config.P2P.ListenAddress))
	if err != nil {
		return err
	}
	if err := n.transport.Listen(*addr); err != nil {
		return err
	}

	if err := n.sw.Start(); err != nil {
		return err
	}

	n.Logger.Info("dialing persistent peers", "peers", n.config.P2P.PersistentPeers)
	if err := n.sw.DialPeersAsync(splitAndTrimEmpty(n.config.P2P.PersistentPeers, ",", " ")); err != nil {
		return fmt.Errorf("could not dial peers from persistent_peers field: %w", err)
	}
	return nil
}

func (n *Node) OnStop() {
	n.sw.Stop()
	n.transport.Close()
}

// splitAndTrimEmpty slices s into all subslices separated by sep, trimming
// cutset from each and dropping empty results.
func splitAndTrimEmpty(s, sep, cutset string) []string {
	if s == "" {
		return []string{}
	}
	spl := strings.Split(s, sep)
	out := make([]string, 0, len(spl))
	for _, part := range spl {
		if trimmed := strings.Trim(part, cutset); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
