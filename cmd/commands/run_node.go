package commands

import (
	"math/big"
	"net/http"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"chainforge/consensus"
	"chainforge/gossip"
	"chainforge/libs/metric"
	"chainforge/mempool"
	"chainforge/node"
	"chainforge/rpc"
	"chainforge/state"
	"chainforge/store"
	"chainforge/types"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/p2p"
	rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"

	"chainforge/privval"
)

// NewRunNodeCmd returns the run-node command. The store, pool, executor,
// and consensus engine are all fixed by this node's design -- there is no
// pluggable application underneath -- so run-node builds them directly
// rather than through a provider indirection.
func NewRunNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run-node",
		Aliases: []string{"node", "run_node"},
		Short:   "Run a chainforge validator node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(config, logger)
		},
	}
	return cmd
}

func runNode(conf *cfg.Config, logger log.Logger) error {
	doc, err := consensus.GenesisDocFromFile(conf.GenesisFile())
	if err != nil {
		return errors.Wrap(err, "reading genesis file")
	}
	gen := doc.Genesis()
	vals := gen.Validators

	pv, err := privval.LoadOrGenFilePV(conf.PrivValidatorKeyFile(), conf.PrivValidatorStateFile())
	if err != nil {
		return errors.Wrap(err, "loading private validator")
	}

	st, err := store.NewKVStore("chainforge", conf.DBDir(), logger)
	if err != nil {
		return errors.Wrap(err, "opening store")
	}
	if err := consensus.Bootstrap(st, gen); err != nil {
		return errors.Wrap(err, "bootstrapping genesis")
	}

	pool := mempool.NewListMempool(mempool.Config{
		MaxCapacity:  10000,
		MaxPerSender: 256,
		MinFeePerGas: 1,
	})
	pool.Reshape(st)

	executor := state.NewDefaultExecutor()
	rewards := state.RewardParams{
		BaseReward:       big.NewInt(10),
		HalvingInterval:  2_100_000,
		BurnFraction:     types.NewRational(1, 2),
		TreasuryFraction: types.NewRational(1, 10),
		TreasuryAddress:  gen.Validators.Proposer(0, 0).Address,
	}
	blockExec := state.NewBlockExecutor(pool, st, executor, rewards)

	transport := gossip.NewP2PTransport()

	engineConfig := consensus.DefaultConfig()
	cs := consensus.NewConsensusState(engineConfig, blockExec, st, pool, transport, pv, vals)
	cs.SetLogger(logger.With("module", "consensus"))

	nodeKey, err := p2p.LoadOrGenNodeKey(conf.NodeKeyFile())
	if err != nil {
		return errors.Wrap(err, "loading node key")
	}
	n, err := node.NewNode(conf, nodeKey, transport, logger.With("module", "p2p"))
	if err != nil {
		return errors.Wrap(err, "building p2p node")
	}

	metricSet := metric.NewMetricSet()
	if err := metricSet.SetMetrics("consensus", cs.MetricItem()); err != nil {
		return errors.Wrap(err, "registering consensus metric")
	}
	if err := metricSet.SetMetrics("mempool", pool.MetricItem()); err != nil {
		return errors.Wrap(err, "registering mempool metric")
	}
	rpc.SetEnvironment(&rpc.Environment{
		Store:     st,
		Pool:      pool,
		Consensus: cs,
		Transport: transport,
		MetricSet: metricSet,
	})

	if err := n.Start(); err != nil {
		return errors.Wrap(err, "starting p2p node")
	}
	if err := cs.Start(); err != nil {
		return errors.Wrap(err, "starting consensus engine")
	}

	mux := http.NewServeMux()
	rpcserver.RegisterRPCFuncs(mux, rpc.Routes, logger.With("module", "rpc"))
	mux.Handle("/websocket", rpc.NewEventHandler(logger.With("module", "rpc")))
	listener, err := rpcserver.Listen(conf.RPC.ListenAddress, rpcserver.DefaultConfig())
	if err != nil {
		return errors.Wrapf(err, "listening on %s", conf.RPC.ListenAddress)
	}
	go func() {
		if err := rpcserver.Serve(listener, mux, logger.With("module", "rpc"), rpcserver.DefaultConfig()); err != nil {
			logger.Error("rpc server stopped", "err", err)
		}
	}()

	logger.Info("chainforge node running", "moniker", conf.Moniker, "rpc", conf.RPC.ListenAddress)
	select {}
}
