package rpc

import rpc "github.com/tendermint/tendermint/rpc/jsonrpc/server"

// Routes is the full set of JSON-RPC methods the node's HTTP server
// exposes.
var Routes = map[string]*rpc.RPCFunc{
	"broadcast_tx": rpc.NewRPCFunc(BroadcastTx, "tx"),
	"pool_status":  rpc.NewRPCFunc(PoolStatus, ""),
	"round_state":  rpc.NewRPCFunc(RoundState, ""),
	"block":        rpc.NewRPCFunc(Block, "height"),
	"block_range":  rpc.NewRPCFunc(BlockRange, "from,limit"),
	"account":      rpc.NewRPCFunc(Account, "address"),
	"metrics":      rpc.NewRPCFunc(JSONMetrics, "label"),
}
