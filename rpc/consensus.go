package rpc

import (
	"chainforge/libs/utils"

	"github.com/tendermint/tendermint/libs/bytes"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

// ResultRoundState reports the engine's current (slot, round, phase).
type ResultRoundState struct {
	Slot  uint64 `json:"slot"`
	Round uint64 `json:"round"`
	Phase string `json:"phase"`
}

func RoundState(ctx *rpctypes.Context) (*ResultRoundState, error) {
	snap := env.Consensus.RoundStateSnapshot()
	return &ResultRoundState{Slot: snap.Slot, Round: snap.Round, Phase: snap.Phase}, nil
}

// ResultBlock is the per-block summary returned by Block/BlockRange.
type ResultBlock struct {
	Slot           uint64         `json:"slot"`
	Hash           bytes.HexBytes `json:"hash"`
	ParentHash     bytes.HexBytes `json:"parent_hash"`
	Proposer       bytes.HexBytes `json:"proposer"`
	TxCount        int            `json:"tx_count"`
	GasUsed        uint64         `json:"gas_used"`
	ValidatorSetID uint64         `json:"validator_set_id"`
}

func Block(ctx *rpctypes.Context, height uint64) (*ResultBlock, error) {
	block, _, err := env.Store.GetBlockByHeight(height)
	if err != nil {
		return nil, err
	}
	return &ResultBlock{
		Slot:           block.Header.Slot,
		Hash:           bytes.HexBytes(block.Hash().Bytes()),
		ParentHash:     bytes.HexBytes(block.Header.ParentHash.Bytes()),
		Proposer:       bytes.HexBytes(block.Header.Proposer.Bytes()),
		TxCount:        len(block.Transactions),
		GasUsed:        block.Header.GasUsed,
		ValidatorSetID: block.Header.ValidatorSetID,
	}, nil
}

// ResultBlockRange walks [from, env.Store.LatestHeight()] (capped at limit
// blocks) and reports a gas-usage distribution across them, the way the
// teacher's BlockTree/ResultLatency pair reported a tx-latency distribution
// across the full chain.
type ResultBlockRange struct {
	Blocks       []ResultBlock `json:"blocks"`
	MaxGasUsed   float64       `json:"max_gas_used"`
	MinGasUsed   float64       `json:"min_gas_used"`
	MeanGasUsed  float64       `json:"mean_gas_used"`
	AvgGasUsed   float64       `json:"avg_gas_used"`
}

func BlockRange(ctx *rpctypes.Context, from uint64, limit int) (*ResultBlockRange, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	latest := env.Store.LatestHeight()

	var blocks []ResultBlock
	var gasUsed []float64
	for h := from; h <= latest && len(blocks) < limit; h++ {
		block, _, err := env.Store.GetBlockByHeight(h)
		if err != nil {
			continue
		}
		blocks = append(blocks, ResultBlock{
			Slot:           block.Header.Slot,
			Hash:           bytes.HexBytes(block.Hash().Bytes()),
			ParentHash:     bytes.HexBytes(block.Header.ParentHash.Bytes()),
			Proposer:       bytes.HexBytes(block.Header.Proposer.Bytes()),
			TxCount:        len(block.Transactions),
			GasUsed:        block.Header.GasUsed,
			ValidatorSetID: block.Header.ValidatorSetID,
		})
		gasUsed = append(gasUsed, float64(block.Header.GasUsed))
	}

	return &ResultBlockRange{
		Blocks:      blocks,
		MaxGasUsed:  utils.Max(gasUsed...),
		MinGasUsed:  utils.Min(gasUsed...),
		MeanGasUsed: utils.Mean(gasUsed...),
		AvgGasUsed:  utils.Avg(gasUsed...),
	}, nil
}

// ResultAccount reports a single account's nonce and balance.
type ResultAccount struct {
	Address bytes.HexBytes `json:"address"`
	Nonce   uint64         `json:"nonce"`
	Balance string         `json:"balance"`
}

func Account(ctx *rpctypes.Context, address bytes.HexBytes) (*ResultAccount, error) {
	var addr [20]byte
	copy(addr[:], address)
	acct := env.Store.GetAccount(addr)
	return &ResultAccount{
		Address: address,
		Nonce:   acct.Nonce,
		Balance: acct.Balance.String(),
	}, nil
}
