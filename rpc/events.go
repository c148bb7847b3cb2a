package rpc

import (
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tendermint/tendermint/libs/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Any origin is accepted: this feed is read-only and carries no
	// credentials, so there is nothing a cross-origin page could steal.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const eventWriteTimeout = 10 * time.Second

// resultNewBlock is one committed block reported to a websocket
// subscriber.
type resultNewBlock struct {
	Slot    uint64 `json:"slot"`
	Round   uint64 `json:"round"`
	Hash    string `json:"hash"`
	NumTxs  int    `json:"num_txs"`
	GasUsed uint64 `json:"gas_used"`
}

// NewEventHandler returns an http.Handler that upgrades to a websocket and
// streams one JSON resultNewBlock per block the consensus engine commits,
// until the client disconnects or env.Consensus has none registered.
func NewEventHandler(logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if env.Consensus == nil {
			http.Error(w, "consensus engine not available", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("event feed: upgrade failed", "err", err)
			return
		}
		defer conn.Close()

		sub, unsubscribe := env.Consensus.Events().Subscribe()
		defer unsubscribe()

		for ev := range sub {
			msg := resultNewBlock{
				Slot:    ev.Block.Header.Slot,
				Round:   ev.Cert.Round,
				Hash:    hex.EncodeToString(ev.Block.Hash().Bytes()),
				NumTxs:  len(ev.Block.Transactions),
				GasUsed: ev.Block.Header.GasUsed,
			}
			conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Info("event feed: subscriber disconnected", "err", err)
				return
			}
		}
	})
}
