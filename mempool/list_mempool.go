package mempool

import (
	"sort"
	"sync"

	"chainforge/crypto"
	"chainforge/libs/metric"
	"chainforge/types"

	"github.com/rcrowley/go-metrics"
	"github.com/tendermint/tendermint/libs/clist"
	"github.com/tendermint/tendermint/libs/log"
)

// poolTx is one admitted transaction plus the bookkeeping the pool needs to
// order and evict it -- admittedSeq breaks fee ties by earliest admission.
type poolTx struct {
	tx           types.Transaction
	hash         crypto.Hash
	admittedSeq  uint64
	element      *clist.CElement
}

// ListMempool is the Pool implementation: a clist.CList carries broadcast
// order for a gossip-friendly ordered list, while a per-sender nonce-ordered
// index drives select_for_block. A single mutex serializes admit/remove/
// reshape; SelectForBlock takes the same lock and returns a value snapshot,
// a consistent read of the pool at a point in time.
type ListMempool struct {
	config Config

	mtx  sync.Mutex
	list *clist.CList

	bySender map[crypto.Address][]*poolTx // sorted by tx.Nonce ascending
	byHash   map[crypto.Hash]*poolTx

	seq uint64

	// lastView is the most recent AccountView handed to Reshape; Admit
	// consults it for nonce/balance checks between reshapes.
	lastView AccountView

	metric *poolMetric

	logger log.Logger
}

func NewListMempool(config Config) *ListMempool {
	return &ListMempool{
		config:   config,
		list:     clist.New(),
		bySender: make(map[crypto.Address][]*poolTx),
		byHash:   make(map[crypto.Hash]*poolTx),
		metric:   newPoolMetric(metrics.DefaultRegistry),
		logger:   log.NewNopLogger(),
	}
}

// MetricItem exposes the pool's occupancy metric as a libs/metric.MetricItem
// for registration into a node's metric.MetricSet.
func (mem *ListMempool) MetricItem() metric.MetricItem {
	return mem.metric
}

// markSize updates the occupancy metric to the pool's current size; called
// with mem.mtx held.
func (mem *ListMempool) markSize() {
	mem.metric.MarkSize(len(mem.byHash))
}

func (mem *ListMempool) SetLogger(logger log.Logger) {
	mem.logger = logger
}

// Admit implements Pool.Admit.
func (mem *ListMempool) Admit(tx types.Transaction) AdmitResult {
	mem.mtx.Lock()
	defer mem.mtx.Unlock()

	if err := tx.ValidateBasic(); err != nil {
		return Rejected(BadSignature)
	}
	if tx.MaxFeePerGas < mem.config.MinFeePerGas {
		return Rejected(FeeBelowFloor)
	}

	hash := tx.Hash()
	if _, ok := mem.byHash[hash]; ok {
		return Rejected(DuplicateHash)
	}

	senderTxs := mem.bySender[tx.Sender]
	if mem.config.MaxPerSender > 0 && len(senderTxs) >= mem.config.MaxPerSender {
		return Rejected(SenderQuotaExceeded)
	}

	acct := mem.account(tx.Sender)
	if tx.Nonce < acct.Nonce {
		return Rejected(NonceGap)
	}
	if acct.Balance.Cmp(tx.Cost()) < 0 {
		return Rejected(InsufficientBalance)
	}

	if mem.config.MaxCapacity > 0 && len(mem.byHash) >= mem.config.MaxCapacity {
		victim := mem.lowestFeeEntry()
		if victim == nil || !feeHigher(&tx, &victim.tx) {
			return Rejected(PoolFull)
		}
		mem.removeEntry(victim)
	}

	mem.seq++
	entry := &poolTx{tx: tx, hash: hash, admittedSeq: mem.seq}
	entry.element = mem.list.PushBack(entry)
	mem.byHash[hash] = entry
	mem.insertSorted(tx.Sender, entry)
	mem.markSize()

	mem.logger.Info("admitted tx", "sender", tx.Sender, "nonce", tx.Nonce, "hash", hash)
	return Accepted()
}

// account consults the most recently supplied AccountView, or the implicit
// zero account if the pool has never been reshaped yet.
func (mem *ListMempool) account(addr crypto.Address) types.Account {
	if mem.lastView != nil {
		return mem.lastView.GetAccount(addr)
	}
	return types.ZeroAccount()
}

// feeHigher reports whether a's fee ranks strictly above b's under the
// pool's eviction ordering (no base fee context at eviction time, so raw
// max_fee_per_gas is used as the comparable).
func feeHigher(a, b *types.Transaction) bool {
	return a.MaxFeePerGas > b.MaxFeePerGas
}

func (mem *ListMempool) insertSorted(sender crypto.Address, entry *poolTx) {
	list := mem.bySender[sender]
	idx := sort.Search(len(list), func(i int) bool { return list[i].tx.Nonce >= entry.tx.Nonce })
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = entry
	mem.bySender[sender] = list
}

func (mem *ListMempool) lowestFeeEntry() *poolTx {
	var lowest *poolTx
	for e := mem.list.Front(); e != nil; e = e.Next() {
		cand := e.Value.(*poolTx)
		if lowest == nil || cand.tx.MaxFeePerGas < lowest.tx.MaxFeePerGas {
			lowest = cand
		}
	}
	return lowest
}

func (mem *ListMempool) removeEntry(entry *poolTx) {
	mem.list.Remove(entry.element)
	delete(mem.byHash, entry.hash)
	list := mem.bySender[entry.tx.Sender]
	for i, e := range list {
		if e == entry {
			mem.bySender[entry.tx.Sender] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(mem.bySender[entry.tx.Sender]) == 0 {
		delete(mem.bySender, entry.tx.Sender)
	}
}

// candidate is a pending entry together with the effective fee it earns
// under a specific (max_gas, base_fee) selection context.
type candidate struct {
	entry        *poolTx
	effectiveFee uint64
}

// higherPriority reports whether a is selected before b when both are the
// current head of their sender's chain: higher effective fee first, ties
// broken by earliest admission.
func higherPriority(a, b candidate) bool {
	if a.effectiveFee != b.effectiveFee {
		return a.effectiveFee > b.effectiveFee
	}
	return a.entry.admittedSeq < b.entry.admittedSeq
}

// senderChain is one sender's maximal run of candidates starting at the
// account's current nonce, each one nonce greater than the last and each
// passing the base-fee floor. A gap in either respect ends the chain:
// nonce contiguity means nothing past that point can ever be selected.
type senderChain struct {
	entries []candidate
	idx     int // index of the next unconsumed entry
}

func (c *senderChain) head() (candidate, bool) {
	if c.idx >= len(c.entries) {
		return candidate{}, false
	}
	return c.entries[c.idx], true
}

// SelectForBlock implements Pool.SelectForBlock. Candidates are grouped
// into per-sender nonce-contiguous chains, then built up one tx at a time:
// at each step the highest effective-fee chain head across all senders is
// selected (ties broken by earliest admission), and that sender's chain
// advances to its next entry. This keeps nonce order within a sender
// intact -- a tx is never selected ahead of the predecessor it depends on
// -- while still packing the block fee-greedily across senders.
func (mem *ListMempool) SelectForBlock(maxGas uint64, baseFee uint64) types.Transactions {
	mem.mtx.Lock()
	defer mem.mtx.Unlock()

	chains := make([]*senderChain, 0, len(mem.bySender))
	for sender, list := range mem.bySender {
		want := mem.account(sender).Nonce
		c := &senderChain{}
		for _, entry := range list {
			if entry.tx.Nonce != want {
				break
			}
			fee, fits := entry.tx.EffectiveFeePerGas(baseFee)
			if !fits {
				break
			}
			c.entries = append(c.entries, candidate{entry: entry, effectiveFee: fee})
			want++
		}
		if len(c.entries) > 0 {
			chains = append(chains, c)
		}
	}

	var selected types.Transactions
	var gasUsed uint64
	for {
		best := -1
		var bestHead candidate
		for i, c := range chains {
			head, ok := c.head()
			if !ok {
				continue
			}
			if best == -1 || higherPriority(head, bestHead) {
				best = i
				bestHead = head
			}
		}
		if best == -1 {
			break
		}

		tx := bestHead.entry.tx
		if gasUsed+tx.GasLimit > maxGas {
			// This chain's next entry can never fit either: gasUsed only
			// grows, and contiguity forbids skipping ahead of it.
			chains[best].idx = len(chains[best].entries)
			continue
		}
		selected = append(selected, tx)
		gasUsed += tx.GasLimit
		chains[best].idx++
	}
	return selected
}

// Remove implements Pool.Remove: invoked after block inclusion.
func (mem *ListMempool) Remove(hashes []crypto.Hash) {
	mem.mtx.Lock()
	defer mem.mtx.Unlock()
	for _, h := range hashes {
		if entry, ok := mem.byHash[h]; ok {
			mem.removeEntry(entry)
		}
	}
	mem.markSize()
}

// Reshape implements Pool.Reshape: drops entries whose nonce
// is now stale or whose sender can no longer afford them, and remembers
// accounts as the view Admit consults until the next Reshape.
func (mem *ListMempool) Reshape(accounts AccountView) {
	mem.mtx.Lock()
	defer mem.mtx.Unlock()
	mem.lastView = accounts

	for sender, list := range mem.bySender {
		acct := accounts.GetAccount(sender)
		var stale []*poolTx
		for _, entry := range list {
			if entry.tx.Nonce < acct.Nonce || acct.Balance.Cmp(entry.tx.Cost()) < 0 {
				stale = append(stale, entry)
			}
		}
		for _, entry := range stale {
			mem.removeEntry(entry)
		}
	}
	mem.markSize()
}

func (mem *ListMempool) Size() int {
	mem.mtx.Lock()
	defer mem.mtx.Unlock()
	return len(mem.byHash)
}

func (mem *ListMempool) Has(hash crypto.Hash) bool {
	mem.mtx.Lock()
	defer mem.mtx.Unlock()
	_, ok := mem.byHash[hash]
	return ok
}

// TxsFront exposes the broadcast-ordered list front, for a gossip reactor
// to stream newly admitted transactions by walking CElement.Next().
func (mem *ListMempool) TxsFront() *clist.CElement {
	return mem.list.Front()
}

func (mem *ListMempool) TxsWaitChan() <-chan struct{} {
	return mem.list.WaitChan()
}

var _ Pool = (*ListMempool)(nil)
