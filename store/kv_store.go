package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"chainforge/crypto"
	"chainforge/types"

	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"
	leveldb "github.com/tendermint/tm-db/goleveldb"
)

// Namespace prefixes for the four keyed maps this store persists: blocks,
// state, receipts, meta.
const (
	nsBlockByHeight = "b/h/"
	nsBlockByHash   = "b/x/"
	nsAccount       = "s/a/"
	nsReceipt       = "r/x/"
	nsMeta          = "m/"

	keyLatestHeight    = nsMeta + "latest_height"
	keyFinalizedHeight = nsMeta + "finalized_height"
)

var (
	ErrAlreadyExists    = errors.New("store: block already exists at this height")
	ErrFinalityViolation = errors.New("store: write below finalized_height")
	ErrNotFound          = errors.New("store: not found")
	ErrNonMonotonic      = errors.New("store: finalized_height must not decrease")
)

// Receipt is the per-transaction execution outcome.
type Receipt struct {
	Status      bool   `json:"status"`
	GasUsed     uint64 `json:"gas_used"`
	BlockHeight uint64 `json:"block_height"`
	Logs        []byte `json:"logs,omitempty"`
}

// Store is the persisted-state contract.
type Store interface {
	PutBlock(block *types.Block, cert *types.FinalityCertificate) error
	GetBlockByHeight(height uint64) (*types.Block, *types.FinalityCertificate, error)
	GetBlockByHash(hash crypto.Hash) (*types.Block, *types.FinalityCertificate, error)
	SetFinalizedHeight(height uint64) error
	GetAccount(addr crypto.Address) types.Account
	ApplyStateDelta(delta types.StateDelta) error
	PutReceipt(txHash crypto.Hash, receipt Receipt) error
	PutReceipts(receipts map[crypto.Hash]Receipt) error
	LatestHeight() uint64
	FinalizedHeight() uint64
	CommitBlock(block *types.Block, cert *types.FinalityCertificate, delta types.StateDelta, receipts map[crypto.Hash]Receipt) error
}

// KVStore implements Store atop an embedded key-value engine (tm-db with
// the goleveldb driver), namespacing keys by record kind. A single mutex
// serializes block application -- writers hold an exclusive batch lock
// per block -- while readers hit the DB directly since goleveldb
// snapshots are consistent per-read.
type KVStore struct {
	db     tmdb.DB
	logger log.Logger

	mtx              sync.Mutex
	latestHeight     uint64
	finalizedHeight  uint64
}

func NewKVStore(name, dir string, logger log.Logger) (*KVStore, error) {
	db, err := leveldb.NewDB(name, dir)
	if err != nil {
		return nil, err
	}
	return NewKVStoreWithDB(db, logger)
}

func NewKVStoreWithDB(db tmdb.DB, logger log.Logger) (*KVStore, error) {
	kv := &KVStore{db: db, logger: logger}
	if bz, err := db.Get([]byte(keyLatestHeight)); err == nil && bz != nil {
		kv.latestHeight = decodeUint64(bz)
	}
	if bz, err := db.Get([]byte(keyFinalizedHeight)); err == nil && bz != nil {
		kv.finalizedHeight = decodeUint64(bz)
	}
	return kv, nil
}

func (kv *KVStore) LatestHeight() uint64 {
	kv.mtx.Lock()
	defer kv.mtx.Unlock()
	return kv.latestHeight
}

func (kv *KVStore) FinalizedHeight() uint64 {
	kv.mtx.Lock()
	defer kv.mtx.Unlock()
	return kv.finalizedHeight
}

type storedBlock struct {
	Block       types.Block                `json:"block"`
	Certificate *types.FinalityCertificate `json:"certificate,omitempty"`
}

// PutBlock implements Store.PutBlock.
func (kv *KVStore) PutBlock(block *types.Block, cert *types.FinalityCertificate) error {
	kv.mtx.Lock()
	defer kv.mtx.Unlock()
	return kv.putBlockLocked(kv.db.NewBatch(), block, cert, true)
}

func (kv *KVStore) putBlockLocked(batch tmdb.Batch, block *types.Block, cert *types.FinalityCertificate, writeNow bool) error {
	height := block.Header.Slot
	if height < kv.finalizedHeight {
		return ErrFinalityViolation
	}
	if existing, err := kv.db.Get(heightKey(height)); err == nil && existing != nil {
		return ErrAlreadyExists
	}

	rec := storedBlock{Block: *block, Certificate: cert}
	bz := crypto.MustEncode(rec)
	hash := block.Hash()
	if err := batch.Set(heightKey(height), bz); err != nil {
		return err
	}
	if err := batch.Set(hashKey(hash), bz); err != nil {
		return err
	}
	if height > kv.latestHeight {
		if err := batch.Set([]byte(keyLatestHeight), encodeUint64(height)); err != nil {
			return err
		}
	}

	if !writeNow {
		return nil
	}
	defer batch.Close()
	if err := batch.Write(); err != nil {
		return err
	}
	if height > kv.latestHeight {
		kv.latestHeight = height
	}
	return nil
}

// GetBlockByHeight implements Store.GetBlockByHeight.
func (kv *KVStore) GetBlockByHeight(height uint64) (*types.Block, *types.FinalityCertificate, error) {
	return kv.getBlock(heightKey(height))
}

// GetBlockByHash implements Store.GetBlockByHash.
func (kv *KVStore) GetBlockByHash(hash crypto.Hash) (*types.Block, *types.FinalityCertificate, error) {
	return kv.getBlock(hashKey(hash))
}

func (kv *KVStore) getBlock(key []byte) (*types.Block, *types.FinalityCertificate, error) {
	bz, err := kv.db.Get(key)
	if err != nil {
		return nil, nil, err
	}
	if bz == nil {
		return nil, nil, ErrNotFound
	}
	var rec storedBlock
	if err := crypto.Decode(bz, &rec); err != nil {
		return nil, nil, err
	}
	return &rec.Block, rec.Certificate, nil
}

// SetFinalizedHeight implements Store.SetFinalizedHeight:
// monotonic, fails with ErrNonMonotonic on decrease.
func (kv *KVStore) SetFinalizedHeight(height uint64) error {
	kv.mtx.Lock()
	defer kv.mtx.Unlock()
	return kv.setFinalizedLocked(kv.db.NewBatch(), height, true)
}

func (kv *KVStore) setFinalizedLocked(batch tmdb.Batch, height uint64, writeNow bool) error {
	if height < kv.finalizedHeight {
		return ErrNonMonotonic
	}
	if err := batch.Set([]byte(keyFinalizedHeight), encodeUint64(height)); err != nil {
		return err
	}
	if !writeNow {
		return nil
	}
	defer batch.Close()
	if err := batch.Write(); err != nil {
		return err
	}
	kv.finalizedHeight = height
	return nil
}

// GetAccount implements Store.GetAccount: implicit ZeroAccount for unknown
// addresses.
func (kv *KVStore) GetAccount(addr crypto.Address) types.Account {
	bz, err := kv.db.Get(accountKey(addr))
	if err != nil || bz == nil {
		return types.ZeroAccount()
	}
	var acct types.Account
	if err := crypto.Decode(bz, &acct); err != nil {
		return types.ZeroAccount()
	}
	return acct
}

// ApplyStateDelta implements Store.ApplyStateDelta: an atomic batch of
// address -> new Account entries.
func (kv *KVStore) ApplyStateDelta(delta types.StateDelta) error {
	kv.mtx.Lock()
	defer kv.mtx.Unlock()
	batch := kv.db.NewBatch()
	defer batch.Close()
	if err := kv.applyDeltaLocked(batch, delta); err != nil {
		return err
	}
	return batch.Write()
}

func (kv *KVStore) applyDeltaLocked(batch tmdb.Batch, delta types.StateDelta) error {
	for addr, acct := range delta {
		if err := batch.Set(accountKey(addr), crypto.MustEncode(acct)); err != nil {
			return err
		}
	}
	return nil
}

// PutReceipt implements Store.PutReceipt: idempotent per tx_hash.
func (kv *KVStore) PutReceipt(txHash crypto.Hash, receipt Receipt) error {
	kv.mtx.Lock()
	defer kv.mtx.Unlock()
	batch := kv.db.NewBatch()
	defer batch.Close()
	if err := kv.putReceiptLocked(batch, txHash, receipt); err != nil {
		return err
	}
	return batch.Write()
}

func (kv *KVStore) putReceiptLocked(batch tmdb.Batch, txHash crypto.Hash, receipt Receipt) error {
	return batch.Set(receiptKey(txHash), crypto.MustEncode(receipt))
}

func (kv *KVStore) PutReceipts(receipts map[crypto.Hash]Receipt) error {
	kv.mtx.Lock()
	defer kv.mtx.Unlock()
	batch := kv.db.NewBatch()
	defer batch.Close()
	for hash, r := range receipts {
		if err := kv.putReceiptLocked(batch, hash, r); err != nil {
			return err
		}
	}
	return batch.Write()
}

func (kv *KVStore) GetReceipt(txHash crypto.Hash) (Receipt, error) {
	bz, err := kv.db.Get(receiptKey(txHash))
	if err != nil {
		return Receipt{}, err
	}
	if bz == nil {
		return Receipt{}, ErrNotFound
	}
	var r Receipt
	if err := crypto.Decode(bz, &r); err != nil {
		return Receipt{}, err
	}
	return r, nil
}

// CommitBlock performs the whole of block application -- state delta,
// receipts, block write, latest_height bump, finalized_height bump -- as a
// single tm-db batch, so the whole set of writes lands atomically or not
// at all.
func (kv *KVStore) CommitBlock(block *types.Block, cert *types.FinalityCertificate, delta types.StateDelta, receipts map[crypto.Hash]Receipt) error {
	kv.mtx.Lock()
	defer kv.mtx.Unlock()

	batch := kv.db.NewBatch()
	defer batch.Close()

	if err := kv.applyDeltaLocked(batch, delta); err != nil {
		return err
	}
	for hash, r := range receipts {
		if err := kv.putReceiptLocked(batch, hash, r); err != nil {
			return err
		}
	}
	if err := kv.putBlockLocked(batch, block, cert, false); err != nil {
		return err
	}
	if err := kv.setFinalizedLocked(batch, block.Header.Slot, false); err != nil {
		return err
	}

	if err := batch.Write(); err != nil {
		kv.logger.Error("commit block failed", "slot", block.Header.Slot, "err", err)
		return err
	}

	if block.Header.Slot > kv.latestHeight {
		kv.latestHeight = block.Header.Slot
	}
	kv.finalizedHeight = block.Header.Slot
	kv.logger.Info("committed block", "slot", block.Header.Slot, "txs", len(block.Transactions))
	return nil
}

func (kv *KVStore) GetDB() tmdb.DB {
	return kv.db
}

func heightKey(h uint64) []byte  { return append([]byte(nsBlockByHeight), encodeUint64(h)...) }
func hashKey(h crypto.Hash) []byte { return append([]byte(nsBlockByHash), h.Bytes()...) }
func accountKey(a crypto.Address) []byte { return append([]byte(nsAccount), a.Bytes()...) }
func receiptKey(h crypto.Hash) []byte { return append([]byte(nsReceipt), h.Bytes()...) }

func encodeUint64(v uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, v)
	return bz
}

func decodeUint64(bz []byte) uint64 {
	if len(bz) != 8 {
		panic(fmt.Sprintf("store: corrupt 8-byte counter, got %d bytes", len(bz)))
	}
	return binary.BigEndian.Uint64(bz)
}

var _ Store = (*KVStore)(nil)
