package store

import (
	"chainforge/crypto"
	"chainforge/types"
)

// MockStore is an in-memory Store for engine/pool tests that do not need a
// real embedded database.
type MockStore struct {
	blocksByHeight map[uint64]storedBlock
	blocksByHash   map[crypto.Hash]storedBlock
	accounts       map[crypto.Address]types.Account
	receipts       map[crypto.Hash]Receipt

	latest    uint64
	finalized uint64
}

func NewMockStore() *MockStore {
	return &MockStore{
		blocksByHeight: make(map[uint64]storedBlock),
		blocksByHash:   make(map[crypto.Hash]storedBlock),
		accounts:       make(map[crypto.Address]types.Account),
		receipts:       make(map[crypto.Hash]Receipt),
	}
}

func (m *MockStore) PutBlock(block *types.Block, cert *types.FinalityCertificate) error {
	height := block.Header.Slot
	if height < m.finalized {
		return ErrFinalityViolation
	}
	if _, ok := m.blocksByHeight[height]; ok {
		return ErrAlreadyExists
	}
	rec := storedBlock{Block: *block, Certificate: cert}
	m.blocksByHeight[height] = rec
	m.blocksByHash[block.Hash()] = rec
	if height > m.latest {
		m.latest = height
	}
	return nil
}

func (m *MockStore) GetBlockByHeight(height uint64) (*types.Block, *types.FinalityCertificate, error) {
	rec, ok := m.blocksByHeight[height]
	if !ok {
		return nil, nil, ErrNotFound
	}
	return &rec.Block, rec.Certificate, nil
}

func (m *MockStore) GetBlockByHash(hash crypto.Hash) (*types.Block, *types.FinalityCertificate, error) {
	rec, ok := m.blocksByHash[hash]
	if !ok {
		return nil, nil, ErrNotFound
	}
	return &rec.Block, rec.Certificate, nil
}

func (m *MockStore) SetFinalizedHeight(height uint64) error {
	if height < m.finalized {
		return ErrNonMonotonic
	}
	m.finalized = height
	return nil
}

// SetAccount seeds an account directly, bypassing CommitBlock, for tests
// that need a funded sender before the engine ever runs.
func (m *MockStore) SetAccount(addr crypto.Address, acct types.Account) {
	m.accounts[addr] = acct
}

func (m *MockStore) GetAccount(addr crypto.Address) types.Account {
	if a, ok := m.accounts[addr]; ok {
		return a
	}
	return types.ZeroAccount()
}

func (m *MockStore) ApplyStateDelta(delta types.StateDelta) error {
	for addr, acct := range delta {
		m.accounts[addr] = acct
	}
	return nil
}

func (m *MockStore) PutReceipt(txHash crypto.Hash, receipt Receipt) error {
	m.receipts[txHash] = receipt
	return nil
}

func (m *MockStore) PutReceipts(receipts map[crypto.Hash]Receipt) error {
	for h, r := range receipts {
		m.receipts[h] = r
	}
	return nil
}

func (m *MockStore) LatestHeight() uint64    { return m.latest }
func (m *MockStore) FinalizedHeight() uint64 { return m.finalized }

func (m *MockStore) CommitBlock(block *types.Block, cert *types.FinalityCertificate, delta types.StateDelta, receipts map[crypto.Hash]Receipt) error {
	if err := m.ApplyStateDelta(delta); err != nil {
		return err
	}
	if err := m.PutReceipts(receipts); err != nil {
		return err
	}
	if err := m.PutBlock(block, cert); err != nil {
		return err
	}
	return m.SetFinalizedHeight(block.Header.Slot)
}

var _ Store = (*MockStore)(nil)
