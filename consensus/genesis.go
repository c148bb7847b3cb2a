package consensus

import (
	"io/ioutil"
	"math/big"
	"time"

	"chainforge/crypto"
	"chainforge/store"
	"chainforge/types"

	tmjson "github.com/tendermint/tendermint/libs/json"
	"github.com/tendermint/tendermint/libs/tempfile"
)

// Genesis is the external specification the engine ingests at startup
// when the store is empty: chain identity, initial
// validator set with stakes and commissions, and initial account
// balances. Consensus parameters (slot duration, gas limits, reward
// schedule, ...) live in Config rather than here, since they govern the
// running engine rather than block 0's content.
type Genesis struct {
	ChainID    string
	Validators *types.ValidatorSet
	Balances   map[crypto.Address]*big.Int
}

// Bootstrap writes block 0 from gen into st, and is a no-op if block 0
// is already present -- callers may invoke it unconditionally at startup.
func Bootstrap(st store.Store, gen Genesis) error {
	if _, _, err := st.GetBlockByHeight(0); err == nil {
		return nil
	}

	delta := make(types.StateDelta, len(gen.Balances))
	for addr, bal := range gen.Balances {
		delta[addr] = types.Account{Nonce: 0, Balance: new(big.Int).Set(bal)}
	}

	header := types.Header{
		Slot:           0,
		Epoch:          0,
		ValidatorSetID: gen.Validators.ID,
	}
	block := types.NewBlock(header, nil)
	cert := &types.FinalityCertificate{Slot: 0, Round: 0, BlockHash: block.Hash()}

	return st.CommitBlock(block, cert, delta, map[crypto.Hash]store.Receipt{})
}

// GenesisValidator is one validator entry in a GenesisDoc on disk.
type GenesisValidator struct {
	Name           string         `json:"name,omitempty"`
	PubKey         crypto.PubKey  `json:"pub_key"`
	Stake          *big.Int       `json:"stake"`
	CommissionRate types.Rational `json:"commission_rate"`
}

// GenesisAccount is one funded account entry in a GenesisDoc on disk.
type GenesisAccount struct {
	Address crypto.Address `json:"address"`
	Balance *big.Int       `json:"balance"`
}

// GenesisDoc is Genesis's on-disk form: the file the init/gen-genesis-block
// commands produce and run-node reads at startup.
type GenesisDoc struct {
	ChainID        string             `json:"chain_id"`
	GenesisTime    time.Time          `json:"genesis_time"`
	ValidatorSetID uint64             `json:"validator_set_id"`
	Validators     []GenesisValidator `json:"validators"`
	Accounts       []GenesisAccount   `json:"accounts"`
}

// ValidatorSet builds the runtime types.ValidatorSet from doc's entries.
func (doc *GenesisDoc) ValidatorSet() *types.ValidatorSet {
	valz := make([]*types.Validator, len(doc.Validators))
	for i, v := range doc.Validators {
		valz[i] = types.NewValidator(v.PubKey, v.Stake, v.CommissionRate)
	}
	return types.NewValidatorSet(doc.ValidatorSetID, valz)
}

// Genesis converts doc into the Genesis Bootstrap consumes.
func (doc *GenesisDoc) Genesis() Genesis {
	balances := make(map[crypto.Address]*big.Int, len(doc.Accounts))
	for _, a := range doc.Accounts {
		balances[a.Address] = a.Balance
	}
	return Genesis{ChainID: doc.ChainID, Validators: doc.ValidatorSet(), Balances: balances}
}

// SaveAs atomically writes doc to file as indented JSON.
func (doc *GenesisDoc) SaveAs(file string) error {
	bz, err := tmjson.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return tempfile.WriteFileAtomic(file, bz, 0644)
}

// GenesisDocFromFile reads and decodes a GenesisDoc from file.
func GenesisDocFromFile(file string) (*GenesisDoc, error) {
	bz, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, err
	}
	doc := new(GenesisDoc)
	if err := tmjson.Unmarshal(bz, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
