package commands

import (
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"
	tmrand "github.com/tendermint/tendermint/libs/rand"

	"chainforge/consensus"
	"chainforge/crypto"
	"chainforge/privval"
	"chainforge/types"
)

var GenGenesisCmd = &cobra.Command{
	Use:     "gen-genesis-block",
	Aliases: []string{"gen_genesis"},
	Short:   "Generate a genesis file for a fresh validator set",
	RunE:    genGenesisFile,
}

var (
	chainID      string
	validatorSum int
	initialStake int64
	initialFunds int64
	keysOutDir   string
)

func init() {
	GenGenesisCmd.Flags().StringVar(&chainID, "chain-id", "", "chain id; a random one is generated if empty")
	GenGenesisCmd.Flags().IntVar(&validatorSum, "validators", 4, "number of validators to generate")
	GenGenesisCmd.Flags().Int64Var(&initialStake, "stake", 100, "equal stake assigned to every generated validator")
	GenGenesisCmd.Flags().Int64Var(&initialFunds, "fund", 1_000_000, "initial balance credited to every generated validator's own account")
	GenGenesisCmd.Flags().StringVar(&keysOutDir, "keys-out", "", "directory to write each generated validator's priv_validator_key.json under validator-N/ subdirectories; skipped if empty")
}

func genGenesisFile(cmd *cobra.Command, args []string) error {
	genFile := config.GenesisFile()
	if tmos.FileExists(genFile) {
		logger.Info("found genesis file, exiting", "path", genFile)
		return nil
	}
	if validatorSum <= 0 {
		return fmt.Errorf("validators must be > 0")
	}

	if chainID == "" {
		chainID = fmt.Sprintf("chainforge-%s", tmrand.Str(6))
	}

	validators := make([]consensus.GenesisValidator, validatorSum)
	accounts := make([]consensus.GenesisAccount, validatorSum)
	for i := 0; i < validatorSum; i++ {
		kp, err := crypto.GenerateKeyPair()
		if err != nil {
			return fmt.Errorf("generating validator %d: %w", i+1, err)
		}

		if keysOutDir != "" {
			keyFile := filepath.Join(keysOutDir, fmt.Sprintf("validator-%d", i+1), "priv_validator_key.json")
			pv := privval.NewFilePV(kp, keyFile, "")
			if err := tmos.EnsureDir(filepath.Dir(keyFile), 0700); err != nil {
				return fmt.Errorf("creating directory for validator %d: %w", i+1, err)
			}
			pv.Save()
		}

		validators[i] = consensus.GenesisValidator{
			Name:           fmt.Sprintf("validator-%d", i+1),
			PubKey:         kp.Public,
			Stake:          big.NewInt(initialStake),
			CommissionRate: types.NewRational(0, 1),
		}
		accounts[i] = consensus.GenesisAccount{
			Address: crypto.AddressFromPubKey(kp.Public),
			Balance: big.NewInt(initialFunds),
		}
		logger.Info("generated validator", "name", validators[i].Name, "address", accounts[i].Address)
	}

	doc := &consensus.GenesisDoc{
		ChainID:        chainID,
		GenesisTime:    time.Now(),
		ValidatorSetID: 1,
		Validators:     validators,
		Accounts:       accounts,
	}
	if err := doc.SaveAs(genFile); err != nil {
		return err
	}
	logger.Info("generated genesis file", "path", genFile)
	return nil
}
