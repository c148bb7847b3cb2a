package commands

import (
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"chainforge/consensus"
	"chainforge/crypto"
	"chainforge/privval"
	"chainforge/types"

	cfg "github.com/tendermint/tendermint/config"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/p2p"
)

// InitFilesCmd initializes a fresh node directory: a private validator
// keypair, a node key, and -- if none of the validators/init commands have
// already produced one -- a single-validator genesis file, so `init` alone
// is enough to run a one-node chain.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a chainforge node",
	RunE:  initFiles,
}

func initFiles(cmd *cobra.Command, args []string) error {
	return initFilesWithConfig(config)
}

func initFilesWithConfig(conf *cfg.Config) error {
	privValKeyFile := conf.PrivValidatorKeyFile()
	privValStateFile := conf.PrivValidatorStateFile()

	pv, err := privval.LoadOrGenFilePV(privValKeyFile, privValStateFile)
	if err != nil {
		return err
	}
	if tmos.FileExists(privValKeyFile) {
		logger.Info("found private validator", "keyFile", privValKeyFile)
	} else {
		pv.Save()
		logger.Info("generated private validator", "keyFile", privValKeyFile)
	}

	nodeKeyFile := conf.NodeKeyFile()
	if tmos.FileExists(nodeKeyFile) {
		logger.Info("found node key", "path", nodeKeyFile)
	} else {
		if _, err := p2p.LoadOrGenNodeKey(nodeKeyFile); err != nil {
			return err
		}
		logger.Info("generated node key", "path", nodeKeyFile)
	}

	genFile := conf.GenesisFile()
	if tmos.FileExists(genFile) {
		logger.Info("found genesis file", "path", genFile)
		return nil
	}

	doc := &consensus.GenesisDoc{
		ChainID:        fmt.Sprintf("chainforge-%s", pv.Address()),
		GenesisTime:    time.Now(),
		ValidatorSetID: 1,
		Validators: []consensus.GenesisValidator{{
			Name:           "validator-1",
			PubKey:         pv.PubKey(),
			Stake:          big.NewInt(100),
			CommissionRate: types.NewRational(0, 1),
		}},
		Accounts: []consensus.GenesisAccount{{
			Address: crypto.AddressFromPubKey(pv.PubKey()),
			Balance: big.NewInt(1_000_000),
		}},
	}
	if err := doc.SaveAs(genFile); err != nil {
		return err
	}
	logger.Info("generated genesis file", "path", genFile)
	return nil
}
