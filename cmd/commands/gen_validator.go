package commands

import (
	"fmt"

	tmos "github.com/tendermint/tendermint/libs/os"

	"chainforge/privval"

	"github.com/spf13/cobra"
)

// GenValidatorCmd generates a new validator keypair and prints the full key
// record (address, public key and private key) as JSON, without touching
// the node's configured key file unless --save is given.
var GenValidatorCmd = &cobra.Command{
	Use:     "gen-validator",
	Aliases: []string{"gen_validator"},
	Args:    cobra.NoArgs,
	Short:   "Generate a new validator keypair",
	PreRun:  deprecateSnakeCase,
	RunE:    genValidator,
}

var saveToConfigDir bool

func init() {
	GenValidatorCmd.Flags().BoolVar(&saveToConfigDir, "save", false, "write the generated key to this node's priv_validator_key_file")
}

func genValidator(cmd *cobra.Command, args []string) error {
	privValKeyFile := config.PrivValidatorKeyFile()
	if saveToConfigDir && tmos.FileExists(privValKeyFile) {
		logger.Info("found private validator, not overwriting", "keyFile", privValKeyFile)
		return nil
	}

	var pv *privval.FilePV
	var err error
	if saveToConfigDir {
		pv, err = privval.GenFilePV(privValKeyFile, config.PrivValidatorStateFile())
	} else {
		pv, err = privval.GenFilePV("", "")
	}
	if err != nil {
		return err
	}

	bz, err := json.MarshalIndent(pv.Key, "", "  ")
	if err != nil {
		return err
	}
	if saveToConfigDir {
		pv.Save()
		logger.Info("generated private validator", "keyFile", privValKeyFile)
	}
	fmt.Println(string(bz))
	return nil
}
