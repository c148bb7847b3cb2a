package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"chainforge/crypto"
	"chainforge/store"
)

var (
	inspectDBDir  string
	inspectDBName string
	inspectAddr   string
)

// InspectDBCmd opens a store directory with store.NewKVStore and prints its
// chain head and, optionally, a single account's balance -- a debugging
// aid for inspecting a node's persisted state offline. It issues no writes,
// but the database is not opened in a read-only mode.
var InspectDBCmd = &cobra.Command{
	Use:     "inspect-db",
	Aliases: []string{"inspect_db"},
	Short:   "Print chain head and account state from a store directory",
	RunE:    inspectDB,
}

func init() {
	InspectDBCmd.Flags().StringVar(&inspectDBDir, "dir", "", "store directory (defaults to the node's configured db_dir)")
	InspectDBCmd.Flags().StringVar(&inspectDBName, "name", "chainforge", "store database name")
	InspectDBCmd.Flags().StringVar(&inspectAddr, "address", "", "hex-encoded address to report balance for")
}

func inspectDB(cmd *cobra.Command, args []string) error {
	dir := inspectDBDir
	if dir == "" {
		dir = config.DBDir()
	}

	st, err := store.NewKVStore(inspectDBName, dir, logger)
	if err != nil {
		return err
	}

	fmt.Printf("latest_height:    %d\n", st.LatestHeight())
	fmt.Printf("finalized_height: %d\n", st.FinalizedHeight())

	if inspectAddr == "" {
		return nil
	}
	addrBz, err := crypto.AddressFromHex(inspectAddr)
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}
	acct := st.GetAccount(addrBz)
	fmt.Printf("nonce:            %d\n", acct.Nonce)
	fmt.Printf("balance:          %s\n", acct.Balance.String())
	return nil
}
