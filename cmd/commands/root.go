package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"

	jsoniter "github.com/json-iterator/go"
)

var (
	config = cfg.DefaultConfig()
	logger = log.NewTMLogger(log.NewSyncWriter(os.Stdout))
	json   = jsoniter.ConfigCompatibleWithStandardLibrary
)

func init() {
	registerFlagsRootCmd(RootCmd)
}

func registerFlagsRootCmd(cmd *cobra.Command) {
	cmd.PersistentFlags().String("log_level", config.LogLevel, "log level")
}

// ParseConfig reads viper's bound flags into a fresh cfg.Config, sets its
// root directory, and ensures that directory's subdirectories exist.
func ParseConfig() (*cfg.Config, error) {
	conf := cfg.DefaultConfig()
	if err := viper.Unmarshal(conf); err != nil {
		return nil, err
	}
	conf.SetRoot(conf.RootDir)
	cfg.EnsureRoot(conf.RootDir)
	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return conf, nil
}

// RootCmd is the base chainforge CLI; every subcommand hangs off it.
var RootCmd = &cobra.Command{
	Use:   "chainforge",
	Short: "Proof-of-stake BFT chain node",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		conf, err := ParseConfig()
		if err != nil {
			return err
		}
		config = conf
		logger = logger.With("module", "main")
		return nil
	},
}

// deprecateSnakeCase warns about every positional argument containing an
// underscore (snake_case instead of the current kebab-case form), without
// refusing to run.
func deprecateSnakeCase(cmd *cobra.Command, args []string) {
	for _, arg := range args {
		if strings.Contains(arg, "_") {
			logger.Error("deprecated flag style used, please use kebab-case instead", "flag", arg)
		}
	}
}
