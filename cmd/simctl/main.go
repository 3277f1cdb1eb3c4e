// Command simctl is a thin CLI wrapper over the simulator: call, view,
// new-account, reset, and replay subcommands driving a Simulator session,
// in the style of the teacher's cmd/vm-cli.
package main

import (
	"fmt"
	"os"

	"github.com/govm-net/sim/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	driverBinary string
	contractsDir string
	defaultGas   uint64
	dbPath       string

	rootCmd = &cobra.Command{
		Use:   "simctl",
		Short: "Promise-scheduling contract simulator CLI",
		Long: `simctl drives a local, single-session simulator for the
sharded, promise-oriented smart-contract execution model: invoke contract
methods, observe state, and let the promise scheduler run the resulting
cross-contract call graph to completion.`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.simctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&driverBinary, "driver-binary", "", "external VM Driver binary (empty: use the in-process wazero fallback)")
	rootCmd.PersistentFlags().StringVar(&contractsDir, "contracts-dir", ".", "directory contract images are resolved relative to")
	rootCmd.PersistentFlags().Uint64Var(&defaultGas, "default-gas", config.DefaultGas, "gas attached to a call when unspecified")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "simctl.db", "sqlite path used by the replay subcommand")

	viper.BindPFlag("driver-binary", rootCmd.PersistentFlags().Lookup("driver-binary"))
	viper.BindPFlag("contracts-dir", rootCmd.PersistentFlags().Lookup("contracts-dir"))
	viper.BindPFlag("default-gas", rootCmd.PersistentFlags().Lookup("default-gas"))
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))

	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(newAccountCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(replayCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".simctl")
		}
	}
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func loadConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.DriverBinaryPath = viper.GetString("driver-binary")
	cfg.ContractsDir = viper.GetString("contracts-dir")
	if gas := viper.GetUint64("default-gas"); gas != 0 {
		cfg.DefaultGas = gas
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
