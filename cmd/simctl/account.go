package main

import (
	"context"
	"fmt"

	"github.com/govm-net/sim"
	"github.com/spf13/cobra"
)

var newAccountContract string

var newAccountCmd = &cobra.Command{
	Use:   "new-account <account>",
	Short: "Explicitly create an account, optionally backed by a contract image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()
		driver, closeDriver, err := newDriver(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeDriver()

		s := sim.New(cfg, driver, nil)
		acc, err := s.NewAccount(args[0], newAccountContract)
		if err != nil {
			return fmt.Errorf("simctl: new-account: %w", err)
		}
		fmt.Printf("created %s (signer_key=%s, balance=%d)\n", acc.AccountID, acc.SignerKey, acc.Balance)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <account>",
	Short: "Restore an account to its default state without removing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()
		driver, closeDriver, err := newDriver(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeDriver()

		s := sim.New(cfg, driver, nil)
		s.Reset(args[0])
		fmt.Printf("reset %s\n", args[0])
		return nil
	},
}

func init() {
	newAccountCmd.Flags().StringVar(&newAccountContract, "contract", "", "path to the account's contract image")
}
