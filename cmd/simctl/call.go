package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/govm-net/sim"
	"github.com/spf13/cobra"
)

var (
	callSigner  string
	callGas     uint64
	callDeposit uint64
)

var callCmd = &cobra.Command{
	Use:   "call <account> <method> [input]",
	Short: "Invoke a contract method through the full promise scheduler",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, method := args[0], args[1]
		input := ""
		if len(args) == 3 {
			input = args[2]
		}

		cfg := loadConfig()
		ctx := context.Background()
		driver, closeDriver, err := newDriver(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeDriver()

		s := sim.New(cfg, driver, nil)
		if _, err := s.NewAccount(accountID, ""); err != nil {
			return err
		}

		res, err := s.Call(ctx, sim.CallRequest{
			AccountID:       accountID,
			MethodName:      method,
			Input:           input,
			SignerAccountID: callSigner,
			PrepaidGas:      callGas,
			AttachedDeposit: callDeposit,
		})
		if err != nil {
			return fmt.Errorf("simctl: call: %w", err)
		}
		return printCallResult(res)
	},
}

func init() {
	callCmd.Flags().StringVar(&callSigner, "signer", "", "signer account id (defaults to the called account)")
	callCmd.Flags().Uint64Var(&callGas, "gas", 0, "prepaid gas (0: use the configured default)")
	callCmd.Flags().Uint64Var(&callDeposit, "deposit", 0, "attached deposit")
}

func printCallResult(res sim.CallResult) error {
	out := map[string]any{
		"return_data": json.RawMessage(res.ReturnData),
		"calls":       len(res.Calls),
	}
	if res.Err != nil {
		out["err"] = res.Err.Error()
	}
	buf, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("simctl: marshal result: %w", err)
	}
	fmt.Println(string(buf))
	return nil
}
