package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/govm-net/sim"
	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view <account> <method> [input]",
	Short: "Run a side-effect-free call directly against one account",
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

		res, err := s.View(ctx, accountID, method, input)
		if err != nil {
			return fmt.Errorf("simctl: view: %w", err)
		}

		out := map[string]any{"return_data": json.RawMessage(res.ReturnData)}
		if res.Err != nil {
			out["err"] = res.Err.Error()
		}
		buf, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("simctl: marshal result: %w", err)
		}
		fmt.Println(string(buf))
		return nil
	},
}
