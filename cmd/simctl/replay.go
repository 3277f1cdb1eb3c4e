package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/govm-net/sim"
	"github.com/govm-net/sim/accountdb"
	"github.com/spf13/cobra"
)

var replaySession string

var replayCmd = &cobra.Command{
	Use:   "replay <account> <method> [input]",
	Short: "Drive a call, print its result and call count, and persist the final account snapshot for later inspection",
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

		res, err := s.Call(ctx, sim.CallRequest{AccountID: accountID, MethodName: method, Input: input})
		if err != nil {
			return fmt.Errorf("simctl: replay: %w", err)
		}

		db, err := accountdb.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.SaveSnapshot(replaySession, s.Store().Snapshot()); err != nil {
			return fmt.Errorf("simctl: persist snapshot: %w", err)
		}

		dump := struct {
			ReturnData json.RawMessage `json:"return_data"`
			Err        string          `json:"err,omitempty"`
			CallCount  int             `json:"call_count"`
		}{ReturnData: res.ReturnData, CallCount: len(res.Calls)}
		if res.Err != nil {
			dump.Err = res.Err.Error()
		}

		buf, err := json.MarshalIndent(dump, "", "  ")
		if err != nil {
			return fmt.Errorf("simctl: marshal replay dump: %w", err)
		}
		fmt.Println(string(buf))
		fmt.Printf("snapshot saved under session %q in %s\n", replaySession, dbPath)
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replaySession, "session", "default", "session id to persist the snapshot under")
}
