package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/filepay-go/history"
	"github.com/bitfsorg/filepay-go/ledger"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history <file-id|content-id>",
	Short: "Show the recorded events of a file",
	Long: "Show the recorded ledger events of a file from the Postgres history.\n" +
		"A numeric argument selects by file id, anything else by content id.",
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print events as JSON lines")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.DSN == "" {
		return history.ErrNoDSN
	}
	ctx := cmd.Context()
	db, err := history.Open(ctx, cfg.History.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	store := history.NewStore(db)
	var events []ledger.Event
	if id, perr := strconv.ParseUint(args[0], 10, 64); perr == nil {
		events, err = store.ByFile(ctx, id)
	} else {
		events, err = store.ByContentID(ctx, args[0])
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		enc := json.NewEncoder(out)
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	}
	for _, ev := range events {
		fmt.Fprintf(out, "%6d  %s  %-20s file=%d escrow=%d amount=%d actor=%s %s\n",
			ev.Seq, time.Unix(ev.At, 0).UTC().Format(time.RFC3339), ev.Kind,
			ev.FileID, ev.EscrowID, ev.Amount, ev.Actor, ev.Detail)
	}
	return nil
}
