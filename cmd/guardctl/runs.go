package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentcore-dev/runtime/internal/storage"
	"github.com/agentcore-dev/runtime/pkg/types"
)

func runsCmd() *cobra.Command {
	var dataDir, filterStatus string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Dump run-graph records from a storage directory",
		Run: func(cmd *cobra.Command, args []string) {
			if err := dumpRuns(dataDir, filterStatus); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", ".", "storage base directory (contains runs/)")
	cmd.Flags().StringVar(&filterStatus, "status", "", "only show runs in this status")
	return cmd
}

func dumpRuns(dataDir, filterStatus string) error {
	store := storage.New(dataDir)
	ctx := context.Background()

	ids, err := store.List(ctx, []string{"runs"})
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	shown := 0
	for _, id := range ids {
		var rec types.RunRecord
		if err := store.Get(ctx, []string{"runs", id}, &rec); err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", id, err)
			continue
		}
		if filterStatus != "" && string(rec.Status) != filterStatus {
			continue
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode %s: %w", id, err)
		}
		shown++
	}
	fmt.Fprintf(os.Stderr, "%d run(s)\n", shown)
	return nil
}
