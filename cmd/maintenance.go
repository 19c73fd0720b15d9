package cmd

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/relvacode/iso8601"
	"github.com/spf13/cobra"
	"github.com/wkalt/tablelog/checkpoint"
	"github.com/wkalt/tablelog/clock"
	"github.com/wkalt/tablelog/table"
	"github.com/wkalt/tablelog/txlog"
)

var (
	checkpointVersion int64
	cleanupDryRun     bool
	cleanupNow        string
	verifyVersion     int64
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint [table]",
	Short: "Write a checkpoint of a table",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		tbl := openTable(ctx, args[0])
		var cp *checkpoint.Checkpoint
		var err error
		if cmd.Flags().Changed("version") {
			cp, err = tbl.CheckpointAt(ctx, checkpointVersion)
		} else {
			cp, err = tbl.Checkpoint(ctx)
		}
		checkErr(err)
		okColor.Printf("wrote checkpoint %d: ", cp.Version)
		fmt.Printf("%d files, %d tombstones\n", len(cp.Files), len(cp.Tombstones))
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [table]",
	Short: "Delete expired log entries and checkpoints",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		opts := []table.Option{}
		if cleanupNow != "" {
			now, err := iso8601.ParseString(cleanupNow)
			if err != nil {
				bailf("error parsing --now: %s", err)
			}
			opts = append(opts, table.WithClock(clock.NewManualClock(now)))
		}
		tbl := openTable(ctx, args[0], opts...)
		if cleanupDryRun {
			planned, err := tbl.PlanCleanup(ctx)
			checkErr(err)
			if len(planned) == 0 {
				fmt.Println("nothing to delete")
				return
			}
			for _, a := range planned {
				warnColor.Print("would delete ")
				fmt.Println(path.Base(a.Name))
			}
			return
		}
		report, err := tbl.CleanUpExpiredLogs(ctx)
		checkErr(err)
		if report.Checkpoint == txlog.NoVersion {
			fmt.Println("no checkpoint; nothing is eligible for deletion")
			return
		}
		for _, a := range report.Deleted {
			warnColor.Print("deleted ")
			fmt.Println(path.Base(a.Name))
		}
		for _, a := range report.Absent {
			fmt.Printf("already absent %s\n", path.Base(a.Name))
		}
		okColor.Printf("retained history from checkpoint %d\n", report.Checkpoint)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [table]",
	Short: "Check a checkpoint against a replay of the log",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		tbl := openTable(ctx, args[0])
		version := verifyVersion
		if !cmd.Flags().Changed("version") {
			var err error
			version, err = tbl.LatestCheckpoint(ctx)
			checkErr(err)
		}
		if err := tbl.VerifyCheckpoint(ctx, version); err != nil {
			errColor.Fprintf(os.Stderr, "checkpoint %d failed verification: %s\n", version, err)
			os.Exit(1)
		}
		okColor.Printf("checkpoint %d verified\n", version)
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(verifyCmd)
	checkpointCmd.PersistentFlags().Int64VarP(&checkpointVersion, "version", "v", 0, "Version to checkpoint (default latest)")
	cleanupCmd.PersistentFlags().BoolVarP(&cleanupDryRun, "dry-run", "n", false, "List what would be deleted")
	cleanupCmd.PersistentFlags().StringVarP(&cleanupNow, "now", "", "", "Evaluate expiry as of an ISO 8601 time")
	verifyCmd.PersistentFlags().Int64VarP(&verifyVersion, "version", "v", 0, "Checkpoint to verify (default newest)")
}
