package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/relvacode/iso8601"
	"github.com/spf13/cobra"
	"github.com/wkalt/tablelog/snapshot"
	"github.com/wkalt/tablelog/util"
)

var (
	snapshotVersion   int64
	snapshotTimestamp string
	snapshotGlob      string
	snapshotJSON      bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [table]",
	Short: "Print the live files of a table",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		hasVersion := cmd.Flags().Changed("version")
		if hasVersion && snapshotTimestamp != "" {
			bailf("cannot specify both --version and --timestamp")
		}
		tbl := openTable(ctx, args[0])
		var state *snapshot.State
		var err error
		switch {
		case hasVersion:
			state, err = tbl.SnapshotAt(ctx, snapshotVersion)
		case snapshotTimestamp != "":
			ts, perr := iso8601.ParseString(snapshotTimestamp)
			if perr != nil {
				bailf("error parsing timestamp: %s", perr)
			}
			state, err = tbl.SnapshotAtTimestamp(ctx, ts)
		default:
			state = tbl.Snapshot()
		}
		checkErr(err)
		files, err := state.Glob(snapshotGlob)
		checkErr(err)
		if snapshotJSON {
			printJSON(files)
			return
		}
		checksum, err := state.Checksum()
		checkErr(err)
		keyColor.Printf("version %d: ", state.Version)
		fmt.Printf("%d files, %d tombstones, checksum %s\n",
			state.FileCount(), state.TombstoneCount(), strconv.FormatUint(checksum, 16))
		rows := make([][]string, 0, len(files))
		for _, f := range files {
			rows = append(rows, []string{
				f.Path,
				util.HumanBytes(uint64(f.Size)),
				formatMillis(f.ModificationTime),
			})
		}
		if len(rows) > 0 {
			util.PrintTable(os.Stdout, []string{"Path", "Size", "Modified"}, rows)
		}
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.PersistentFlags().Int64VarP(&snapshotVersion, "version", "v", 0, "Version to reconstruct")
	snapshotCmd.PersistentFlags().StringVarP(&snapshotTimestamp, "timestamp", "", "", "Reconstruct as of an ISO 8601 time")
	snapshotCmd.PersistentFlags().StringVarP(&snapshotGlob, "glob", "g", "**", "Only list paths matching the pattern")
	snapshotCmd.PersistentFlags().BoolVarP(&snapshotJSON, "json", "j", false, "Print files as JSON")
}
