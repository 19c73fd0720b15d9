package cmd

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/spf13/cobra"
	"github.com/wkalt/tablelog/txlog"
	"github.com/wkalt/tablelog/util"
)

var versionsCmd = &cobra.Command{
	Use:   "versions [table]",
	Short: "List the log entries and checkpoints of a table",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		tbl := openTable(ctx, args[0])
		artifacts, err := tbl.Log().ListArtifacts(ctx)
		checkErr(err)
		if len(artifacts) == 0 {
			warnColor.Println("table is empty")
			return
		}
		checkpoints := 0
		rows := make([][]string, 0, len(artifacts))
		for _, a := range artifacts {
			if a.Kind == txlog.KindCheckpoint {
				checkpoints++
			}
			rows = append(rows, []string{
				formatVersion(a.Version),
				a.Kind.String(),
				path.Base(a.Name),
				util.HumanBytes(uint64(a.Size)),
				a.LastModified.UTC().Format(time.RFC3339),
			})
		}
		keyColor.Printf("%d entries, %d checkpoints\n", len(artifacts)-checkpoints, checkpoints)
		util.PrintTable(os.Stdout, []string{"Version", "Kind", "Name", "Size", "Modified"}, rows)
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}
