package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/wkalt/tablelog/actions"
	"github.com/wkalt/tablelog/table"
)

var (
	commitFile        string
	commitOperation   string
	commitReadVersion int64
	commitBlindAppend bool
)

var commitCmd = &cobra.Command{
	Use:   "commit [table]",
	Short: "Commit newline-delimited actions to a table",
	Long: `Commit newline-delimited actions, one single-key JSON object per line,
read from --file or standard input. Blank lines are ignored.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		var data []byte
		var err error
		if commitFile == "" || commitFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(commitFile)
		}
		checkErr(err)
		acts, err := actions.Decode(data)
		checkErr(err)
		if len(acts) == 0 {
			bailf("no actions to commit")
		}
		tbl := openTable(ctx, args[0])
		var tx *table.Transaction
		if cmd.Flags().Changed("read-version") {
			tx, err = tbl.StartTransactionAt(ctx, commitReadVersion)
		} else {
			tx, err = tbl.StartTransaction(ctx)
		}
		checkErr(err)
		version, err := tx.Commit(ctx, acts, table.Operation{
			Name:        commitOperation,
			BlindAppend: commitBlindAppend,
		})
		checkErr(err)
		okColor.Printf("committed version %d\n", version)
	},
}

func init() {
	rootCmd.AddCommand(commitCmd)
	commitCmd.PersistentFlags().StringVarP(&commitFile, "file", "f", "", "Action file (default stdin)")
	commitCmd.PersistentFlags().StringVarP(&commitOperation, "operation", "o", "WRITE", "Operation name")
	commitCmd.PersistentFlags().Int64VarP(&commitReadVersion, "read-version", "r", -1,
		"Version the actions were computed against; conflicts if it is no longer the latest")
	commitCmd.PersistentFlags().BoolVarP(&commitBlindAppend, "blind-append", "", false, "Mark the commit a blind append")
}
