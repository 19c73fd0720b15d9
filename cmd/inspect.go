package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	tconfig "github.com/wkalt/tablelog/config"
	"github.com/wkalt/tablelog/util"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [table]",
	Short: "Print the metadata and effective settings of a table",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		tbl := openTable(ctx, args[0])
		state := tbl.Snapshot()
		keyColor.Print("root: ")
		fmt.Println(tbl.Root())
		keyColor.Print("version: ")
		fmt.Println(state.Version)
		if md := state.Metadata; md != nil {
			keyColor.Print("id: ")
			fmt.Println(md.ID)
			if md.Name != "" {
				keyColor.Print("name: ")
				fmt.Println(md.Name)
			}
			keyColor.Print("partition columns: ")
			fmt.Println(md.PartitionColumns)
			for _, k := range util.Okeys(md.Configuration) {
				keyColor.Printf("property %s: ", k)
				fmt.Println(md.Configuration[k])
			}
		}
		if p := state.Protocol; p != nil {
			keyColor.Print("protocol: ")
			fmt.Printf("reader %d, writer %d\n", p.MinReaderVersion, p.MinWriterVersion)
		}
		conf, err := tbl.Properties()
		checkErr(err)
		policy, err := tbl.RetentionPolicy()
		checkErr(err)
		keyColor.Print("checkpoint interval: ")
		fmt.Println(strconv.FormatInt(conf.CheckpointInterval, 10))
		keyColor.Print("log retention: ")
		fmt.Println(tconfig.FormatInterval(policy.LogRetention))
		keyColor.Print("deleted file retention: ")
		fmt.Println(tconfig.FormatInterval(policy.TombstoneRetention))
		keyColor.Print("expired log cleanup: ")
		fmt.Println(util.When(conf.EnableExpiredLogCleanup, "enabled", "disabled"))
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
